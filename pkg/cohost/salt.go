package cohost

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/joss/chost/internal/b64"
)

// saltReplacer maps the server's salt alphabet onto standard base64. Both
// '-' and '_' become 'A', which is what the server itself does when checking
// the client hash.
var saltReplacer = strings.NewReplacer("-", "A", "_", "A")

// NormalizeSalt rewrites a salt as sent by the server into a standard
// base64 string ready for decoding.
func NormalizeSalt(salt string) string {
	return saltReplacer.Replace(salt) + "=="
}

// DecodeSalt normalizes and decodes a server salt into raw bytes.
func DecodeSalt(salt string) ([]byte, error) {
	raw, err := b64.Decode(NormalizeSalt(salt))
	if err != nil {
		return nil, wrapErrorf(ErrProtocol, "decode salt: %w", err)
	}
	return raw, nil
}

type saltResponse struct {
	Salt *string `json:"salt"`
}

// FetchSalt asks the server for the salt registered to email and returns it
// decoded. The request is made with an empty cookie jar of its own; the
// client's session cookies are left alone.
//
// A client built WithTransport has a single jar, so FetchSalt refuses to run
// on it while a session is live.
func (c *Client) FetchSalt(ctx context.Context, email string) ([]byte, error) {
	const op = "fetch_salt"
	if email == "" {
		return nil, newError(op, "", ErrInvalidArgument, "email is empty")
	}

	tr := c.tr
	switch {
	case c.ownTransport:
		scratch := c.newTransport()
		defer scratch.Close()
		tr = scratch
	case c.session.LoggedIn():
		return nil, newError(op, "", ErrInvalidArgument, "fetching a salt would discard the logged-in session")
	}

	salt, err := fetchSalt(ctx, tr, c.endpoint(pathSalt, url.Values{"email": {email}}))
	if err != nil {
		return nil, classify(op, "", ErrTransport, err)
	}
	return salt, nil
}

// fetchSalt empties tr's cookie jar, then GETs and decodes the salt at rawURL.
func fetchSalt(ctx context.Context, tr Transport, rawURL string) ([]byte, error) {
	tr.ResetCookies()

	resp, err := tr.Get(ctx, rawURL, nil)
	if err != nil {
		return nil, wrapErrorf(ErrTransport, "get salt: %w", err)
	}

	var body saltResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, wrapErrorf(ErrProtocol, "parse salt response: %w", err)
	}
	if body.Salt == nil {
		return nil, wrapErrorf(ErrProtocol, "salt response has no \"salt\" key")
	}
	return DecodeSalt(*body.Salt)
}
