package cohost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/joss/chost/internal/kdf"
	"github.com/joss/chost/internal/logging"
)

type loginRequest struct {
	Email      string `json:"email"`
	ClientHash string `json:"clientHash"`
}

// loginHeaders are sent with the credential POST. The empty Expect value
// keeps clients from waiting on a 100-continue the server never sends.
func loginHeaders() http.Header {
	return http.Header{
		"Accept":       {"application/json"},
		"Content-Type": {"application/json"},
		"Charset":      {"utf-8"},
		"Expect":       {""},
	}
}

// LoginWithEmailPass runs the full handshake: fetch the salt, derive the
// client hash, submit credentials, then confirm the session.
//
// Every step depends on the previous one and they run strictly in order. On
// failure the returned error names the last stage reached and the client
// reports not logged in.
func (c *Client) LoginWithEmailPass(ctx context.Context, email, password string) (Session, error) {
	const op = "login"
	c.invalidate()

	if email == "" {
		return Session{}, newError(op, StageUnauthenticated, ErrInvalidArgument, "email is empty")
	}
	if password == "" {
		return Session{}, newError(op, StageUnauthenticated, ErrInvalidArgument, "password is empty")
	}

	ctx = logging.EnsureRequestID(ctx)
	log := c.log.Ctx(ctx)
	start := time.Now()

	fail := func(stage Stage, fallback, err error) (Session, error) {
		e := classify(op, stage, fallback, err)
		log.TimedEvent("login_failed", start, map[string]interface{}{"stage": string(stage)}, e)
		return Session{}, e
	}

	salt, err := fetchSalt(ctx, c.tr, c.endpoint(pathSalt, url.Values{"email": {email}}))
	if err != nil {
		return fail(StageUnauthenticated, ErrTransport, err)
	}
	log.Debug("salt_fetched", map[string]interface{}{"salt_bytes": len(salt)})

	key, err := c.deriveKey([]byte(password), salt)
	if err != nil {
		return fail(StageSaltFetched, ErrCrypto, err)
	}
	clientHash, err := kdf.EncodeKey(key)
	if err != nil {
		return fail(StageSaltFetched, ErrCrypto, err)
	}
	log.Debug("key_derived", nil)

	if err := c.submitCredentials(ctx, email, clientHash); err != nil {
		return fail(StageKeyDerived, ErrTransport, err)
	}
	log.Debug("credentials_submitted", nil)

	sess, err := c.confirm(ctx, c.cookieJarPath)
	if err != nil {
		return fail(StageCredentialsSubmitted, ErrTransport, err)
	}
	sess.Email = email
	c.session = sess

	log.TimedEvent("login", start, map[string]interface{}{
		"method":  "password",
		"user_id": sess.UserID,
		"project": sess.ProjectHandle,
	}, nil)
	return sess, nil
}

// LoginWithCookieFile restores a session from a Netscape cookie file and
// confirms it with the server. A missing file fails with ErrNotFound.
func (c *Client) LoginWithCookieFile(ctx context.Context, path string) (Session, error) {
	const op = "login_cookie_file"
	c.invalidate()

	if path == "" {
		return Session{}, newError(op, StageUnauthenticated, ErrInvalidArgument, "cookie file path is empty")
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return Session{}, wrapError(op, StageUnauthenticated, ErrNotFound, err)
	case err != nil:
		return Session{}, wrapError(op, StageUnauthenticated, ErrInvalidArgument, err)
	case info.IsDir():
		return Session{}, newError(op, StageUnauthenticated, ErrInvalidArgument, "%s is a directory", path)
	}

	ctx = logging.EnsureRequestID(ctx)
	log := c.log.Ctx(ctx)
	start := time.Now()

	if err := c.tr.LoadCookies(path); err != nil {
		e := wrapError(op, StageUnauthenticated, ErrInvalidArgument, fmt.Errorf("load cookie file: %w", err))
		log.TimedEvent("login_failed", start, nil, e)
		return Session{}, e
	}
	jarPath := c.cookieJarPath
	if jarPath == "" {
		jarPath = path
	}

	sess, err := c.confirm(ctx, jarPath)
	if err != nil {
		e := classify(op, StageUnauthenticated, ErrTransport, err)
		log.TimedEvent("login_failed", start, nil, e)
		return Session{}, e
	}
	c.cookieJarPath = jarPath
	c.session = sess

	log.TimedEvent("login", start, map[string]interface{}{
		"method":  "cookie_file",
		"user_id": sess.UserID,
		"project": sess.ProjectHandle,
	}, nil)
	return sess, nil
}

// LoginWithSessionID seeds the jar with a known connect.sid value and
// confirms it with the server.
func (c *Client) LoginWithSessionID(ctx context.Context, id string) (Session, error) {
	const op = "login_session_id"
	c.invalidate()

	if id == "" {
		return Session{}, newError(op, StageUnauthenticated, ErrInvalidArgument, "session id is empty")
	}

	ctx = logging.EnsureRequestID(ctx)
	start := time.Now()

	c.tr.ResetCookies()
	c.tr.SetCookie(c.base, &http.Cookie{
		Name:     SessionCookieName,
		Value:    id,
		Path:     "/",
		Secure:   c.base.Scheme == "https",
		HttpOnly: true,
	})

	sess, err := c.confirm(ctx, c.cookieJarPath)
	if err != nil {
		e := classify(op, StageUnauthenticated, ErrTransport, err)
		c.log.Ctx(ctx).TimedEvent("login_failed", start, nil, e)
		return Session{}, e
	}
	c.session = sess
	c.log.Ctx(ctx).TimedEvent("login", start, map[string]interface{}{"method": "session_id", "user_id": sess.UserID}, nil)
	return sess, nil
}

// Refresh re-runs the confirmation step on the current cookie jar and
// replaces the session with what the server reports now.
func (c *Client) Refresh(ctx context.Context) (Session, error) {
	const op = "refresh"
	email := c.session.Email
	c.invalidate()

	sess, err := c.confirm(logging.EnsureRequestID(ctx), c.cookieJarPath)
	if err != nil {
		return Session{}, classify(op, "", ErrTransport, err)
	}
	sess.Email = email
	c.session = sess
	return sess, nil
}

func (c *Client) submitCredentials(ctx context.Context, email, clientHash string) error {
	body, err := json.Marshal(loginRequest{Email: email, ClientHash: clientHash})
	if err != nil {
		return wrapErrorf(ErrInvalidArgument, "encode login body: %w", err)
	}
	if _, err := c.tr.Post(ctx, c.endpoint(pathLogin, nil), body, loginHeaders()); err != nil {
		return wrapErrorf(ErrTransport, "post credentials: %w", err)
	}
	return nil
}

// confirm asks the server who the current cookies belong to and builds a
// complete session from the answer, saving the jar to jarPath when set.
// Nothing on the client is modified; the caller commits the result.
func (c *Client) confirm(ctx context.Context, jarPath string) (Session, error) {
	resp, err := c.tr.Get(ctx, c.endpoint(pathLoggedIn, nil), http.Header{"Accept": {"application/json"}})
	if err != nil {
		return Session{}, wrapErrorf(ErrTransport, "get loggedIn: %w", err)
	}

	sess, err := parseLoggedIn(resp.Body)
	if err != nil {
		return Session{}, err
	}

	cookie, ok := c.tr.Cookie(c.base, SessionCookieName)
	if !ok || cookie == "" {
		return Session{}, wrapErrorf(ErrProtocol, "no %s cookie after login", SessionCookieName)
	}
	sess.SessionCookie = cookie
	sess.CookieJarPath = jarPath

	if jarPath != "" {
		if err := c.tr.SaveCookies(jarPath); err != nil {
			return Session{}, wrapErrorf(ErrTransport, "save cookie jar: %w", err)
		}
	}
	return sess, nil
}
