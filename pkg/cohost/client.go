// Package cohost is a client for the private Cohost API: salted-password
// login, cookie-based session persistence, logged-in user info and the
// notification feed.
//
// A Client owns one HTTP transport and its cookie jar. Calls block until the
// round trip completes. A Client must not be used from more than one
// goroutine at a time; doing so is a precondition violation, not a
// supported mode.
package cohost

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joss/chost/internal/kdf"
	"github.com/joss/chost/internal/logging"
	"github.com/joss/chost/internal/transport"
)

// DefaultBaseURL is the root of the Cohost v1 API.
const DefaultBaseURL = "https://cohost.org/api/v1/"

// SessionCookieName is the cookie that identifies an authenticated session.
const SessionCookieName = "connect.sid"

// API paths relative to the base URL.
const (
	pathSalt              = "login/salt"
	pathLogin             = "login"
	pathLoggedIn          = "trpc/login.loggedIn"
	pathNotificationsList = "notifications/list"
)

// Transport is the HTTP capability the client drives. *transport.Transport
// is the production implementation.
type Transport interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*transport.Response, error)
	Post(ctx context.Context, rawURL string, body []byte, header http.Header) (*transport.Response, error)
	ResetCookies()
	LoadCookies(path string) error
	SaveCookies(path string) error
	SetCookie(u *url.URL, c *http.Cookie)
	Cookie(u *url.URL, name string) (string, bool)
	Close()
}

var _ Transport = (*transport.Transport)(nil)

// KeyDeriver turns a password and raw salt into the 48-byte login key.
type KeyDeriver func(password, salt []byte) ([]byte, error)

// Client talks to one Cohost API base URL on behalf of one session.
type Client struct {
	rawBase       string
	base          *url.URL
	tr            Transport
	log           *logging.Logger
	timeout       time.Duration
	cookieJarPath string
	deriveKey     KeyDeriver
	ownTransport  bool

	session Session
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides DefaultBaseURL.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		c.rawBase = raw
	}
}

// WithTimeout bounds each network call made by the default transport.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the event logger. The default drops all events.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithCookieJarPath persists the cookie jar to path after every successful
// login and on Close. Empty keeps cookies in memory only.
func WithCookieJarPath(path string) Option {
	return func(c *Client) {
		c.cookieJarPath = path
	}
}

// WithTransport replaces the default HTTP transport.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.tr = t
	}
}

// WithKeyDeriver replaces the PBKDF2 key derivation.
func WithKeyDeriver(fn KeyDeriver) Option {
	return func(c *Client) {
		c.deriveKey = fn
	}
}

// NewClient creates an unauthenticated client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		rawBase:   DefaultBaseURL,
		log:       logging.Nop(),
		timeout:   transport.DefaultTimeout,
		deriveKey: kdf.DeriveKey,
	}
	for _, opt := range opts {
		opt(c)
	}

	base, err := url.Parse(c.rawBase)
	if err != nil || (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, newError("new_client", "", ErrInvalidArgument, "base URL %q must be an absolute http(s) URL", c.rawBase)
	}
	c.base = base
	if !strings.HasSuffix(c.base.Path, "/") {
		c.base.Path += "/"
	}

	c.log = c.log.WithComponent("cohost")
	if c.tr == nil {
		c.tr = c.newTransport()
		c.ownTransport = true
	}
	c.session.CookieJarPath = c.cookieJarPath
	return c, nil
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// CookieJarPath returns the file the cookie jar is persisted to, if any.
func (c *Client) CookieJarPath() string {
	return c.cookieJarPath
}

// Close persists the cookie jar when a path is configured and a session was
// established, then releases the transport. The server-side session is not
// revoked.
func (c *Client) Close() error {
	var err error
	if c.cookieJarPath != "" && c.session.LoggedIn() {
		if serr := c.tr.SaveCookies(c.cookieJarPath); serr != nil {
			err = wrapError("close", "", ErrTransport, fmt.Errorf("save cookie jar: %w", serr))
		}
	}
	c.tr.Close()
	c.session = Session{CookieJarPath: c.cookieJarPath}
	return err
}

func (c *Client) newTransport() *transport.Transport {
	return transport.New(
		transport.WithTimeout(c.timeout),
		transport.WithLogger(c.log),
	)
}

func (c *Client) endpoint(path string, query url.Values) string {
	ref := &url.URL{Path: path}
	if query != nil {
		ref.RawQuery = query.Encode()
	}
	return c.base.ResolveReference(ref).String()
}
