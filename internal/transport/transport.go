// Package transport is the HTTP adapter behind the Cohost client: it issues
// GET and POST requests, captures status, headers and body, and owns the
// cookie jar that carries the session between requests and process runs.
//
// A Transport is owned by exactly one client and is not safe for concurrent use.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/joss/chost/internal/logging"
)

// DefaultTimeout bounds every request when no other timeout is configured.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response body is buffered.
const maxBodySize = 8 << 20

// ErrBodyTooLarge is returned for responses over 8 MiB.
var ErrBodyTooLarge = errors.New("response too large")

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	URL        *url.URL
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Body)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Transport issues requests through an HTTP client sharing one cookie jar.
type Transport struct {
	client  *http.Client
	jar     *Jar
	timeout time.Duration
	log     *logging.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithTimeout bounds each request. Zero disables the per-request bound.
func WithTimeout(d time.Duration) Option {
	return func(t *Transport) {
		t.timeout = d
	}
}

// WithLogger sets the logger for request events.
func WithLogger(l *logging.Logger) Option {
	return func(t *Transport) {
		t.log = l.WithComponent("transport")
	}
}

// WithHTTPClient replaces the underlying *http.Client. Its Jar is replaced
// by the transport's own jar.
func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) {
		t.client = c
	}
}

// New creates a transport with an empty cookie jar.
func New(opts ...Option) *Transport {
	t := &Transport{
		client:  &http.Client{},
		jar:     NewJar(),
		timeout: DefaultTimeout,
		log:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.client.Jar = t.jar
	return t
}

// Jar returns the live cookie jar.
func (t *Transport) Jar() *Jar {
	return t.jar
}

// ResetCookies discards every cookie, giving the next request a session-less jar.
func (t *Transport) ResetCookies() {
	t.jar = NewJar()
	t.client.Jar = t.jar
}

// LoadCookies replaces the jar with the contents of a Netscape cookie file.
func (t *Transport) LoadCookies(path string) error {
	jar := NewJar()
	if err := jar.Load(path); err != nil {
		return err
	}
	t.jar = jar
	t.client.Jar = jar
	return nil
}

// SaveCookies writes the jar to a Netscape cookie file.
func (t *Transport) SaveCookies(path string) error {
	return t.jar.Save(path)
}

// SetCookie stores a cookie for u as if the server had set it.
func (t *Transport) SetCookie(u *url.URL, c *http.Cookie) {
	t.jar.SetCookies(u, []*http.Cookie{c})
}

// Cookie returns the value of the named cookie that would be sent to u.
func (t *Transport) Cookie(u *url.URL, name string) (string, bool) {
	return t.jar.Value(u, name)
}

// Close releases idle connections.
func (t *Transport) Close() {
	t.client.CloseIdleConnections()
}

// Get issues a GET request. Redirects are followed.
func (t *Transport) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	return t.do(ctx, http.MethodGet, rawURL, nil, header)
}

// Post issues a POST request with body.
func (t *Transport) Post(ctx context.Context, rawURL string, body []byte, header http.Header) (*Response, error) {
	return t.do(ctx, http.MethodPost, rawURL, body, header)
}

func (t *Transport) do(ctx context.Context, method, rawURL string, body []byte, header http.Header) (*Response, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}

	log := t.log.Ctx(ctx)
	start := time.Now()
	extra := map[string]interface{}{"method": method, "url": redact(req.URL)}

	resp, err := t.client.Do(req)
	if err != nil {
		log.TimedEvent("request", start, extra, err)
		return nil, fmt.Errorf("%s %s: %w", method, redact(req.URL), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err == nil && len(data) > maxBodySize {
		err = ErrBodyTooLarge
	}
	if err != nil {
		log.TimedEvent("request", start, extra, err)
		return nil, fmt.Errorf("%s %s: read body: %w", method, redact(req.URL), err)
	}

	extra["status"] = resp.StatusCode
	extra["bytes"] = len(data)

	out := &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{
			Method:     method,
			URL:        redact(req.URL),
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       snippet(data),
		}
		log.TimedEvent("request", start, extra, serr)
		return out, serr
	}

	log.TimedEvent("request", start, extra, nil)
	return out, nil
}

// redact drops the query string, which may carry an email address.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}

func snippet(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
