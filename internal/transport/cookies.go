package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	netscapeHeader = "# Netscape HTTP Cookie File\n# This file was generated by chost. Edit at your own risk.\n\n"
	httpOnlyPrefix = "#HttpOnly_"
)

// Entry is one cookie as stored in a Netscape cookie file.
type Entry struct {
	Domain            string
	IncludeSubdomains bool
	Path              string
	Secure            bool
	HttpOnly          bool
	Expires           time.Time // zero for session cookies
	Name              string
	Value             string
}

func (e *Entry) expired(now time.Time) bool {
	return !e.Expires.IsZero() && !e.Expires.After(now)
}

type entryKey struct {
	domain, path, name string
}

// Jar is an http.CookieJar that remembers every cookie it accepts so the
// set can be written back to disk. Matching is delegated to net/http/cookiejar.
type Jar struct {
	mu      sync.Mutex
	inner   *cookiejar.Jar
	entries map[entryKey]*Entry
	now     func() time.Time
}

var _ http.CookieJar = (*Jar)(nil)

// NewJar returns an empty jar.
func NewJar() *Jar {
	inner, _ := cookiejar.New(nil)
	return &Jar{
		inner:   inner,
		entries: make(map[entryKey]*Entry),
		now:     time.Now,
	}
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.inner.SetCookies(u, cookies)

	now := j.now()
	for _, c := range cookies {
		e := &Entry{
			Domain:   u.Hostname(),
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
			Name:     c.Name,
			Value:    c.Value,
		}
		// a Domain attribute on an IP host is accepted only as a host cookie
		if c.Domain != "" && net.ParseIP(u.Hostname()) == nil {
			e.Domain = strings.TrimPrefix(strings.ToLower(c.Domain), ".")
			e.IncludeSubdomains = true
		}
		if e.Path == "" || e.Path[0] != '/' {
			e.Path = defaultPath(u.Path)
		}

		key := entryKey{e.Domain, e.Path, e.Name}
		switch {
		case c.MaxAge < 0:
			delete(j.entries, key)
			continue
		case c.MaxAge > 0:
			e.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		case !c.Expires.IsZero():
			e.Expires = c.Expires
		}
		if e.expired(now) {
			delete(j.entries, key)
			continue
		}
		if !j.accepted(u, e) {
			continue
		}
		j.entries[key] = e
	}
}

// accepted reports whether the inner jar stored e, i.e. would send it back
// to a URL it matches.
func (j *Jar) accepted(u *url.URL, e *Entry) bool {
	check := &url.URL{Scheme: "http", Host: u.Host, Path: e.Path}
	if e.Secure {
		check.Scheme = "https"
	}
	for _, c := range j.inner.Cookies(check) {
		if c.Name == e.Name && c.Value == e.Value {
			return true
		}
	}
	return false
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inner.Cookies(u)
}

// Value returns the value of the named cookie sent to u.
func (j *Jar) Value(u *url.URL, name string) (string, bool) {
	for _, c := range j.Cookies(u) {
		if c.Name == name {
			return c.Value, true
		}
	}
	return "", false
}

// Entries returns the live cookies sorted by domain, path and name.
func (j *Jar) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if !e.expired(now) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Domain != out[b].Domain {
			return out[a].Domain < out[b].Domain
		}
		if out[a].Path != out[b].Path {
			return out[a].Path < out[b].Path
		}
		return out[a].Name < out[b].Name
	})
	return out
}

// Add stores an entry as if the server had set it.
func (j *Jar) Add(e Entry) {
	scheme := "http"
	if e.Secure {
		scheme = "https"
	}
	u := &url.URL{Scheme: scheme, Host: e.Domain, Path: e.Path}

	c := &http.Cookie{
		Name:     e.Name,
		Value:    e.Value,
		Path:     e.Path,
		Secure:   e.Secure,
		HttpOnly: e.HttpOnly,
		Expires:  e.Expires,
	}
	if e.IncludeSubdomains {
		c.Domain = e.Domain
	}
	j.SetCookies(u, []*http.Cookie{c})
}

// Load reads a Netscape cookie file into the jar.
func (j *Jar) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries, err := ParseNetscape(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for _, e := range entries {
		j.Add(e)
	}
	return nil
}

// Save writes the jar to path in Netscape format. The file is replaced atomically.
func (j *Jar) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cookies-*")
	if err != nil {
		return fmt.Errorf("create temp cookie file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteNetscape(tmp, j.Entries()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod cookie file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cookie file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

// ErrMalformedLine is returned for cookie lines without seven tab-separated fields.
var ErrMalformedLine = errors.New("malformed cookie line")

// ParseNetscape reads cookie lines in the format written by curl.
func ParseNetscape(r io.Reader) ([]Entry, error) {
	var entries []Entry

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")

		httpOnly := false
		if strings.HasPrefix(line, httpOnlyPrefix) {
			httpOnly = true
			line = strings.TrimPrefix(line, httpOnlyPrefix)
		}
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 7 {
			return nil, fmt.Errorf("line %d: %w", lineNo, ErrMalformedLine)
		}

		expires, err := strconv.ParseInt(fields[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: expiry %q: %w", lineNo, fields[4], err)
		}

		e := Entry{
			Domain:            strings.TrimPrefix(strings.ToLower(fields[0]), "."),
			IncludeSubdomains: strings.EqualFold(fields[1], "TRUE"),
			Path:              fields[2],
			Secure:            strings.EqualFold(fields[3], "TRUE"),
			HttpOnly:          httpOnly,
			Name:              fields[5],
			Value:             fields[6],
		}
		if expires > 0 {
			e.Expires = time.Unix(expires, 0)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

// WriteNetscape writes entries in Netscape cookie file format.
func WriteNetscape(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	bw.WriteString(netscapeHeader)

	for _, e := range entries {
		domain := e.Domain
		if e.IncludeSubdomains {
			domain = "." + domain
		}
		if e.HttpOnly {
			domain = httpOnlyPrefix + domain
		}
		var expires int64
		if !e.Expires.IsZero() {
			expires = e.Expires.Unix()
		}
		fmt.Fprintf(bw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			domain, boolField(e.IncludeSubdomains), e.Path, boolField(e.Secure), expires, e.Name, e.Value)
	}
	return bw.Flush()
}

func boolField(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// defaultPath follows RFC 6265 section 5.1.4.
func defaultPath(p string) string {
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}
