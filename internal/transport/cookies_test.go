package transport

import (
	"bytes"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const curlJar = `# Netscape HTTP Cookie File
# https://curl.se/docs/http-cookies.html
# This file was generated by libcurl! Edit at your own risk.

#HttpOnly_cohost.org	FALSE	/	TRUE	4102444800	connect.sid	s%3Aabc.def
.cohost.org	TRUE	/	TRUE	0	theme	dark
`

func TestParseNetscape(t *testing.T) {
	entries, err := ParseNetscape(strings.NewReader(curlJar))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	sid := entries[0]
	assert.Equal(t, "cohost.org", sid.Domain)
	assert.False(t, sid.IncludeSubdomains)
	assert.True(t, sid.HttpOnly)
	assert.True(t, sid.Secure)
	assert.Equal(t, "connect.sid", sid.Name)
	assert.Equal(t, "s%3Aabc.def", sid.Value)
	assert.Equal(t, int64(4102444800), sid.Expires.Unix())

	theme := entries[1]
	assert.Equal(t, "cohost.org", theme.Domain)
	assert.True(t, theme.IncludeSubdomains)
	assert.True(t, theme.Expires.IsZero())
}

func TestParseNetscapeMalformed(t *testing.T) {
	_, err := ParseNetscape(strings.NewReader("cohost.org\tFALSE\t/\n"))
	assert.ErrorIs(t, err, ErrMalformedLine)

	_, err = ParseNetscape(strings.NewReader("cohost.org\tFALSE\t/\tTRUE\tsoon\tn\tv\n"))
	assert.Error(t, err)
}

func TestWriteNetscapeRoundTrip(t *testing.T) {
	entries, err := ParseNetscape(strings.NewReader(curlJar))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteNetscape(&buf, entries))
	assert.True(t, strings.HasPrefix(buf.String(), "# Netscape HTTP Cookie File"))
	assert.Contains(t, buf.String(), "#HttpOnly_cohost.org\tFALSE\t/\tTRUE\t4102444800\tconnect.sid\ts%3Aabc.def\n")
	assert.Contains(t, buf.String(), ".cohost.org\tTRUE\t/\tTRUE\t0\ttheme\tdark\n")

	again, err := ParseNetscape(&buf)
	require.NoError(t, err)
	assert.Equal(t, entries, again)
}

func TestJarLoadedEntriesAreSent(t *testing.T) {
	entries, err := ParseNetscape(strings.NewReader(curlJar))
	require.NoError(t, err)

	jar := NewJar()
	for _, e := range entries {
		jar.Add(e)
	}

	u, _ := url.Parse("https://cohost.org/api/v1/trpc/login.loggedIn")
	v, ok := jar.Value(u, "connect.sid")
	require.True(t, ok)
	assert.Equal(t, "s%3Aabc.def", v)

	// secure cookies are not sent over plain http
	plain, _ := url.Parse("http://cohost.org/")
	_, ok = jar.Value(plain, "connect.sid")
	assert.False(t, ok)

	assert.Len(t, jar.Entries(), 2)
}

func TestJarExpiry(t *testing.T) {
	jar := NewJar()
	u, _ := url.Parse("https://cohost.org/")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "a", Value: "1", Path: "/", MaxAge: 60},
		{Name: "b", Value: "2", Path: "/", Expires: time.Now().Add(-time.Hour)},
	})
	entries := jar.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "a", entries[0].Name)

	jar.SetCookies(u, []*http.Cookie{{Name: "a", Path: "/", MaxAge: -1}})
	assert.Empty(t, jar.Entries())
	_, ok := jar.Value(u, "a")
	assert.False(t, ok)
}

func TestJarRecordsOnlyAcceptedCookies(t *testing.T) {
	jar := NewJar()
	u, _ := url.Parse("https://cohost.org/api/v1/login")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "ok", Value: "1", Path: "/"},
		{Name: "foreign", Value: "2", Path: "/", Domain: "evil.example"},
		{Name: "bad", Value: "3", Path: "/", Domain: ".."},
	})

	entries := jar.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ok", entries[0].Name)
}

func TestJarDomainCookieOnIPHostIsHostOnly(t *testing.T) {
	jar := NewJar()
	u, _ := url.Parse("http://127.0.0.1:8080/")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "sid", Value: "1", Path: "/", Domain: "127.0.0.1"},
		{Name: "other", Value: "2", Path: "/", Domain: "10.0.0.1"},
	})

	entries := jar.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "sid", entries[0].Name)
	assert.Equal(t, "127.0.0.1", entries[0].Domain)
	assert.False(t, entries[0].IncludeSubdomains)

	var buf bytes.Buffer
	require.NoError(t, WriteNetscape(&buf, entries))
	assert.Contains(t, buf.String(), "127.0.0.1\tFALSE\t/\tFALSE\t0\tsid\t1\n")
}
