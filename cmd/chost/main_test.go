package main

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/chost/internal/config"
)

const testSID = "s%3Acli.signature"

func newFakeServer(t *testing.T) *httptest.Server {
	t.Helper()

	authed := func(r *http.Request) bool {
		c, err := r.Cookie("connect.sid")
		return err == nil && c.Value == testSID
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/login/salt", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"salt":"c2FsdA"}`)
	})
	mux.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "connect.sid", Value: testSID, Path: "/", HttpOnly: true})
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("GET /api/v1/trpc/login.loggedIn", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			io.WriteString(w, `{"result":{"data":{"loggedIn":false,"userId":null,"projectId":null,"projectHandle":null,"modMode":false,"activated":false,"readOnly":false}}}`)
			return
		}
		io.WriteString(w, `{"result":{"data":{"loggedIn":true,"userId":42,"projectId":7,"projectHandle":"eggbug","modMode":false,"activated":true,"readOnly":false}}}`)
	})
	mux.HandleFunc("GET /api/v1/notifications/list", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"notifications":[
			{"type":"like","createdAt":"t1","fromProjectId":11,"toPostId":22,"relationshipId":33},
			{"type":"follow","createdAt":"t2","fromProjectId":12},
			{"type":"share","createdAt":"t3","fromProjectId":13,"toPostId":24}
		]}`)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

type cli struct {
	t    *testing.T
	home string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	server := newFakeServer(t)
	home := t.TempDir()

	t.Setenv("CHOST_HOME", home)
	t.Setenv("CHOST_BASE_URL", server.URL+"/api/v1/")
	t.Setenv("CHOST_LOG_LEVEL", "off")
	t.Setenv("CHOST_EMAIL", "")
	t.Cleanup(config.Reset)
	return &cli{t: t, home: home}
}

func (c *cli) run(stdin string, args ...string) (int, string, string) {
	c.t.Helper()
	config.Reset()
	var stdout, stderr bytes.Buffer
	code := run(append(args, "--pretty=false"), strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const sessionLine = "user_id=42 project_id=7 handle=eggbug flags=activated|logged_in\n"

func TestLoginThenWhoami(t *testing.T) {
	c := newCLI(t)

	code, out, errOut := c.run("hunter2\n", "login", "--email", "a@b.com", "--password-stdin")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, sessionLine, out)
	assert.FileExists(t, filepath.Join(c.home, "cookies.txt"))
	assert.FileExists(t, filepath.Join(c.home, "data", "cache.db"))

	code, out, errOut = c.run("", "whoami")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, sessionLine, out)

	code, out, errOut = c.run("", "whoami", "--offline")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "handle=eggbug")
}

func TestLoginWithSessionID(t *testing.T) {
	c := newCLI(t)

	code, out, errOut := c.run("", "login", "--session-id", testSID)
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, sessionLine, out)

	code, _, errOut = c.run("", "login", "--session-id", "s%3Awrong")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bad login credentials")
}

func TestLoginNeedsEmail(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.run("", "login")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no email given")
}

func TestWhoamiWithoutLogin(t *testing.T) {
	c := newCLI(t)

	code, _, errOut := c.run("", "whoami")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "run `chost login` first")

	code, _, errOut = c.run("", "whoami", "--offline")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no cached login")
}

func TestNotifications(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run("", "login", "--session-id", testSID)
	require.Equal(t, 0, code, errOut)

	code, out, errOut := c.run("", "notifications", "--offset", "4", "--limit", "2")
	require.Equal(t, 0, code, errOut)
	want := "[4] t1 kind=like from=11 post=22\n[5] t2 kind=follow from=12\n"
	assert.Equal(t, want, out)

	code, out, errOut = c.run("", "notifications", "--cached", "--offset", "4", "--limit", "5")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, want, out)

	code, _, errOut = c.run("", "notifications", "--limit", "5")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "fewer results than requested")

	code, _, errOut = c.run("", "notifications", "--limit", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid argument")
}

func TestLogout(t *testing.T) {
	c := newCLI(t)
	code, _, errOut := c.run("", "login", "--session-id", testSID)
	require.Equal(t, 0, code, errOut)

	code, out, _ := c.run("", "logout")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "Removed")
	assert.NoFileExists(t, filepath.Join(c.home, "cookies.txt"))

	code, out, _ = c.run("", "logout")
	assert.Equal(t, 0, code)
	assert.Equal(t, "Not logged in\n", out)

	code, _, _ = c.run("", "whoami")
	assert.Equal(t, 1, code)
}

func TestUnknownCommand(t *testing.T) {
	newCLI(t)
	var stdout, stderr bytes.Buffer
	code := run([]string{"bogus"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unknown command")
}
