package cohost

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	fixtureSID      = "s%3Afixture.signature"
	fixtureHash     = "AH3aDvyZVTR3gCsq52xxaMoINiYiKnnW7V1Mx7CSRai6CKkU6UJ33zP7qDPqIu/Q"
	loggedInOK      = `{"result":{"data":{"loggedIn":true,"userId":42,"email":"a@b.com","projectId":7,"projectHandle":"eggbug","modMode":false,"activated":true,"readOnly":false,"emailVerified":true}}}`
	loggedInNoUser  = `{"result":{"data":{"loggedIn":true,"projectId":7,"projectHandle":"eggbug","modMode":false,"activated":true,"readOnly":false}}}`
	loggedInAnon    = `{"result":{"data":{"loggedIn":false,"userId":null,"projectId":null,"projectHandle":null,"modMode":false,"activated":false,"readOnly":false}}}`
	notificationsOK = `{"notifications":[
		{"type":"like","createdAt":"2022-11-26T01:02:03.000Z","fromProjectId":11,"toPostId":22,"relationshipId":33},
		{"type":"comment","createdAt":"2022-11-26T01:02:04.000Z","fromProjectId":12,"toPostId":23,"commentId":"c-1","inReplyTo":"c-0"},
		{"type":"groupedLike","createdAt":"2022-11-26T01:02:05.000Z","fromProjectId":0}
	],"projects":{},"posts":{},"comments":{}}`
)

// fakeCohost serves the four API endpoints the client uses.
type fakeCohost struct {
	mu sync.Mutex

	saltBody          string
	loginStatus       int
	loggedInBody      string
	notificationsBody string
	sid               string

	calls         []string
	saltEmails    []string
	saltCookies   []string
	loginBody     []byte
	loginHeader   http.Header
	notifyQueries []url.Values
}

func newFakeCohost(t *testing.T) (*fakeCohost, *httptest.Server) {
	t.Helper()

	f := &fakeCohost{
		saltBody:          `{"salt":"c2FsdA"}`,
		loggedInBody:      loggedInOK,
		notificationsBody: notificationsOK,
		sid:               fixtureSID,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/login/salt", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "salt")
		f.saltEmails = append(f.saltEmails, r.URL.Query().Get("email"))
		f.saltCookies = append(f.saltCookies, r.Header.Get("Cookie"))

		http.SetCookie(w, &http.Cookie{Name: "salt_seen", Value: "1", Path: "/"})
		io.WriteString(w, f.saltBody)
	})
	mux.HandleFunc("POST /api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "login")
		f.loginBody, _ = io.ReadAll(r.Body)
		f.loginHeader = r.Header.Clone()

		if f.loginStatus != 0 && f.loginStatus != http.StatusOK {
			http.Error(w, `{"error":"nope"}`, f.loginStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: SessionCookieName, Value: f.sid, Path: "/", HttpOnly: true})
		io.WriteString(w, `{}`)
	})
	mux.HandleFunc("GET /api/v1/trpc/login.loggedIn", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "loggedIn")

		if c, err := r.Cookie(SessionCookieName); err != nil || c.Value != f.sid {
			io.WriteString(w, loggedInAnon)
			return
		}
		io.WriteString(w, f.loggedInBody)
	})
	mux.HandleFunc("GET /api/v1/notifications/list", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.calls = append(f.calls, "notifications")
		f.notifyQueries = append(f.notifyQueries, r.URL.Query())

		if c, err := r.Cookie(SessionCookieName); err != nil || c.Value != f.sid {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		io.WriteString(w, f.notificationsBody)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return f, server
}

func (f *fakeCohost) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeCohost) set(fn func(f *fakeCohost)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

// fastKey stands in for PBKDF2 where the exact key does not matter.
func fastKey(password, salt []byte) ([]byte, error) {
	key := make([]byte, 48)
	copy(key, password)
	copy(key[24:], salt)
	return key, nil
}

func newTestClient(t *testing.T, server *httptest.Server, opts ...Option) *Client {
	t.Helper()
	all := append([]Option{WithBaseURL(server.URL + "/api/v1/")}, opts...)
	c, err := NewClient(all...)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}
