package cohost

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Flags is the set of account booleans reported by the server.
type Flags uint8

const (
	FlagLoggedIn Flags = 1 << iota
	FlagActivated
	FlagReadOnly
	FlagModMode
)

var flagNames = map[Flags]string{
	FlagLoggedIn:  "logged_in",
	FlagActivated: "activated",
	FlagReadOnly:  "read_only",
	FlagModMode:   "mod_mode",
}

// Has reports whether every bit of f2 is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

func (f Flags) String() string {
	if f == 0 {
		return "none"
	}
	var names []string
	for bit, name := range flagNames {
		if f.Has(bit) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "|")
}

// Session is the authenticated identity and the cookie state behind it.
// Values returned by Client.Session are copies.
type Session struct {
	UserID        int64
	ProjectID     int64
	ProjectHandle string
	Flags         Flags

	// Email is set for email/password logins only.
	Email string

	// SessionCookie is the connect.sid value at the time of the last login.
	// The server may rotate it; treat old values as possibly stale.
	SessionCookie string

	// CookieJarPath is where cookies persist; empty means in-memory only.
	CookieJarPath string
}

// LoggedIn reports whether the session was populated by a successful login.
func (s Session) LoggedIn() bool {
	return s.Flags.Has(FlagLoggedIn)
}

// Session returns the current session, or ErrNotLoggedIn if the last login
// attempt failed or none was made.
func (c *Client) Session() (Session, error) {
	if !c.session.LoggedIn() {
		return Session{}, &Error{Op: "session", Kind: ErrNotLoggedIn}
	}
	return c.session, nil
}

// LoggedIn reports whether the last login attempt succeeded.
func (c *Client) LoggedIn() bool {
	return c.session.LoggedIn()
}

// invalidate marks the session as not logged in without touching the
// identity fields of the previous successful login.
func (c *Client) invalidate() {
	c.session.Flags &^= FlagLoggedIn
}

// loggedInResponse is the tRPC envelope of trpc/login.loggedIn.
type loggedInResponse struct {
	Result *struct {
		Data *loggedInData `json:"data"`
	} `json:"result"`
}

type loggedInData struct {
	UserID        *int64  `json:"userId"`
	ProjectID     *int64  `json:"projectId"`
	ProjectHandle *string `json:"projectHandle"`
	LoggedIn      *bool   `json:"loggedIn"`
	Activated     *bool   `json:"activated"`
	ReadOnly      *bool   `json:"readOnly"`
	ModMode       *bool   `json:"modMode"`
}

// parseLoggedIn derives identity and flags from a login.loggedIn body.
// The returned session carries no cookie state.
func parseLoggedIn(body []byte) (Session, error) {
	var resp loggedInResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Session{}, wrapErrorf(ErrProtocol, "parse loggedIn response: %w", err)
	}
	if resp.Result == nil || resp.Result.Data == nil {
		return Session{}, wrapErrorf(ErrProtocol, "loggedIn response has no result.data")
	}
	d := resp.Result.Data

	if d.LoggedIn != nil && !*d.LoggedIn {
		return Session{}, wrapErrorf(ErrBadCredentials, "server reports loggedIn=false")
	}

	var missing []string
	if d.UserID == nil {
		missing = append(missing, "userId")
	}
	if d.ProjectID == nil {
		missing = append(missing, "projectId")
	}
	if d.ProjectHandle == nil {
		missing = append(missing, "projectHandle")
	}
	if d.LoggedIn == nil {
		missing = append(missing, "loggedIn")
	}
	if d.Activated == nil {
		missing = append(missing, "activated")
	}
	if d.ReadOnly == nil {
		missing = append(missing, "readOnly")
	}
	if d.ModMode == nil {
		missing = append(missing, "modMode")
	}
	if len(missing) > 0 {
		return Session{}, wrapErrorf(ErrProtocol, "loggedIn response missing %s", strings.Join(missing, ", "))
	}

	s := Session{
		UserID:        *d.UserID,
		ProjectID:     *d.ProjectID,
		ProjectHandle: *d.ProjectHandle,
		Flags:         FlagLoggedIn,
	}
	if *d.Activated {
		s.Flags |= FlagActivated
	}
	if *d.ReadOnly {
		s.Flags |= FlagReadOnly
	}
	if *d.ModMode {
		s.Flags |= FlagModMode
	}
	return s, nil
}

// kindError carries a kind through helpers that do not know the operation.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

func wrapErrorf(kind error, format string, args ...any) error {
	return &kindError{kind: kind, err: fmt.Errorf(format, args...)}
}

// classify turns a helper error into a public *Error, keeping the helper's
// kind when it set one.
func classify(op string, stage Stage, fallback, err error) *Error {
	if ke, ok := err.(*kindError); ok {
		return wrapError(op, stage, ke.kind, ke.err)
	}
	return wrapError(op, stage, fallback, err)
}
