// Package render formats sessions and notifications for the terminal.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/joss/chost/internal/storage"
	"github.com/joss/chost/pkg/cohost"
)

// Renderer handles output formatting.
type Renderer struct {
	pretty bool
}

// New creates a new renderer. Pretty output uses color and headers; plain
// output is one key=value record per line.
func New(pretty bool) *Renderer {
	return &Renderer{pretty: pretty}
}

// Session formats the logged-in identity.
func (r *Renderer) Session(s cohost.Session) string {
	var sb strings.Builder

	if r.pretty {
		sb.WriteString(color.CyanString("Cohost Session\n"))
		sb.WriteString(strings.Repeat("─", 40) + "\n")
		fmt.Fprintf(&sb, "  Project: %s (%d)\n", color.YellowString("@"+s.ProjectHandle), s.ProjectID)
		fmt.Fprintf(&sb, "  User:    %d\n", s.UserID)
		if s.Email != "" {
			fmt.Fprintf(&sb, "  Email:   %s\n", s.Email)
		}
		fmt.Fprintf(&sb, "  Flags:   %s\n", s.Flags)
		if s.CookieJarPath != "" {
			fmt.Fprintf(&sb, "  Cookies: %s\n", color.HiBlackString(s.CookieJarPath))
		}
	} else {
		fmt.Fprintf(&sb, "user_id=%d project_id=%d handle=%s flags=%s\n", s.UserID, s.ProjectID, s.ProjectHandle, s.Flags)
	}

	return sb.String()
}

// Login formats a login recorded in the local cache.
func (r *Renderer) Login(l *storage.Login, now time.Time) string {
	age := FormatDuration(now.Sub(l.LoggedInAt))
	if r.pretty {
		return fmt.Sprintf("%s %s (%d) %s\n",
			color.GreenString("✓"), color.YellowString("@"+l.ProjectHandle), l.ProjectID,
			color.HiBlackString("logged in "+age+" ago"))
	}
	return fmt.Sprintf("user_id=%d project_id=%d handle=%s flags=%s age=%s\n",
		l.UserID, l.ProjectID, l.ProjectHandle, l.Flags, age)
}

// Notifications formats a page fetched from the server.
func (r *Renderer) Notifications(list []cohost.Notification, offset int) string {
	if len(list) == 0 {
		return "No notifications\n"
	}

	var sb strings.Builder
	if r.pretty {
		sb.WriteString(color.CyanString("Notifications\n"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for i, n := range list {
		r.formatNotification(&sb, offset+i, n)
	}
	return sb.String()
}

// Cached formats notifications read from the local cache.
func (r *Renderer) Cached(list []storage.CachedNotification, now time.Time) string {
	if len(list) == 0 {
		return "No cached notifications\n"
	}

	var sb strings.Builder
	if r.pretty {
		oldest := list[0].FetchedAt
		for _, c := range list {
			if c.FetchedAt.Before(oldest) {
				oldest = c.FetchedAt
			}
		}
		sb.WriteString(color.CyanString("Notifications (cached)\n"))
		fmt.Fprintf(&sb, "%s\n", color.HiBlackString("fetched up to "+FormatDuration(now.Sub(oldest))+" ago"))
		sb.WriteString(strings.Repeat("─", 60) + "\n")
	}
	for _, c := range list {
		r.formatNotification(&sb, c.Position, c.Notification)
	}
	return sb.String()
}

func (r *Renderer) formatNotification(sb *strings.Builder, pos int, n cohost.Notification) {
	from := "someone"
	if n.HasFromProject() {
		from = fmt.Sprintf("project %d", n.FromProjectID)
	}

	var target []string
	if n.HasPost() {
		target = append(target, fmt.Sprintf("post=%d", n.ToPostID))
	}
	if n.CommentID != "" {
		target = append(target, "comment="+n.CommentID)
	}
	if n.InReplyTo != "" {
		target = append(target, "reply_to="+n.InReplyTo)
	}

	if r.pretty {
		icon := color.HiBlackString("•")
		if n.Kind.Known() {
			icon = KindIcon(n.Kind)
		}
		fmt.Fprintf(sb, "%s %s %s %s", icon, color.HiBlackString(n.CreatedAt), from, n.Kind)
		if len(target) > 0 {
			fmt.Fprintf(sb, " %s", color.HiBlackString("("+strings.Join(target, " ")+")"))
		}
		sb.WriteString("\n")
		return
	}

	fmt.Fprintf(sb, "[%d] %s kind=%s from=%d", pos, n.CreatedAt, string(n.Kind), n.FromProjectID)
	if len(target) > 0 {
		sb.WriteString(" " + strings.Join(target, " "))
	}
	sb.WriteString("\n")
}

// KindIcon returns a colored marker for a notification kind.
func KindIcon(k cohost.Kind) string {
	switch k {
	case cohost.KindLike:
		return color.RedString("♥")
	case cohost.KindComment:
		return color.BlueString("✎")
	case cohost.KindFollow:
		return color.GreenString("+")
	case cohost.KindShare:
		return color.MagentaString("↻")
	default:
		return "•"
	}
}

// Error formats a client error with a hint for the kinds a user can act on.
func (r *Renderer) Error(err error) string {
	msg := err.Error()
	var hint string
	switch {
	case cohost.IsTransport(err):
		hint = "check your connection or CHOST_BASE_URL"
	case cohost.IsNotFound(err):
		hint = "run `chost login` first"
	case cohost.IsProtocol(err):
		hint = "the API may have changed"
	default:
		switch cohost.KindOf(err) {
		case cohost.ErrBadCredentials:
			hint = "check your email and password"
		case cohost.ErrNotLoggedIn:
			hint = "run `chost login` first"
		}
	}

	if r.pretty {
		out := color.RedString("✗ ") + msg + "\n"
		if hint != "" {
			out += "  " + color.HiBlackString(hint) + "\n"
		}
		return out
	}
	if hint != "" {
		return fmt.Sprintf("error: %s (%s)\n", msg, hint)
	}
	return fmt.Sprintf("error: %s\n", msg)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
