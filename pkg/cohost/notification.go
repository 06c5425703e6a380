package cohost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/joss/chost/internal/logging"
)

// NotPresent marks a numeric notification field the server omitted.
const NotPresent int64 = -1

// Kind is the server's tag for a notification. Tags this package does not
// know are kept verbatim.
type Kind string

const (
	KindLike    Kind = "like"
	KindComment Kind = "comment"
	KindFollow  Kind = "follow"
	KindShare   Kind = "share"
)

// Known reports whether k is one of the declared kinds.
func (k Kind) Known() bool {
	switch k {
	case KindLike, KindComment, KindFollow, KindShare:
		return true
	}
	return false
}

// String describes the kind as it reads in a notification line. Unknown
// kinds print their raw tag.
func (k Kind) String() string {
	switch k {
	case KindLike:
		return "liked your post"
	case KindComment:
		return "commented on your post"
	case KindFollow:
		return "followed you"
	case KindShare:
		return "shared your post"
	}
	return string(k)
}

// Notification is one entry of the notification feed.
type Notification struct {
	Kind Kind

	// CreatedAt is the server's ISO-8601 timestamp, unparsed.
	CreatedAt string

	FromProjectID  int64
	ToPostID       int64
	RelationshipID int64

	// CommentID and InReplyTo are empty when absent.
	CommentID string
	InReplyTo string
}

// HasFromProject reports whether the server sent fromProjectId.
func (n Notification) HasFromProject() bool { return n.FromProjectID != NotPresent }

// HasPost reports whether the server sent toPostId.
func (n Notification) HasPost() bool { return n.ToPostID != NotPresent }

// HasRelationship reports whether the server sent relationshipId.
func (n Notification) HasRelationship() bool { return n.RelationshipID != NotPresent }

type notificationList struct {
	Notifications *[]json.RawMessage `json:"notifications"`
}

type rawNotification struct {
	Type           *string `json:"type"`
	CreatedAt      string  `json:"createdAt"`
	FromProjectID  *int64  `json:"fromProjectId"`
	ToPostID       *int64  `json:"toPostId"`
	RelationshipID *int64  `json:"relationshipId"`
	CommentID      *string `json:"commentId"`
	InReplyTo      *string `json:"inReplyTo"`
}

func optionalID(v *int64) int64 {
	if v == nil {
		return NotPresent
	}
	return *v
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// ListNotifications fetches limit notifications starting at offset. The
// server must return at least limit entries; a shorter page is reported as
// ErrProtocol rather than padded.
func (c *Client) ListNotifications(ctx context.Context, offset, limit int) ([]Notification, error) {
	const op = "notifications"

	if offset < 0 {
		return nil, newError(op, "", ErrInvalidArgument, "offset %d is negative", offset)
	}
	if limit <= 0 {
		return nil, newError(op, "", ErrInvalidArgument, "limit %d must be positive", limit)
	}
	if !c.session.LoggedIn() {
		return nil, &Error{Op: op, Kind: ErrNotLoggedIn}
	}

	ctx = logging.EnsureRequestID(ctx)
	start := time.Now()

	query := url.Values{
		"offset": {strconv.Itoa(offset)},
		"limit":  {strconv.Itoa(limit)},
	}
	resp, err := c.tr.Get(ctx, c.endpoint(pathNotificationsList, query), http.Header{"Accept": {"application/json"}})
	if err != nil {
		return nil, wrapError(op, "", ErrTransport, err)
	}

	list, err := parseNotifications(resp.Body, limit)
	if err != nil {
		e := classify(op, "", ErrProtocol, err)
		c.log.Ctx(ctx).TimedEvent("notifications_failed", start, nil, e)
		return nil, e
	}

	c.log.Ctx(ctx).TimedEvent("notifications", start, map[string]interface{}{
		"offset": offset,
		"limit":  limit,
	}, nil)
	return list, nil
}

func parseNotifications(body []byte, limit int) ([]Notification, error) {
	var page notificationList
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("parse notification list: %w", err)
	}
	if page.Notifications == nil {
		return nil, fmt.Errorf("response has no \"notifications\" array")
	}

	items := *page.Notifications
	if len(items) < limit {
		return nil, fmt.Errorf("fewer results than requested: got %d, want %d", len(items), limit)
	}

	out := make([]Notification, 0, limit)
	for i := 0; i < limit; i++ {
		var raw rawNotification
		if err := json.Unmarshal(items[i], &raw); err != nil {
			return nil, fmt.Errorf("notification %d: %w", i, err)
		}
		if raw.Type == nil || *raw.Type == "" {
			return nil, fmt.Errorf("notification %d: missing \"type\"", i)
		}
		out = append(out, Notification{
			Kind:           Kind(*raw.Type),
			CreatedAt:      raw.CreatedAt,
			FromProjectID:  optionalID(raw.FromProjectID),
			ToPostID:       optionalID(raw.ToPostID),
			RelationshipID: optionalID(raw.RelationshipID),
			CommentID:      optionalString(raw.CommentID),
			InReplyTo:      optionalString(raw.InReplyTo),
		})
	}
	return out, nil
}
