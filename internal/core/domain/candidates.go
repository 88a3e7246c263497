package domain

import "time"

// CandidateQuery selects feed candidates from a store: messages located in
// Bounds that some visibility rule could admit for ViewerID. That is public
// messages, the viewer's own, and messages by FriendIDs. The store returns them
// newest first, at most Limit per call, resuming after After when set.
type CandidateQuery struct {
	Bounds    Bounds
	ViewerID  string
	FriendIDs []string
	After     *Cursor
	Limit     int
}

// Cursor marks the last message of a page in (CreatedAt, ID) descending order.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

// CursorAfter returns the cursor resuming after m.
func CursorAfter(m *Message) *Cursor {
	return &Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
}

// Authors returns the author IDs whose friends-only messages qualify.
func (q CandidateQuery) Authors() []string {
	out := make([]string, 0, len(q.FriendIDs)+1)
	if q.ViewerID != "" {
		out = append(out, q.ViewerID)
	}
	return append(out, q.FriendIDs...)
}

// Admits reports whether m passes the visibility pre-selection. Location is
// not checked.
func (q CandidateQuery) Admits(m *Message) bool {
	if m.Visibility == VisibilityPublic {
		return true
	}
	for _, id := range q.Authors() {
		if m.AuthorID == id {
			return true
		}
	}
	return false
}

// Precedes reports whether the cursor comes before m in newest-first order.
// A nil cursor precedes every message.
func (c *Cursor) Precedes(m *Message) bool {
	if c == nil {
		return true
	}
	if !m.CreatedAt.Equal(c.CreatedAt) {
		return m.CreatedAt.Before(c.CreatedAt)
	}
	return m.ID < c.ID
}
