package linklist

import (
	"time"

	"github.com/google/uuid"
)

// Item represents a single link record in a list.
// The ID is assigned client-side on optimistic add (so the item can be
// displayed before the server confirms it) and is stable for the item's
// lifetime; the server never reassigns it.
type Item struct {
	ID          string     `json:"id"`
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	Notes       string     `json:"notes,omitempty"`
	Reminder    *time.Time `json:"reminder,omitempty"`
	Category    string     `json:"category,omitempty"`
	IsFavorite  bool       `json:"is_favorite"`
	IsPinned    bool       `json:"is_pinned"`
	Position    int        `json:"position"`
	ClickCount  int        `json:"click_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Touch refreshes the item's UpdatedAt timestamp. Every local mutation
// calls this so a reconciled server response can be recognised as stale
// relative to a newer local edit.
func (it *Item) Touch() {
	it.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy of the item. Slices are copied so the clone
// never aliases the original's backing arrays.
func (it Item) Clone() Item {
	out := it
	if it.Tags != nil {
		out.Tags = append([]string(nil), it.Tags...)
	}
	if it.Reminder != nil {
		r := *it.Reminder
		out.Reminder = &r
	}
	return out
}

// NewItemID generates a client-side item identifier.
func NewItemID() string {
	return uuid.New().String()
}

// Role defines a collaborator's capability on a list.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// Collaborator is a user with access to a shared list.
type Collaborator struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`
}

// List is the canonical client-side view of a shared link list.
// Exactly one List is held by the store at a time; mutators replace it
// wholesale (via Clone) rather than editing it in place, so subscribers
// never observe a partially-applied update.
type List struct {
	ID            string         `json:"id"`
	Slug          string         `json:"slug"`
	Title         string         `json:"title"`
	IsPublic      bool           `json:"is_public"`
	Items         []Item         `json:"items"`
	ArchivedItems []Item         `json:"archived_items,omitempty"`
	Collaborators []Collaborator `json:"collaborators,omitempty"`
}

// Clone returns a deep copy of the list.
func (l *List) Clone() *List {
	if l == nil {
		return nil
	}
	out := *l
	out.Items = make([]Item, len(l.Items))
	for i, it := range l.Items {
		out.Items[i] = it.Clone()
	}
	if l.ArchivedItems != nil {
		out.ArchivedItems = make([]Item, len(l.ArchivedItems))
		for i, it := range l.ArchivedItems {
			out.ArchivedItems[i] = it.Clone()
		}
	}
	if l.Collaborators != nil {
		out.Collaborators = append([]Collaborator(nil), l.Collaborators...)
	}
	return &out
}

// ActiveByID returns the index of the active item with the given id,
// or -1 if no active item matches.
func (l *List) ActiveByID(id string) int {
	for i := range l.Items {
		if l.Items[i].ID == id {
			return i
		}
	}
	return -1
}

// ArchivedByID returns the index of the archived item with the given id,
// or -1 if no archived item matches.
func (l *List) ArchivedByID(id string) int {
	for i := range l.ArchivedItems {
		if l.ArchivedItems[i].ID == id {
			return i
		}
	}
	return -1
}

// ActiveIDs returns the ids of the active items in their current slice order.
func (l *List) ActiveIDs() []string {
	ids := make([]string, len(l.Items))
	for i := range l.Items {
		ids[i] = l.Items[i].ID
	}
	return ids
}

// CanEdit reports whether the given user may mutate the list.
// Owners and editors may write; viewers (and unknown users) may not.
func (l *List) CanEdit(userID string) bool {
	for _, c := range l.Collaborators {
		if c.UserID == userID {
			return c.Role == RoleOwner || c.Role == RoleEditor
		}
	}
	return false
}

// PushEvent is a single message on a list's realtime push channel.
// Seq increases monotonically per channel; consumers must drop events
// whose Seq is not greater than the highest already seen.
type PushEvent struct {
	Seq       int64     `json:"seq"`
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	ListID    string    `json:"list_id"`
	Timestamp time.Time `json:"timestamp"`
}

// EventTypeHeartbeat marks keepalive events that carry no invalidation.
const EventTypeHeartbeat = "heartbeat"

// IsHeartbeat reports whether the event is a keepalive.
func (e PushEvent) IsHeartbeat() bool {
	return e.Type == EventTypeHeartbeat || e.Action == "ping"
}

// Metadata-class actions change list-level fields that the UI surfaces
// immediately (title, visibility, membership). They get a shorter
// refresh window than generic item churn.
var metadataActions = map[string]bool{
	"title_changed":      true,
	"visibility_changed": true,
	"permission_changed": true,
}

// IsMetadata reports whether the event's action is metadata-class.
func (e PushEvent) IsMetadata() bool {
	return metadataActions[e.Action]
}

// Metadata is the best-effort enrichment result for a URL.
// All fields are optional; a zero Metadata is valid.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	SiteName    string `json:"site_name,omitempty"`
}

// ImportRecord is a single candidate row for bulk import, already parsed
// from whatever external format supplied it.
type ImportRecord struct {
	URL         string   `json:"url"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Category    string   `json:"category,omitempty"`
}

// ItemPosition is the id/position pair persisted by the order cache.
type ItemPosition struct {
	ID       string `json:"id"`
	Position int    `json:"position"`
}
