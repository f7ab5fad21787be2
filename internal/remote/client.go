// Package remote defines the engine's view of its external
// collaborators: the remote list store, and the best-effort metadata
// enrichment service. Internals behind these interfaces (persistence,
// auth issuance, content fetching) are out of scope; the engine only
// depends on the contracts here.
package remote

import (
	"context"
	"time"

	"github.com/arnobt78/linkboard/pkg/linklist"
)

// AddResult is the server's response to a commit of a new item.
// The server echoes the item (with any server-normalized fields) plus
// the full resulting snapshot.
type AddResult struct {
	Item linklist.Item  `json:"item"`
	List *linklist.List `json:"list"`
}

// EditResult is the server's response to an item patch.
type EditResult struct {
	Item linklist.Item  `json:"item"`
	List *linklist.List `json:"list"`
}

// ListResult is the server's response to operations that only return the
// resulting snapshot.
type ListResult struct {
	List *linklist.List `json:"list"`
}

// ItemPatch carries the fields of an edit. Nil pointers mean "leave
// unchanged", so a patch never clobbers fields the user did not touch.
type ItemPatch struct {
	URL         *string    `json:"url,omitempty"`
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	Notes       *string    `json:"notes,omitempty"`
	Reminder    *time.Time `json:"reminder,omitempty"`
	Category    *string    `json:"category,omitempty"`
	IsFavorite  *bool      `json:"is_favorite,omitempty"`
	IsPinned    *bool      `json:"is_pinned,omitempty"`
}

// Store is the remote list store. Every call honours ctx cancellation
// and may fail with network, timeout, or permission errors classified
// per the linklist error taxonomy.
type Store interface {
	FetchList(ctx context.Context, slug string) (*linklist.List, error)
	CommitAdd(ctx context.Context, listID string, item linklist.Item) (*AddResult, error)
	CommitEdit(ctx context.Context, listID, itemID string, patch ItemPatch) (*EditResult, error)
	CommitReorder(ctx context.Context, listID string, itemIDs []string) (*ListResult, error)
	CommitArchive(ctx context.Context, listID, itemID string) (*ListResult, error)
	CommitRestore(ctx context.Context, listID, itemID string) (*ListResult, error)
	CommitDelete(ctx context.Context, listID, itemID string) (*ListResult, error)
	CommitClick(ctx context.Context, listID, itemID string) (*EditResult, error)
}

// MetadataClient fetches enrichment metadata for a URL. Best-effort:
// callers must tolerate any error and proceed without the result.
type MetadataClient interface {
	Fetch(ctx context.Context, url string) (*linklist.Metadata, error)
}
