package mutator

import (
	"github.com/arnobt78/linkboard/pkg/linklist"
)

// Reconcile merges a server snapshot into the current local snapshot.
//
// The guiding rule: a server response can itself be stale relative to a
// newer local action that started after the request was sent, so only
// fields whose correctness depends on the server are adopted. The local
// item ordering and the user-intent fields (url, title, tags, pins,
// favorites...) always win; server-computed fields (click counts,
// normalized timestamps) and server-owned list metadata (collaborators,
// visibility) are taken from the response.
//
// Items present only in the response (added by a collaborator) are
// appended after the local order; items present only locally (an
// optimistic add not yet echoed) are kept. Applying the same response
// twice yields the same snapshot as applying it once.
func Reconcile(local, server *linklist.List) *linklist.List {
	if server == nil {
		return local
	}
	if local == nil {
		return server.Clone()
	}

	out := local.Clone()

	// List-level fields the server owns.
	if server.ID != "" {
		out.ID = server.ID
	}
	if server.Slug != "" {
		out.Slug = server.Slug
	}
	out.Title = server.Title
	out.IsPublic = server.IsPublic
	if server.Collaborators != nil {
		out.Collaborators = append([]linklist.Collaborator(nil), server.Collaborators...)
	}

	serverActive := make(map[string]linklist.Item, len(server.Items))
	for _, it := range server.Items {
		serverActive[it.ID] = it
	}
	serverArchived := make(map[string]linklist.Item, len(server.ArchivedItems))
	for _, it := range server.ArchivedItems {
		serverArchived[it.ID] = it
	}

	// Server-confirmed archives/deletes: a local active item that the
	// response moved to archived (or dropped entirely after our own
	// archive/delete echo) follows the response. Local order among the
	// survivors is preserved.
	localIDs := make(map[string]bool, len(out.Items))
	merged := out.Items[:0]
	for _, it := range out.Items {
		localIDs[it.ID] = true
		if sv, ok := serverActive[it.ID]; ok {
			merged = append(merged, mergeItem(it, sv))
			continue
		}
		if _, archived := serverArchived[it.ID]; archived {
			continue // picked up below in the archived merge
		}
		// Not in the response at all: either our optimistic add hasn't
		// echoed yet, or a collaborator deleted it. Keeping it favors
		// local intent; a later canonical refetch settles true deletes.
		merged = append(merged, it)
	}
	// Collaborator additions, in the response's relative order.
	for _, sv := range server.Items {
		if !localIDs[sv.ID] {
			merged = append(merged, sv.Clone())
			localIDs[sv.ID] = true
		}
	}
	out.Items = merged

	// Archived: the response is authoritative, plus any local optimistic
	// archive it has not echoed yet.
	archived := make([]linklist.Item, 0, len(server.ArchivedItems))
	archivedIDs := make(map[string]bool, len(server.ArchivedItems))
	for _, sv := range server.ArchivedItems {
		archived = append(archived, sv.Clone())
		archivedIDs[sv.ID] = true
	}
	for _, it := range out.ArchivedItems {
		if !archivedIDs[it.ID] && !serverActiveID(serverActive, it.ID) {
			archived = append(archived, it)
		}
	}
	out.ArchivedItems = archived

	return out
}

func serverActiveID(active map[string]linklist.Item, id string) bool {
	_, ok := active[id]
	return ok
}

// mergeItem adopts the server-owned fields of an item while preserving
// every field that represents local intent, including Position.
func mergeItem(local, server linklist.Item) linklist.Item {
	out := local
	out.ClickCount = server.ClickCount
	out.CreatedAt = server.CreatedAt
	if server.UpdatedAt.After(local.UpdatedAt) {
		out.UpdatedAt = server.UpdatedAt
	}
	return out
}
