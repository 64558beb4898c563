// audit.go -- Todo change history.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/MGallo-Code/ticklist/internal/store"
)

// change is one dirty field. Old is absent on create, New on delete.
type change struct {
	Old any `json:"old,omitempty"`
	New any `json:"new,omitempty"`
}

func createdChanges(t *store.Todo) map[string]change {
	return map[string]change{
		"title":       {New: t.Title},
		"description": {New: t.Description},
		"completed":   {New: t.Completed},
	}
}

func deletedChanges(t *store.Todo) map[string]change {
	return map[string]change{
		"title":       {Old: t.Title},
		"description": {Old: t.Description},
		"completed":   {Old: t.Completed},
	}
}

// dirtyChanges lists only the fields that differ between before and after.
func dirtyChanges(before, after *store.Todo) map[string]change {
	changes := map[string]change{}
	if before.Title != after.Title {
		changes["title"] = change{Old: before.Title, New: after.Title}
	}
	if !equalStringPtr(before.Description, after.Description) {
		changes["description"] = change{Old: before.Description, New: after.Description}
	}
	if before.Completed != after.Completed {
		changes["completed"] = change{Old: before.Completed, New: after.Completed}
	}
	return changes
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// audit records a change for todoID. Failures are logged, never returned:
// the mutation has already committed.
func (h *Handler) audit(r *http.Request, todoID int64, action string, changes map[string]change) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		return
	}
	body, err := json.Marshal(changes)
	if err != nil {
		logWarn(r, "failed to encode audit changes", "error", err)
		return
	}
	err = h.Store.WriteAuditLog(r.Context(), store.AuditEntry{
		UserID:    user.ID,
		TodoID:    todoID,
		Action:    action,
		Changes:   body,
		IPAddress: clientIP(r),
	})
	if err != nil {
		logWarn(r, "failed to write audit log", "error", err, "todo_id", todoID, "action", action)
	}
}
