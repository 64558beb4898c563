// todo_handler.go -- HTTP handlers for /todos.
//
// Reads go cache -> store; the guard runs on the record either way, so a
// cached todo is never served to someone who doesn't own it. Writes fetch the
// current row, check the guard, validate, mutate, then drop the todo's cache
// entry and every cached list page of its owner before answering.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MGallo-Code/ticklist/internal/i18n"
	"github.com/MGallo-Code/ticklist/internal/query"
	"github.com/MGallo-Code/ticklist/internal/store"
	"github.com/go-chi/chi/v5"
)

// todoJSON is the public shape of a todo; the owner is never serialized.
type todoJSON struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

func newTodoJSON(t *store.Todo) todoJSON {
	return todoJSON{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Completed:   t.Completed,
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
}

type listResponse struct {
	Data  []todoJSON  `json:"data"`
	Meta  query.Meta  `json:"meta"`
	Links query.Links `json:"links"`
}

type todoResponse struct {
	Data    todoJSON `json:"data"`
	Message string   `json:"message,omitempty"`
}

// TodoCacheKey is the cache key of a single todo record.
func TodoCacheKey(id int64) string {
	return "todo_" + strconv.FormatInt(id, 10)
}

// ListCacheGroup tracks every cached list page of one owner.
func ListCacheGroup(ownerID int64) string {
	return "todos:lists:" + strconv.FormatInt(ownerID, 10)
}

// todoID parses the {id} URL param. Anything but a positive integer is a 404.
func todoID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// requestURL rebuilds the absolute URL of r without its query string.
func requestURL(r *http.Request) *url.URL {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "http" || proto == "https" {
		scheme = proto
	}
	return &url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path}
}

// ListTodos handles GET /todos: paginated, filtered, sorted list of the caller's todos.
// List pages are cached per plan; the key covers owner, filter, sort, page and limit.
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !h.Guard.CanList(actor) {
		writeError(w, r, errForbidden)
		return
	}
	opts := h.opts()

	plan, ferrs := query.Parse(actor.ID, r.URL.Query(), query.Options{MaxPerPage: opts.MaxPerPage})
	if len(ferrs) > 0 {
		writeError(w, r, errValidation(ferrs))
		return
	}

	key := plan.CacheKey()
	cacheControl := "private, max-age=" + strconv.Itoa(int(opts.ListTTL.Seconds()))

	cached, err := h.Cache.Get(r.Context(), key)
	if err == nil {
		logDebug(r, "list cache hit", "key", key)
		w.Header().Set("Cache-Control", cacheControl)
		w.Header().Set("X-Cache", "HIT")
		writeRawJSON(w, http.StatusOK, cached)
		return
	}
	if !errors.Is(err, store.ErrCacheMiss) {
		logWarn(r, "list cache read failed, falling back to store", "error", err)
	}

	todos, total, err := h.Store.ListTodos(r.Context(), plan)
	if err != nil {
		logError(r, "failed to list todos", "error", err)
		InternalServerError(w, r, err)
		return
	}

	meta := query.NewMeta(plan, total)
	resp := listResponse{
		Data:  make([]todoJSON, 0, len(todos)),
		Meta:  meta,
		Links: query.NewLinks(requestURL(r), plan, meta),
	}
	for i := range todos {
		resp.Data = append(resp.Data, newTodoJSON(&todos[i]))
	}

	body, err := json.Marshal(resp)
	if err != nil {
		InternalServerError(w, r, err)
		return
	}

	if err := h.Cache.SetTracked(r.Context(), ListCacheGroup(actor.ID), key, body, opts.ListTTL); err != nil {
		logWarn(r, "failed to cache list page", "error", err)
	}

	w.Header().Set("Cache-Control", cacheControl)
	w.Header().Set("X-Cache", "MISS")
	writeRawJSON(w, http.StatusOK, body)
}

// loadTodo returns the todo by id from cache or store, filling the cache on a miss.
// A nil todo with a nil error means the id does not exist.
func (h *Handler) loadTodo(r *http.Request, id int64) (todo *store.Todo, hit bool, err error) {
	key := TodoCacheKey(id)

	if cached, err := h.Cache.Get(r.Context(), key); err == nil {
		var t store.Todo
		if err := json.Unmarshal(cached, &t); err == nil {
			return &t, true, nil
		}
		logWarn(r, "discarding undecodable cache entry", "key", key)
	} else if !errors.Is(err, store.ErrCacheMiss) {
		logWarn(r, "todo cache read failed, falling back to store", "error", err)
	}

	t, err := h.Store.GetTodo(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if body, err := json.Marshal(t); err == nil {
		if err := h.Cache.Set(r.Context(), key, body, h.opts().ShowTTL); err != nil {
			logWarn(r, "failed to cache todo", "error", err)
		}
	}
	return t, false, nil
}

// ShowTodo handles GET /todos/{id}. 404 if absent, 403 if owned by someone else.
func (h *Handler) ShowTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(r)
	if !ok {
		writeError(w, r, errNotFound)
		return
	}

	todo, hit, err := h.loadTodo(r, id)
	if err != nil {
		logError(r, "failed to fetch todo", "error", err, "todo_id", id)
		InternalServerError(w, r, err)
		return
	}
	if todo == nil {
		writeError(w, r, errNotFound)
		return
	}
	if !h.Guard.CanView(actorFromContext(r.Context()), todo) {
		logWarn(r, "todo access denied", "todo_id", id)
		writeError(w, r, errForbidden)
		return
	}

	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(int(h.opts().ShowTTL.Seconds())))
	if hit {
		w.Header().Set("X-Cache", "HIT")
	} else {
		w.Header().Set("X-Cache", "MISS")
	}
	writeJSON(w, http.StatusOK, todoResponse{Data: newTodoJSON(todo)})
}

// CreateTodo handles POST /todos.
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())
	if !h.Guard.CanCreate(actor) {
		writeError(w, r, errForbidden)
		return
	}

	fields, verr := decodeFields(r)
	if verr != nil {
		writeError(w, r, verr)
		return
	}
	in, verr := validateTodoCreate(fields)
	if verr != nil {
		writeError(w, r, verr)
		return
	}

	todo, err := h.Store.CreateTodo(r.Context(), actor.ID, in.Title, in.Description, in.Completed)
	if err != nil {
		logError(r, "failed to create todo", "error", err)
		InternalServerError(w, r, err)
		return
	}

	h.invalidate(r, todo.UserID, 0)
	h.audit(r, todo.ID, store.AuditTodoCreated, createdChanges(todo))

	logInfo(r, "todo created", "todo_id", todo.ID)
	writeJSON(w, http.StatusCreated, todoResponse{
		Data:    newTodoJSON(todo),
		Message: i18n.FromRequest(r).T(i18n.MsgTodoCreated),
	})
}

// UpdateTodo handles PUT and PATCH /todos/{id}. Both are partial: only keys
// present in the body change.
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(r)
	if !ok {
		writeError(w, r, errNotFound)
		return
	}

	current, ok := h.fetchForWrite(w, r, id)
	if !ok {
		return
	}

	fields, verr := decodeFields(r)
	if verr != nil {
		writeError(w, r, verr)
		return
	}
	patch, verr := validateTodoPatch(fields)
	if verr != nil {
		writeError(w, r, verr)
		return
	}

	updated, err := h.Store.UpdateTodo(r.Context(), id, current.UserID, patch)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Deleted between fetch and update.
			writeError(w, r, errNotFound)
			return
		}
		logError(r, "failed to update todo", "error", err, "todo_id", id)
		InternalServerError(w, r, err)
		return
	}

	h.invalidate(r, updated.UserID, id)
	if changes := dirtyChanges(current, updated); len(changes) > 0 {
		h.audit(r, id, store.AuditTodoUpdated, changes)
	}

	logInfo(r, "todo updated", "todo_id", id)
	writeJSON(w, http.StatusOK, todoResponse{
		Data:    newTodoJSON(updated),
		Message: i18n.FromRequest(r).T(i18n.MsgTodoUpdated),
	})
}

// DeleteTodo handles DELETE /todos/{id}.
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := todoID(r)
	if !ok {
		writeError(w, r, errNotFound)
		return
	}

	current, ok := h.fetchForWrite(w, r, id)
	if !ok {
		return
	}

	if err := h.Store.DeleteTodo(r.Context(), id, current.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, errNotFound)
			return
		}
		logError(r, "failed to delete todo", "error", err, "todo_id", id)
		InternalServerError(w, r, err)
		return
	}

	h.invalidate(r, current.UserID, id)
	h.audit(r, id, store.AuditTodoDeleted, deletedChanges(current))

	logInfo(r, "todo deleted", "todo_id", id)
	writeJSON(w, http.StatusOK, messageBody{
		Message: i18n.FromRequest(r).T(i18n.MsgTodoDeleted),
		Status:  "success",
	})
}

// fetchForWrite loads the authoritative row (never the cache) and checks the
// caller may mutate it. Writes the 404/403/500 itself and returns false on failure.
func (h *Handler) fetchForWrite(w http.ResponseWriter, r *http.Request, id int64) (*store.Todo, bool) {
	todo, err := h.Store.GetTodo(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, errNotFound)
			return nil, false
		}
		logError(r, "failed to fetch todo", "error", err, "todo_id", id)
		InternalServerError(w, r, err)
		return nil, false
	}
	if !h.Guard.CanMutate(actorFromContext(r.Context()), todo) {
		logWarn(r, "todo mutation denied", "todo_id", id)
		writeError(w, r, errForbidden)
		return nil, false
	}
	return todo, true
}

// invalidate drops the owner's cached list pages and, when todoID is non-zero,
// the todo's own entry. Cache failures are logged; entries then age out by TTL.
func (h *Handler) invalidate(r *http.Request, ownerID, todoID int64) {
	if todoID != 0 {
		if err := h.Cache.Delete(r.Context(), TodoCacheKey(todoID)); err != nil {
			logWarn(r, "failed to invalidate todo cache", "error", err, "todo_id", todoID)
		}
	}
	if err := h.Cache.DeleteGroup(r.Context(), ListCacheGroup(ownerID)); err != nil {
		logWarn(r, "failed to invalidate list cache", "error", err)
	}
}
