// stores.go
//
// Shared mock implementations of api.Store, api.Cache and api.RateLimiter.
// Imported by test files across packages to avoid duplicate mock definitions.
package testutil

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MGallo-Code/ticklist/internal/query"
	"github.com/MGallo-Code/ticklist/internal/store"
	"github.com/gofrs/uuid/v5"
)

// MockStore implements api.Store for tests.

// Always stateful...Users, Tokens and Todos are maps, like a real store.
// Use *Err fields to inject errors for specific operations.
// Construct with NewMockStore; set *Err fields for error-path tests.
type MockStore struct {
	// Error injection...zero value means no error
	CreateUserErr     error
	GetUserByEmailErr error
	CreateTokenErr    error
	GetUserByTokenErr error
	DeleteTokenErr    error
	CreateTodoErr     error
	GetTodoErr        error
	ListTodosErr      error
	UpdateTodoErr     error
	DeleteTodoErr     error
	WriteAuditLogErr  error
	CheckHealthErr    error

	Users  map[string]*store.User  // keyed by email
	Tokens map[string]*store.Token // keyed by string(tokenHash)
	Todos  map[int64]*store.Todo
	Audit  []store.AuditEntry

	// Now stamps created_at/updated_at; nil uses time.Now.
	Now func() time.Time

	// Calls counts store hits per method name, for cache assertions.
	Calls map[string]int

	nextUserID int64
	nextTodoID int64
	mu         sync.Mutex
}

// NewMockStore returns an empty MockStore ready for use.
func NewMockStore() *MockStore {
	return &MockStore{
		Users:  make(map[string]*store.User),
		Tokens: make(map[string]*store.Token),
		Todos:  make(map[int64]*store.Todo),
		Calls:  make(map[string]int),
	}
}

func (m *MockStore) now() time.Time {
	if m.Now != nil {
		return m.Now().UTC()
	}
	return time.Now().UTC()
}

// CallCount returns how many times method was called.
func (m *MockStore) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

// AuditEntries returns a copy of the audit rows written so far.
func (m *MockStore) AuditEntries() []store.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.Audit)
}

// track must be called with m.mu held.
func (m *MockStore) track(method string) {
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[method]++
}

// --- Users ---

// CreateUser seeds a user without a token. Handlers go through RegisterUser.
func (m *MockStore) CreateUser(_ context.Context, name, email, passwordHash string) (*store.User, error) {
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("CreateUser")
	if _, taken := m.Users[email]; taken {
		return nil, store.ErrDuplicateEmail
	}
	return m.insertUser(name, email, passwordHash), nil
}

// RegisterUser stores the user and token together; CreateTokenErr stores neither.
func (m *MockStore) RegisterUser(_ context.Context, name, email, passwordHash string, tokenID uuid.UUID, tokenHash []byte, expiresAt *time.Time) (*store.User, error) {
	if m.CreateUserErr != nil {
		return nil, m.CreateUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("RegisterUser")
	if _, taken := m.Users[email]; taken {
		return nil, store.ErrDuplicateEmail
	}
	if m.CreateTokenErr != nil {
		return nil, m.CreateTokenErr
	}
	u := m.insertUser(name, email, passwordHash)
	m.Tokens[string(tokenHash)] = &store.Token{
		ID:        tokenID,
		UserID:    u.ID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	return u, nil
}

// insertUser assigns the next id. Caller holds mu.
func (m *MockStore) insertUser(name, email, passwordHash string) *store.User {
	m.nextUserID++
	now := m.now()
	u := &store.User{
		ID:           m.nextUserID,
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.Users[email] = u
	return u
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (*store.User, error) {
	if m.GetUserByEmailErr != nil {
		return nil, m.GetUserByEmailErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetUserByEmail")
	u, ok := m.Users[email]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

// --- Tokens ---

func (m *MockStore) CreateToken(_ context.Context, id uuid.UUID, userID int64, tokenHash []byte, expiresAt *time.Time) error {
	if m.CreateTokenErr != nil {
		return m.CreateTokenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("CreateToken")
	m.Tokens[string(tokenHash)] = &store.Token{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	return nil
}

func (m *MockStore) ReplaceUserTokens(_ context.Context, id uuid.UUID, userID int64, tokenHash []byte, expiresAt *time.Time) error {
	if m.CreateTokenErr != nil {
		return m.CreateTokenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("ReplaceUserTokens")
	for key, t := range m.Tokens {
		if t.UserID == userID {
			delete(m.Tokens, key)
		}
	}
	m.Tokens[string(tokenHash)] = &store.Token{
		ID:        id,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
	return nil
}

func (m *MockStore) GetUserByTokenHash(_ context.Context, tokenHash []byte) (*store.User, error) {
	if m.GetUserByTokenErr != nil {
		return nil, m.GetUserByTokenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetUserByTokenHash")
	t, ok := m.Tokens[string(tokenHash)]
	if !ok || (t.ExpiresAt != nil && !t.ExpiresAt.After(m.now())) {
		return nil, store.ErrNotFound
	}
	for _, u := range m.Users {
		if u.ID == t.UserID {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockStore) DeleteToken(_ context.Context, tokenHash []byte) error {
	if m.DeleteTokenErr != nil {
		return m.DeleteTokenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("DeleteToken")
	delete(m.Tokens, string(tokenHash))
	return nil
}

// TokenCount returns the number of live tokens for userID.
func (m *MockStore) TokenCount(userID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.Tokens {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

// --- Todos ---

func (m *MockStore) CreateTodo(_ context.Context, userID int64, title string, description *string, completed bool) (*store.Todo, error) {
	if m.CreateTodoErr != nil {
		return nil, m.CreateTodoErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("CreateTodo")
	m.nextTodoID++
	now := m.now()
	t := &store.Todo{
		ID:          m.nextTodoID,
		UserID:      userID,
		Title:       title,
		Description: cloneString(description),
		Completed:   completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.Todos[t.ID] = t
	out := *t
	return &out, nil
}

func (m *MockStore) GetTodo(_ context.Context, id int64) (*store.Todo, error) {
	if m.GetTodoErr != nil {
		return nil, m.GetTodoErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("GetTodo")
	t, ok := m.Todos[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *t
	return &out, nil
}

// ListTodos filters, sorts (id ascending on ties) and paginates like the Postgres store.
func (m *MockStore) ListTodos(_ context.Context, p query.Plan) ([]store.Todo, int, error) {
	if m.ListTodosErr != nil {
		return nil, 0, m.ListTodosErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("ListTodos")

	var matched []store.Todo
	for _, t := range m.Todos {
		if t.UserID != p.OwnerID {
			continue
		}
		if p.Completed != nil && t.Completed != *p.Completed {
			continue
		}
		matched = append(matched, *t)
	}

	slices.SortFunc(matched, func(a, b store.Todo) int {
		var c int
		if p.Sort == query.SortTitle {
			c = strings.Compare(a.Title, b.Title)
		} else {
			c = a.CreatedAt.Compare(b.CreatedAt)
		}
		if p.Order != query.Asc {
			c = -c
		}
		if c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	total := len(matched)
	start := int(min(p.Offset(), int64(total)))
	end := min(start+p.PerPage, total)
	return matched[start:end], total, nil
}

func (m *MockStore) UpdateTodo(_ context.Context, id, ownerID int64, patch store.TodoPatch) (*store.Todo, error) {
	if m.UpdateTodoErr != nil {
		return nil, m.UpdateTodoErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("UpdateTodo")
	t, ok := m.Todos[id]
	if !ok || t.UserID != ownerID {
		return nil, store.ErrNotFound
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.ClearDescription {
		t.Description = nil
	} else if patch.Description != nil {
		t.Description = cloneString(patch.Description)
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
	}
	t.UpdatedAt = m.now()
	out := *t
	return &out, nil
}

func (m *MockStore) DeleteTodo(_ context.Context, id, ownerID int64) error {
	if m.DeleteTodoErr != nil {
		return m.DeleteTodoErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.track("DeleteTodo")
	t, ok := m.Todos[id]
	if !ok || t.UserID != ownerID {
		return store.ErrNotFound
	}
	delete(m.Todos, id)
	return nil
}

// --- Audit / health ---

func (m *MockStore) WriteAuditLog(_ context.Context, entry store.AuditEntry) error {
	if m.WriteAuditLogErr != nil {
		return m.WriteAuditLogErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Audit = append(m.Audit, entry)
	return nil
}

func (m *MockStore) CheckHealth(context.Context) error {
	return m.CheckHealthErr
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// MockCache implements api.Cache for tests.
// Stateful via store.MemoryCache; *Err fields override individual operations.
type MockCache struct {
	// Error injection...zero value means no error
	GetErr         error
	SetErr         error
	DeleteErr      error
	CheckHealthErr error

	*store.MemoryCache
}

// NewMockCache returns an empty MockCache ready for use.
func NewMockCache() *MockCache {
	return &MockCache{MemoryCache: store.NewMemoryCache()}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.MemoryCache.Get(ctx, key)
}

func (m *MockCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	return m.MemoryCache.Set(ctx, key, val, ttl)
}

func (m *MockCache) SetTracked(ctx context.Context, group, key string, val []byte, ttl time.Duration) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	return m.MemoryCache.SetTracked(ctx, group, key, val, ttl)
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	return m.MemoryCache.Delete(ctx, keys...)
}

func (m *MockCache) DeleteGroup(ctx context.Context, group string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	return m.MemoryCache.DeleteGroup(ctx, group)
}

func (m *MockCache) CheckHealth(ctx context.Context) error {
	if m.CheckHealthErr != nil {
		return m.CheckHealthErr
	}
	return m.MemoryCache.CheckHealth(ctx)
}

// MockLimiter implements api.RateLimiter for tests.
// Wraps store.MemoryRateLimiter; CheckErr makes every Check fail.
type MockLimiter struct {
	CheckErr error

	*store.MemoryRateLimiter
}

// NewMockLimiter returns a limiter on the given clock (nil uses time.Now).
func NewMockLimiter(now func() time.Time) *MockLimiter {
	if now == nil {
		now = time.Now
	}
	return &MockLimiter{MemoryRateLimiter: store.NewMemoryRateLimiterWithClock(now)}
}

func (m *MockLimiter) Check(ctx context.Context, key string, policy store.RateLimit) (store.RateLimitResult, error) {
	if m.CheckErr != nil {
		return store.RateLimitResult{}, m.CheckErr
	}
	return m.MemoryRateLimiter.Check(ctx, key, policy)
}
