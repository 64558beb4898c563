// guard.go

// Ownership rules for todos.
package policy

import "github.com/MGallo-Code/ticklist/internal/store"

// Actor is the authenticated identity making a request. A nil *Actor is anonymous.
type Actor struct {
	ID int64
}

// Guard decides whether an actor may perform an operation on a todo.
// Every method is a pure predicate and is safe to call with nil arguments.
type Guard interface {
	CanView(actor *Actor, todo *store.Todo) bool
	CanMutate(actor *Actor, todo *store.Todo) bool
	CanCreate(actor *Actor) bool
	CanList(actor *Actor) bool
}

// OwnerGuard grants create/list to any authenticated actor and everything
// else only to the todo's owner.
type OwnerGuard struct{}

func (OwnerGuard) CanCreate(actor *Actor) bool { return actor != nil }

func (OwnerGuard) CanList(actor *Actor) bool { return actor != nil }

func (OwnerGuard) CanView(actor *Actor, todo *store.Todo) bool {
	return owns(actor, todo)
}

func (OwnerGuard) CanMutate(actor *Actor, todo *store.Todo) bool {
	return owns(actor, todo)
}

// CanUpdate, CanDelete and CanRestore name the individual write capabilities.
func (g OwnerGuard) CanUpdate(actor *Actor, todo *store.Todo) bool { return g.CanMutate(actor, todo) }

func (g OwnerGuard) CanDelete(actor *Actor, todo *store.Todo) bool { return g.CanMutate(actor, todo) }

func (g OwnerGuard) CanRestore(actor *Actor, todo *store.Todo) bool { return g.CanMutate(actor, todo) }

func owns(actor *Actor, todo *store.Todo) bool {
	return actor != nil && todo != nil && todo.UserID == actor.ID
}
