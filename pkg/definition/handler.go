package definition

import (
	"context"

	"github.com/entweave/entweave/pkg/stores"
)

// Event is the payload delivered to lifecycle event handlers. Previous is nil
// on creation and may be nil on update when no prior value existed.
type Event struct {
	// Name is the handler name that fired ("onCustomerCreated").
	Name string

	// Type is the entity type the event belongs to.
	Type string

	// Previous is the instance state before the operation.
	Previous *Instance

	// Current is the instance state after the operation. Nil for deletes.
	Current *Instance
}

// EventHandler is a lifecycle event handler, invoked synchronously before the
// triggering CRUD call returns.
type EventHandler func(ctx context.Context, h HandlerContext, ev Event) error

// ScheduleHandler runs on a declared interval or cron expression.
type ScheduleHandler func(ctx context.Context, h HandlerContext) error

// MigrationFunc is a versioned, one-time transform applied while binding a
// definition whose storage lags behind it.
type MigrationFunc func(ctx context.Context, h HandlerContext) error

// HandlerContext is the capability surface passed to event handlers,
// schedule handlers and migrations. The runtime implements it; handlers hold
// it only for the duration of one invocation.
//
// Resolve and Ground call external collaborators and may suspend; a
// production binding adds deadline handling through ctx. Everything else is
// synchronous.
type HandlerContext interface {
	// ID returns the bound definition's identity, when it has one.
	ID() string

	// Get returns the instance for id, or ok=false on a simple miss.
	Get(ctx context.Context, id string) (*Instance, bool, error)

	// Create stores a new instance and fires the created handler.
	Create(ctx context.Context, id string, data map[string]any) (*Instance, error)

	// Put replaces an instance's payload in full and fires the updated
	// handler.
	Put(ctx context.Context, id string, data map[string]any) (*Instance, error)

	// Delete removes an instance, reporting whether a removal occurred.
	Delete(ctx context.Context, id string) (bool, error)

	// Instances returns every non-reserved stored entry for this type.
	Instances(ctx context.Context) ([]*Instance, error)

	// Resolve links or generates the instances for a cascade field.
	Resolve(ctx context.Context, field string) ([]*Instance, error)

	// Ground resolves a value to its best similarity match in refType.
	Ground(ctx context.Context, value any, refType string) (*Instance, bool, error)

	// Emit publishes a named event with arbitrary data.
	Emit(event string, data map[string]any)

	// Call invokes a named compute function, or builds the deferred request
	// for a generative one.
	Call(ctx context.Context, name string, args ...any) (any, error)

	// Storage exposes the raw bound store.
	Storage() stores.Store
}
