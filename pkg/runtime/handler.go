package runtime

import (
	"context"
	"fmt"

	"github.com/entweave/entweave/pkg/definition"
	"github.com/entweave/entweave/pkg/descriptor"
	"github.com/entweave/entweave/pkg/stores"
	"github.com/entweave/entweave/pkg/telemetry"
)

// handlerContext is the capability surface handed to event handlers, schedule
// handlers and migrations. It mirrors the runtime context's CRUD and exposes
// the cascade-resolution and fuzzy-grounding hooks.
type handlerContext struct {
	rc *Context
}

var _ definition.HandlerContext = (*handlerContext)(nil)

func (c *Context) handlerContext() definition.HandlerContext {
	return &handlerContext{rc: c}
}

func (h *handlerContext) ID() string { return h.rc.def.ID }

func (h *handlerContext) Get(ctx context.Context, id string) (*definition.Instance, bool, error) {
	return h.rc.Get(ctx, id)
}

func (h *handlerContext) Create(ctx context.Context, id string, data map[string]any) (*definition.Instance, error) {
	return h.rc.Create(ctx, id, data)
}

func (h *handlerContext) Put(ctx context.Context, id string, data map[string]any) (*definition.Instance, error) {
	return h.rc.Put(ctx, id, data)
}

func (h *handlerContext) Delete(ctx context.Context, id string) (bool, error) {
	return h.rc.Delete(ctx, id)
}

func (h *handlerContext) Instances(ctx context.Context) ([]*definition.Instance, error) {
	return h.rc.Instances(ctx)
}

// Resolve links or generates the instances for a cascade field through the
// configured resolver hook.
func (h *handlerContext) Resolve(ctx context.Context, field string) ([]*definition.Instance, error) {
	fd, ok := h.rc.def.Fields[field]
	if !ok || fd.Source != descriptor.SourceLink {
		return nil, fmt.Errorf("%w: cascade field %q", ErrNotFound, field)
	}
	if h.rc.resolver == nil {
		return nil, fmt.Errorf("no cascade resolver configured for field %q", field)
	}
	return h.rc.resolver(ctx, field, fd.Cascade)
}

// Ground resolves a value to its best similarity match in refType through the
// configured grounding hook.
func (h *handlerContext) Ground(ctx context.Context, value any, refType string) (*definition.Instance, bool, error) {
	if h.rc.grounder == nil {
		return nil, false, fmt.Errorf("no grounder configured for type %q", refType)
	}
	return h.rc.grounder(ctx, value, refType)
}

// Emit publishes a named event with arbitrary data on the telemetry event
// bus. Delivery failures are logged, not surfaced to the handler.
func (h *handlerContext) Emit(event string, data map[string]any) {
	err := h.rc.tel.Events.Publish(telemetry.Event{
		Type:       event,
		Source:     "handler",
		EntityType: h.rc.def.Type,
		Message:    fmt.Sprintf("Handler event %s on %s", event, h.rc.def.Type),
		Level:      telemetry.EventLevelInfo,
		Data:       data,
	})
	if err != nil {
		h.rc.logger.WithError(err).WithField("event", event).Warn("event emission failed")
	}
}

func (h *handlerContext) Call(ctx context.Context, name string, args ...any) (any, error) {
	return h.rc.Call(ctx, name, args...)
}

func (h *handlerContext) Storage() stores.Store { return h.rc.store }
