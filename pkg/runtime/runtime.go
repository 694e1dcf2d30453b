package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/entweave/entweave/pkg/codegen"
	"github.com/entweave/entweave/pkg/definition"
	"github.com/entweave/entweave/pkg/descriptor"
	"github.com/entweave/entweave/pkg/stores"
	"github.com/entweave/entweave/pkg/telemetry"
)

// Reserved storage keys. Everything under the reserved prefix is runtime
// metadata; every other key is an instance keyed by its identity.
const (
	reservedPrefix = "__entweave/"
	keyDefinition  = reservedPrefix + "definition"
	keyVersion     = reservedPrefix + "version"
)

// boundContexts tracks the number of bound runtime contexts in this process
// for the bound-definitions gauge.
var boundContexts int64

// State is the binding state of a runtime context.
type State string

const (
	StateUnbound   State = "unbound"
	StateMigrating State = "migrating"
	StateBound     State = "bound"
)

// CascadeResolver links or generates the target instances of a cascade field.
// It calls external collaborators and may suspend; deadlines come from ctx.
type CascadeResolver func(ctx context.Context, field string, cascade *descriptor.CascadeDescriptor) ([]*definition.Instance, error)

// Grounder resolves a value to its best similarity match within a reference
// type, or reports that none exists.
type Grounder func(ctx context.Context, value any, refType string) (*definition.Instance, bool, error)

// DeferredCall is the request a generative function builds instead of
// executing. The external generation collaborator consumes it.
type DeferredCall struct {
	// Function is the generative function name.
	Function string `json:"function"`

	// Prompt is the template with its {variable} placeholders intact.
	Prompt string `json:"prompt"`

	// Args maps the prompt's variable names to the resolved call arguments,
	// in declaration order.
	Args map[string]any `json:"args,omitempty"`

	// Schema is the expected structured output shape, when declared.
	Schema map[string]any `json:"schema,omitempty"`

	// Model is an optional model hint.
	Model string `json:"model,omitempty"`
}

// Context binds one definition to one storage and executes its behavior.
// Operations are not safe for concurrent use; the runtime assumes a
// single-process, single-writer model per bound definition.
type Context struct {
	def   *definition.Definition
	store stores.Store
	state State

	tel      *telemetry.Telemetry
	logger   *telemetry.Logger
	resolver CascadeResolver
	grounder Grounder
	eval     *StarlarkEvaluator
}

// Option configures a runtime context.
type Option func(*Context)

// WithTelemetry sets the telemetry stack used for logging, metrics and event
// publication.
func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(c *Context) { c.tel = tel }
}

// WithCascadeResolver sets the cascade-resolution hook.
func WithCascadeResolver(r CascadeResolver) Option {
	return func(c *Context) { c.resolver = r }
}

// WithGrounder sets the fuzzy-grounding hook.
func WithGrounder(g Grounder) Option {
	return func(c *Context) { c.grounder = g }
}

// WithEvaluator sets the evaluator used for Starlark compute sources.
func WithEvaluator(e *StarlarkEvaluator) Option {
	return func(c *Context) { c.eval = e }
}

// New creates an unbound runtime context for the definition.
func New(def *definition.Definition, opts ...Option) *Context {
	c := &Context{
		def:   def,
		state: StateUnbound,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tel == nil {
		c.tel = telemetry.NewDefaultTelemetry()
	}
	if c.eval == nil {
		c.eval = NewStarlarkEvaluator(0)
	}
	c.logger = c.tel.Logger.NewComponentLogger("runtime").WithType(def.Type)

	c.tel.Metrics.RecordDefinitionParsed("ok")
	for name, fd := range def.Fields {
		c.tel.Metrics.RecordFieldClassified(string(fd.Source))
		if fd.Cascade != nil && fd.Cascade.DroppedFilters > 0 {
			c.tel.Metrics.RecordParserDegradation("cascade_filter", fd.Cascade.DroppedFilters)
			c.logger.WithField("field", name).Debugf("dropped %d unparseable filter(s)", fd.Cascade.DroppedFilters)
		}
	}
	return c
}

// Definition returns the bound definition.
func (c *Context) Definition() *definition.Definition { return c.def }

// State returns the current binding state.
func (c *Context) State() State { return c.state }

// Storage returns the bound store, or nil while unbound.
func (c *Context) Storage() stores.Store { return c.store }

// Bind attaches the context to storage. When the stored version lags the
// definition's, every migration with a target version in (stored, current]
// runs strictly once, in ascending order, and the applied version is
// persisted after each success. A failing migration aborts the rest and
// leaves the last successful version recorded. A stored version newer than
// the definition's is a conflict.
func (c *Context) Bind(ctx context.Context, store stores.Store) error {
	spanCtx, span := c.tel.Tracer.StartBindSpan(ctx, c.def.Type, c.def.Version)
	defer span.End()

	stored, hasStored, err := readStoredVersion(spanCtx, store)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to read stored version: %w", err)
	}

	if hasStored && stored > c.def.Version {
		err := fmt.Errorf("%w: stored %d, definition %d", ErrVersionConflict, stored, c.def.Version)
		telemetry.RecordError(span, err)
		return err
	}

	c.store = store

	if hasStored && stored < c.def.Version {
		c.state = StateMigrating
		if err := c.migrate(spanCtx, stored); err != nil {
			c.state = StateUnbound
			c.store = nil
			telemetry.RecordError(span, err)
			return err
		}
	}

	if err := c.persistMetadata(spanCtx); err != nil {
		c.state = StateUnbound
		c.store = nil
		telemetry.RecordError(span, err)
		return err
	}

	if c.state != StateBound {
		c.state = StateBound
		c.tel.Metrics.SetBoundDefinitions(float64(atomic.AddInt64(&boundContexts, 1)))
	}
	c.logger.WithField("version", c.def.Version).Info("definition bound")
	_ = c.tel.Events.PublishDefinitionBound(c.def.Type, stored, c.def.Version)
	telemetry.RecordSuccess(span)
	return nil
}

// Close detaches the context from storage. The store itself is not closed;
// the caller owns it.
func (c *Context) Close() {
	if c.state == StateBound {
		c.tel.Metrics.SetBoundDefinitions(float64(atomic.AddInt64(&boundContexts, -1)))
	}
	c.state = StateUnbound
	c.store = nil
}

// migrate runs every migration in (stored, current] ascending, persisting the
// version after each success.
func (c *Context) migrate(ctx context.Context, stored int) error {
	var versions []int
	for v := range c.def.Migrations {
		if v > stored && v <= c.def.Version {
			versions = append(versions, v)
		}
	}
	sort.Ints(versions)

	h := c.handlerContext()
	for _, v := range versions {
		spanCtx, span := c.tel.Tracer.StartMigrationSpan(ctx, c.def.Type, v)
		timer := telemetry.NewTimer()

		if err := c.def.Migrations[v](spanCtx, h); err != nil {
			telemetry.RecordError(span, err)
			span.End()
			c.tel.Metrics.RecordMigrationApplied(c.def.Type, "error", timer.Duration())
			_ = c.tel.Events.PublishMigrationFailed(c.def.Type, v, err.Error())
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, v, err)
		}

		if err := writeStoredVersion(spanCtx, c.store, v); err != nil {
			telemetry.RecordError(span, err)
			span.End()
			return fmt.Errorf("failed to persist version %d: %w", v, err)
		}

		telemetry.RecordSuccess(span)
		span.End()
		c.tel.Metrics.RecordMigrationApplied(c.def.Type, "ok", timer.Duration())
		_ = c.tel.Events.PublishMigrationApplied(c.def.Type, v, timer.Duration())
		c.logger.WithField("version", v).Info("migration applied")
	}
	return nil
}

// persistMetadata writes the serialized definition and the current version
// under the reserved keys.
func (c *Context) persistMetadata(ctx context.Context) error {
	serialized, err := codegen.Serialize(c.def)
	if err != nil {
		return fmt.Errorf("failed to serialize definition: %w", err)
	}
	if err := c.store.Put(ctx, keyDefinition, serialized); err != nil {
		return fmt.Errorf("failed to persist definition metadata: %w", err)
	}
	return writeStoredVersion(ctx, c.store, c.def.Version)
}

func readStoredVersion(ctx context.Context, store stores.Store) (int, bool, error) {
	raw, ok, err := store.Get(ctx, keyVersion)
	if err != nil || !ok {
		return 0, false, err
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, false, fmt.Errorf("corrupt stored version %q: %w", raw, err)
	}
	return v, true, nil
}

func writeStoredVersion(ctx context.Context, store stores.Store, version int) error {
	return store.Put(ctx, keyVersion, []byte(strconv.Itoa(version)))
}

func (c *Context) requireBound() error {
	if c.state != StateBound {
		return ErrNotBound
	}
	return nil
}

// Get returns the instance for id, or ok=false on a simple miss. A miss is
// never an error.
func (c *Context) Get(ctx context.Context, id string) (*definition.Instance, bool, error) {
	if err := c.requireBound(); err != nil {
		return nil, false, err
	}
	if strings.HasPrefix(id, reservedPrefix) {
		return nil, false, nil
	}
	raw, ok, err := c.store.Get(ctx, id)
	if err != nil || !ok {
		return nil, false, err
	}
	inst, err := decodeInstance(raw)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt instance %q: %w", id, err)
	}
	return inst, true, nil
}

// Create stores a new instance tagged with the current version and fires the
// created handler synchronously before returning.
func (c *Context) Create(ctx context.Context, id string, data map[string]any) (*definition.Instance, error) {
	if err := c.requireBound(); err != nil {
		return nil, err
	}
	inst, err := c.writeInstance(ctx, id, data)
	if err != nil {
		return nil, err
	}

	c.tel.Metrics.RecordInstanceOperation(c.def.Type, "create", 0)
	_ = c.tel.Events.PublishInstanceCreated(c.def.Type, id)

	if err := c.fireEvent(ctx, "Created", nil, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Put replaces an instance's payload in full, re-tagged with the current
// version, and fires the updated handler with previous and current state.
// Previous may be absent when the id did not exist.
func (c *Context) Put(ctx context.Context, id string, data map[string]any) (*definition.Instance, error) {
	if err := c.requireBound(); err != nil {
		return nil, err
	}
	previous, _, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	inst, err := c.writeInstance(ctx, id, data)
	if err != nil {
		return nil, err
	}

	c.tel.Metrics.RecordInstanceOperation(c.def.Type, "put", 0)
	_ = c.tel.Events.PublishInstanceUpdated(c.def.Type, id, changedFields(previous, inst))

	if err := c.fireEvent(ctx, "Updated", previous, inst); err != nil {
		return nil, err
	}
	return inst, nil
}

// Delete removes an instance, firing the deleted handler when a removal
// occurred, and reports whether anything was removed.
func (c *Context) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.requireBound(); err != nil {
		return false, err
	}
	if strings.HasPrefix(id, reservedPrefix) {
		return false, nil
	}
	previous, existed, err := c.Get(ctx, id)
	if err != nil {
		return false, err
	}
	removed, err := c.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !removed {
		return false, nil
	}

	c.tel.Metrics.RecordInstanceOperation(c.def.Type, "delete", 0)
	_ = c.tel.Events.PublishInstanceDeleted(c.def.Type, id)

	if existed {
		if err := c.fireEvent(ctx, "Deleted", previous, nil); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Instances returns every non-reserved stored entry for this type.
func (c *Context) Instances(ctx context.Context) ([]*definition.Instance, error) {
	if err := c.requireBound(); err != nil {
		return nil, err
	}
	kvs, err := c.store.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]*definition.Instance, 0, len(kvs))
	for _, kv := range kvs {
		if strings.HasPrefix(kv.Key, reservedPrefix) {
			continue
		}
		inst, err := decodeInstance(kv.Value)
		if err != nil {
			return nil, fmt.Errorf("corrupt instance %q: %w", kv.Key, err)
		}
		out = append(out, inst)
	}
	return out, nil
}

// Call invokes a named function. Compute functions execute directly, native
// Go functions through reflection and source blobs through the Starlark
// evaluator. Generative functions return a *DeferredCall instead of
// executing.
func (c *Context) Call(ctx context.Context, name string, args ...any) (any, error) {
	if err := c.requireBound(); err != nil {
		return nil, err
	}
	fn, ok := c.def.Functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: function %q", ErrNotFound, name)
	}

	c.tel.Metrics.RecordFunctionCall(c.def.Type, name, string(fn.Kind))
	spanCtx, span := c.tel.Tracer.StartFunctionSpan(ctx, c.def.Type, name, string(fn.Kind))
	defer span.End()

	var result any
	var err error
	switch fn.Kind {
	case definition.FunctionGenerative:
		result = deferCall(fn, args)
	case definition.FunctionCompute:
		result, err = c.executeCompute(spanCtx, fn, args)
	default:
		err = fmt.Errorf("unknown function kind %q", fn.Kind)
	}

	if err != nil {
		c.tel.Metrics.RecordFunctionError(c.def.Type, name)
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.RecordSuccess(span)
	return result, nil
}

// ComputeField executes a compute field against a record, the same operation
// a generated module's compute_field entry point performs.
func (c *Context) ComputeField(ctx context.Context, field string, data map[string]any) (any, error) {
	fd, ok := c.def.Fields[field]
	if !ok || fd.Source != descriptor.SourceCompute {
		return nil, fmt.Errorf("%w: compute field %q", ErrNotFound, field)
	}
	if fd.Compute.Native() {
		return callNative(ctx, fd.Compute.Fn, []any{data})
	}
	return c.eval.Eval(ctx, fd.Compute.Source, data, nil)
}

// RunSchedule invokes a named interval handler ("everyHour").
func (c *Context) RunSchedule(ctx context.Context, name string) error {
	if err := c.requireBound(); err != nil {
		return err
	}
	h, ok := c.def.Schedules[name]
	if !ok {
		return fmt.Errorf("%w: schedule %q", ErrNotFound, name)
	}
	return telemetry.RecordHandlerOperation(c.tel.WithContext(ctx), c.def.Type, name, func(ctx context.Context) error {
		return h(ctx, c.handlerContext())
	})
}

// RunCron invokes the handler registered for a cron expression.
func (c *Context) RunCron(ctx context.Context, expr string) error {
	if err := c.requireBound(); err != nil {
		return err
	}
	h, ok := c.def.Crons[expr]
	if !ok {
		return fmt.Errorf("%w: cron %q", ErrNotFound, expr)
	}
	return telemetry.RecordHandlerOperation(c.tel.WithContext(ctx), c.def.Type, expr, func(ctx context.Context) error {
		return h(ctx, c.handlerContext())
	})
}

// writeInstance validates the identity, tags data with the current version
// and persists it.
func (c *Context) writeInstance(ctx context.Context, id string, data map[string]any) (*definition.Instance, error) {
	if id == "" {
		return nil, fmt.Errorf("instance identity is required")
	}
	if strings.HasPrefix(id, reservedPrefix) {
		return nil, fmt.Errorf("%w: %q", ErrReservedKey, id)
	}
	inst, err := c.def.Instantiate(id, data)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(inst)
	if err != nil {
		return nil, fmt.Errorf("failed to encode instance: %w", err)
	}
	if err := c.store.Put(ctx, id, raw); err != nil {
		return nil, fmt.Errorf("failed to persist instance: %w", err)
	}
	return inst, nil
}

// fireEvent invokes the registered on<Type><Event> handler synchronously.
func (c *Context) fireEvent(ctx context.Context, event string, previous, current *definition.Instance) error {
	name := "on" + c.def.Type + event
	h, ok := c.def.Events[name]
	if !ok {
		return nil
	}
	ev := definition.Event{
		Name:     name,
		Type:     c.def.Type,
		Previous: previous,
		Current:  current,
	}
	return telemetry.RecordHandlerOperation(c.tel.WithContext(ctx), c.def.Type, name, func(ctx context.Context) error {
		return h(ctx, c.handlerContext(), ev)
	})
}

// executeCompute runs a compute function, preferring the native arm.
func (c *Context) executeCompute(ctx context.Context, fn *definition.FunctionDescriptor, args []any) (any, error) {
	if fn.Func == nil {
		return nil, fmt.Errorf("compute function %q has no body", fn.Name)
	}
	if fn.Func.Native() {
		return callNative(ctx, fn.Func.Fn, args)
	}
	if fn.Func.Source != "" {
		var data map[string]any
		if len(args) > 0 {
			if m, ok := args[0].(map[string]any); ok {
				data = m
				args = args[1:]
			}
		}
		return c.eval.Eval(ctx, fn.Func.Source, data, args)
	}
	return nil, fmt.Errorf("compute function %q has neither native function nor source", fn.Name)
}

// deferCall builds the deferred request for a generative function, mapping
// the prompt's variables to the call arguments positionally.
func deferCall(fn *definition.FunctionDescriptor, args []any) *DeferredCall {
	resolved := make(map[string]any, len(fn.Variables))
	for i, v := range fn.Variables {
		if i < len(args) {
			resolved[v] = args[i]
		}
	}
	return &DeferredCall{
		Function: fn.Name,
		Prompt:   fn.Prompt,
		Args:     resolved,
		Schema:   fn.Schema,
		Model:    fn.Model,
	}
}

// callNative invokes a Go function value through reflection. A leading
// context.Context parameter receives ctx; a trailing error result is
// unwrapped.
func callNative(ctx context.Context, fn any, args []any) (any, error) {
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("compute value is not a function")
	}

	in := make([]reflect.Value, 0, ft.NumIn())
	argIdx := 0
	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		if i == 0 && pt == reflect.TypeOf((*context.Context)(nil)).Elem() {
			in = append(in, reflect.ValueOf(ctx))
			continue
		}
		if argIdx >= len(args) {
			return nil, fmt.Errorf("compute function wants %d arguments, got %d", ft.NumIn(), len(args))
		}
		av := reflect.ValueOf(args[argIdx])
		if !av.IsValid() {
			av = reflect.Zero(pt)
		} else if !av.Type().AssignableTo(pt) {
			if av.Type().ConvertibleTo(pt) {
				av = av.Convert(pt)
			} else {
				return nil, fmt.Errorf("argument %d: %s is not assignable to %s", argIdx, av.Type(), pt)
			}
		}
		in = append(in, av)
		argIdx++
	}

	out := fv.Call(in)
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		if err, ok := out[0].Interface().(error); ok {
			return nil, err
		}
		return out[0].Interface(), nil
	default:
		if err, ok := out[len(out)-1].Interface().(error); ok && err != nil {
			return nil, err
		}
		return out[0].Interface(), nil
	}
}

func decodeInstance(raw []byte) (*definition.Instance, error) {
	var inst definition.Instance
	if err := json.Unmarshal(raw, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// changedFields lists top-level keys whose value differs between previous and
// current payloads, for the update event.
func changedFields(previous, current *definition.Instance) []string {
	if previous == nil {
		if current == nil {
			return nil
		}
		keys := make([]string, 0, len(current.Data))
		for k := range current.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return keys
	}
	seen := map[string]struct{}{}
	var changed []string
	for k, v := range current.Data {
		if pv, ok := previous.Data[k]; !ok || !reflect.DeepEqual(pv, v) {
			changed = append(changed, k)
		}
		seen[k] = struct{}{}
	}
	for k := range previous.Data {
		if _, ok := seen[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
