package definition

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/entweave/entweave/pkg/descriptor"
)

var validate = validator.New()

// Instance is a concretely identified value of a definition's type.
type Instance struct {
	// ID is the instance identity, unique within the bound storage.
	ID string `json:"id"`

	// Type is the entity type name.
	Type string `json:"type"`

	// Version is the definition version the payload was written under.
	Version int `json:"version"`

	// Data is the instance payload.
	Data map[string]any `json:"data"`
}

// FunctionKind distinguishes compute functions, which execute in-process,
// from generative functions, which only ever build deferred requests.
type FunctionKind string

const (
	FunctionCompute    FunctionKind = "compute"
	FunctionGenerative FunctionKind = "generative"
)

// FunctionDescriptor is one named function on a definition.
type FunctionDescriptor struct {
	Name string       `json:"name"`
	Kind FunctionKind `json:"kind"`

	// Func holds the tagged function value for compute functions.
	Func *descriptor.FuncValue `json:"func,omitempty"`

	// Prompt, Schema, Model and Variables describe generative functions.
	Prompt    string         `json:"prompt,omitempty"`
	Schema    map[string]any `json:"schema,omitempty"`
	Model     string         `json:"model,omitempty"`
	Variables []string       `json:"variables,omitempty"`
}

// GenerativeFunction is the marker value that declares a generative function
// in a raw definition.
type GenerativeFunction struct {
	Prompt string
	Schema map[string]any
	Model  string
}

// Definition is a named, versioned entity-type schema plus behavior. It is
// immutable once built; Extend returns a new Definition.
type Definition struct {
	// Type is the entity type name.
	Type string `validate:"required"`

	// ID is the optional identity. Its presence is what makes a definition
	// describe an instance rather than a type.
	ID string

	// Version is the definition version, a monotonic integer starting at 1.
	Version int `validate:"min=1"`

	// Context is the namespace the definition belongs to.
	Context string

	// Extends names the single parent type, or an external URI.
	Extends string

	// Fields holds the parsed field descriptors, keyed by field name.
	Fields map[string]*descriptor.FieldDescriptor

	// Cascades indexes the Link fields' cascade descriptors by field name.
	Cascades map[string]*descriptor.CascadeDescriptor

	// Functions holds compute and generative functions by name.
	Functions map[string]*FunctionDescriptor

	// Events holds lifecycle handlers keyed by handler name
	// ("onCustomerCreated").
	Events map[string]EventHandler

	// Schedules holds interval handlers keyed by declaration name
	// ("everyHour").
	Schedules map[string]ScheduleHandler

	// Crons holds handlers keyed by their five-token cron expression.
	Crons map[string]ScheduleHandler

	// Migrations holds versioned one-time transforms keyed by target
	// version.
	Migrations map[int]MigrationFunc

	raw map[string]any
}

// IsInstance reports whether the definition carries an identity. Type versus
// instance is determined solely by identity presence.
func (d *Definition) IsInstance() bool { return d.ID != "" }

// Raw returns a copy of the raw declarative form the definition was built
// from.
func (d *Definition) Raw() map[string]any {
	out := make(map[string]any, len(d.raw))
	for k, v := range d.raw {
		out[k] = v
	}
	return out
}

// Extend produces a child definition: a shallow merge of partial over the
// parent's raw form, with extends set to the parent type. The child version
// is partial's when given, the parent's otherwise, defaulting to 1.
// Single-parent inheritance only; there are no mixins.
func (d *Definition) Extend(partial map[string]any) (*Definition, error) {
	merged := d.Raw()
	for k, v := range partial {
		merged[k] = v
	}
	merged["extends"] = d.Type
	if _, ok := partial["version"]; !ok {
		if raw, ok := d.raw["version"]; ok {
			merged["version"] = raw
		} else {
			merged["version"] = 1
		}
	}
	return Define(merged)
}

// Instantiate produces an Instance of the definition's type, tagged with the
// definition's current version.
func (d *Definition) Instantiate(id string, data map[string]any) (*Instance, error) {
	if id == "" {
		return nil, fmt.Errorf("instance identity is required")
	}
	if data == nil {
		data = map[string]any{}
	}
	return &Instance{ID: id, Type: d.Type, Version: d.Version, Data: data}, nil
}
