package codegen

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/entweave/entweave/pkg/definition"
	"github.com/entweave/entweave/pkg/descriptor"
)

// serializedForm is the wire shape of a definition. Behavior that only exists
// as in-process Go functions (event handlers, schedules, migrations) is
// recorded by name or version only; compute bodies carry their source text
// when they have one.
type serializedForm struct {
	Type       string                                    `json:"type"`
	ID         string                                    `json:"id,omitempty"`
	Version    int                                       `json:"version"`
	Context    string                                    `json:"context,omitempty"`
	Extends    string                                    `json:"extends,omitempty"`
	Fields     map[string]*descriptor.FieldDescriptor    `json:"fields,omitempty"`
	Functions  map[string]*definition.FunctionDescriptor `json:"functions,omitempty"`
	Events     []string                                  `json:"events,omitempty"`
	Schedules  []string                                  `json:"schedules,omitempty"`
	Crons      []string                                  `json:"crons,omitempty"`
	Migrations []int                                     `json:"migrations,omitempty"`
}

// Serialize emits the JSON form of a definition.
func Serialize(d *definition.Definition) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("definition is nil")
	}
	form := serializedForm{
		Type:      d.Type,
		ID:        d.ID,
		Version:   d.Version,
		Context:   d.Context,
		Extends:   d.Extends,
		Fields:    d.Fields,
		Functions: d.Functions,
	}
	for name := range d.Events {
		form.Events = append(form.Events, name)
	}
	for name := range d.Schedules {
		form.Schedules = append(form.Schedules, name)
	}
	for expr := range d.Crons {
		form.Crons = append(form.Crons, expr)
	}
	for v := range d.Migrations {
		form.Migrations = append(form.Migrations, v)
	}
	sort.Strings(form.Events)
	sort.Strings(form.Schedules)
	sort.Strings(form.Crons)
	sort.Ints(form.Migrations)

	return json.MarshalIndent(form, "", "  ")
}

// Parse reconstructs a best-effort Definition from its serialized form.
// Compute and Link code text survives opaquely; handlers, schedules and
// migrations do not round-trip since their bodies were never serializable.
func Parse(raw []byte) (*definition.Definition, error) {
	var form serializedForm
	if err := json.Unmarshal(raw, &form); err != nil {
		return nil, fmt.Errorf("failed to decode serialized definition: %w", err)
	}
	if form.Type == "" {
		return nil, fmt.Errorf("serialized definition has no type")
	}
	if form.Version < 1 {
		form.Version = 1
	}

	d := &definition.Definition{
		Type:       form.Type,
		ID:         form.ID,
		Version:    form.Version,
		Context:    form.Context,
		Extends:    form.Extends,
		Fields:     form.Fields,
		Cascades:   map[string]*descriptor.CascadeDescriptor{},
		Functions:  form.Functions,
		Events:     map[string]definition.EventHandler{},
		Schedules:  map[string]definition.ScheduleHandler{},
		Crons:      map[string]definition.ScheduleHandler{},
		Migrations: map[int]definition.MigrationFunc{},
	}
	if d.Fields == nil {
		d.Fields = map[string]*descriptor.FieldDescriptor{}
	}
	if d.Functions == nil {
		d.Functions = map[string]*definition.FunctionDescriptor{}
	}
	for name, fd := range d.Fields {
		if fd.Name == "" {
			fd.Name = name
		}
		if fd.Source == descriptor.SourceLink && fd.Cascade != nil {
			d.Cascades[name] = fd.Cascade
		}
	}
	return d, nil
}
