package query

import (
	"reflect"

	"github.com/entweave/entweave/pkg/definition"
)

// Collection is a lazily-evaluated sequence of instances. Chaining builds a
// pipeline; terminal operations force it. Collections are cheap to copy and
// safe to re-evaluate.
type Collection struct {
	eval func() []*definition.Instance
}

// Where narrows the collection by a field-to-expected-value map. Matching is
// tolerant of reference-valued fields: references on either side compare by
// id.
func (c *Collection) Where(filter map[string]any) *Collection {
	return c.Filter(func(inst *definition.Instance) bool {
		for field, expected := range filter {
			if !fieldMatches(inst.Data[field], expected) {
				return false
			}
		}
		return true
	})
}

// Filter narrows the collection by a predicate.
func (c *Collection) Filter(pred func(*definition.Instance) bool) *Collection {
	src := c.eval
	return &Collection{eval: func() []*definition.Instance {
		var out []*definition.Instance
		for _, inst := range src() {
			if pred(inst) {
				out = append(out, inst)
			}
		}
		return out
	}}
}

// Map projects each instance to a value, still lazily.
func (c *Collection) Map(fn func(*definition.Instance) any) *Values {
	src := c.eval
	return &Values{eval: func() []any {
		instances := src()
		out := make([]any, len(instances))
		for i, inst := range instances {
			out[i] = fn(inst)
		}
		return out
	}}
}

// FlatMap projects each instance to a slice of values and flattens the
// result, still lazily.
func (c *Collection) FlatMap(fn func(*definition.Instance) []any) *Values {
	src := c.eval
	return &Values{eval: func() []any {
		var out []any
		for _, inst := range src() {
			out = append(out, fn(inst)...)
		}
		return out
	}}
}

// Find forces the pipeline and returns the first instance matching the
// predicate.
func (c *Collection) Find(pred func(*definition.Instance) bool) (*definition.Instance, bool) {
	for _, inst := range c.eval() {
		if pred(inst) {
			return inst, true
		}
	}
	return nil, false
}

// First forces the pipeline and returns its first instance.
func (c *Collection) First() (*definition.Instance, bool) {
	all := c.eval()
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

// Count forces the pipeline and returns its length.
func (c *Collection) Count() int { return len(c.eval()) }

// All forces the pipeline and returns every instance.
func (c *Collection) All() []*definition.Instance { return c.eval() }

// Values is a lazily-evaluated sequence of projected values.
type Values struct {
	eval func() []any
}

// Map projects each value.
func (v *Values) Map(fn func(any) any) *Values {
	src := v.eval
	return &Values{eval: func() []any {
		vals := src()
		out := make([]any, len(vals))
		for i, val := range vals {
			out[i] = fn(val)
		}
		return out
	}}
}

// FlatMap projects each value to a slice and flattens.
func (v *Values) FlatMap(fn func(any) []any) *Values {
	src := v.eval
	return &Values{eval: func() []any {
		var out []any
		for _, val := range src() {
			out = append(out, fn(val)...)
		}
		return out
	}}
}

// All forces the pipeline and returns every value.
func (v *Values) All() []any { return v.eval() }

// Count forces the pipeline and returns its length.
func (v *Values) Count() int { return len(v.eval()) }

// fieldMatches compares an instance field value to an expected value,
// reducing references to their ids on both sides before comparing.
func fieldMatches(actual, expected any) bool {
	a, aRef := referenceID(actual)
	e, eRef := referenceID(expected)
	if aRef || eRef {
		if aRef {
			actual = a
		}
		if eRef {
			expected = e
		}
	}
	return reflect.DeepEqual(actual, expected)
}

// referenceID extracts an identity from a reference-shaped value: an
// *Instance, an Instance, or a map carrying an "id" entry.
func referenceID(v any) (any, bool) {
	switch ref := v.(type) {
	case *definition.Instance:
		if ref == nil {
			return nil, false
		}
		return ref.ID, true
	case definition.Instance:
		return ref.ID, true
	case map[string]any:
		if id, ok := ref["id"]; ok {
			return id, true
		}
	}
	return nil, false
}
