package query

import (
	"strings"
	"testing"

	"github.com/entweave/entweave/pkg/definition"
)

// TestCollectionIsLazy verifies nothing evaluates until a terminal operation
// runs, and that pipelines re-evaluate against a changed graph.
func TestCollectionIsLazy(t *testing.T) {
	q := New(Options{Identity: "test"})

	evaluated := 0
	pipeline := q.Query("Customer", nil).Filter(func(inst *definition.Instance) bool {
		evaluated++
		return true
	})
	if evaluated != 0 {
		t.Fatalf("filter ran %d times before a terminal operation", evaluated)
	}

	q.Add(&definition.Instance{ID: "a", Type: "Customer", Data: map[string]any{}})
	q.Add(&definition.Instance{ID: "b", Type: "Customer", Data: map[string]any{}})

	if pipeline.Count() != 2 {
		t.Errorf("count = %d, want 2", pipeline.Count())
	}
	// Re-evaluation sees later additions.
	q.Add(&definition.Instance{ID: "c", Type: "Customer", Data: map[string]any{}})
	if pipeline.Count() != 3 {
		t.Errorf("count after add = %d, want 3", pipeline.Count())
	}
}

func TestCollectionChaining(t *testing.T) {
	q := New(Options{Identity: "test"})
	for _, spec := range []struct {
		id   string
		tier string
		mrr  float64
	}{
		{"a", "pro", 100},
		{"b", "pro", 300},
		{"c", "free", 0},
	} {
		q.Add(&definition.Instance{ID: spec.id, Type: "Customer", Data: map[string]any{
			"tier": spec.tier, "mrr": spec.mrr,
		}})
	}

	pro := q.Query("Customer", nil).Where(map[string]any{"tier": "pro"})
	if pro.Count() != 2 {
		t.Fatalf("pro = %d, want 2", pro.Count())
	}

	revenues := pro.Map(func(inst *definition.Instance) any {
		return inst.Data["mrr"]
	}).All()
	total := 0.0
	for _, r := range revenues {
		total += r.(float64)
	}
	if total != 400 {
		t.Errorf("total = %v, want 400", total)
	}

	big, ok := pro.Find(func(inst *definition.Instance) bool {
		return inst.Data["mrr"].(float64) > 200
	})
	if !ok || big.ID != "b" {
		t.Errorf("find = (%+v, %v)", big, ok)
	}

	first, ok := q.Query("Customer", nil).First()
	if !ok || first.ID != "a" {
		t.Errorf("first = (%+v, %v)", first, ok)
	}

	if _, ok := q.Query("Ghost", nil).First(); ok {
		t.Error("first on empty collection must miss")
	}
}

func TestFlatMap(t *testing.T) {
	q := New(Options{Identity: "test"})
	q.Add(&definition.Instance{ID: "a", Type: "Customer", Data: map[string]any{
		"tags": []any{"priority", "eu"},
	}})
	q.Add(&definition.Instance{ID: "b", Type: "Customer", Data: map[string]any{
		"tags": []any{"us"},
	}})

	tags := q.Query("Customer", nil).FlatMap(func(inst *definition.Instance) []any {
		return inst.Data["tags"].([]any)
	}).Map(func(v any) any {
		return strings.ToUpper(v.(string))
	}).All()

	if len(tags) != 3 || tags[0] != "PRIORITY" || tags[2] != "US" {
		t.Errorf("tags = %v", tags)
	}
}
