package codegen

import (
	"strings"
	"testing"

	"go.starlark.net/starlark"

	"github.com/entweave/entweave/pkg/definition"
)

// execModule compiles generated module source and returns its globals.
func execModule(t *testing.T, src string) starlark.StringDict {
	t.Helper()
	thread := &starlark.Thread{Name: "module-test"}
	globals, err := starlark.ExecFile(thread, "module.star", src, nil)
	if err != nil {
		t.Fatalf("generated module does not execute: %v\n%s", err, src)
	}
	return globals
}

func TestGenerateModuleMetadata(t *testing.T) {
	d := testDefinition(t)

	src, err := GenerateModule(d)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	globals := execModule(t, src)

	if got := globals["TYPE"]; got.(starlark.String) != "Customer" {
		t.Errorf("TYPE = %v", got)
	}
	if got := globals["VERSION"]; got.(starlark.Int).String() != "3" {
		t.Errorf("VERSION = %v", got)
	}
	fields := globals["FIELDS"].(*starlark.Dict)
	if fields.Len() != len(d.Fields) {
		t.Errorf("FIELDS has %d entries, want %d", fields.Len(), len(d.Fields))
	}
}

// TestGeneratedComputeField verifies the compute_field entry point executes
// an embedded compute body against a record.
func TestGeneratedComputeField(t *testing.T) {
	d, err := definition.Define(map[string]any{
		"type": "Invoice",
		"total": map[string]any{
			"source": "compute",
			"code":   "def compute(data):\n    return data[\"net\"] + data[\"tax\"]",
		},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}

	src, err := GenerateModule(d)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	globals := execModule(t, src)

	record := starlark.NewDict(2)
	record.SetKey(starlark.String("net"), starlark.MakeInt(100))
	record.SetKey(starlark.String("tax"), starlark.MakeInt(19))

	thread := &starlark.Thread{Name: "module-test"}
	out, err := starlark.Call(thread, globals["compute_field"],
		starlark.Tuple{starlark.String("total"), record}, nil)
	if err != nil {
		t.Fatalf("compute_field failed: %v", err)
	}
	if out.(starlark.Int).String() != "119" {
		t.Errorf("compute_field = %v, want 119", out)
	}
}

// TestGeneratedFilterLinks verifies the filter_links entry point applies the
// embedded filter triples.
func TestGeneratedFilterLinks(t *testing.T) {
	d, err := definition.Define(map[string]any{
		"type":   "Customer",
		"orders": "->Order[status=active, total>100]",
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}

	src, err := GenerateModule(d)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	globals := execModule(t, src)

	mkOrder := func(status string, total int) starlark.Value {
		rec := starlark.NewDict(2)
		rec.SetKey(starlark.String("status"), starlark.String(status))
		rec.SetKey(starlark.String("total"), starlark.MakeInt(total))
		return rec
	}
	collection := starlark.NewList([]starlark.Value{
		mkOrder("active", 250),
		mkOrder("active", 50),
		mkOrder("closed", 500),
	})

	thread := &starlark.Thread{Name: "module-test"}
	out, err := starlark.Call(thread, globals["filter_links"],
		starlark.Tuple{starlark.String("orders"), collection}, nil)
	if err != nil {
		t.Fatalf("filter_links failed: %v", err)
	}
	if got := out.(*starlark.List).Len(); got != 1 {
		t.Errorf("filtered = %d records, want 1", got)
	}
}

// TestGenerateModuleNativeComputeStub verifies native-only compute fields
// become failing stubs instead of silently vanishing.
func TestGenerateModuleNativeComputeStub(t *testing.T) {
	d, err := definition.Define(map[string]any{
		"type": "Customer",
		"score": func(data map[string]any) any {
			return 1
		},
	})
	if err != nil {
		t.Fatalf("define failed: %v", err)
	}

	src, err := GenerateModule(d)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(src, "has no embeddable source") {
		t.Error("native compute stub missing from generated module")
	}
	execModule(t, src)
}
