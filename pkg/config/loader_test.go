package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/entweave/entweave/pkg/descriptor"
)

func writeCUE(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func testLoader(t *testing.T) *Loader {
	t.Helper()
	return NewLoader(zerolog.Nop())
}

const customerCUE = `
definitions: {
	Customer: {
		version: 2
		name:    "Customer name"
		tier:    "free | pro | enterprise"
		orders:  "<~> Order [status = active]"
		total: {
			source: "compute"
			code:   "result = data[\"net\"] * 2"
		}
	}
}
`

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := writeCUE(t, dir, "customer.cue", customerCUE)

	result, err := testLoader(t).Load(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	raw, ok := result.Raw["Customer"]
	if !ok {
		t.Fatalf("Customer not loaded, names = %v", result.Names())
	}
	if raw["type"] != "Customer" {
		t.Errorf("type = %v, want injected Customer", raw["type"])
	}

	defs, errs := result.Compile()
	if len(errs) != 0 || len(defs) != 1 {
		t.Fatalf("compile = (%d defs, %v)", len(defs), errs)
	}
	d := defs[0]
	if d.Version != 2 {
		t.Errorf("version = %d, want 2", d.Version)
	}
	if d.Fields["tier"].Type != descriptor.TypeEnum {
		t.Errorf("tier type = %v, want enum", d.Fields["tier"].Type)
	}
	if d.Fields["orders"].Source != descriptor.SourceLink {
		t.Errorf("orders source = %v, want link", d.Fields["orders"].Source)
	}
	if fn, ok := d.Functions["total"]; !ok || fn.Func.Source == "" {
		t.Errorf("total did not compile to a compute function: %+v", fn)
	}
}

// TestLoadMultipleFilesUnify verifies definitions from separate files land in
// one result.
func TestLoadMultipleFilesUnify(t *testing.T) {
	dir := t.TempDir()
	a := writeCUE(t, dir, "customer.cue", customerCUE)
	b := writeCUE(t, dir, "order.cue", `
definitions: {
	Order: {
		version: 1
		status:  "draft | active | closed"
		total:   "Order total (number)"
	}
}
`)

	result, err := testLoader(t).Load(context.Background(), []string{a, b})
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if names := result.Names(); len(names) != 2 || names[0] != "Customer" || names[1] != "Order" {
		t.Errorf("names = %v", names)
	}
}

// TestLoadSyntaxErrorCollected verifies malformed CUE surfaces as a located
// validation error, not a hard failure.
func TestLoadSyntaxErrorCollected(t *testing.T) {
	dir := t.TempDir()
	path := writeCUE(t, dir, "broken.cue", "definitions: { Customer: {{\n")

	result, err := testLoader(t).Load(context.Background(), []string{path})
	if err != nil {
		t.Fatalf("load failed hard: %v", err)
	}
	if len(result.Errors) == 0 {
		t.Fatal("expected validation errors")
	}
	if result.Errors[0].File == "" {
		t.Errorf("error lost its file location: %+v", result.Errors[0])
	}
}

func TestLoadMissingSource(t *testing.T) {
	if _, err := testLoader(t).Load(context.Background(), []string{"/does/not/exist.cue"}); err == nil {
		t.Fatal("missing source must be an error")
	}
	if _, err := testLoader(t).Load(context.Background(), nil); err == nil {
		t.Fatal("empty source list must be an error")
	}
}

func TestLoadInline(t *testing.T) {
	result, err := testLoader(t).LoadInline(context.Background(), `
definitions: Invoice: {
	version: 1
	number:  "Invoice number"
}
`)
	if err != nil {
		t.Fatalf("inline load failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if _, ok := result.Raw["Invoice"]; !ok {
		t.Errorf("Invoice not loaded, names = %v", result.Names())
	}
}

// TestCompileCollectsPerDefinitionErrors verifies one bad definition does not
// take down the batch.
func TestCompileCollectsPerDefinitionErrors(t *testing.T) {
	result, err := testLoader(t).LoadInline(context.Background(), `
definitions: {
	Good: {version: 1, name: "Name"}
	Bad: {version: "not-a-number", name: "Name"}
}
`)
	if err != nil {
		t.Fatalf("inline load failed: %v", err)
	}

	defs, errs := result.Compile()
	if len(defs) != 1 || defs[0].Type != "Good" {
		t.Errorf("defs = %+v, want only Good", defs)
	}
	if len(errs) != 1 || errs[0].Path != "definitions.Bad" {
		t.Errorf("errs = %+v, want one for Bad", errs)
	}
}

func TestExplicitTypeWins(t *testing.T) {
	result, err := testLoader(t).LoadInline(context.Background(), `
definitions: LegacyName: {
	type:    "Account"
	version: 1
}
`)
	if err != nil {
		t.Fatalf("inline load failed: %v", err)
	}
	if result.Raw["LegacyName"]["type"] != "Account" {
		t.Errorf("type = %v, want explicit Account", result.Raw["LegacyName"]["type"])
	}
}
