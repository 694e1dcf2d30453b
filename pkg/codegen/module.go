package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/entweave/entweave/pkg/definition"
	"github.com/entweave/entweave/pkg/descriptor"
)

// GenerateModule emits a self-contained Starlark module for the definition.
// Compute bodies and link filters are embedded as literal code, never
// re-interpreted from strings at load time. The module exposes two entry
// points: compute_field(name, record) and filter_links(name, collection).
//
// A compute source blob either defines compute(data) or assigns its result
// to a global named result; native Go compute functions have no source text
// and are emitted as unavailable stubs.
func GenerateModule(d *definition.Definition) (string, error) {
	if d == nil {
		return "", fmt.Errorf("definition is nil")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Generated module for %s, version %d. Do not edit.\n\n", d.Type, d.Version)
	fmt.Fprintf(&b, "TYPE = %q\n", d.Type)
	fmt.Fprintf(&b, "VERSION = %d\n", d.Version)
	fmt.Fprintf(&b, "CONTEXT = %q\n", d.Context)
	fmt.Fprintf(&b, "EXTENDS = %q\n\n", d.Extends)

	writeFieldTable(&b, d)
	writeComputeFunctions(&b, d)
	writeLinkFilters(&b, d)
	writeEntryPoints(&b)

	return b.String(), nil
}

// writeFieldTable emits the FIELDS metadata dict: name, source kind, type.
func writeFieldTable(b *strings.Builder, d *definition.Definition) {
	b.WriteString("FIELDS = {\n")
	for _, name := range sortedFieldNames(d) {
		fd := d.Fields[name]
		fmt.Fprintf(b, "    %q: {\"source\": %q, \"type\": %q, \"repeated\": %s},\n",
			name, fd.Source, fd.Type, starlarkBool(fd.Repeated))
	}
	b.WriteString("}\n\n")
}

// writeComputeFunctions embeds one function per compute field and the COMPUTE
// dispatch table.
func writeComputeFunctions(b *strings.Builder, d *definition.Definition) {
	var names []string
	for _, name := range sortedFieldNames(d) {
		if d.Fields[name].Source == descriptor.SourceCompute {
			names = append(names, name)
		}
	}

	for _, name := range names {
		fv := d.Fields[name].Compute
		fmt.Fprintf(b, "def _compute_%s(data):\n", name)
		switch {
		case fv != nil && fv.Source != "":
			b.WriteString(indent(fv.Source, "    "))
			if strings.Contains(fv.Source, "def compute(") {
				b.WriteString("    return compute(data)\n")
			} else {
				b.WriteString("    return result\n")
			}
		default:
			// Native Go function with no source text; not representable here.
			fmt.Fprintf(b, "    fail(\"compute field %s has no embeddable source\")\n", name)
		}
		b.WriteString("\n")
	}

	b.WriteString("COMPUTE = {\n")
	for _, name := range names {
		fmt.Fprintf(b, "    %q: _compute_%s,\n", name, name)
	}
	b.WriteString("}\n\n")
}

// writeLinkFilters emits the LINK_FILTERS table: field name to a list of
// (field, comparator, value) triples.
func writeLinkFilters(b *strings.Builder, d *definition.Definition) {
	b.WriteString("LINK_FILTERS = {\n")
	for _, name := range sortedFieldNames(d) {
		fd := d.Fields[name]
		if fd.Source != descriptor.SourceLink || fd.Cascade == nil {
			continue
		}
		fmt.Fprintf(b, "    %q: [", name)
		for i, f := range fd.Cascade.Filters {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "(%q, %q, %s)", f.Field, f.Comparator, starlarkLiteral(f.Value))
		}
		b.WriteString("],\n")
	}
	b.WriteString("}\n\n")
}

func writeEntryPoints(b *strings.Builder) {
	b.WriteString(`def compute_field(name, record):
    fn = COMPUTE.get(name)
    if fn == None:
        fail("unknown compute field: " + name)
    return fn(record)

def _matches(record, clause):
    field, comparator, expected = clause
    actual = record.get(field)
    if comparator == "=":
        return actual == expected
    if comparator == "!=":
        return actual != expected
    if actual == None:
        return False
    if comparator == ">":
        return actual > expected
    if comparator == "<":
        return actual < expected
    if comparator == ">=":
        return actual >= expected
    if comparator == "<=":
        return actual <= expected
    fail("unknown comparator: " + comparator)

def filter_links(name, collection):
    clauses = LINK_FILTERS.get(name)
    if clauses == None:
        fail("unknown link field: " + name)
    return [record for record in collection if all([_matches(record, clause) for clause in clauses])]
`)
}

func sortedFieldNames(d *definition.Definition) []string {
	names := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// indent prefixes every non-empty line of src and guarantees a trailing
// newline.
func indent(src, prefix string) string {
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func starlarkBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// starlarkLiteral renders a coerced filter value as Starlark source.
func starlarkLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		return starlarkBool(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%q", fmt.Sprint(val))
	}
}
