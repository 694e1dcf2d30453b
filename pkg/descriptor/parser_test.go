package descriptor

import (
	"reflect"
	"testing"
)

// TestParseStringClassification runs the string classification table.
func TestParseStringClassification(t *testing.T) {
	tests := []struct {
		name   string
		value  string
		source SourceKind
		typ    PrimitiveType
	}{
		{"plain", "The customer's full name", SourceInput, TypeString},
		{"number suffix", "Number of seats (number)", SourceInput, TypeNumber},
		{"date suffix", "Signup date (date)", SourceInput, TypeDate},
		{"boolean suffix", "Is active (boolean)", SourceInput, TypeBoolean},
		{"enum", "draft | active | archived", SourceInput, TypeEnum},
		{"prompt", "Summarize {name} in one line", SourceGenerate, TypeString},
		{"link", "->Customer", SourceLink, ""},
		{"fuzzy", "~Company", SourceFuzzy, TypeString},
		{"sync", "$resource.stars (number)", SourceSync, TypeNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fd := Parse("f", tt.value)
			if fd.Source != tt.source {
				t.Errorf("source = %q, want %q", fd.Source, tt.source)
			}
			if fd.Type != tt.typ {
				t.Errorf("type = %q, want %q", fd.Type, tt.typ)
			}
		})
	}
}

// TestParseEnumValues verifies that alternation values are trimmed and kept
// in order.
func TestParseEnumValues(t *testing.T) {
	fd := Parse("status", "A | B | C")
	if fd.Type != TypeEnum {
		t.Fatalf("type = %q, want enum", fd.Type)
	}
	want := []string{"A", "B", "C"}
	if !reflect.DeepEqual(fd.EnumValues, want) {
		t.Errorf("enum values = %v, want %v", fd.EnumValues, want)
	}
}

// TestParseTypeSuffixStripped verifies the suffix is removed from the
// description.
func TestParseTypeSuffixStripped(t *testing.T) {
	fd := Parse("stars", "$resource.stars (number)")
	if fd.Source != SourceSync {
		t.Fatalf("source = %q, want sync", fd.Source)
	}
	if fd.Type != TypeNumber {
		t.Errorf("type = %q, want number", fd.Type)
	}
	if fd.Description != "$resource.stars" {
		t.Errorf("description = %q, want $resource.stars", fd.Description)
	}
	if fd.Sync == nil || fd.Sync.Path != "resource.stars" {
		t.Errorf("sync spec = %+v", fd.Sync)
	}
}

// TestParseCascadeBeatsPlaceholder verifies cascade detection precedes
// placeholder detection: a description containing {placeholders} still
// yields a Link field.
func TestParseCascadeBeatsPlaceholder(t *testing.T) {
	fd := Parse("icps", "Find profiles matching {segment} ->IdealCustomerProfile")
	if fd.Source != SourceLink {
		t.Fatalf("source = %q, want link", fd.Source)
	}
	if fd.Cascade.Prompt != "Find profiles matching {segment}" {
		t.Errorf("prompt = %q", fd.Cascade.Prompt)
	}
}

// TestParseArrayCascade verifies the single-element array form marks the
// descriptor repeated.
func TestParseArrayCascade(t *testing.T) {
	fd := Parse("icps", []any{"Who specifically has this problem? ->IdealCustomerProfile"})
	if fd.Source != SourceLink {
		t.Fatalf("source = %q, want link", fd.Source)
	}
	if !fd.Repeated {
		t.Error("single-element array should be repeated")
	}
	cd := fd.Cascade
	if cd.Operator != CascadeOutgoing {
		t.Errorf("operator = %q", cd.Operator)
	}
	if cd.TargetType != "IdealCustomerProfile" {
		t.Errorf("target = %q", cd.TargetType)
	}
	if !cd.IsGenerative() || cd.Prompt != "Who specifically has this problem?" {
		t.Errorf("prompt = %q generative = %v", cd.Prompt, cd.IsGenerative())
	}
}

// TestParsePureLinkNotGenerative covers the bare link form.
func TestParsePureLinkNotGenerative(t *testing.T) {
	fd := Parse("customer", "->Customer")
	if fd.Source != SourceLink {
		t.Fatalf("source = %q, want link", fd.Source)
	}
	if fd.Cascade.IsGenerative() {
		t.Error("->Customer must not be generative")
	}
}

// TestParseCallable verifies that function values classify as Compute.
func TestParseCallable(t *testing.T) {
	fd := Parse("total", func(data map[string]any) any { return 0 })
	if fd.Source != SourceCompute {
		t.Fatalf("source = %q, want compute", fd.Source)
	}
	if !fd.Compute.Native() {
		t.Error("expected native function")
	}

	fd = Parse("total", FuncValue{Source: "def compute(record):\n    return 0\n"})
	if fd.Source != SourceCompute {
		t.Fatalf("source = %q, want compute", fd.Source)
	}
	if fd.Compute.Native() {
		t.Error("source-only value must not be native")
	}
}

// TestParseLegacyPromptForm verifies the structured prompt map form.
func TestParseLegacyPromptForm(t *testing.T) {
	fd := Parse("pitch", map[string]any{
		"prompt": "Pitch {product} to {audience}",
		"schema": map[string]any{"headline": "string"},
		"model":  "large",
	})
	if fd.Source != SourceGenerate {
		t.Fatalf("source = %q, want generate", fd.Source)
	}
	if got := fd.Variables; !reflect.DeepEqual(got, []string{"product", "audience"}) {
		t.Errorf("variables = %v", got)
	}
	if fd.Model != "large" {
		t.Errorf("model = %q", fd.Model)
	}
	if fd.Schema == nil {
		t.Error("schema lost")
	}
}

// TestParseStructuredGenerate verifies that an unmarked map containing nested
// placeholders becomes one structured Generate field whose shape is the
// output schema.
func TestParseStructuredGenerate(t *testing.T) {
	fd := Parse("profile", map[string]any{
		"summary": "Summarize {name}",
		"details": map[string]any{
			"strengths": "List strengths of {name} in {market}",
		},
	})
	if fd.Source != SourceGenerate {
		t.Fatalf("source = %q, want generate", fd.Source)
	}
	if fd.Type != TypeObject {
		t.Errorf("type = %q, want object", fd.Type)
	}
	if got := fd.Variables; !reflect.DeepEqual(got, []string{"name", "market"}) {
		t.Errorf("variables = %v", got)
	}
	if fd.Schema == nil {
		t.Error("schema should be the raw shape")
	}
}

// TestParseNestedInputObject verifies that a placeholder-free map is a nested
// Input object parsed recursively.
func TestParseNestedInputObject(t *testing.T) {
	fd := Parse("address", map[string]any{
		"street": "Street address",
		"seats":  "Seat count (number)",
	})
	if fd.Source != SourceInput || fd.Type != TypeObject {
		t.Fatalf("source = %q type = %q", fd.Source, fd.Type)
	}
	if len(fd.Fields) != 2 {
		t.Fatalf("got %d nested fields", len(fd.Fields))
	}
	if fd.Fields["seats"].Type != TypeNumber {
		t.Errorf("nested seats type = %q", fd.Fields["seats"].Type)
	}
}

// TestParseExplicitMarker verifies the marker overrides inference.
func TestParseExplicitMarker(t *testing.T) {
	fd := Parse("company", map[string]any{"source": "fuzzy", "type": "Company"})
	if fd.Source != SourceFuzzy {
		t.Fatalf("source = %q, want fuzzy", fd.Source)
	}
	if fd.FuzzyType != "Company" {
		t.Errorf("fuzzy type = %q", fd.FuzzyType)
	}

	// A map whose "source" value is not a valid kind falls through to the
	// unmarked rules.
	fd = Parse("origin", map[string]any{"source": "somewhere"})
	if fd.Source != SourceInput {
		t.Errorf("source = %q, want input", fd.Source)
	}
}

// TestParseAggregateBuilder verifies the explicit builder API.
func TestParseAggregateBuilder(t *testing.T) {
	fd := Parse("revenue", Sum(Ref("orders.total")))
	if fd.Source != SourceAggregate {
		t.Fatalf("source = %q, want aggregate", fd.Source)
	}
	if fd.Aggregate.Op != OpSum || fd.Aggregate.Ref.Path != "orders.total" {
		t.Errorf("aggregate = %+v", fd.Aggregate)
	}

	fd = Parse("owner", Ref("company.owner"))
	if fd.Source != SourceAggregate || fd.Aggregate.Op != OpRef {
		t.Errorf("bare ref = %+v", fd.Aggregate)
	}
}

// TestParseFallbackInput verifies the verbatim fallback.
func TestParseFallbackInput(t *testing.T) {
	fd := Parse("limit", 42)
	if fd.Source != SourceInput {
		t.Fatalf("source = %q, want input", fd.Source)
	}
	if fd.Type != TypeNumber {
		t.Errorf("type = %q, want number", fd.Type)
	}
	if fd.Description != "42" {
		t.Errorf("description = %q", fd.Description)
	}
}

// TestExtractVariables verifies placeholder extraction order and dedup.
func TestExtractVariables(t *testing.T) {
	got := ExtractVariables("{a} then {b} then {a} again")
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("variables = %v", got)
	}
	if vars := ExtractVariables("no placeholders"); vars != nil {
		t.Errorf("expected nil, got %v", vars)
	}
}
