package descriptor

import "time"

// SourceKind classifies where a field's value comes from.
type SourceKind string

const (
	SourceInput     SourceKind = "input"
	SourceGenerate  SourceKind = "generate"
	SourceCompute   SourceKind = "compute"
	SourceSync      SourceKind = "sync"
	SourceAggregate SourceKind = "aggregate"
	SourceFuzzy     SourceKind = "fuzzy"
	SourceLink      SourceKind = "link"
)

// Valid reports whether k is one of the seven source kinds.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceInput, SourceGenerate, SourceCompute, SourceSync,
		SourceAggregate, SourceFuzzy, SourceLink:
		return true
	}
	return false
}

// PrimitiveType is the declared value type of a field.
type PrimitiveType string

const (
	TypeString  PrimitiveType = "string"
	TypeNumber  PrimitiveType = "number"
	TypeDate    PrimitiveType = "date"
	TypeBoolean PrimitiveType = "boolean"
	TypeEnum    PrimitiveType = "enum"
	TypeObject  PrimitiveType = "object"
	TypeArray   PrimitiveType = "array"
)

// FieldDescriptor is the parsed form of one raw field value. Source is always
// set; the remaining members are populated according to the source kind.
type FieldDescriptor struct {
	// Name is the field name as declared in the definition.
	Name string `json:"name"`

	// Description is the human-readable text for this field. For Generate
	// fields it equals the prompt; for Link fields it is the text preceding
	// the cascade operator.
	Description string `json:"description,omitempty"`

	// Source is the field's source kind.
	Source SourceKind `json:"source"`

	// Type is the declared primitive type, when one is known.
	Type PrimitiveType `json:"type,omitempty"`

	// Repeated marks a field declared as a single-element array.
	Repeated bool `json:"repeated,omitempty"`

	// EnumValues holds the alternation values for enum fields, in
	// declaration order.
	EnumValues []string `json:"enum,omitempty"`

	// Fields holds nested descriptors for object-shaped Input fields.
	Fields map[string]*FieldDescriptor `json:"fields,omitempty"`

	// Prompt is the generation template for Generate fields.
	Prompt string `json:"prompt,omitempty"`

	// Variables are the {placeholder} names extracted from Prompt, in
	// first-occurrence order.
	Variables []string `json:"variables,omitempty"`

	// Schema is the structured output shape for Generate fields declared as
	// structured values.
	Schema map[string]any `json:"schema,omitempty"`

	// Model is an optional model hint for the generation collaborator.
	Model string `json:"model,omitempty"`

	// Cascade describes the relationship for Link fields.
	Cascade *CascadeDescriptor `json:"cascade,omitempty"`

	// Compute holds the function for Compute fields.
	Compute *FuncValue `json:"compute,omitempty"`

	// Sync holds the enrichment declaration for Sync fields.
	Sync *SyncSpec `json:"sync,omitempty"`

	// FuzzyType is the reference type Fuzzy fields are grounded against.
	FuzzyType string `json:"fuzzyType,omitempty"`

	// Aggregate holds the fold declaration for Aggregate fields.
	Aggregate *AggregateSpec `json:"aggregate,omitempty"`
}

// FuncValue is the tagged representation of a function-valued field: an
// in-process Go function, an opaque source blob carried for code generation,
// or both. The two arms are kept structurally distinct so serialization and
// codegen never have to reverse-engineer one from the other.
type FuncValue struct {
	// Fn is the in-process function. Nil when only source text is known,
	// which is the case for definitions reconstructed from serialized form.
	Fn any `json:"-"`

	// Source is the literal code text (Starlark) embedded verbatim by the
	// module generator. Empty when only Fn is known.
	Source string `json:"source,omitempty"`
}

// Native reports whether the value carries an in-process function.
func (f *FuncValue) Native() bool { return f != nil && f.Fn != nil }

// GenerateSpec is the explicit structured form of a Generate field.
type GenerateSpec struct {
	Prompt string         `json:"prompt"`
	Schema map[string]any `json:"schema,omitempty"`
	Model  string         `json:"model,omitempty"`
}

// SyncSpec declares an external enrichment source for a Sync field. Endpoint,
// cache duration and auth are declarative configuration consumed by the
// enrichment collaborator; the core never fetches.
type SyncSpec struct {
	// Path is the dotted path into the enrichment payload, without the
	// leading "$" ("resource.stars").
	Path string `json:"path"`

	// Endpoint is an optional endpoint pattern with :param segments.
	Endpoint string `json:"endpoint,omitempty"`

	// CacheFor is how long fetched values may be reused.
	CacheFor time.Duration `json:"cacheFor,omitempty"`

	// Auth names the credential the collaborator should present.
	Auth string `json:"auth,omitempty"`
}

// FuzzySpec is the explicit structured form of a Fuzzy field.
type FuzzySpec struct {
	// Type is the reference type grounded against.
	Type string `json:"type"`
}
