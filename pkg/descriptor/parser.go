package descriptor

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

var (
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	typeSuffixRe  = regexp.MustCompile(`\s*\((number|date|boolean)\)\s*$`)
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// ExtractVariables returns the {placeholder} names in s, deduplicated, in
// first-occurrence order.
func ExtractVariables(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Parse classifies one raw field value into a FieldDescriptor. Classification
// is total: every value yields a descriptor with exactly one source kind, and
// values matching no richer rule degrade to Input.
//
// Precedence, first match wins:
//
//  1. explicit source-kind marker (typed spec value, or a map with a valid
//     "source" entry)
//  2. callable value: Compute
//  3. structured legacy prompt form: Generate
//  4. string: cascade, fuzzy (~Type), sync ($path), placeholder prompt,
//     enum alternation, typed input, plain input
//  5. single-element array: the element's classification, marked repeated
//  6. unmarked map: structured Generate when any nested string holds a
//     placeholder, nested Input object otherwise
//  7. anything else: Input with the value printed verbatim
func Parse(name string, value any) *FieldDescriptor {
	switch v := value.(type) {
	case GenerateSpec:
		return generateField(name, v.Prompt, v.Schema, v.Model)
	case *GenerateSpec:
		return generateField(name, v.Prompt, v.Schema, v.Model)
	case SyncSpec:
		return syncField(name, &v, "")
	case *SyncSpec:
		return syncField(name, v, "")
	case FuzzySpec:
		return fuzzyField(name, v.Type)
	case *FuzzySpec:
		return fuzzyField(name, v.Type)
	case AggregateSpec:
		return aggregateField(name, &v)
	case *AggregateSpec:
		return aggregateField(name, v)
	case RefSpec:
		return aggregateField(name, &AggregateSpec{Op: OpRef, Ref: v})
	case FuncValue:
		return computeField(name, &v)
	case *FuncValue:
		return computeField(name, v)
	case string:
		return parseString(name, v)
	case []any:
		return parseArray(name, v)
	case map[string]any:
		return parseMap(name, v)
	}

	if value != nil && reflect.TypeOf(value).Kind() == reflect.Func {
		return computeField(name, &FuncValue{Fn: value})
	}

	fd := &FieldDescriptor{Name: name, Source: SourceInput, Description: fmt.Sprint(value)}
	switch value.(type) {
	case bool:
		fd.Type = TypeBoolean
	case int, int32, int64, float32, float64:
		fd.Type = TypeNumber
	}
	return fd
}

// parseString classifies a string value. Cascade detection runs first, so a
// string holding both an operator and {placeholder} text stays a cascade.
func parseString(name, s string) *FieldDescriptor {
	if cd, ok := ParseCascade(s); ok {
		return &FieldDescriptor{
			Name:        name,
			Source:      SourceLink,
			Description: cd.Prompt,
			Cascade:     cd,
		}
	}

	if rest, ok := strings.CutPrefix(s, "~"); ok && identRe.MatchString(strings.TrimSpace(rest)) {
		return fuzzyField(name, strings.TrimSpace(rest))
	}

	if strings.HasPrefix(s, "$") {
		desc := s
		typ := TypeString
		if m := typeSuffixRe.FindStringSubmatch(desc); m != nil {
			typ = PrimitiveType(m[1])
			desc = strings.TrimSpace(typeSuffixRe.ReplaceAllString(desc, ""))
		}
		fd := syncField(name, &SyncSpec{Path: strings.TrimPrefix(desc, "$")}, desc)
		fd.Type = typ
		return fd
	}

	if vars := ExtractVariables(s); len(vars) > 0 {
		return &FieldDescriptor{
			Name:        name,
			Source:      SourceGenerate,
			Description: s,
			Prompt:      s,
			Variables:   vars,
			Type:        TypeString,
		}
	}

	desc := s
	typ := TypeString
	if m := typeSuffixRe.FindStringSubmatch(desc); m != nil {
		typ = PrimitiveType(m[1])
		desc = strings.TrimSpace(typeSuffixRe.ReplaceAllString(desc, ""))
	}

	if strings.Contains(desc, "|") {
		values := splitEnum(desc)
		if len(values) >= 2 {
			return &FieldDescriptor{
				Name:       name,
				Source:     SourceInput,
				Type:       TypeEnum,
				EnumValues: values,
			}
		}
	}

	return &FieldDescriptor{Name: name, Source: SourceInput, Description: desc, Type: typ}
}

// parseArray classifies a single-element array as its element's descriptor
// marked repeated. Arrays of any other length carry no declarative meaning
// and degrade to Input.
func parseArray(name string, v []any) *FieldDescriptor {
	if len(v) != 1 {
		return &FieldDescriptor{Name: name, Source: SourceInput, Description: fmt.Sprint(v), Type: TypeArray}
	}
	fd := Parse(name, v[0])
	fd.Repeated = true
	return fd
}

// parseMap classifies a structured value: explicit marker, legacy prompt
// form, structured Generate when any nested string holds a placeholder, or a
// nested Input object.
func parseMap(name string, v map[string]any) *FieldDescriptor {
	if kind, ok := v["source"].(string); ok && SourceKind(kind).Valid() {
		return parseMarkedMap(name, SourceKind(kind), v)
	}

	if prompt, ok := v["prompt"].(string); ok {
		schema, _ := v["schema"].(map[string]any)
		model, _ := v["model"].(string)
		return generateField(name, prompt, schema, model)
	}

	if vars := nestedVariables(v); len(vars) > 0 {
		return &FieldDescriptor{
			Name:      name,
			Source:    SourceGenerate,
			Type:      TypeObject,
			Schema:    v,
			Variables: vars,
		}
	}

	fields := make(map[string]*FieldDescriptor, len(v))
	for _, key := range sortedKeys(v) {
		fields[key] = Parse(key, v[key])
	}
	return &FieldDescriptor{Name: name, Source: SourceInput, Type: TypeObject, Fields: fields}
}

// parseMarkedMap builds a descriptor from a map with an explicit "source"
// entry. The marker overrides inference; members are read best-effort.
func parseMarkedMap(name string, kind SourceKind, v map[string]any) *FieldDescriptor {
	desc, _ := v["description"].(string)
	switch kind {
	case SourceGenerate:
		prompt, _ := v["prompt"].(string)
		schema, _ := v["schema"].(map[string]any)
		model, _ := v["model"].(string)
		fd := generateField(name, prompt, schema, model)
		if desc != "" {
			fd.Description = desc
		}
		return fd
	case SourceSync:
		path, _ := v["path"].(string)
		endpoint, _ := v["endpoint"].(string)
		auth, _ := v["auth"].(string)
		fd := syncField(name, &SyncSpec{Path: path, Endpoint: endpoint, Auth: auth}, desc)
		if t, ok := v["type"].(string); ok {
			fd.Type = PrimitiveType(t)
		}
		return fd
	case SourceFuzzy:
		t, _ := v["type"].(string)
		fd := fuzzyField(name, t)
		fd.Description = desc
		return fd
	case SourceLink:
		if expr, ok := v["cascade"].(string); ok {
			if cd, ok := ParseCascade(expr); ok {
				return &FieldDescriptor{Name: name, Source: SourceLink, Description: cd.Prompt, Cascade: cd}
			}
		}
		return &FieldDescriptor{Name: name, Source: SourceInput, Description: desc}
	case SourceCompute:
		src, _ := v["code"].(string)
		return computeField(name, &FuncValue{Source: src})
	case SourceAggregate:
		op, _ := v["op"].(string)
		path, _ := v["path"].(string)
		return aggregateField(name, &AggregateSpec{Op: AggregateOp(op), Ref: Ref(path)})
	default:
		return &FieldDescriptor{Name: name, Source: SourceInput, Description: desc}
	}
}

// nestedVariables collects placeholder names from every string reachable
// inside v, walking keys in sorted order for determinism.
func nestedVariables(v any) []string {
	var out []string
	seen := map[string]bool{}
	var walk func(any)
	walk = func(val any) {
		switch t := val.(type) {
		case string:
			for _, name := range ExtractVariables(t) {
				if !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
		case map[string]any:
			for _, key := range sortedKeys(t) {
				walk(t[key])
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(v)
	return out
}

// splitEnum splits "A | B | C" into trimmed values, preserving order.
func splitEnum(s string) []string {
	parts := strings.Split(s, "|")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			values = append(values, v)
		}
	}
	return values
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func generateField(name, prompt string, schema map[string]any, model string) *FieldDescriptor {
	typ := TypeString
	if schema != nil {
		typ = TypeObject
	}
	return &FieldDescriptor{
		Name:        name,
		Source:      SourceGenerate,
		Description: prompt,
		Prompt:      prompt,
		Variables:   ExtractVariables(prompt),
		Schema:      schema,
		Model:       model,
		Type:        typ,
	}
}

func syncField(name string, spec *SyncSpec, desc string) *FieldDescriptor {
	if desc == "" {
		desc = "$" + spec.Path
	}
	return &FieldDescriptor{
		Name:        name,
		Source:      SourceSync,
		Description: desc,
		Sync:        spec,
		Type:        TypeString,
	}
}

func fuzzyField(name, refType string) *FieldDescriptor {
	return &FieldDescriptor{
		Name:      name,
		Source:    SourceFuzzy,
		FuzzyType: refType,
		Type:      TypeString,
	}
}

func computeField(name string, fn *FuncValue) *FieldDescriptor {
	return &FieldDescriptor{Name: name, Source: SourceCompute, Compute: fn}
}

func aggregateField(name string, spec *AggregateSpec) *FieldDescriptor {
	return &FieldDescriptor{Name: name, Source: SourceAggregate, Aggregate: spec, Type: TypeNumber}
}
