package descriptor

import (
	"regexp"
	"strconv"
	"strings"
)

// CascadeOperator is a relationship operator. Fuzzy variants declare
// similarity, never ownership.
type CascadeOperator string

const (
	CascadeOutgoing           CascadeOperator = "->"
	CascadeIncoming           CascadeOperator = "<-"
	CascadeBidirectional      CascadeOperator = "<->"
	CascadeFuzzyOutgoing      CascadeOperator = "~>"
	CascadeFuzzyIncoming      CascadeOperator = "<~"
	CascadeFuzzyBidirectional CascadeOperator = "<~>"
)

// operators in match order: longest first so "<->" is not read as "<" + "->"
// and "<~>" is not read as "<~" + ">".
var cascadeOperators = []CascadeOperator{
	CascadeFuzzyBidirectional,
	CascadeBidirectional,
	CascadeFuzzyIncoming,
	CascadeFuzzyOutgoing,
	CascadeIncoming,
	CascadeOutgoing,
}

// FilterComparator is a cascade filter comparison operator.
type FilterComparator string

const (
	FilterEq  FilterComparator = "="
	FilterNeq FilterComparator = "!="
	FilterGt  FilterComparator = ">"
	FilterLt  FilterComparator = "<"
	FilterGte FilterComparator = ">="
	FilterLte FilterComparator = "<="
)

// CascadeFilter restricts the instances a cascade links to. Value is coerced:
// "true"/"false" become bool, numeric text becomes float64, everything else
// stays a string.
type CascadeFilter struct {
	Field      string           `json:"field"`
	Comparator FilterComparator `json:"comparator"`
	Value      any              `json:"value"`
}

// CascadeDescriptor is the parsed form of a relationship expression.
type CascadeDescriptor struct {
	// Operator is the relationship operator.
	Operator CascadeOperator `json:"operator"`

	// TargetType is the entity type on the other end.
	TargetType string `json:"targetType"`

	// Predicate is the field on the target type realizing an incoming
	// reference, from Target.predicate syntax.
	Predicate string `json:"predicate,omitempty"`

	// RouteParam, when set, makes the field's instances independently
	// addressable under :param.
	RouteParam string `json:"routeParam,omitempty"`

	// Filters restrict which target instances the cascade links to.
	Filters []CascadeFilter `json:"filters,omitempty"`

	// Prompt is the generation prompt. Non-empty means the cascade
	// synthesizes new target instances; empty means a pure link.
	Prompt string `json:"prompt,omitempty"`

	// DroppedFilters counts filter clauses that did not match the filter
	// grammar and were discarded.
	DroppedFilters int `json:"-"`
}

// IsGenerative reports whether the cascade synthesizes new target instances.
func (c *CascadeDescriptor) IsGenerative() bool { return c.Prompt != "" }

// IsFuzzy reports whether the cascade declares similarity rather than
// ownership.
func (c *CascadeDescriptor) IsFuzzy() bool {
	switch c.Operator {
	case CascadeFuzzyOutgoing, CascadeFuzzyIncoming, CascadeFuzzyBidirectional:
		return true
	}
	return false
}

var (
	cascadeTargetRe = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(?:\.([A-Za-z_][A-Za-z0-9_]*))?$`)
	routeParamRe    = regexp.MustCompile(`^:([A-Za-z_][A-Za-z0-9_]*)\s*`)
	filterClauseRe  = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(>=|<=|!=|=|>|<)\s*(.+?)\s*$`)
)

// findOperator locates the first operator occurrence in s, matching longest
// operators first at each position. It returns the byte index and the
// operator, or -1 when s contains none.
func findOperator(s string) (int, CascadeOperator) {
	for i := 0; i < len(s); i++ {
		for _, op := range cascadeOperators {
			if strings.HasPrefix(s[i:], string(op)) {
				return i, op
			}
		}
	}
	return -1, ""
}

// ContainsOperator reports whether s contains a cascade operator.
func ContainsOperator(s string) bool {
	i, _ := findOperator(s)
	return i >= 0
}

// ParseCascade parses a relationship expression. The second return value is
// false when s holds no operator or the text after the operator does not form
// a valid target, in which case the caller falls through to the remaining
// classification rules.
func ParseCascade(s string) (*CascadeDescriptor, bool) {
	idx, op := findOperator(s)
	if idx < 0 {
		return nil, false
	}

	desc := strings.TrimSpace(s[:idx])
	rest := strings.TrimSpace(s[idx+len(op):])

	cd := &CascadeDescriptor{
		Operator: op,
		Prompt:   desc,
	}

	// Optional :route token ahead of the target.
	if m := routeParamRe.FindStringSubmatch(rest); m != nil {
		cd.RouteParam = m[1]
		rest = rest[len(m[0]):]
	}

	// Split off a trailing [filter, ...] block.
	if open := strings.IndexByte(rest, '['); open >= 0 {
		end := strings.LastIndexByte(rest, ']')
		if end <= open {
			return nil, false
		}
		cd.Filters, cd.DroppedFilters = parseFilters(rest[open+1 : end])
		rest = strings.TrimSpace(rest[:open]) + strings.TrimSpace(rest[end+1:])
	}

	m := cascadeTargetRe.FindStringSubmatch(strings.TrimSpace(rest))
	if m == nil {
		return nil, false
	}
	cd.TargetType = m[1]
	cd.Predicate = m[2]
	return cd, true
}

// parseFilters parses comma-separated filter clauses. Clauses that do not
// match the field/comparator/value shape are dropped, not errors; the dropped
// count is returned so callers can surface the degradation.
func parseFilters(s string) ([]CascadeFilter, int) {
	var filters []CascadeFilter
	dropped := 0
	for _, clause := range strings.Split(s, ",") {
		if strings.TrimSpace(clause) == "" {
			continue
		}
		m := filterClauseRe.FindStringSubmatch(clause)
		if m == nil {
			dropped++
			continue
		}
		filters = append(filters, CascadeFilter{
			Field:      m[1],
			Comparator: FilterComparator(m[2]),
			Value:      coerceFilterValue(m[3]),
		})
	}
	return filters, dropped
}

// coerceFilterValue converts filter value text to bool or float64 when it
// reads as one, stripping surrounding quotes otherwise.
func coerceFilterValue(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	if len(s) >= 2 {
		if (s[0] == '\'' && s[len(s)-1] == '\'') || (s[0] == '"' && s[len(s)-1] == '"') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
