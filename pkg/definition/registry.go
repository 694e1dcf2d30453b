package definition

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds a set of definitions and resolves their inheritance.
// Resolution walks the extends graph in topological order so a parent is
// always fully merged before its children, and rejects cycles up front.
type Registry struct {
	defs map[string]*Definition

	// children maps parent type to the child types extending it.
	children map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:     make(map[string]*Definition),
		children: make(map[string][]string),
	}
}

// Register adds a definition. Type names are unique within a registry.
func (r *Registry) Register(d *Definition) error {
	if d == nil || d.Type == "" {
		return fmt.Errorf("cannot register a definition without a type")
	}
	if _, exists := r.defs[d.Type]; exists {
		return fmt.Errorf("duplicate definition type: %s", d.Type)
	}
	r.defs[d.Type] = d
	return nil
}

// Get returns a registered definition by type name.
func (r *Registry) Get(typeName string) (*Definition, bool) {
	d, ok := r.defs[typeName]
	return d, ok
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.defs))
	for name := range r.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve applies inheritance across the registered set. Every definition
// whose parent is registered is replaced by the parent's Extend of its raw
// form. A parent naming an external URI is left unresolved; a parent naming
// an unknown local type is an error.
func (r *Registry) Resolve() error {
	r.children = make(map[string][]string)
	inDegree := make(map[string]int, len(r.defs))

	for _, name := range r.Types() {
		inDegree[name] = 0
	}
	for _, name := range r.Types() {
		parent := r.defs[name].Extends
		if parent == "" || isExternalRef(parent) {
			continue
		}
		if _, ok := r.defs[parent]; !ok {
			return fmt.Errorf("definition %s extends unknown type %s", name, parent)
		}
		r.children[parent] = append(r.children[parent], name)
		inDegree[name]++
	}

	if err := r.detectCycles(); err != nil {
		return err
	}

	// Kahn's algorithm; children resolve level by level under their merged
	// parents.
	currentLevel := make([]string, 0)
	for _, name := range r.Types() {
		if inDegree[name] == 0 {
			currentLevel = append(currentLevel, name)
		}
	}

	processed := 0
	for len(currentLevel) > 0 {
		sort.Strings(currentLevel)
		processed += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, name := range currentLevel {
			for _, child := range r.children[name] {
				resolved, err := r.defs[name].Extend(r.defs[child].Raw())
				if err != nil {
					return fmt.Errorf("failed to resolve %s extending %s: %w", child, name, err)
				}
				r.defs[child] = resolved

				inDegree[child]--
				if inDegree[child] == 0 {
					nextLevel = append(nextLevel, child)
				}
			}
		}
		currentLevel = nextLevel
	}

	if processed != len(r.defs) {
		return fmt.Errorf("failed to resolve all definitions, possible cycle")
	}
	return nil
}

// detectCycles runs depth-first search over the extends graph.
func (r *Registry) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, name := range r.Types() {
		if !visited[name] {
			if cycle := r.findCycle(name, visited, recStack, nil); cycle != nil {
				return fmt.Errorf("inheritance cycle detected: %s", strings.Join(cycle, " -> "))
			}
		}
	}
	return nil
}

func (r *Registry) findCycle(name string, visited, recStack map[string]bool, path []string) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, child := range r.children[name] {
		if !visited[child] {
			if cycle := r.findCycle(child, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[child] {
			for i, id := range path {
				if id == child {
					return append(path[i:], child)
				}
			}
		}
	}

	recStack[name] = false
	return nil
}

// isExternalRef reports whether an extends target points outside the
// registry, such as a schema URI.
func isExternalRef(ref string) bool {
	return strings.Contains(ref, "://")
}
