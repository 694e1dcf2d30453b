package query

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/entweave/entweave/pkg/definition"
)

// EnvContextVar is the environment variable consulted during identity
// resolution.
const EnvContextVar = "ENTWEAVE_CONTEXT"

// DefaultIdentity is the fixed fallback identity.
const DefaultIdentity = "local"

// Options configures a query context. Zero values fall through the identity
// resolution chain.
type Options struct {
	// Identity is an explicit override; it wins over everything.
	Identity string

	// Host is a request-derived host name.
	Host string

	// Static is the statically configured identity.
	Static string
}

// ResolveIdentity applies the resolution chain: override, host, environment,
// static config, fixed fallback. First non-empty match wins; the result is
// deterministic for a given environment.
func ResolveIdentity(opts Options) string {
	if opts.Identity != "" {
		return opts.Identity
	}
	if opts.Host != "" {
		return opts.Host
	}
	if env := os.Getenv(EnvContextVar); env != "" {
		return env
	}
	if opts.Static != "" {
		return opts.Static
	}
	return DefaultIdentity
}

// QueryContext is type-indexed read access over a shared instance graph. The
// backing store is a single in-process map; all operations are synchronous.
// A production binding replacing it with a remote store must keep per-process
// read-after-write consistency through this same interface.
type QueryContext struct {
	identity  string
	instances map[string]map[string]*definition.Instance
}

// New creates a query context with its identity resolved from opts.
func New(opts Options) *QueryContext {
	return &QueryContext{
		identity:  ResolveIdentity(opts),
		instances: map[string]map[string]*definition.Instance{},
	}
}

// Identity returns the resolved context identity.
func (q *QueryContext) Identity() string { return q.identity }

// Add places an instance into the graph, replacing any previous instance of
// the same type and id.
func (q *QueryContext) Add(inst *definition.Instance) {
	if inst == nil || inst.Type == "" || inst.ID == "" {
		return
	}
	byID, ok := q.instances[inst.Type]
	if !ok {
		byID = map[string]*definition.Instance{}
		q.instances[inst.Type] = byID
	}
	byID[inst.ID] = inst
}

// Remove drops an instance from the graph, reporting whether it was present.
func (q *QueryContext) Remove(typeName, id string) bool {
	byID, ok := q.instances[typeName]
	if !ok {
		return false
	}
	if _, ok := byID[id]; !ok {
		return false
	}
	delete(byID, id)
	return true
}

// Get resolves an id to an instance. An id of the form "Type/id" is
// absolute; a bare id is context-relative and scanned across every type.
// Absence is an error here, unlike the runtime's Get.
func (q *QueryContext) Get(id string) (*definition.Instance, error) {
	if typeName, rest, ok := strings.Cut(id, "/"); ok {
		if inst, ok := q.instances[typeName][rest]; ok {
			return inst, nil
		}
		return nil, fmt.Errorf("instance %q not found in context %q", id, q.identity)
	}
	for _, typeName := range q.typeNames() {
		if inst, ok := q.instances[typeName][id]; ok {
			return inst, nil
		}
	}
	return nil, fmt.Errorf("instance %q not found in context %q", id, q.identity)
}

// Query returns a lazy collection over every instance of the type, narrowed
// by an optional field-to-expected-value filter.
func (q *QueryContext) Query(typeName string, filter map[string]any) *Collection {
	c := &Collection{eval: func() []*definition.Instance {
		byID := q.instances[typeName]
		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		out := make([]*definition.Instance, 0, len(ids))
		for _, id := range ids {
			out = append(out, byID[id])
		}
		return out
	}}
	if filter != nil {
		c = c.Where(filter)
	}
	return c
}

// Lookup finds one instance of a type by key: an exact id match first, then
// a slug or suffix scan within that type.
func (q *QueryContext) Lookup(typeName, key string) (*definition.Instance, bool) {
	byID, ok := q.instances[typeName]
	if !ok {
		return nil, false
	}
	if inst, ok := byID[key]; ok {
		return inst, true
	}

	slug := slugify(key)
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if slugify(id) == slug || strings.HasSuffix(id, key) {
			return byID[id], true
		}
	}
	return nil, false
}

func (q *QueryContext) typeNames() []string {
	names := make([]string, 0, len(q.instances))
	for name := range q.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// slugify lowercases and collapses non-alphanumeric runs to single hyphens.
func slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
