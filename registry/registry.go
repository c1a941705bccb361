package registry

import (
	"errors"
	"reflect"
	"strings"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// Cacheable marks a domain type as participating in the eviction protocol
// with an explicit cache region name. Types that do not implement Cacheable
// can still be registered; their region defaults to the entity name.
type Cacheable interface {
	CacheRegion() string
}

// Entry is the immutable registration record for one cacheable entity.
type Entry struct {
	// Name is the fully-qualified entity name (package path + type name).
	Name string

	// Simple is the bare type name, used by bulk-statement parsing.
	Simple string

	// Region is the cache region holding the entity's second-level entries.
	Region string

	// QueryRegions names the query-cache regions whose results depend on
	// this entity.
	QueryRegions []string

	// Type is the registered Go type, used to resolve names back to types
	// at dispatch time.
	Type reflect.Type
}

// Errors returned by the registry.
var (
	ErrFrozen        = errors.New("registry is frozen")
	ErrNotStruct     = errors.New("registered sample must be a struct or pointer to struct")
	ErrDuplicateName = errors.New("entity name already registered")
)

// Registry maps cacheable entity types to their cache regions. It is built
// once at startup, frozen, and read concurrently afterwards. Reset returns
// it to the unbuilt state so independently created test contexts never leak
// entries into each other.
type Registry struct {
	entries *xsync.MapOf[string, Entry]
	simple  *xsync.MapOf[string, string]
	frozen  atomic.Bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		entries: xsync.NewMapOf[string, Entry](),
		simple:  xsync.NewMapOf[string, string](),
	}
}

// Option customizes one registration.
type Option func(*Entry)

// WithRegion overrides the entity's cache region.
func WithRegion(region string) Option {
	return func(e *Entry) { e.Region = region }
}

// WithQueryRegions declares the query-cache regions that depend on the
// entity.
func WithQueryRegions(regions ...string) Option {
	return func(e *Entry) { e.QueryRegions = append(e.QueryRegions, regions...) }
}

// Register records a sample entity value as cacheable. The entity name is
// derived from the sample's type; the region defaults to that name unless
// the sample implements Cacheable or WithRegion is given.
func (r *Registry) Register(sample any, opts ...Option) (Entry, error) {
	if r.frozen.Load() {
		return Entry{}, ErrFrozen
	}

	t := reflect.TypeOf(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		return Entry{}, ErrNotStruct
	}

	entry := Entry{
		Name:   entityName(t),
		Simple: t.Name(),
		Type:   t,
	}
	entry.Region = entry.Name
	if c, ok := sample.(Cacheable); ok {
		if region := c.CacheRegion(); region != "" {
			entry.Region = region
		}
	}
	for _, opt := range opts {
		opt(&entry)
	}

	if _, loaded := r.entries.LoadOrStore(entry.Name, entry); loaded {
		return Entry{}, ErrDuplicateName
	}
	r.simple.Store(strings.ToLower(entry.Simple), entry.Name)
	return entry, nil
}

// Freeze marks the registry as built. Further registrations fail.
func (r *Registry) Freeze() {
	r.frozen.Store(true)
}

// Reset discards every registration and unfreezes the registry.
func (r *Registry) Reset() {
	r.entries.Clear()
	r.simple.Clear()
	r.frozen.Store(false)
}

// Lookup resolves a fully-qualified entity name.
func (r *Registry) Lookup(name string) (Entry, bool) {
	return r.entries.Load(name)
}

// LookupSimple resolves a bare type name case-insensitively. Bulk-statement
// parsing extracts simple names from JPQL-style statements.
func (r *Registry) LookupSimple(simpleName string) (Entry, bool) {
	full, ok := r.simple.Load(strings.ToLower(simpleName))
	if !ok {
		return Entry{}, false
	}
	return r.entries.Load(full)
}

// LookupType resolves the registration for a Go type.
func (r *Registry) LookupType(sample any) (Entry, bool) {
	t := reflect.TypeOf(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return Entry{}, false
	}
	return r.entries.Load(entityName(t))
}

// RegionFor returns the cache region for an entity name, falling back to the
// name itself for unregistered entities so remote events can still be
// applied.
func (r *Registry) RegionFor(name string) string {
	if entry, ok := r.entries.Load(name); ok {
		return entry.Region
	}
	return name
}

// QueryRegionsFor returns the query-cache regions that depend on an entity.
// Unregistered entities have none.
func (r *Registry) QueryRegionsFor(name string) []string {
	entry, ok := r.entries.Load(name)
	if !ok {
		return nil
	}
	out := make([]string, len(entry.QueryRegions))
	copy(out, entry.QueryRegions)
	return out
}

// Len returns the number of registered entities.
func (r *Registry) Len() int {
	return r.entries.Size()
}

// Range visits every registration.
func (r *Registry) Range(fn func(Entry) bool) {
	r.entries.Range(func(_ string, entry Entry) bool {
		return fn(entry)
	})
}

// entityName builds the fully-qualified name for a struct type.
func entityName(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
