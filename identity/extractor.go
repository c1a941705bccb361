package identity

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Identifiable lets an entity hand over its identity without reflection.
// Extractors must honor it before falling back to struct inspection.
type Identifiable interface {
	EntityID() any
}

// Extractor resolves the identity of a persisted entity. Implementations are
// per persistence technology so the eviction protocol itself stays
// persistence-agnostic.
type Extractor interface {
	// ExtractID returns the entity's identity, or an error when none can be
	// resolved. Callers widen to a whole-class eviction on error; extraction
	// must never panic.
	ExtractID(entity any) (any, error)
}

// Errors returned by extraction.
var (
	ErrNilEntity  = errors.New("cannot extract identity from nil entity")
	ErrNoIdentity = errors.New("no identity field found")
)

// CompositeKey is the identity of an entity with more than one primary key
// column. Field order follows struct declaration order so the rendered key
// is stable.
type CompositeKey struct {
	Fields []KeyField
}

// KeyField is one column of a composite key.
type KeyField struct {
	Name  string
	Value any
}

// String renders the composite key as a stable cache key segment.
func (k CompositeKey) String() string {
	parts := make([]string, len(k.Fields))
	for i, f := range k.Fields {
		parts[i] = fmt.Sprintf("%s=%v", f.Name, f.Value)
	}
	return strings.Join(parts, "&")
}

// fallbackIDFields are checked in order when no pk-tagged column exists.
var fallbackIDFields = []string{"ID", "Id", "UUID", "Uuid"}

// ReflectExtractor resolves identities from bun-mapped structs: it unwraps
// pointer and interface nesting, honors Identifiable, scans `bun:",pk"` tags
// (collecting composite keys), walks embedded structs for inherited identity
// fields, and finally falls back to conventional ID field names.
type ReflectExtractor struct{}

// NewReflectExtractor creates the default extractor.
func NewReflectExtractor() *ReflectExtractor {
	return &ReflectExtractor{}
}

// ExtractID implements Extractor.
func (e *ReflectExtractor) ExtractID(entity any) (id any, err error) {
	// Reflection over caller-supplied types must never take the write down.
	defer func() {
		if r := recover(); r != nil {
			id = nil
			err = fmt.Errorf("identity extraction panicked: %v", r)
		}
	}()

	if entity == nil {
		return nil, ErrNilEntity
	}
	if ident, ok := entity.(Identifiable); ok {
		if v := ident.EntityID(); v != nil {
			return v, nil
		}
	}

	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, ErrNilEntity
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %s is not a struct", ErrNoIdentity, v.Kind())
	}

	var pks []KeyField
	collectPrimaryKeys(v, &pks)
	switch len(pks) {
	case 0:
		// No pk tags; fall through to conventional names.
	case 1:
		return pks[0].Value, nil
	default:
		return CompositeKey{Fields: pks}, nil
	}

	if id, ok := fallbackID(v); ok {
		return id, nil
	}
	return nil, ErrNoIdentity
}

// collectPrimaryKeys gathers pk-tagged fields, recursing into embedded
// structs so inherited identity fields are found.
func collectPrimaryKeys(v reflect.Value, out *[]KeyField) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		value := v.Field(i)

		if field.Anonymous {
			fv := value
			for fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					fv = reflect.Value{}
					break
				}
				fv = fv.Elem()
			}
			if fv.IsValid() && fv.Kind() == reflect.Struct {
				collectPrimaryKeys(fv, out)
			}
			continue
		}
		if !field.IsExported() {
			continue
		}
		if isPrimaryKeyTag(field.Tag.Get("bun")) && value.CanInterface() {
			name := columnName(field)
			*out = append(*out, KeyField{Name: name, Value: value.Interface()})
		}
	}
}

// isPrimaryKeyTag reports whether a bun struct tag marks the column as a
// primary key, e.g. `bun:"id,pk,autoincrement"` or `bun:",pk"`.
func isPrimaryKeyTag(tag string) bool {
	if tag == "" {
		return false
	}
	parts := strings.Split(tag, ",")
	for _, opt := range parts[1:] {
		if strings.TrimSpace(opt) == "pk" {
			return true
		}
	}
	return false
}

// columnName returns the column name from a bun tag, or the field name.
func columnName(field reflect.StructField) string {
	tag := field.Tag.Get("bun")
	if tag != "" {
		if name := strings.Split(tag, ",")[0]; name != "" {
			return name
		}
	}
	return field.Name
}

// fallbackID checks conventional identity field names, recursing into
// embedded structs.
func fallbackID(v reflect.Value) (any, bool) {
	for _, name := range fallbackIDFields {
		field := v.FieldByName(name)
		if field.IsValid() && field.CanInterface() && !field.IsZero() {
			return field.Interface(), true
		}
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if !t.Field(i).Anonymous {
			continue
		}
		fv := v.Field(i)
		for fv.Kind() == reflect.Pointer {
			if fv.IsNil() {
				fv = reflect.Value{}
				break
			}
			fv = fv.Elem()
		}
		if fv.IsValid() && fv.Kind() == reflect.Struct {
			if id, ok := fallbackID(fv); ok {
				return id, true
			}
		}
	}
	return nil, false
}
