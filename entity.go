package revisionable

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// Entity is the narrow view of a host model the recorder depends on.
type Entity interface {
	// RevisionKey returns the primary key, or nil if it is not known yet.
	RevisionKey() any
	// Original returns the last persisted state.
	Original() *Snapshot
	// Attributes returns the pending in-memory state.
	Attributes() *Snapshot
	// Exists reports whether the entity was persisted before the current save.
	Exists() bool
}

// MorphTyper provides a custom type tag for an entity.
type MorphTyper interface {
	MorphType() string
}

// DirtyTracker reports the fields the host considers changed.
type DirtyTracker interface {
	DirtyKeys() []string
}

// SoftDeleter is implemented by entities that can be deleted by timestamp.
type SoftDeleter interface {
	// SoftDeleting reports whether the current delete sets the timestamp
	// instead of removing the row.
	SoftDeleting() bool
}

// Configurer lets an entity declare its own revision options.
type Configurer interface {
	RevisionOptions() Options
}

// MorphType returns the type tag stored with revisions of e. Without a
// MorphTyper it is the singular snake_case name of the entity's type.
func MorphType(e any) string {
	if e == nil {
		return ""
	}
	if mt, ok := e.(MorphTyper); ok {
		if name := strings.TrimSpace(mt.MorphType()); name != "" {
			return name
		}
	}
	typ := reflect.TypeOf(e)
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Name() == "" {
		return typ.String()
	}
	return inflection.Singular(toSnakeCase(typ.Name()))
}

// entityID picks the identifier of e: its key, then the "id" attribute,
// then "<type>_id".
func entityID(e Entity, morphType string) string {
	if id := unwrap(e.RevisionKey()); id != nil {
		return formatScalar(id)
	}
	attrs := e.Attributes()
	if v := unwrap(attrs.Value("id")); v != nil {
		return formatScalar(v)
	}
	singular := inflection.Singular(toSnakeCase(morphType))
	if v := unwrap(attrs.Value(fmt.Sprintf("%s_id", singular))); v != nil {
		return formatScalar(v)
	}
	return ""
}

func toSnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
