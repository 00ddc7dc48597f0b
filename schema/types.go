package schema

// Properties describes the named fields of a model shape. Each value is one
// of: a Type tag, a free-form string tag, a reflect.Type, a Go value used as
// a type exemplar, a nested Properties (or map[string]any), or a slice whose
// element describes an array field. Shapes arrive from callers as-is; nothing
// here validates them. Malformed input degrades at fingerprint time, it
// never errors.
type Properties map[string]any

// Type is a canonical primitive type tag.
type Type string

const (
	String Type = "string"
	Int    Type = "int"
	Uint   Type = "uint"
	Float  Type = "float"
	Bool   Type = "bool"
	Time   Type = "time"
	Bytes  Type = "bytes"
	JSON   Type = "json"
	Any    Type = "any"
)

// Settings carry the embedding policy a model was defined under. Two entries
// with identical shapes but different settings are never interchangeable.
type Settings struct {
	// Strict rejects undeclared properties on instances of the model.
	Strict bool

	// ParentRef links embedded instances back to their parent document.
	ParentRef bool

	// Extra holds policy knobs the registry itself does not interpret.
	Extra map[string]any
}

// AsProperties reports whether v describes a nested shape and returns it.
func AsProperties(v any) (Properties, bool) {
	switch p := v.(type) {
	case Properties:
		return p, true
	case map[string]any:
		return Properties(p), true
	default:
		return nil, false
	}
}
