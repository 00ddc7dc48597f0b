package schema

import (
	"reflect"
	"strings"
	"time"
)

// Pre-initialize reflect.Type values to avoid repeated allocations.
var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	bytesType    = reflect.TypeOf([]byte{})
)

// tagAliases maps the spellings callers actually use (SQL-ish, JS-ish, Go-ish)
// onto the canonical tag set. Lookup is case-insensitive.
var tagAliases = map[string]Type{
	"char": String, "varchar": String, "text": String, "str": String,

	"integer": Int, "int8": Int, "int16": Int, "int32": Int, "int64": Int,
	"bigint": Int, "smallint": Int, "tinyint": Int,

	"uint8": Uint, "uint16": Uint, "uint32": Uint, "uint64": Uint,

	"number": Float, "float32": Float, "float64": Float, "double": Float,
	"decimal": Float, "real": Float, "numeric": Float,

	"boolean": Bool, "bit": Bool,

	"date": Time, "datetime": Time, "timestamp": Time, "timestamptz": Time,

	"blob": Bytes, "binary": Bytes, "bytea": Bytes,

	"object": JSON, "jsonb": JSON, "map": JSON,

	"interface": Any, "interface {}": Any,
}

// CanonicalType renders a property's type descriptor as its canonical string
// name. Accepts Type tags, free-form strings, reflect.Type values, and Go
// values used as exemplars. Unknown descriptors fall back to their Go type
// string so distinct types never collapse onto one tag.
func CanonicalType(v any) string {
	switch t := v.(type) {
	case nil:
		return string(Any)
	case Type:
		return string(t)
	case string:
		return canonicalTag(t)
	case reflect.Type:
		return canonicalReflect(t)
	default:
		return canonicalReflect(reflect.TypeOf(v))
	}
}

func canonicalTag(s string) string {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return string(Any)
	}
	if alias, ok := tagAliases[lower]; ok {
		return string(alias)
	}
	switch Type(lower) {
	case String, Int, Uint, Float, Bool, Time, Bytes, JSON, Any:
		return lower
	}
	return lower
}

func canonicalReflect(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch t {
	case timeType:
		return string(Time)
	case durationType:
		return string(Int)
	case bytesType:
		return string(Bytes)
	}
	switch t.Kind() {
	case reflect.String:
		return string(String)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return string(Int)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return string(Uint)
	case reflect.Float32, reflect.Float64:
		return string(Float)
	case reflect.Bool:
		return string(Bool)
	case reflect.Map:
		return string(JSON)
	case reflect.Interface:
		return string(Any)
	default:
		return t.String()
	}
}
