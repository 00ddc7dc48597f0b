package fingerprint

import (
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/Konsultn-Engineering/modelreg/schema"
)

type structKind uint8

const (
	kindInvalid structKind = iota
	kindSimple
	kindArray
	kindComplex
)

// normalForm is the deterministic serialization of a shape before hashing.
type normalForm struct {
	form  string
	kind  structKind
	depth int
}

// normalize builds the normal form for v. ok=false signals a cycle; the
// partially built form must then be discarded.
func normalize(v any) (normalForm, bool) {
	if v == nil {
		return normalForm{kind: kindInvalid}, true
	}

	nz := &normalizer{visited: make(map[uintptr]struct{})}

	if props, ok := schema.AsProperties(v); ok {
		if props == nil {
			return normalForm{kind: kindInvalid}, true
		}
		form, depth, simple, cyclic := nz.object(props)
		if cyclic {
			return normalForm{}, false
		}
		if simple {
			return normalForm{form: form, kind: kindSimple, depth: depth}, true
		}
		// Complex shapes additionally fold nesting depth and the sorted
		// top-level field list into the hashed representation.
		var b strings.Builder
		b.Grow(len(form) + 32)
		b.WriteString("d")
		b.WriteString(strconv.Itoa(depth))
		b.WriteString(";f[")
		b.WriteString(strings.Join(sortedKeys(props), ","))
		b.WriteString("];")
		b.WriteString(form)
		return normalForm{form: b.String(), kind: kindComplex, depth: depth}, true
	}

	if lv, ok := listValue(v); ok {
		form, depth, cyclic := nz.list(lv)
		if cyclic {
			return normalForm{}, false
		}
		return normalForm{form: form, kind: kindArray, depth: depth}, true
	}

	return normalForm{kind: kindInvalid}, true
}

// normalizer tracks the traversal path so genuine cycles are caught while
// shared (diamond) substructures normalize cleanly.
type normalizer struct {
	visited map[uintptr]struct{}
}

func (nz *normalizer) object(p schema.Properties) (form string, depth int, simple bool, cyclic bool) {
	ptr := reflect.ValueOf(p).Pointer()
	if _, seen := nz.visited[ptr]; seen {
		return "", 0, false, true
	}
	nz.visited[ptr] = struct{}{}
	defer delete(nz.visited, ptr)

	keys := sortedKeys(p)
	parts := make([]string, 0, len(keys))
	simple = true
	maxChild := 0

	for _, k := range keys {
		cform, cdepth, primitive, cyc := nz.value(p[k])
		if cyc {
			return "", 0, false, true
		}
		if !primitive {
			simple = false
		}
		if cdepth > maxChild {
			maxChild = cdepth
		}
		parts = append(parts, k+"="+cform)
	}

	var b strings.Builder
	b.Grow(2 + len(keys)*16)
	b.WriteString("{")
	b.WriteString(strings.Join(parts, ","))
	b.WriteString("}")
	return b.String(), maxChild + 1, simple, false
}

func (nz *normalizer) value(v any) (form string, depth int, primitive bool, cyclic bool) {
	// []byte is a primitive leaf, never an array shape.
	if _, isBytes := v.([]byte); isBytes {
		return schema.CanonicalType(v), 0, true, false
	}

	if props, ok := schema.AsProperties(v); ok {
		if props == nil {
			return string(schema.JSON), 0, true, false
		}
		form, d, _, cyc := nz.object(props)
		return form, d, false, cyc
	}

	if lv, ok := listValue(v); ok {
		form, d, cyc := nz.list(lv)
		return form, d, false, cyc
	}

	return schema.CanonicalType(v), 0, true, false
}

// list normalizes an array shape from its first element; an empty list is an
// array of the element type when that is known, otherwise of any.
func (nz *normalizer) list(lv reflect.Value) (form string, depth int, cyclic bool) {
	if lv.Kind() == reflect.Slice && !lv.IsNil() {
		ptr := lv.Pointer()
		if _, seen := nz.visited[ptr]; seen {
			return "", 0, true
		}
		nz.visited[ptr] = struct{}{}
		defer delete(nz.visited, ptr)
	}

	var elemForm string
	if lv.Len() > 0 {
		ef, ed, _, cyc := nz.value(lv.Index(0).Interface())
		if cyc {
			return "", 0, true
		}
		elemForm, depth = ef, ed
	} else if lv.Type().Elem().Kind() == reflect.Interface {
		elemForm = string(schema.Any)
	} else {
		elemForm = schema.CanonicalType(lv.Type().Elem())
	}

	return "[" + elemForm + "]", depth, false
}

func listValue(v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv, true
	default:
		return reflect.Value{}, false
	}
}

func sortedKeys(p schema.Properties) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
