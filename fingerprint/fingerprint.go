// Package fingerprint derives stable identity strings from nested property
// shapes. Two shapes that are structurally equal up to field ordering always
// produce the same fingerprint; shapes differing in any field name, type tag,
// or structural kind produce different fingerprints with overwhelming
// probability. Fingerprints are identity keys, not integrity checks; the
// hash is FNV-1a, cheap and non-cryptographic.
package fingerprint

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/modelreg/utils"
)

// Invalid is returned for nil or non-object input. No registered entry ever
// carries it and it never matches any lookup.
const Invalid = "invalid"

// Kind prefixes baked into every computed fingerprint.
const (
	prefixSimple  = "s:"
	prefixArray   = "a:"
	prefixComplex = "cx:"
	prefixUnique  = "uniq:"
)

// Engine computes fingerprints. Safe for concurrent use; the only state is
// the diagnostic logger.
type Engine struct {
	logger *zap.Logger
}

// New creates an engine. A nil logger disables diagnostics.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Fingerprint derives the identity string for an arbitrary shape description.
// Accepts schema.Properties (or map[string]any) for object shapes and slices
// for array shapes. Nil and non-object input yield Invalid. Cyclic structures
// abandon normalization and yield a unique fallback fingerprint: reuse is
// sacrificed for that one shape, the caller never sees an error.
func (e *Engine) Fingerprint(v any) string {
	norm, ok := normalize(v)
	if !ok {
		e.logger.Warn("cyclic shape detected, assigning unique fingerprint")
		return uniqueFingerprint()
	}
	if norm.kind == kindInvalid {
		return Invalid
	}

	hash := utils.Hex64(utils.U64(norm.form))
	switch norm.kind {
	case kindArray:
		return prefixArray + hash
	case kindComplex:
		return prefixComplex + hash + ":d" + strconv.Itoa(norm.depth)
	default:
		return prefixSimple + hash
	}
}

// uniqueFingerprint builds a fallback guaranteed not to collide with any
// computed fingerprint: timestamp plus random suffix under a reserved prefix.
func uniqueFingerprint() string {
	return prefixUnique + strconv.FormatInt(time.Now().UnixNano(), 10) + ":" + uuid.NewString()
}

// IsUnique reports whether fp is a fallback fingerprint from a failed
// normalization. Such fingerprints are registerable but never reusable.
func IsUnique(fp string) bool {
	return strings.HasPrefix(fp, prefixUnique)
}
