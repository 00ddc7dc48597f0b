// Package tenant defines the boundary to the ambient tenant-context
// mechanism. The registry never implements tenant propagation itself; it
// consumes a provider injected at construction and treats every provider
// failure, error or panic alike, as "no tenant resolved".
package tenant

import (
	"context"
	"strings"
)

// GlobalCode names the shared fallback registry used by callers with no
// resolvable tenant.
const GlobalCode = "global"

// ContextProvider resolves the tenant code active for the calling request.
// Implementations are untrusted: they may be slow, return errors, or panic.
// Callers must never invoke one while holding a lock.
type ContextProvider interface {
	CurrentTenant() (string, error)
}

// ProviderFunc adapts a plain function to ContextProvider.
type ProviderFunc func() (string, error)

func (f ProviderFunc) CurrentTenant() (string, error) {
	return f()
}

// Static returns a provider pinned to a single tenant code.
func Static(code string) ContextProvider {
	return ProviderFunc(func() (string, error) {
		return code, nil
	})
}

// Resolve extracts a tenant code from p. A nil provider, an error, a panic,
// or an invalid code all yield ok=false; a tenant code is returned only when
// it names a real tenant.
func Resolve(p ContextProvider) (code string, ok bool) {
	if p == nil {
		return "", false
	}

	defer func() {
		if recover() != nil {
			code, ok = "", false
		}
	}()

	c, err := p.CurrentTenant()
	if err != nil {
		return "", false
	}
	if !IsValidCode(c) {
		return "", false
	}
	return c, true
}

// IsValidCode reports whether code names a real tenant. Empty strings, the
// global code, and the sentinel spellings misconfigured callers emit are all
// rejected; rejected codes route to the global registry instead of creating
// a tenant registry per bad value.
func IsValidCode(code string) bool {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return false
	}
	switch strings.ToLower(trimmed) {
	case "null", "undefined", "nil", GlobalCode:
		return false
	}
	return true
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying the tenant code. Pair with a
// ProviderFunc that captures the request context to bridge context-scoped
// tenancy into the registry.
func NewContext(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, ctxKey{}, code)
}

// FromContext extracts the tenant code stored by NewContext.
func FromContext(ctx context.Context) (string, bool) {
	code, ok := ctx.Value(ctxKey{}).(string)
	return code, ok
}
