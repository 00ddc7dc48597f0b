// Package modelreg re-exports the registry surface most callers need, so
// applications can register and look up models without importing the
// subpackages directly.
package modelreg

import (
	"github.com/Konsultn-Engineering/modelreg/registry"
	"github.com/Konsultn-Engineering/modelreg/schema"
	"github.com/Konsultn-Engineering/modelreg/tenant"
	"github.com/Konsultn-Engineering/modelreg/view"
)

type Manager = registry.Manager
type Options = registry.Options
type Entry = registry.Entry
type OwnerKind = registry.OwnerKind
type Stats = registry.Stats
type CleanupStats = registry.CleanupStats
type View = view.View
type Properties = schema.Properties
type Settings = schema.Settings

const (
	OwnerKindConnection  = registry.OwnerKindConnection
	OwnerKindApplication = registry.OwnerKindApplication

	// GlobalTenant is the registry partition used when no tenant can be
	// resolved.
	GlobalTenant = tenant.GlobalCode
)

// New builds a registry manager. The zero Options value gives a
// single-tenant manager with default configuration.
func New(opts Options) *Manager {
	return registry.NewManager(opts)
}

// NewView returns a map-like view of the models owned by owner under kind.
func NewView(m *Manager, owner any, kind OwnerKind) *View {
	return view.New(m, owner, kind)
}

// StaticTenant returns a provider that always resolves to code. Useful for
// tests and single-tenant deployments that still want a named partition.
func StaticTenant(code string) tenant.ContextProvider {
	return tenant.Static(code)
}
