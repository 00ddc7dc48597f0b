// Package view presents one owner's slice of the registry as an ordinary
// associative container. A View holds no storage of its own: every
// operation delegates to the registry manager and reads are served by the
// owner query cache.
package view

import (
	"github.com/Konsultn-Engineering/modelreg/registry"
	"github.com/Konsultn-Engineering/modelreg/schema"
)

// View is a read/write facade over the models bound to a single owner.
type View struct {
	m     *registry.Manager
	owner any
	kind  registry.OwnerKind
}

// New builds a view over owner's models of the given kind. Unlike every
// other registry surface, construction fails fast: a nil manager, an
// unusable owner, or an unknown kind is a programmer error, not input to
// tolerate.
func New(m *registry.Manager, owner any, kind registry.OwnerKind) *View {
	if m == nil {
		panic("view: nil manager")
	}
	if !registry.ValidOwner(owner) {
		panic("view: owner must be a non-nil pointer")
	}
	if !kind.Valid() {
		panic("view: unknown owner kind")
	}
	return &View{m: m, owner: owner, kind: kind}
}

// Get returns the owner's model named name, or nil.
func (v *View) Get(name string) *registry.Entry {
	return v.m.ModelForOwner(v.owner, name, v.kind)
}

// Set registers a model definition and binds it to the view's owner,
// returning the entry the registry resolved it to. Structural reuse and
// overwrite semantics match the manager's.
func (v *View) Set(name string, props schema.Properties, settings schema.Settings) *registry.Entry {
	return v.m.RegisterFor(v.owner, v.kind, name, props, settings)
}

// Adopt binds an entry registered elsewhere to the view's owner so it shows
// up in this view from now on.
func (v *View) Adopt(e *registry.Entry) {
	v.m.Bind(v.owner, v.kind, e)
}

// Has reports whether the owner has a model named name.
func (v *View) Has(name string) bool {
	return v.m.HasModelForOwner(v.owner, name, v.kind)
}

// Keys lists the owner's model names in sorted order.
func (v *View) Keys() []string {
	entries := v.m.ModelsForOwner(v.owner, v.kind)
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Name)
	}
	return keys
}

// Entries lists the owner's models, name sorted.
func (v *View) Entries() []*registry.Entry {
	return v.m.ModelsForOwner(v.owner, v.kind)
}

// Len reports the number of models bound to the owner.
func (v *View) Len() int {
	return len(v.m.ModelsForOwner(v.owner, v.kind))
}

// Range calls fn for each of the owner's models in name order until fn
// returns false.
func (v *View) Range(fn func(name string, e *registry.Entry) bool) {
	for _, e := range v.m.ModelsForOwner(v.owner, v.kind) {
		if !fn(e.Name, e) {
			return
		}
	}
}
