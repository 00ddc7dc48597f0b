package view

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/modelreg/registry"
	"github.com/Konsultn-Engineering/modelreg/schema"
	"github.com/Konsultn-Engineering/modelreg/tenant"
)

type conn struct{ name string }

func newTestView(t *testing.T) (*registry.Manager, *conn, *View) {
	t.Helper()
	m := registry.NewManager(registry.Options{Provider: tenant.Static("acme")})
	owner := &conn{name: "primary"}
	return m, owner, New(m, owner, registry.OwnerKindConnection)
}

// ============================================================================
// CONSTRUCTION
// ============================================================================

func TestNewPanicsOnContractViolations(t *testing.T) {
	m := registry.NewManager(registry.Options{})
	owner := &conn{}

	assert.Panics(t, func() { New(nil, owner, registry.OwnerKindConnection) })
	assert.Panics(t, func() { New(m, nil, registry.OwnerKindConnection) })
	assert.Panics(t, func() { New(m, conn{}, registry.OwnerKindConnection) })
	assert.Panics(t, func() { New(m, owner, registry.OwnerKind(0)) })
	assert.NotPanics(t, func() { New(m, owner, registry.OwnerKindApplication) })
}

// ============================================================================
// MAP SEMANTICS
// ============================================================================

func TestViewSetGetHas(t *testing.T) {
	_, _, v := newTestView(t)

	e := v.Set("User", schema.Properties{"name": "string"}, schema.Settings{})
	require.NotNil(t, e)
	assert.Equal(t, "User", e.Name)

	assert.Same(t, e, v.Get("User"))
	assert.True(t, v.Has("User"))
	assert.False(t, v.Has("Ghost"))
	assert.Nil(t, v.Get("Ghost"))
}

func TestViewKeysSorted(t *testing.T) {
	_, _, v := newTestView(t)

	v.Set("Zebra", schema.Properties{"z": "string"}, schema.Settings{})
	v.Set("Apple", schema.Properties{"a": "string"}, schema.Settings{})
	v.Set("Mango", schema.Properties{"m": "string"}, schema.Settings{})

	assert.Equal(t, []string{"Apple", "Mango", "Zebra"}, v.Keys())
	assert.Equal(t, 3, v.Len())
}

func TestViewRange(t *testing.T) {
	_, _, v := newTestView(t)
	v.Set("A", schema.Properties{"a": "string"}, schema.Settings{})
	v.Set("B", schema.Properties{"b": "string"}, schema.Settings{})
	v.Set("C", schema.Properties{"c": "string"}, schema.Settings{})

	var seen []string
	v.Range(func(name string, e *registry.Entry) bool {
		seen = append(seen, name)
		return true
	})
	assert.Equal(t, []string{"A", "B", "C"}, seen)

	// Early stop
	seen = nil
	v.Range(func(name string, e *registry.Entry) bool {
		seen = append(seen, name)
		return len(seen) < 2
	})
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestViewIsFacadeNotStorage(t *testing.T) {
	m, owner, v := newTestView(t)

	// A registration through the manager with the same owner shows up in
	// the view
	m.RegisterFor(owner, registry.OwnerKindConnection, "Direct",
		schema.Properties{"d": "string"}, schema.Settings{})
	assert.True(t, v.Has("Direct"))

	// And cleanup through the manager empties the view
	m.CleanupTenant("acme")
	assert.Equal(t, 0, v.Len())
	assert.False(t, v.Has("Direct"))
}

func TestViewAdopt(t *testing.T) {
	m, _, v := newTestView(t)

	// Entry registered with no owner at all
	e := m.Register("Orphan", schema.Properties{"o": "string"}, schema.Settings{})
	require.NotNil(t, e)
	assert.False(t, v.Has("Orphan"))

	v.Adopt(e)
	assert.True(t, v.Has("Orphan"))
	assert.Same(t, e, v.Get("Orphan"))
}

func TestViewsIsolatedByOwnerAndKind(t *testing.T) {
	m := registry.NewManager(registry.Options{Provider: tenant.Static("acme")})
	c1 := &conn{name: "one"}
	c2 := &conn{name: "two"}

	v1 := New(m, c1, registry.OwnerKindConnection)
	v2 := New(m, c2, registry.OwnerKindConnection)
	vApp := New(m, c1, registry.OwnerKindApplication)

	v1.Set("Mine", schema.Properties{"a": "string"}, schema.Settings{})

	assert.True(t, v1.Has("Mine"))
	assert.False(t, v2.Has("Mine"))
	assert.False(t, vApp.Has("Mine"))
}

func TestViewSharesDeduplicatedEntries(t *testing.T) {
	m := registry.NewManager(registry.Options{Provider: tenant.Static("acme")})
	v1 := New(m, &conn{name: "one"}, registry.OwnerKindConnection)
	v2 := New(m, &conn{name: "two"}, registry.OwnerKindConnection)

	props := schema.Properties{"name": "string"}
	e1 := v1.Set("User", props, schema.Settings{})
	e2 := v2.Set("User", props, schema.Settings{})

	// One centrally stored entry, visible through both views
	assert.Same(t, e1, e2)
	assert.True(t, v1.Has("User"))
	assert.True(t, v2.Has("User"))
	assert.Equal(t, 1, m.Stats().TotalModels)
	assert.Equal(t, uint64(1), m.Stats().ReuseCount)
}
