package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Konsultn-Engineering/modelreg/config"
	"github.com/Konsultn-Engineering/modelreg/metrics"
	"github.com/Konsultn-Engineering/modelreg/schema"
	"github.com/Konsultn-Engineering/modelreg/tenant"
)

// switchableProvider lets a test change the active tenant between calls.
type switchableProvider struct {
	mu   sync.Mutex
	code string
	err  error
}

func (p *switchableProvider) CurrentTenant() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.code, p.err
}

func (p *switchableProvider) set(code string) {
	p.mu.Lock()
	p.code = code
	p.mu.Unlock()
}

func userProps() schema.Properties {
	return schema.Properties{"name": "string", "age": "number"}
}

// ============================================================================
// REGISTRATION AND STRUCTURAL REUSE
// ============================================================================

func TestManagerRegisterAndFindByName(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	e := m.Register("User", userProps(), schema.Settings{Strict: true})
	require.NotNil(t, e)
	assert.Equal(t, "User", e.Name)
	assert.Equal(t, "users", e.TableName)
	assert.Equal(t, "acme", e.Tenant)
	assert.False(t, e.Anonymous)

	assert.Same(t, e, m.FindByName("User"))
	assert.Nil(t, m.FindByName("Ghost"))
}

func TestManagerReuseCorrectness(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	e := m.Register("User", userProps(), schema.Settings{Strict: true})
	require.NotNil(t, e)

	// Identical structure with a matching compatibility context resolves to
	// the same entry
	yes := true
	found := m.FindByStructure(userProps(), &CompatContext{Strict: &yes})
	assert.Same(t, e, found)

	// A mismatched compatibility context treats the match as absent
	no := false
	assert.Nil(t, m.FindByStructure(userProps(), &CompatContext{Strict: &no}))

	// Unconstrained context matches on fingerprint alone
	assert.Same(t, e, m.FindByStructure(userProps(), nil))

	// Reuse can be forced off per lookup
	assert.Nil(t, m.FindByStructure(userProps(), &CompatContext{DisableReuse: true}))
}

func TestManagerFindByStructureNormalizesSpellings(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	m.Register("User", schema.Properties{"name": "varchar", "age": "number"}, schema.Settings{})

	// Equivalent type spellings fingerprint identically
	found := m.FindByStructure(schema.Properties{"age": "float", "name": "string"}, nil)
	require.NotNil(t, found)
	assert.Equal(t, "User", found.Name)
}

func TestManagerRegisterSameNameSameStructureReuses(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	e1 := m.Register("User", userProps(), schema.Settings{})
	e2 := m.Register("User", userProps(), schema.Settings{})

	assert.Same(t, e1, e2)
	assert.Equal(t, uint64(1), m.Stats().ReuseCount)
	assert.Equal(t, 1, m.Stats().TotalModels)
}

func TestManagerOverwriteByName(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	v1 := m.Register("User", schema.Properties{"name": "string"}, schema.Settings{})
	v2 := m.Register("User", userProps(), schema.Settings{})
	require.NotNil(t, v2)
	assert.NotSame(t, v1, v2)

	assert.Same(t, v2, m.FindByName("User"))
	assert.Nil(t, m.FindByStructure(schema.Properties{"name": "string"}, nil))
	assert.Equal(t, 1, m.Stats().TotalModels)
}

func TestManagerRegisterInvalidInputIsNoop(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	assert.Nil(t, m.Register("", userProps(), schema.Settings{}))
	assert.Nil(t, m.Register("User", nil, schema.Settings{}))
	assert.Nil(t, m.FindByStructure(nil, nil))
	assert.Nil(t, m.FindByName(""))
	assert.Equal(t, 0, m.Stats().TotalModels)
}

// ============================================================================
// ANONYMOUS DEFINITIONS
// ============================================================================

func TestManagerDefineAnonymousDeduplicates(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	nested := schema.Properties{"street": "string", "city": "string"}
	e1 := m.DefineAnonymous(nested, schema.Settings{})
	require.NotNil(t, e1)
	assert.Equal(t, "AnonymousModel_1", e1.Name)
	assert.True(t, e1.Anonymous)

	// Same shape from another call site resolves to the shared entry
	e2 := m.DefineAnonymous(schema.Properties{"city": "string", "street": "string"}, schema.Settings{})
	assert.Same(t, e1, e2)

	// A different shape mints the next name
	e3 := m.DefineAnonymous(schema.Properties{"lat": "float", "lng": "float"}, schema.Settings{})
	require.NotNil(t, e3)
	assert.Equal(t, "AnonymousModel_2", e3.Name)

	s := m.Stats()
	assert.Equal(t, 2, s.TotalModels)
	assert.Equal(t, uint64(1), s.ReuseCount)
}

func TestManagerDefineAnonymousSettingsMismatchSplits(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	nested := schema.Properties{"street": "string"}
	e1 := m.DefineAnonymous(nested, schema.Settings{Strict: true})
	e2 := m.DefineAnonymous(nested, schema.Settings{Strict: false})

	require.NotNil(t, e1)
	require.NotNil(t, e2)
	assert.NotSame(t, e1, e2)
	assert.Equal(t, 0, int(m.Stats().ReuseCount))
}

func TestManagerIsolationPolicyDisablesReuse(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme"), Policy: IsolationPolicy{}})

	nested := schema.Properties{"street": "string"}
	e1 := m.DefineAnonymous(nested, schema.Settings{})
	e2 := m.DefineAnonymous(nested, schema.Settings{})

	assert.NotSame(t, e1, e2)
	assert.Equal(t, "AnonymousModel_1", e1.Name)
	assert.Equal(t, "AnonymousModel_2", e2.Name)
}

func TestManagerAnonymousPrefixConfigurable(t *testing.T) {
	cfg := config.Default()
	cfg.Registry.AnonymousPrefix = "Synth_"
	m := NewManager(Options{Config: cfg, Provider: tenant.Static("acme")})

	e := m.DefineAnonymous(schema.Properties{"street": "string"}, schema.Settings{})
	require.NotNil(t, e)
	assert.Equal(t, "Synth_1", e.Name)
}

// ============================================================================
// TENANT ISOLATION AND ROUTING
// ============================================================================

func TestManagerTenantIsolation(t *testing.T) {
	p := &switchableProvider{code: "t1"}
	m := NewManager(Options{Provider: p})

	e1 := m.Register("User", userProps(), schema.Settings{})
	require.NotNil(t, e1)

	p.set("t2")
	e2 := m.Register("User", userProps(), schema.Settings{})
	require.NotNil(t, e2)

	// Identical schema in two tenants yields distinct objects
	assert.NotSame(t, e1, e2)
	assert.Equal(t, "t1", e1.Tenant)
	assert.Equal(t, "t2", e2.Tenant)

	// Lookups are scoped to the active tenant
	assert.Same(t, e2, m.FindByName("User"))
	assert.Same(t, e2, m.FindByStructure(userProps(), nil))

	p.set("t1")
	assert.Same(t, e1, m.FindByName("User"))
	assert.Same(t, e1, m.FindByStructure(userProps(), nil))

	s := m.Stats()
	assert.Equal(t, 2, s.TenantRegistries)
	assert.Equal(t, 2, s.TotalTenantModels)
	assert.Equal(t, 2, s.TotalModels)
}

func TestManagerProviderFailureRoutesToGlobal(t *testing.T) {
	tests := []struct {
		name     string
		provider tenant.ContextProvider
	}{
		{"nil provider", nil},
		{"provider error", &switchableProvider{err: errors.New("session missing")}},
		{"provider panic", tenant.ProviderFunc(func() (string, error) { panic("boom") })},
		{"empty code", tenant.Static("")},
		{"null sentinel", tenant.Static("null")},
		{"undefined sentinel", tenant.Static("undefined")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(Options{Provider: tt.provider})

			e := m.Register("User", userProps(), schema.Settings{})
			require.NotNil(t, e)
			assert.Equal(t, tenant.GlobalCode, e.Tenant)

			s := m.Stats()
			assert.Equal(t, 0, s.TenantRegistries)
			assert.Equal(t, 0, s.TotalTenantModels)
			assert.Equal(t, 1, s.TotalModels)
		})
	}
}

func TestManagerGlobalAliasRoutesToGlobal(t *testing.T) {
	cfg := config.Default()
	cfg.Registry.GlobalAliases = []string{"default", "Public"}
	m := NewManager(Options{Config: cfg, Provider: tenant.Static("default")})

	e := m.Register("User", userProps(), schema.Settings{})
	require.NotNil(t, e)
	assert.Equal(t, tenant.GlobalCode, e.Tenant)
	assert.Equal(t, 0, m.Stats().TenantRegistries)
}

// ============================================================================
// OWNER QUERIES AND THE QUERY CACHE
// ============================================================================

func TestManagerModelsForOwner(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &fakeOwner{}

	m.RegisterFor(owner, OwnerKindConnection, "Post", schema.Properties{"title": "string"}, schema.Settings{})
	m.RegisterFor(owner, OwnerKindConnection, "Comment", schema.Properties{"body": "string"}, schema.Settings{})

	models := m.ModelsForOwner(owner, OwnerKindConnection)
	require.Len(t, models, 2)
	assert.Equal(t, "Comment", models[0].Name)
	assert.Equal(t, "Post", models[1].Name)

	assert.True(t, m.HasModelForOwner(owner, "Post", OwnerKindConnection))
	assert.False(t, m.HasModelForOwner(owner, "Ghost", OwnerKindConnection))

	e := m.ModelForOwner(owner, "Comment", OwnerKindConnection)
	require.NotNil(t, e)
	assert.Equal(t, "Comment", e.Name)
}

func TestManagerOwnerKindIsolation(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	conn := &fakeOwner{id: 1}
	app := &fakeOwner{id: 2}

	m.RegisterFor(conn, OwnerKindConnection, "ConnModel", schema.Properties{"a": "string"}, schema.Settings{})
	m.RegisterFor(app, OwnerKindApplication, "AppModel", schema.Properties{"b": "string"}, schema.Settings{})

	// A connection-bound model is invisible to application-kind queries,
	// for the other owner and for its own
	assert.Empty(t, m.ModelsForOwner(app, OwnerKindConnection))
	assert.Empty(t, m.ModelsForOwner(conn, OwnerKindApplication))
	assert.Len(t, m.ModelsForOwner(conn, OwnerKindConnection), 1)
	assert.Len(t, m.ModelsForOwner(app, OwnerKindApplication), 1)
}

func TestManagerOwnerQueryCacheHitsAndMisses(t *testing.T) {
	reg := prometheus.NewRegistry()
	mx := metrics.NewMetrics(reg)
	m := NewManager(Options{Provider: tenant.Static("acme"), Metrics: mx})
	owner := &fakeOwner{}

	m.RegisterFor(owner, OwnerKindConnection, "User", userProps(), schema.Settings{})

	l1 := m.ModelsForOwner(owner, OwnerKindConnection)
	l2 := m.ModelsForOwner(owner, OwnerKindConnection)
	require.Len(t, l1, 1)
	assert.Same(t, l1[0], l2[0])
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.OwnerCacheMissesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.OwnerCacheHitsTotal))

	// A new binding advances the epoch, forcing one recompute
	m.RegisterFor(owner, OwnerKindConnection, "Post", schema.Properties{"title": "string"}, schema.Settings{})
	l3 := m.ModelsForOwner(owner, OwnerKindConnection)
	assert.Len(t, l3, 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(mx.OwnerCacheMissesTotal))
}

func TestManagerCacheInvalidationOnClear(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &fakeOwner{}

	for i := 0; i < 3; i++ {
		m.RegisterFor(owner, OwnerKindConnection, fmt.Sprintf("Model%d", i),
			schema.Properties{fmt.Sprintf("field%d", i): "string"}, schema.Settings{})
	}

	l1 := m.ModelsForOwner(owner, OwnerKindConnection)
	require.Len(t, l1, 3)

	m.Clear()

	l2 := m.ModelsForOwner(owner, OwnerKindConnection)
	assert.Empty(t, l2)
	// The stale result was not mutated in place
	assert.Len(t, l1, 3)
}

func TestManagerModelsForOwnerInvalidOwner(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	assert.Empty(t, m.ModelsForOwner(nil, OwnerKindConnection))
	assert.Empty(t, m.ModelsForOwner("not a pointer", OwnerKindConnection))
	assert.Empty(t, m.ModelsForOwner(&fakeOwner{}, OwnerKind(9)))
}

func TestManagerRegisterForNonPointerOwnerStillRegisters(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	e := m.RegisterFor("not a pointer", OwnerKindConnection, "User", userProps(), schema.Settings{})
	require.NotNil(t, e)
	assert.Same(t, e, m.FindByName("User"))
}

// ============================================================================
// CLEANUP
// ============================================================================

func TestManagerCleanupCompleteness(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &fakeOwner{}

	for i := 0; i < 50; i++ {
		e := m.RegisterFor(owner, OwnerKindConnection, fmt.Sprintf("Model%02d", i),
			schema.Properties{fmt.Sprintf("field%02d", i): "string"}, schema.Settings{})
		require.NotNil(t, e)
	}
	require.Len(t, m.ModelsForOwner(owner, OwnerKindConnection), 50)

	stats := m.CleanupTenant("acme")
	assert.Equal(t, "acme", stats.Tenant)
	assert.Equal(t, 50, stats.ModelsRemoved)
	// 50 name bindings, 50 fingerprint bindings, 50 owner edges
	assert.Equal(t, 150, stats.MappingsRemoved)

	for i := 0; i < 50; i++ {
		assert.Nil(t, m.FindByName(fmt.Sprintf("Model%02d", i)))
	}
	assert.Empty(t, m.ModelsForOwner(owner, OwnerKindConnection))
	assert.Equal(t, 0, m.Stats().TotalModels)

	// Second cleanup is a clean no-op
	stats = m.CleanupTenant("acme")
	assert.Equal(t, 0, stats.ModelsRemoved)
	assert.Equal(t, 0, stats.MappingsRemoved)
}

func TestManagerCleanupUnknownTenantZeroEffect(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	m.Register("User", userProps(), schema.Settings{})

	for _, code := range []string{"ghost", "", "null", "global"} {
		stats := m.CleanupTenant(code)
		assert.Equal(t, code, stats.Tenant)
		assert.Equal(t, 0, stats.ModelsRemoved)
		assert.Equal(t, 0, stats.MappingsRemoved)
	}
	assert.Equal(t, 1, m.Stats().TotalModels)
}

func TestManagerCleanupDoesNotTouchOtherTenants(t *testing.T) {
	p := &switchableProvider{code: "t1"}
	m := NewManager(Options{Provider: p})

	m.Register("User", userProps(), schema.Settings{})
	p.set("t2")
	m.Register("User", userProps(), schema.Settings{})

	m.CleanupTenant("t1")

	assert.Same(t, m.FindByName("User"), m.FindByStructure(userProps(), nil))
	require.NotNil(t, m.FindByName("User"))
	assert.Equal(t, "t2", m.FindByName("User").Tenant)

	p.set("t1")
	assert.Nil(t, m.FindByName("User"))
}

func TestManagerClearIdempotent(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &fakeOwner{}
	m.RegisterFor(owner, OwnerKindConnection, "User", userProps(), schema.Settings{})
	m.DefineAnonymous(schema.Properties{"street": "string"}, schema.Settings{})

	for i := 0; i < 3; i++ {
		assert.NotPanics(t, func() { m.Clear() })
		s := m.Stats()
		assert.Equal(t, 0, s.TotalModels)
		assert.Equal(t, 0, s.TenantRegistries)
		assert.Equal(t, uint64(0), s.ReuseCount)
	}

	// Anonymous naming restarts after teardown
	e := m.DefineAnonymous(schema.Properties{"street": "string"}, schema.Settings{})
	require.NotNil(t, e)
	assert.Equal(t, "AnonymousModel_1", e.Name)
}

// ============================================================================
// OWNER RELEASE AND NATURAL DISPOSAL
// ============================================================================

func TestManagerReleaseOwnerDropsAssociationsOnly(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	o1 := &fakeOwner{id: 1}
	o2 := &fakeOwner{id: 2}

	m.RegisterFor(o1, OwnerKindConnection, "A", schema.Properties{"a": "string"}, schema.Settings{})
	m.RegisterFor(o2, OwnerKindConnection, "B", schema.Properties{"b": "string"}, schema.Settings{})

	m.ReleaseOwner(o1)

	// o1 stops contributing queries, but the tenant registry survives on
	// o2's reference and keeps both entries
	assert.Empty(t, m.ModelsForOwner(o1, OwnerKindConnection))
	assert.NotNil(t, m.FindByName("A"))
	assert.NotNil(t, m.FindByName("B"))
	assert.Equal(t, 1, m.Stats().TenantRegistries)
}

func TestManagerLastOwnerReleaseDisposesRegistry(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	o1 := &fakeOwner{id: 1}
	o2 := &fakeOwner{id: 2}

	m.RegisterFor(o1, OwnerKindConnection, "A", schema.Properties{"a": "string"}, schema.Settings{})
	m.RegisterFor(o2, OwnerKindConnection, "B", schema.Properties{"b": "string"}, schema.Settings{})

	m.ReleaseOwner(o1)
	m.ReleaseOwner(o2)

	assert.Nil(t, m.FindByName("A"))
	assert.Nil(t, m.FindByName("B"))
	s := m.Stats()
	assert.Equal(t, 0, s.TenantRegistries)
	assert.Equal(t, 0, s.TotalModels)

	// Releasing an unknown owner is a no-op
	assert.NotPanics(t, func() { m.ReleaseOwner(o1) })
}

func TestManagerNaturalDisposalSweepsUnownedEntries(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &fakeOwner{}

	m.Register("Unowned", schema.Properties{"a": "string"}, schema.Settings{})
	m.RegisterFor(owner, OwnerKindConnection, "Owned", schema.Properties{"b": "string"}, schema.Settings{})

	m.ReleaseOwner(owner)

	// The registry had a referencing owner, so its disposal takes the
	// unowned entry with it
	assert.Nil(t, m.FindByName("Unowned"))
	assert.Nil(t, m.FindByName("Owned"))
}

func TestManagerFinalizersCanBeDisabled(t *testing.T) {
	cfg := config.Default()
	cfg.Registry.DisableFinalizers = true
	m := NewManager(Options{Config: cfg, Provider: tenant.Static("acme")})
	owner := &fakeOwner{}

	m.RegisterFor(owner, OwnerKindConnection, "User", userProps(), schema.Settings{})
	assert.Len(t, m.ModelsForOwner(owner, OwnerKindConnection), 1)

	assert.NotPanics(t, func() { m.ReleaseOwner(owner) })
	assert.Empty(t, m.ModelsForOwner(owner, OwnerKindConnection))
}

// ============================================================================
// BACKLINK
// ============================================================================

type backlinkOwner struct {
	attached *Manager
	detached bool
}

func (b *backlinkOwner) AttachRegistry(m *Manager) { b.attached = m }
func (b *backlinkOwner) DetachRegistry()           { b.detached = true }

func TestManagerOwnerBacklink(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &backlinkOwner{}

	m.RegisterFor(owner, OwnerKindConnection, "User", userProps(), schema.Settings{})
	assert.Same(t, m, owner.attached)
	assert.False(t, owner.detached)

	m.ReleaseOwner(owner)
	assert.True(t, owner.detached)
}

// ============================================================================
// STATS AND GENERATION
// ============================================================================

func TestManagerStatsAggregation(t *testing.T) {
	p := &switchableProvider{code: "t1"}
	m := NewManager(Options{Provider: p})

	m.Register("A", schema.Properties{"a": "string"}, schema.Settings{})
	m.Register("B", schema.Properties{"b": "string"}, schema.Settings{})
	m.Register("A", schema.Properties{"a": "string"}, schema.Settings{}) // reuse

	p.set("t2")
	m.Register("C", schema.Properties{"c": "string"}, schema.Settings{})

	p.set("") // routes to global
	m.Register("G", schema.Properties{"g": "string"}, schema.Settings{})

	s := m.Stats()
	assert.Equal(t, 4, s.TotalModels)
	assert.Equal(t, 3, s.TotalTenantModels)
	assert.Equal(t, 2, s.TenantRegistries)
	assert.Equal(t, 4, s.UniqueModels)
	assert.Equal(t, uint64(1), s.ReuseCount)
	assert.Contains(t, s.String(), "models=4")
}

func TestManagerGenerationAdvancesOnInvalidation(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &fakeOwner{}

	g0 := m.Generation()
	m.RegisterFor(owner, OwnerKindConnection, "User", userProps(), schema.Settings{})
	g1 := m.Generation()
	assert.Greater(t, g1, g0)

	m.CleanupTenant("acme")
	g2 := m.Generation()
	assert.Greater(t, g2, g1)

	m.Clear()
	assert.Greater(t, m.Generation(), g2)
}

func TestManagerRegistrationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	mx := metrics.NewMetrics(reg)
	m := NewManager(Options{Provider: tenant.Static("acme"), Metrics: mx})

	m.Register("User", userProps(), schema.Settings{})
	m.Register("User", userProps(), schema.Settings{})

	assert.Equal(t, float64(2), testutil.ToFloat64(mx.RegistrationsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.ReuseHitsTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(mx.ModelsLive))
}

// ============================================================================
// CONCURRENCY
// ============================================================================

func TestManagerConcurrentAccess(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})
	owner := &fakeOwner{}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				name := fmt.Sprintf("Model_%d_%d", g, i)
				m.RegisterFor(owner, OwnerKindConnection, name,
					schema.Properties{fmt.Sprintf("f%d_%d", g, i): "string"}, schema.Settings{})
				m.FindByName(name)
				m.ModelsForOwner(owner, OwnerKindConnection)
				m.Stats()
			}
		}(g)
	}
	wg.Wait()

	s := m.Stats()
	assert.Equal(t, 400, s.TotalModels)
	assert.Len(t, m.ModelsForOwner(owner, OwnerKindConnection), 400)
}

func TestManagerConcurrentCleanupNeverCorrupts(t *testing.T) {
	m := NewManager(Options{Provider: tenant.Static("acme")})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				m.Register(fmt.Sprintf("M%d_%d", g, i),
					schema.Properties{fmt.Sprintf("f%d_%d", g, i): "string"}, schema.Settings{})
				if i%10 == 0 {
					m.CleanupTenant("acme")
				}
			}
		}(g)
	}
	wg.Wait()

	// Whatever survived the races, the indices agree with each other
	m.CleanupTenant("acme")
	assert.Equal(t, 0, m.Stats().TotalModels)
	for g := 0; g < 4; g++ {
		for i := 0; i < 50; i++ {
			assert.Nil(t, m.FindByName(fmt.Sprintf("M%d_%d", g, i)))
		}
	}
}
