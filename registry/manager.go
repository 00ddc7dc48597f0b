// Package registry implements the tenant-aware, structurally-deduplicating
// model registry: per-tenant stores indexed by fingerprint and name, a
// process-wide manager coordinating them, weak owner associations, and a
// generation-stamped owner query cache.
package registry

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Konsultn-Engineering/modelreg/cache"
	"github.com/Konsultn-Engineering/modelreg/config"
	"github.com/Konsultn-Engineering/modelreg/fingerprint"
	"github.com/Konsultn-Engineering/modelreg/metrics"
	"github.com/Konsultn-Engineering/modelreg/schema"
	"github.com/Konsultn-Engineering/modelreg/tenant"
)

// Options configures a Manager. Zero values select the defaults: default
// config, no tenant provider (everything routes to the global registry),
// the policy named by the config, a nop logger, and unregistered metrics.
type Options struct {
	Config   *config.Config
	Provider tenant.ContextProvider
	Policy   CompatPolicy
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Manager is the process-wide registry coordinator. It resolves the active
// tenant, routes registrations into per-tenant registries, deduplicates
// structurally identical definitions, and answers owner-scoped queries
// through a generation-stamped cache.
//
// There is no package-level singleton. Construct instances explicitly so
// tests can run isolated managers side by side; Clear is the teardown.
type Manager struct {
	provider tenant.ContextProvider
	policy   CompatPolicy
	logger   *zap.Logger
	metrics  *metrics.Metrics
	engine   *fingerprint.Engine

	gen        *cache.Generation
	ownerCache *cache.QueryCache[[]*Entry]
	owners     *ownerIndex

	anonPrefix string
	finalizers bool
	aliases    map[string]struct{}

	anonSeq atomic.Uint64
	reuse   atomic.Uint64

	mu      sync.RWMutex
	tenants map[string]*TenantRegistry
	global  *TenantRegistry
}

// NewManager constructs a Manager from opts.
func NewManager(opts Options) *Manager {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	policy := opts.Policy
	if policy == nil {
		policy = PolicyFor(cfg.Registry.PolicyMode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mx := opts.Metrics
	if mx == nil {
		mx = metrics.NewMetrics(nil)
	}

	size := cfg.Cache.OwnerQuerySize
	if size < 1 {
		size = cache.DefaultSize
	}
	prefix := cfg.Registry.AnonymousPrefix
	if prefix == "" {
		prefix = schema.DefaultAnonymousPrefix
	}

	gen := cache.NewGeneration()
	m := &Manager{
		provider:   opts.Provider,
		policy:     policy,
		logger:     logger,
		metrics:    mx,
		engine:     fingerprint.New(logger),
		gen:        gen,
		ownerCache: cache.NewQueryCache[[]*Entry](size, gen),
		owners:     newOwnerIndex(),
		anonPrefix: prefix,
		finalizers: !cfg.Registry.DisableFinalizers,
		aliases:    make(map[string]struct{}),
		tenants:    make(map[string]*TenantRegistry),
	}
	for _, alias := range cfg.Registry.GlobalAliases {
		m.aliases[strings.ToLower(strings.TrimSpace(alias))] = struct{}{}
	}
	return m
}

// resolveTenant asks the provider for the active tenant code. It runs
// before any lock is taken because the provider is untrusted and may be
// slow or panic. Unresolvable and aliased codes route to the global
// registry.
func (m *Manager) resolveTenant() (string, bool) {
	code, ok := tenant.Resolve(m.provider)
	if !ok {
		return tenant.GlobalCode, false
	}
	if _, aliased := m.aliases[strings.ToLower(strings.TrimSpace(code))]; aliased {
		return tenant.GlobalCode, false
	}
	return code, true
}

// registryFor returns the registry for code, creating it on first use.
func (m *Manager) registryFor(code string, isTenant bool) *TenantRegistry {
	if reg := m.peekRegistry(code, isTenant); reg != nil {
		return reg
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if isTenant {
		reg := m.tenants[code]
		if reg == nil {
			reg = NewTenantRegistry(code)
			m.tenants[code] = reg
			m.logger.Debug("created tenant registry",
				zap.String("tenant", code),
				zap.String("instance", reg.InstanceID()))
		}
		return reg
	}
	if m.global == nil {
		m.global = NewTenantRegistry(tenant.GlobalCode)
	}
	return m.global
}

// peekRegistry looks a registry up without creating one, so read paths
// never cause registry proliferation.
func (m *Manager) peekRegistry(code string, isTenant bool) *TenantRegistry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if isTenant {
		return m.tenants[code]
	}
	return m.global
}

// Register records a named model definition for the active tenant. A
// structurally identical entry with compatible settings already registered
// under the same name is reused instead of replaced; re-registering a name
// with a different structure overwrites it. Invalid input is a no-op
// returning nil; registration never fails.
func (m *Manager) Register(name string, props schema.Properties, settings schema.Settings) *Entry {
	return m.register(nil, 0, name, props, settings, false)
}

// RegisterFor is Register plus an ownership binding: the returned entry is
// associated with owner under kind and appears in that owner's queries.
func (m *Manager) RegisterFor(owner any, kind OwnerKind, name string, props schema.Properties, settings schema.Settings) *Entry {
	return m.register(owner, kind, name, props, settings, false)
}

// DefineAnonymous registers a synthesized definition for a nested shape.
// Structurally identical shapes with compatible settings resolve to one
// shared entry no matter how many callers define them; only a genuinely new
// shape mints a generated name.
func (m *Manager) DefineAnonymous(props schema.Properties, settings schema.Settings) *Entry {
	return m.register(nil, 0, "", props, settings, true)
}

// DefineAnonymousFor is DefineAnonymous plus an ownership binding.
func (m *Manager) DefineAnonymousFor(owner any, kind OwnerKind, props schema.Properties, settings schema.Settings) *Entry {
	return m.register(owner, kind, "", props, settings, true)
}

func (m *Manager) register(owner any, kind OwnerKind, name string, props schema.Properties, settings schema.Settings, anonymous bool) *Entry {
	if props == nil || (!anonymous && name == "") {
		return nil
	}

	code, isTenant := m.resolveTenant()

	fp := m.engine.Fingerprint(props)
	if fp == fingerprint.Invalid {
		m.logger.Warn("rejecting registration with invalid structure",
			zap.String("model", name), zap.String("tenant", code))
		return nil
	}
	if fingerprint.IsUnique(fp) {
		m.metrics.RecordFingerprintFallback()
	}

	reg := m.registryFor(code, isTenant)

	// Structural reuse. Anonymous shapes accept any compatible entry;
	// named registrations reuse only an entry already carrying the name.
	if existing := reg.FindByFingerprint(fp, CompatFromSettings(settings), m.policy); existing != nil {
		if anonymous || existing.Name == name {
			m.reuse.Add(1)
			m.metrics.RecordRegistration(true)
			m.logger.Debug("reusing structurally identical model",
				zap.String("model", existing.Name),
				zap.String("tenant", code),
				zap.String("fingerprint", fp))
			m.bindOwner(owner, kind, existing)
			return existing
		}
	}

	if anonymous {
		name = schema.AnonymousModelName(m.anonPrefix, m.anonSeq.Add(1))
	}

	e := newEntry(name, props, settings, fp, code, anonymous)
	if displaced := reg.Register(e); displaced != nil {
		m.dropEntryEdges(displaced)
	}

	m.metrics.RecordRegistration(false)
	m.logger.Debug("registered model",
		zap.String("model", name),
		zap.String("tenant", code),
		zap.String("fingerprint", fp),
		zap.Bool("anonymous", anonymous))

	m.bindOwner(owner, kind, e)
	m.updatePopulation()
	return e
}

// Bind associates an already registered entry with owner under kind, as if
// it had been registered through RegisterFor. Unbindable owners and nil
// entries are a no-op.
func (m *Manager) Bind(owner any, kind OwnerKind, e *Entry) {
	m.bindOwner(owner, kind, e)
}

// bindOwner makes e queryable through owner. Unbindable owners (nil or
// non-pointer) are skipped; registration itself never depends on binding.
func (m *Manager) bindOwner(owner any, kind OwnerKind, e *Entry) {
	if owner == nil || e == nil || !kind.Valid() {
		return
	}
	key, ok := ownerKeyOf(owner)
	if !ok {
		m.logger.Warn("cannot bind non-pointer owner", zap.String("model", e.Name))
		return
	}

	added, first := m.owners.bind(key, kind, e)
	if added {
		if e.reg != nil {
			e.reg.addOwnerRef(key)
		}
		m.gen.Bump()
	}
	if first {
		if m.finalizers {
			m.owners.arm(owner, key, m.releaseKey)
		}
		if bl, ok := owner.(RegistryBacklink); ok {
			bl.AttachRegistry(m)
		}
	}
}

// dropEntryEdges removes every owner mapping for a displaced entry and
// fixes tenant refcounts. Owner query results change, so the cache epoch
// advances.
func (m *Manager) dropEntryEdges(e *Entry) int {
	keys, mappings := m.owners.dropEntry(e)
	if mappings == 0 {
		return 0
	}
	if e.reg != nil {
		for _, key := range keys {
			e.reg.dropOwnerRef(key)
		}
	}
	m.gen.Bump()
	return mappings
}

// FindByStructure resolves props to the entry registered for the same
// structure in the active tenant, subject to the compatibility policy. A
// nil cc leaves settings unconstrained.
func (m *Manager) FindByStructure(props schema.Properties, cc *CompatContext) *Entry {
	if props == nil {
		return nil
	}

	code, isTenant := m.resolveTenant()
	reg := m.peekRegistry(code, isTenant)
	if reg == nil {
		return nil
	}

	fp := m.engine.Fingerprint(props)
	if fp == fingerprint.Invalid {
		return nil
	}
	if fingerprint.IsUnique(fp) {
		m.metrics.RecordFingerprintFallback()
		return nil
	}
	return reg.FindByFingerprint(fp, cc, m.policy)
}

// FindByName resolves name in the active tenant.
func (m *Manager) FindByName(name string) *Entry {
	if name == "" {
		return nil
	}

	code, isTenant := m.resolveTenant()
	reg := m.peekRegistry(code, isTenant)
	if reg == nil {
		return nil
	}
	return reg.FindByName(name)
}

// ModelsForOwner lists the entries bound to owner under kind, name sorted.
// Results are memoized against the invalidation epoch: repeated calls
// return the cached slice until a cleanup, clear, or binding change
// advances it.
func (m *Manager) ModelsForOwner(owner any, kind OwnerKind) []*Entry {
	ptr, ok := ownerKeyOf(owner)
	if !ok || !kind.Valid() {
		return nil
	}
	key := cache.OwnerKey(ptr, uint8(kind))

	computed := false
	list := m.ownerCache.GetOrCompute(key, func() []*Entry {
		computed = true
		return m.owners.entriesFor(ptr, kind)
	})
	if computed {
		m.metrics.RecordOwnerCacheMiss()
	} else {
		m.metrics.RecordOwnerCacheHit()
	}
	return list
}

// HasModelForOwner reports whether owner has a model named name under kind.
func (m *Manager) HasModelForOwner(owner any, name string, kind OwnerKind) bool {
	return m.ModelForOwner(owner, name, kind) != nil
}

// ModelForOwner returns owner's model named name under kind, or nil.
func (m *Manager) ModelForOwner(owner any, name string, kind OwnerKind) *Entry {
	for _, e := range m.ModelsForOwner(owner, kind) {
		if e.Name == name {
			e.touch()
			return e
		}
	}
	return nil
}

// CleanupTenant removes every trace of the tenant: all entries leave the
// fingerprint, name, and owner indices together, the registry instance is
// discarded, and the cache epoch advances so stale owner queries cannot
// survive. Unknown or invalid tenants report zero effect; cleanup never
// fails. This is the administrative path and ignores owner reference
// counts.
func (m *Manager) CleanupTenant(code string) CleanupStats {
	start := time.Now()
	stats := CleanupStats{Tenant: code}

	if !tenant.IsValidCode(code) {
		stats.DurationMicros = time.Since(start).Microseconds()
		return stats
	}

	m.mu.Lock()
	reg := m.tenants[code]
	delete(m.tenants, code)
	m.mu.Unlock()

	if reg == nil {
		stats.DurationMicros = time.Since(start).Microseconds()
		m.logger.Debug("cleanup of unknown tenant", zap.String("tenant", code))
		return stats
	}

	removed, mappings := reg.Cleanup()
	for _, e := range removed {
		_, edges := m.owners.dropEntry(e)
		mappings += edges
	}

	m.gen.Bump()

	stats.ModelsRemoved = len(removed)
	stats.MappingsRemoved = mappings
	stats.DurationMicros = time.Since(start).Microseconds()

	m.metrics.RecordCleanup(stats.ModelsRemoved, time.Since(start))
	m.updatePopulation()
	m.logger.Info("tenant cleaned up",
		zap.String("tenant", code),
		zap.String("instance", reg.InstanceID()),
		zap.Int("models_removed", stats.ModelsRemoved),
		zap.Int("mappings_removed", stats.MappingsRemoved),
		zap.Int64("duration_us", stats.DurationMicros))
	return stats
}

// ReleaseOwner is the explicit owner disposal path: every binding for the
// owner is dropped, and a tenant registry left without any referencing
// owner is disposed along with its entries. The owner object itself is
// never touched beyond detaching the registry back-link and the GC hook.
func (m *Manager) ReleaseOwner(owner any) {
	key, ok := ownerKeyOf(owner)
	if !ok {
		return
	}
	if bl, ok := owner.(RegistryBacklink); ok {
		bl.DetachRegistry()
	}
	m.owners.disarm(owner, key)
	m.releaseKey(key)
}

// releaseKey runs the release for an owner identity. Also the target of the
// GC hook, which holds only the key because holding the owner would keep it
// alive.
func (m *Manager) releaseKey(key uintptr) {
	entries, mappings := m.owners.release(key)
	if mappings == 0 {
		return
	}

	affected := make(map[*TenantRegistry]struct{})
	for _, e := range entries {
		if e.reg != nil {
			e.reg.dropOwnerRef(key)
			affected[e.reg] = struct{}{}
		}
	}
	for reg := range affected {
		if reg.OwnerRefs() == 0 {
			m.disposeIfCurrent(reg)
		}
	}

	m.gen.Bump()
	m.updatePopulation()
}

// disposeIfCurrent naturally disposes a tenant registry that lost its last
// owner, unless it has already been replaced. The global registry never
// lives in the tenants map, so it only ever resets through Clear.
func (m *Manager) disposeIfCurrent(reg *TenantRegistry) {
	m.mu.Lock()
	current := m.tenants[reg.Code()] == reg
	if current {
		delete(m.tenants, reg.Code())
	}
	m.mu.Unlock()

	if !current {
		return
	}

	removed, _ := reg.Cleanup()
	for _, e := range removed {
		m.owners.dropEntry(e)
	}
	m.logger.Info("tenant registry disposed, last owner released",
		zap.String("tenant", reg.Code()),
		zap.String("instance", reg.InstanceID()),
		zap.Int("models_removed", len(removed)))
}

// Clear disposes every tenant registry and the global registry, resets the
// reuse and anonymous-name counters, drops all owner associations, and
// advances the cache epoch. Safe to call repeatedly; this is the manager's
// teardown.
func (m *Manager) Clear() {
	m.mu.Lock()
	regs := make([]*TenantRegistry, 0, len(m.tenants)+1)
	for _, reg := range m.tenants {
		regs = append(regs, reg)
	}
	if m.global != nil {
		regs = append(regs, m.global)
	}
	m.tenants = make(map[string]*TenantRegistry)
	m.global = nil
	m.mu.Unlock()

	total := 0
	for _, reg := range regs {
		removed, _ := reg.Cleanup()
		total += len(removed)
	}
	m.owners.reset()
	m.ownerCache.Purge()
	m.anonSeq.Store(0)
	m.reuse.Store(0)
	m.gen.Bump()
	m.updatePopulation()

	if total > 0 {
		m.logger.Info("registry cleared",
			zap.Int("models_removed", total),
			zap.Int("registries", len(regs)))
	}
}

// Stats snapshots registry population and reuse counters.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	regs := make([]*TenantRegistry, 0, len(m.tenants))
	for _, reg := range m.tenants {
		regs = append(regs, reg)
	}
	global := m.global
	m.mu.RUnlock()

	s := Stats{
		ReuseCount:       m.reuse.Load(),
		TenantRegistries: len(regs),
	}
	for _, reg := range regs {
		s.TotalTenantModels += reg.Len()
		s.UniqueModels += reg.UniqueModels()
	}
	s.TotalModels = s.TotalTenantModels
	if global != nil {
		s.TotalModels += global.Len()
		s.UniqueModels += global.UniqueModels()
	}
	return s
}

// Generation exposes the current invalidation epoch for diagnostics.
func (m *Manager) Generation() uint64 {
	return m.gen.Current()
}

func (m *Manager) updatePopulation() {
	s := m.Stats()
	m.metrics.UpdatePopulation(s.TotalModels, s.TenantRegistries)
}
