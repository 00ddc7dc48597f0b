package registry

import (
	"crypto/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Konsultn-Engineering/modelreg/fingerprint"
)

// Instance id entropy. MonotonicEntropy is not safe for concurrent readers,
// hence the lock.
var instanceIDs = struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.Reader, 0)}

func newInstanceID() string {
	instanceIDs.mu.Lock()
	defer instanceIDs.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(time.Now()), instanceIDs.entropy)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// TenantRegistry is an isolated namespace of model entries for one tenant.
// Entries are indexed by structural fingerprint and by name, and tracked in
// a full set so cleanup can never miss one. Each registry carries its own
// lock so independent tenants do not contend.
type TenantRegistry struct {
	code      string
	id        string
	createdAt time.Time

	lastAccess atomic.Int64

	mu            sync.RWMutex
	byFingerprint map[string]*Entry
	byName        map[string]*Entry
	all           map[*Entry]struct{}
	owners        map[uintptr]int
}

// NewTenantRegistry creates an empty registry for the tenant code. Each
// instance gets a ULID so disposal and recreation of the same tenant are
// distinguishable in logs.
func NewTenantRegistry(code string) *TenantRegistry {
	now := time.Now()
	r := &TenantRegistry{
		code:          code,
		id:            newInstanceID(),
		createdAt:     now,
		byFingerprint: make(map[string]*Entry),
		byName:        make(map[string]*Entry),
		all:           make(map[*Entry]struct{}),
		owners:        make(map[uintptr]int),
	}
	r.lastAccess.Store(now.UnixNano())
	return r
}

// Code returns the tenant code this registry isolates.
func (r *TenantRegistry) Code() string {
	return r.code
}

// InstanceID returns the ULID minted for this registry instance.
func (r *TenantRegistry) InstanceID() string {
	return r.id
}

// CreatedAt returns when this registry instance was created.
func (r *TenantRegistry) CreatedAt() time.Time {
	return r.createdAt
}

// LastAccessed reports when the registry last served any operation.
func (r *TenantRegistry) LastAccessed() time.Time {
	return time.Unix(0, r.lastAccess.Load())
}

func (r *TenantRegistry) touch() {
	r.lastAccess.Store(time.Now().UnixNano())
}

// Register inserts e into every index. Re-registering a name replaces the
// prior entry wholesale, not additively; the displaced entry is returned so
// the caller can drop its owner mappings.
func (r *TenantRegistry) Register(e *Entry) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	var displaced *Entry
	if old, ok := r.byName[e.Name]; ok && old != e {
		if r.byFingerprint[old.Fingerprint] == old {
			delete(r.byFingerprint, old.Fingerprint)
		}
		delete(r.all, old)
		displaced = old
	}

	e.reg = r
	r.byName[e.Name] = e
	r.byFingerprint[e.Fingerprint] = e
	r.all[e] = struct{}{}
	r.touch()
	return displaced
}

// FindByFingerprint returns the entry registered under fp if the policy
// accepts it for cc. The invalid sentinel never matches anything.
func (r *TenantRegistry) FindByFingerprint(fp string, cc *CompatContext, policy CompatPolicy) *Entry {
	if fp == "" || fp == fingerprint.Invalid {
		return nil
	}

	r.mu.RLock()
	e := r.byFingerprint[fp]
	r.mu.RUnlock()

	if e == nil {
		return nil
	}
	if policy != nil && !policy.Compatible(e, cc) {
		return nil
	}
	e.touch()
	r.touch()
	return e
}

// FindByName returns the entry registered under name.
func (r *TenantRegistry) FindByName(name string) *Entry {
	r.mu.RLock()
	e := r.byName[name]
	r.mu.RUnlock()

	if e != nil {
		e.touch()
		r.touch()
	}
	return e
}

// Len reports the number of registered entries.
func (r *TenantRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.all)
}

// UniqueModels reports the number of distinct structural fingerprints.
func (r *TenantRegistry) UniqueModels() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byFingerprint)
}

// Entries returns a name-sorted snapshot of every registered entry.
func (r *TenantRegistry) Entries() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.all))
	for e := range r.all {
		out = append(out, e)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Cleanup removes every entry from every index, returning the removed
// entries and the number of index mappings dropped. All indices are wiped
// under one lock hold, so no lookup can observe an entry present in one
// index and absent in another. Idempotent: a second call removes nothing.
func (r *TenantRegistry) Cleanup() ([]*Entry, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.all) == 0 && len(r.byName) == 0 && len(r.byFingerprint) == 0 {
		return nil, 0
	}

	removed := make([]*Entry, 0, len(r.all))
	for e := range r.all {
		removed = append(removed, e)
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].Name < removed[j].Name })

	mappings := len(r.byFingerprint) + len(r.byName)
	r.byFingerprint = make(map[string]*Entry)
	r.byName = make(map[string]*Entry)
	r.all = make(map[*Entry]struct{})
	r.owners = make(map[uintptr]int)
	r.touch()
	return removed, mappings
}

// addOwnerRef counts one more entry binding for the owner identity.
func (r *TenantRegistry) addOwnerRef(key uintptr) {
	r.mu.Lock()
	r.owners[key]++
	r.mu.Unlock()
}

// dropOwnerRef releases one entry binding for the owner identity.
func (r *TenantRegistry) dropOwnerRef(key uintptr) {
	r.mu.Lock()
	if n := r.owners[key]; n <= 1 {
		delete(r.owners, key)
	} else {
		r.owners[key] = n - 1
	}
	r.mu.Unlock()
}

// OwnerRefs reports how many distinct owners currently hold entries in this
// registry.
func (r *TenantRegistry) OwnerRefs() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners)
}
