package registry

import (
	"reflect"
	"runtime"
	"sort"
	"sync"
)

// RegistryBacklink is the optional owner interface for the owning-registry
// back-link. Owners implementing it are told which manager they registered
// with; everything else about an owner stays opaque to the registry.
type RegistryBacklink interface {
	AttachRegistry(m *Manager)
	DetachRegistry()
}

// ValidOwner reports whether owner can carry ownership bindings. Owners are
// compared by identity, so only non-nil pointers qualify.
func ValidOwner(owner any) bool {
	_, ok := ownerKeyOf(owner)
	return ok
}

// ownerKeyOf derives the identity key for an owner object. Only pointer
// owners have a stable identity; everything else reports ok=false and is
// skipped by binding paths.
func ownerKeyOf(owner any) (uintptr, bool) {
	if owner == nil {
		return 0, false
	}
	v := reflect.ValueOf(owner)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return 0, false
	}
	return v.Pointer(), true
}

// ownerState tracks one live owner's entries, partitioned by owner kind.
type ownerState struct {
	kinds map[OwnerKind]map[*Entry]struct{}
}

// ownerIndex associates owners with the entries registered through them.
// The association is weak: it stores pointer-derived keys, never the owner
// itself, so it cannot extend an owner's lifetime. A finalizer on the owner
// performs deferred release when the owner is collected without an explicit
// ReleaseOwner call; the key cannot alias a new object while its release
// runs because the runtime does not reuse the memory until the finalizer
// returns.
type ownerIndex struct {
	mu        sync.RWMutex
	owners    map[uintptr]*ownerState
	entries   map[*Entry]map[uintptr]struct{}
	finalized map[uintptr]struct{}
}

func newOwnerIndex() *ownerIndex {
	return &ownerIndex{
		owners:    make(map[uintptr]*ownerState),
		entries:   make(map[*Entry]map[uintptr]struct{}),
		finalized: make(map[uintptr]struct{}),
	}
}

// bind associates e with the owner key under kind. Reports whether the edge
// is new and whether this is the first binding seen for the owner.
func (x *ownerIndex) bind(key uintptr, kind OwnerKind, e *Entry) (added, firstForOwner bool) {
	x.mu.Lock()
	defer x.mu.Unlock()

	st := x.owners[key]
	if st == nil {
		st = &ownerState{kinds: make(map[OwnerKind]map[*Entry]struct{})}
		x.owners[key] = st
		firstForOwner = true
	}
	set := st.kinds[kind]
	if set == nil {
		set = make(map[*Entry]struct{})
		st.kinds[kind] = set
	}
	if _, ok := set[e]; ok {
		return false, firstForOwner
	}
	set[e] = struct{}{}

	rev := x.entries[e]
	if rev == nil {
		rev = make(map[uintptr]struct{})
		x.entries[e] = rev
	}
	rev[key] = struct{}{}
	return true, firstForOwner
}

// entriesFor snapshots the owner's entries of the given kind, name sorted.
func (x *ownerIndex) entriesFor(key uintptr, kind OwnerKind) []*Entry {
	x.mu.RLock()
	var out []*Entry
	if st := x.owners[key]; st != nil {
		for e := range st.kinds[kind] {
			out = append(out, e)
		}
	}
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// dropEntry removes every owner edge to e, returning one key per removed
// edge and the number of mappings dropped.
func (x *ownerIndex) dropEntry(e *Entry) (keys []uintptr, mappings int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	rev := x.entries[e]
	if rev == nil {
		return nil, 0
	}
	delete(x.entries, e)

	for key := range rev {
		st := x.owners[key]
		if st == nil {
			continue
		}
		for kind, set := range st.kinds {
			if _, ok := set[e]; ok {
				delete(set, e)
				mappings++
				keys = append(keys, key)
				if len(set) == 0 {
					delete(st.kinds, kind)
				}
			}
		}
		if len(st.kinds) == 0 {
			delete(x.owners, key)
		}
	}
	return keys, mappings
}

// release drops every edge for the owner key, returning one entry per
// removed edge and the number of mappings dropped.
func (x *ownerIndex) release(key uintptr) (entries []*Entry, mappings int) {
	x.mu.Lock()
	defer x.mu.Unlock()

	delete(x.finalized, key)
	st := x.owners[key]
	if st == nil {
		return nil, 0
	}
	delete(x.owners, key)

	for _, set := range st.kinds {
		for e := range set {
			mappings++
			entries = append(entries, e)
			if rev := x.entries[e]; rev != nil {
				delete(rev, key)
				if len(rev) == 0 {
					delete(x.entries, e)
				}
			}
		}
	}
	return entries, mappings
}

// reset drops every association. Finalizer arming state survives because
// the hooks remain attached to live owner objects and must not be armed
// twice.
func (x *ownerIndex) reset() {
	x.mu.Lock()
	x.owners = make(map[uintptr]*ownerState)
	x.entries = make(map[*Entry]map[uintptr]struct{})
	x.mu.Unlock()
}

// size reports the number of live owner associations.
func (x *ownerIndex) size() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.owners)
}

// arm installs the GC release hook on an owner object, at most once per
// object. The closure captures only the key, never the owner, so the hook
// cannot keep the owner reachable.
func (x *ownerIndex) arm(owner any, key uintptr, release func(uintptr)) {
	x.mu.Lock()
	if _, ok := x.finalized[key]; ok {
		x.mu.Unlock()
		return
	}
	x.finalized[key] = struct{}{}
	x.mu.Unlock()

	defer func() {
		if recover() != nil {
			x.mu.Lock()
			delete(x.finalized, key)
			x.mu.Unlock()
		}
	}()
	runtime.SetFinalizer(owner, func(any) { release(key) })
}

// disarm removes the GC release hook ahead of an explicit release.
func (x *ownerIndex) disarm(owner any, key uintptr) {
	x.mu.Lock()
	_, armed := x.finalized[key]
	delete(x.finalized, key)
	x.mu.Unlock()

	if !armed {
		return
	}
	defer func() { _ = recover() }()
	runtime.SetFinalizer(owner, nil)
}
