package registry

import (
	"sync/atomic"
	"time"

	"github.com/Konsultn-Engineering/modelreg/schema"
)

// OwnerKind tags the class of object a model entry is scoped to.
type OwnerKind uint8

const (
	// OwnerKindConnection scopes entries to a connection-like owner such as
	// a datasource.
	OwnerKindConnection OwnerKind = iota + 1
	// OwnerKindApplication scopes entries to an application-like owner.
	OwnerKindApplication
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerKindConnection:
		return "connection"
	case OwnerKindApplication:
		return "application"
	default:
		return "unknown"
	}
}

// Valid reports whether k names a known owner kind.
func (k OwnerKind) Valid() bool {
	return k == OwnerKindConnection || k == OwnerKindApplication
}

// Entry is one registered model definition. Entries are created by the
// Manager and shared by every caller that resolves the same structure, so
// the exported fields are read-only after registration.
type Entry struct {
	Name        string
	TableName   string
	Properties  schema.Properties
	Settings    schema.Settings
	Fingerprint string
	Tenant      string
	Anonymous   bool
	CreatedAt   time.Time

	lastAccess atomic.Int64
	reg        *TenantRegistry
}

func newEntry(name string, props schema.Properties, settings schema.Settings, fp, tenantCode string, anonymous bool) *Entry {
	now := time.Now()
	e := &Entry{
		Name:        name,
		TableName:   schema.TableName(name),
		Properties:  props,
		Settings:    settings,
		Fingerprint: fp,
		Tenant:      tenantCode,
		Anonymous:   anonymous,
		CreatedAt:   now,
	}
	e.lastAccess.Store(now.UnixNano())
	return e
}

// LastAccessed reports when the entry last served a lookup or a reuse hit.
func (e *Entry) LastAccessed() time.Time {
	return time.Unix(0, e.lastAccess.Load())
}

func (e *Entry) touch() {
	e.lastAccess.Store(time.Now().UnixNano())
}
