package registry

import (
	"github.com/Konsultn-Engineering/modelreg/config"
	"github.com/Konsultn-Engineering/modelreg/schema"
)

// CompatContext carries the lookup-side settings a structural match must
// agree with before an entry may be reused. Nil pointer fields leave that
// setting unconstrained.
type CompatContext struct {
	Strict       *bool
	ParentRef    *bool
	DisableReuse bool
}

// CompatFromSettings builds the context a registration uses when probing
// for an existing structurally identical entry.
func CompatFromSettings(s schema.Settings) *CompatContext {
	strict, parentRef := s.Strict, s.ParentRef
	return &CompatContext{Strict: &strict, ParentRef: &parentRef}
}

// CompatPolicy decides whether a fingerprint-matched entry may be reused
// for the given lookup context. Fingerprint equality is necessary but not
// sufficient; the policy has the final word.
type CompatPolicy interface {
	Compatible(e *Entry, cc *CompatContext) bool
}

// SettingsPolicy is the default policy: strict-mode and parent-linking must
// match exactly wherever the context constrains them.
type SettingsPolicy struct{}

func (SettingsPolicy) Compatible(e *Entry, cc *CompatContext) bool {
	if cc == nil {
		return true
	}
	if cc.DisableReuse {
		return false
	}
	if cc.Strict != nil && *cc.Strict != e.Settings.Strict {
		return false
	}
	if cc.ParentRef != nil && *cc.ParentRef != e.Settings.ParentRef {
		return false
	}
	return true
}

// IsolationPolicy refuses every reuse. It exists for diagnosing suspected
// false sharing: under it each registration gets a private entry at the
// cost of deduplication.
type IsolationPolicy struct{}

func (IsolationPolicy) Compatible(*Entry, *CompatContext) bool {
	return false
}

// PolicyFor maps a configured policy mode to its implementation. Unknown
// modes fall back to the settings policy.
func PolicyFor(mode string) CompatPolicy {
	if mode == config.PolicyIsolation {
		return IsolationPolicy{}
	}
	return SettingsPolicy{}
}
