package featureflag

import (
	"strings"

	"github.com/aukilabs/gridrider/sector"
)

// FeatureFlag is a lookup map for features that is enabled or disabled
type FeatureFlag map[Flag]struct{}

// New return a new feature flags initialized with list of flags
func New(flags []string) FeatureFlag {
	featureFlag := make(FeatureFlag)
	for _, f := range flags {
		f = strings.ToUpper(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		featureFlag[Flag(f)] = struct{}{}
	}
	return featureFlag
}

// Parse returns the feature flags of a comma separated list.
func Parse(list string) FeatureFlag {
	return New(strings.Split(list, ","))
}

// IsSet reports whether flag is set.
func (f FeatureFlag) IsSet(flag Flag) bool {
	_, ok := f[flag]
	return ok
}

// IfSet runs function `do ` if flag is set in the feature flags
func (f FeatureFlag) IfSet(flag Flag, do func()) {
	if !f.IsSet(flag) {
		return
	}
	do()
}

// IfNotSet runs function `do` if flag is not set in the feature flags
func (f FeatureFlag) IfNotSet(flag Flag, do func()) {
	if f.IsSet(flag) {
		return
	}
	do()
}

// Configure switches off the simulation phases disabled by the flags.
// Flags only ever disable phases: a phase disabled in the sector file stays
// disabled.
func (f FeatureFlag) Configure(c *sector.Config) {
	f.IfSet(FlagDisableSubdivision, func() {
		c.DisableSubdivision = true
	})

	f.IfSet(FlagDisableNodeDeath, func() {
		c.DisableNodeDeath = true
	})

	f.IfSet(FlagDisableCollapse, func() {
		c.DisableCollapse = true
	})

	f.IfSet(FlagDisableBodyCollisions, func() {
		c.DisableBodyCollisions = true
	})

	f.IfSet(FlagStrictInvariants, func() {
		c.Lattice.StrictInvariants = true
	})
}
