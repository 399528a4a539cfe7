package featureflag

type Flag string

const (
	FlagDisableSubdivision    Flag = "DISABLE_SUBDIVISION"
	FlagDisableNodeDeath      Flag = "DISABLE_NODE_DEATH"
	FlagDisableCollapse       Flag = "DISABLE_COLLAPSE"
	FlagDisableBodyCollisions Flag = "DISABLE_BODY_COLLISIONS"
	FlagStrictInvariants      Flag = "STRICT_INVARIANTS"
)
