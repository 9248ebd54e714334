package types

// EntityTier is the reseller hierarchy tier of an entity.
// M1 owns the master catalog, M2 is a facade/storefront over an M1,
// M3 is a dropshipper under an M2.
type EntityTier string

const (
	EntityTierM1 EntityTier = "m1"
	EntityTierM2 EntityTier = "m2"
	EntityTierM3 EntityTier = "m3"
)

// PermissionDecision is the outcome of resolving a permission key
// against an entity's ancestor chain.
type PermissionDecision string

const (
	PermissionDecisionAllowed   PermissionDecision = "allowed"
	PermissionDecisionDenied    PermissionDecision = "denied"
	PermissionDecisionPending   PermissionDecision = "pending"
	PermissionDecisionUndefined PermissionDecision = "undefined"
)

// PermissionScope qualifies a permission key, e.g. "catalog", "billing".
// The empty scope matches any scope.
type PermissionScope string

const PermissionScopeGlobal PermissionScope = ""

// PermissionMode controls how undefined decisions are treated.
type PermissionMode string

const (
	// PermissionModeStrict denies undefined keys outright.
	PermissionModeStrict PermissionMode = "strict"
	// PermissionModeTraining queues undefined keys for operator review and
	// asks the caller to retry once a decision has been recorded.
	PermissionModeTraining PermissionMode = "training"
)
