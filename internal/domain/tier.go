package domain

// Tier identifies a subscription tier.
type Tier string

const (
	TierFree    Tier = "free"
	TierPlus    Tier = "plus"
	TierPremium Tier = "premium"
)

func (t Tier) IsValid() bool {
	switch t {
	case TierFree, TierPlus, TierPremium:
		return true
	default:
		return false
	}
}

// TierLimits holds the per-tier ceilings for linked banking resources.
// A limit of -1 means unbounded; 0 means the feature is not available
// on the tier at all. The two must never be conflated.
type TierLimits struct {
	Tier           Tier `json:"tier" yaml:"tier"`
	MaxConnections int  `json:"max_connections" yaml:"max_connections"`
	MaxAccounts    int  `json:"max_accounts" yaml:"max_accounts"`
}

// AllowsAccounts reports whether the tier permits bank account linking.
func (l TierLimits) AllowsAccounts() bool {
	return l.MaxAccounts != 0
}

// TierUsage is a snapshot of a user's current consumption.
type TierUsage struct {
	Connections int `json:"connections"`
	Accounts    int `json:"accounts"`
}

// DenyReason explains why admission was refused.
type DenyReason string

const (
	// DenyNoAccessForTier means the tier forbids the feature entirely.
	DenyNoAccessForTier DenyReason = "NO_ACCESS_FOR_TIER"
	// DenyLimitReached means usage has met or exceeded a finite limit.
	DenyLimitReached DenyReason = "LIMIT_REACHED"
)

// UpgradeOffer is a soft prompt attached to an allowed decision when the
// user is close to a limit. It never blocks.
type UpgradeOffer struct {
	CurrentTier   Tier   `json:"current_tier"`
	SuggestedTier Tier   `json:"suggested_tier"`
	Message       string `json:"message"`
}

// AdmissionDecision is the result of a tier admission check.
type AdmissionDecision struct {
	Allowed      bool          `json:"allowed"`
	DenyReason   DenyReason    `json:"deny_reason,omitempty"`
	UpgradeOffer *UpgradeOffer `json:"upgrade_offer,omitempty"`
	Limits       TierLimits    `json:"limits"`
	Usage        TierUsage     `json:"usage"`
}
