package repository

import (
	"context"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"finlink/internal/domain"
)

// TierCatalog resolves tiers and their limits. The linking engine treats
// the subscription system as a collaborator; this interface is its edge.
type TierCatalog interface {
	// GetUserTier returns the user's current tier.
	GetUserTier(ctx context.Context, userID string) (domain.Tier, error)

	// GetTierLimits returns the limit table entry for a tier.
	GetTierLimits(ctx context.Context, tier domain.Tier) (domain.TierLimits, error)
}

// defaultTierLimits is the built-in catalog, overridable from a YAML file.
// -1 means unbounded, 0 means the feature is absent from the tier.
var defaultTierLimits = map[domain.Tier]domain.TierLimits{
	domain.TierFree:    {Tier: domain.TierFree, MaxConnections: 0, MaxAccounts: 0},
	domain.TierPlus:    {Tier: domain.TierPlus, MaxConnections: 2, MaxAccounts: 5},
	domain.TierPremium: {Tier: domain.TierPremium, MaxConnections: -1, MaxAccounts: -1},
}

// staticTierCatalog is a catalog backed by an in-memory limits table and a
// user-to-tier assignment map. Unknown users default to the free tier.
type staticTierCatalog struct {
	mu     sync.RWMutex
	limits map[domain.Tier]domain.TierLimits
	users  map[string]domain.Tier
}

// NewStaticTierCatalog creates a catalog with the built-in limit table.
func NewStaticTierCatalog() *staticTierCatalog {
	limits := make(map[domain.Tier]domain.TierLimits, len(defaultTierLimits))
	for tier, entry := range defaultTierLimits {
		limits[tier] = entry
	}
	return &staticTierCatalog{
		limits: limits,
		users:  make(map[string]domain.Tier),
	}
}

// tierCatalogFile is the YAML shape of a catalog override file.
type tierCatalogFile struct {
	Tiers []domain.TierLimits `yaml:"tiers"`
}

// LoadTierCatalog creates a catalog from a YAML file, falling back to the
// built-in defaults for tiers the file does not mention.
func LoadTierCatalog(path string) (*staticTierCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.NewInternalError("TIER_CATALOG_LOAD_FAILED", "Failed to read tier catalog file", err)
	}

	var file tierCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, domain.NewInternalError("TIER_CATALOG_PARSE_FAILED", "Failed to parse tier catalog file", err)
	}

	catalog := NewStaticTierCatalog()
	for _, entry := range file.Tiers {
		if !entry.Tier.IsValid() {
			return nil, domain.NewValidationError("tier", "Unknown tier in catalog file", map[string]interface{}{
				"tier": string(entry.Tier),
			})
		}
		catalog.limits[entry.Tier] = entry
	}
	return catalog, nil
}

// AssignTier sets a user's tier. Used by tests and the sandbox server;
// production deployments resolve tiers from the billing system instead.
func (c *staticTierCatalog) AssignTier(userID string, tier domain.Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[userID] = tier
}

func (c *staticTierCatalog) GetUserTier(_ context.Context, userID string) (domain.Tier, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if tier, exists := c.users[userID]; exists {
		return tier, nil
	}
	return domain.TierFree, nil
}

func (c *staticTierCatalog) GetTierLimits(_ context.Context, tier domain.Tier) (domain.TierLimits, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	limits, exists := c.limits[tier]
	if !exists {
		return domain.TierLimits{}, domain.NewNotFoundError("TIER_NOT_FOUND", "Unknown subscription tier")
	}
	return limits, nil
}
