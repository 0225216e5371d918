package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finlink/internal/domain"
	"finlink/internal/repository"
)

func TestAdmissionGate_Evaluate(t *testing.T) {
	gate := NewAdmissionGate(nil, nil)

	plus := domain.TierLimits{Tier: domain.TierPlus, MaxConnections: 2, MaxAccounts: 5}
	free := domain.TierLimits{Tier: domain.TierFree, MaxConnections: 0, MaxAccounts: 0}
	premium := domain.TierLimits{Tier: domain.TierPremium, MaxConnections: -1, MaxAccounts: -1}

	tests := []struct {
		name       string
		limits     domain.TierLimits
		usage      domain.TierUsage
		requested  int
		allowed    bool
		denyReason domain.DenyReason
		wantOffer  bool
	}{
		{
			name:       "zero limit forbids the feature outright",
			limits:     free,
			usage:      domain.TierUsage{},
			requested:  1,
			allowed:    false,
			denyReason: domain.DenyNoAccessForTier,
		},
		{
			name:      "within finite limits",
			limits:    plus,
			usage:     domain.TierUsage{Connections: 0, Accounts: 0},
			requested: 2,
			allowed:   true,
		},
		{
			name:       "account limit reached",
			limits:     plus,
			usage:      domain.TierUsage{Connections: 1, Accounts: 4},
			requested:  2,
			allowed:    false,
			denyReason: domain.DenyLimitReached,
		},
		{
			name:       "connection limit reached",
			limits:     plus,
			usage:      domain.TierUsage{Connections: 2, Accounts: 2},
			requested:  1,
			allowed:    false,
			denyReason: domain.DenyLimitReached,
		},
		{
			name:      "exactly at the account limit is allowed",
			limits:    plus,
			usage:     domain.TierUsage{Connections: 0, Accounts: 3},
			requested: 2,
			allowed:   true,
			wantOffer: true,
		},
		{
			name:      "unbounded tier never denies",
			limits:    premium,
			usage:     domain.TierUsage{Connections: 500, Accounts: 10000},
			requested: 50,
			allowed:   true,
		},
		{
			name:      "upgrade offer near the account limit",
			limits:    plus,
			usage:     domain.TierUsage{Connections: 0, Accounts: 2},
			requested: 2,
			allowed:   true,
			wantOffer: true,
		},
		{
			name:      "no offer when comfortably under the limit",
			limits:    plus,
			usage:     domain.TierUsage{Connections: 0, Accounts: 0},
			requested: 1,
			allowed:   true,
			wantOffer: false,
		},
		{
			name:      "zero requested treated as one",
			limits:    plus,
			usage:     domain.TierUsage{Connections: 0, Accounts: 5},
			requested: 0,
			allowed:   false,

			denyReason: domain.DenyLimitReached,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := gate.Evaluate(tt.limits, tt.usage, tt.requested)
			require.NotNil(t, decision)
			assert.Equal(t, tt.allowed, decision.Allowed)
			if !tt.allowed {
				assert.Equal(t, tt.denyReason, decision.DenyReason)
				assert.Nil(t, decision.UpgradeOffer)
			} else if tt.wantOffer {
				require.NotNil(t, decision.UpgradeOffer)
				assert.Equal(t, tt.limits.Tier, decision.UpgradeOffer.CurrentTier)
			} else {
				assert.Nil(t, decision.UpgradeOffer)
			}
		})
	}
}

func TestAdmissionGate_UpgradeOfferSuggestsNextTier(t *testing.T) {
	gate := NewAdmissionGate(nil, nil)

	plus := domain.TierLimits{Tier: domain.TierPlus, MaxConnections: 2, MaxAccounts: 5}
	decision := gate.Evaluate(plus, domain.TierUsage{Accounts: 3}, 1)
	require.True(t, decision.Allowed)
	require.NotNil(t, decision.UpgradeOffer)
	assert.Equal(t, domain.TierPremium, decision.UpgradeOffer.SuggestedTier)

	// A connection count at the offer threshold triggers it too.
	decision = gate.Evaluate(plus, domain.TierUsage{Connections: 1}, 1)
	require.True(t, decision.Allowed)
	assert.NotNil(t, decision.UpgradeOffer)
}

func TestAdmissionGate_CheckAdmission(t *testing.T) {
	catalog := repository.NewStaticTierCatalog()
	catalog.AssignTier("plus-user", domain.TierPlus)
	connections := repository.NewMemoryConnectionRepository()
	gate := NewAdmissionGate(catalog, connections)

	ctx := context.Background()

	decision, err := gate.CheckAdmission(ctx, "plus-user", 2)
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// Unknown users resolve to the free tier and are denied.
	decision, err = gate.CheckAdmission(ctx, "free-user", 1)
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, domain.DenyNoAccessForTier, decision.DenyReason)
}
