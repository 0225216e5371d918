package services

import (
	"context"
	"fmt"

	"finlink/internal/domain"
	"finlink/internal/repository"
)

// upgradeOfferThreshold is the fraction of a finite limit at which an
// allowed decision carries a soft upgrade prompt.
const upgradeOfferThreshold = 0.75

// AdmissionGate decides whether a user may add more linked accounts and
// connections. It is stateless: every decision is a pure function of the
// tier catalog and current usage.
type AdmissionGate interface {
	// CheckAdmission evaluates adding requestedAccounts accounts plus one
	// connection against the user's tier. requestedAccounts < 1 is
	// treated as 1.
	CheckAdmission(ctx context.Context, userID string, requestedAccounts int) (*domain.AdmissionDecision, error)

	// Evaluate applies the same rules to a usage snapshot obtained
	// elsewhere. The persistence writer uses this with the usage observed
	// inside its transaction.
	Evaluate(limits domain.TierLimits, usage domain.TierUsage, requestedAccounts int) *domain.AdmissionDecision

	// LimitsFor resolves the tier limits for a user.
	LimitsFor(ctx context.Context, userID string) (domain.TierLimits, error)
}

type admissionGate struct {
	catalog     repository.TierCatalog
	connections repository.ConnectionRepository
}

// NewAdmissionGate creates the tier admission gate.
func NewAdmissionGate(catalog repository.TierCatalog, connections repository.ConnectionRepository) AdmissionGate {
	return &admissionGate{catalog: catalog, connections: connections}
}

func (g *admissionGate) LimitsFor(ctx context.Context, userID string) (domain.TierLimits, error) {
	tier, err := g.catalog.GetUserTier(ctx, userID)
	if err != nil {
		return domain.TierLimits{}, err
	}
	return g.catalog.GetTierLimits(ctx, tier)
}

func (g *admissionGate) CheckAdmission(ctx context.Context, userID string, requestedAccounts int) (*domain.AdmissionDecision, error) {
	limits, err := g.LimitsFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	usage, err := g.connections.CountUsage(ctx, userID)
	if err != nil {
		return nil, err
	}
	return g.Evaluate(limits, usage, requestedAccounts), nil
}

func (g *admissionGate) Evaluate(limits domain.TierLimits, usage domain.TierUsage, requestedAccounts int) *domain.AdmissionDecision {
	if requestedAccounts < 1 {
		requestedAccounts = 1
	}
	decision := &domain.AdmissionDecision{Limits: limits, Usage: usage}

	// Limit 0 forbids the feature outright and is distinct from a
	// reached finite limit; -1 is unbounded.
	if limits.MaxAccounts == 0 || limits.MaxConnections == 0 {
		decision.DenyReason = domain.DenyNoAccessForTier
		return decision
	}

	if limits.MaxConnections > 0 && usage.Connections+1 > limits.MaxConnections {
		decision.DenyReason = domain.DenyLimitReached
		return decision
	}
	if limits.MaxAccounts > 0 && usage.Accounts+requestedAccounts > limits.MaxAccounts {
		decision.DenyReason = domain.DenyLimitReached
		return decision
	}

	decision.Allowed = true
	decision.UpgradeOffer = upgradeOffer(limits, usage, requestedAccounts)
	return decision
}

// upgradeOffer returns a soft prompt when projected usage crosses the
// offer threshold of a finite limit. Never blocks.
func upgradeOffer(limits domain.TierLimits, usage domain.TierUsage, requestedAccounts int) *domain.UpgradeOffer {
	if limits.MaxAccounts <= 0 && limits.MaxConnections <= 0 {
		return nil
	}

	nearLimit := false
	if limits.MaxAccounts > 0 {
		projected := float64(usage.Accounts + requestedAccounts)
		nearLimit = nearLimit || projected >= upgradeOfferThreshold*float64(limits.MaxAccounts)
	}
	if limits.MaxConnections > 0 {
		projected := float64(usage.Connections + 1)
		nearLimit = nearLimit || projected >= upgradeOfferThreshold*float64(limits.MaxConnections)
	}
	if !nearLimit {
		return nil
	}

	suggested := domain.TierPlus
	if limits.Tier == domain.TierPlus {
		suggested = domain.TierPremium
	}
	return &domain.UpgradeOffer{
		CurrentTier:   limits.Tier,
		SuggestedTier: suggested,
		Message:       fmt.Sprintf("You are close to the limits of the %s tier. Upgrade to %s for more linked accounts.", limits.Tier, suggested),
	}
}
