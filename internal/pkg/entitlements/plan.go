package entitlements

import "strings"

// Plan is an ordered subscription tier.
type Plan string

const (
	PlanCollector  Plan = "collector"
	PlanCurator    Plan = "curator"
	PlanEnthusiast Plan = "enthusiast"
)

// Limits describes what a plan allows per month. Unlimited plans ignore the
// numeric fields.
type Limits struct {
	Scans     int
	Albums    int
	Gear      int
	Unlimited bool
}

// planLimits is configuration, not entity state. Paid tiers are unlimited.
var planLimits = map[Plan]Limits{
	PlanCollector:  {Scans: 10, Albums: 100, Gear: 3},
	PlanCurator:    {Unlimited: true},
	PlanEnthusiast: {Unlimited: true},
}

// NormalizePlan maps arbitrary input onto the closed plan set, defaulting to
// the free tier.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanCurator):
		return PlanCurator
	case string(PlanEnthusiast):
		return PlanEnthusiast
	default:
		return PlanCollector
	}
}

// IsValidPlan reports whether plan names a member of the closed plan set.
func IsValidPlan(plan string) bool {
	switch Plan(strings.ToLower(strings.TrimSpace(plan))) {
	case PlanCollector, PlanCurator, PlanEnthusiast:
		return true
	default:
		return false
	}
}

// PlanRank orders plans: collector < curator < enthusiast.
func PlanRank(plan Plan) int {
	switch NormalizePlan(string(plan)) {
	case PlanEnthusiast:
		return 2
	case PlanCurator:
		return 1
	default:
		return 0
	}
}

// HasTier reports whether plan meets or exceeds required.
func HasTier(plan, required Plan) bool {
	return PlanRank(plan) >= PlanRank(required)
}

// LimitsFor returns the quota limits for a plan, defaulting to the free tier
// for unknown input.
func LimitsFor(plan Plan) Limits {
	if l, ok := planLimits[NormalizePlan(string(plan))]; ok {
		return l
	}
	return planLimits[PlanCollector]
}
