package entitlements

import "testing"

func TestNormalizePlan(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "collector", want: PlanCollector},
		{in: "curator", want: PlanCurator},
		{in: "enthusiast", want: PlanEnthusiast},
		{in: "ENTHUSIAST", want: PlanEnthusiast},
		{in: " curator ", want: PlanCurator},
		{in: "premium", want: PlanCollector},
		{in: "", want: PlanCollector},
	}

	for _, tt := range tests {
		if got := NormalizePlan(tt.in); got != tt.want {
			t.Fatalf("NormalizePlan(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlanRank(t *testing.T) {
	if PlanRank(PlanCollector) >= PlanRank(PlanCurator) {
		t.Fatalf("expected curator to outrank collector")
	}
	if PlanRank(PlanCurator) >= PlanRank(PlanEnthusiast) {
		t.Fatalf("expected enthusiast to outrank curator")
	}
}

func TestHasTier(t *testing.T) {
	tests := []struct {
		plan     Plan
		required Plan
		want     bool
	}{
		{plan: PlanCollector, required: PlanCollector, want: true},
		{plan: PlanCollector, required: PlanCurator, want: false},
		{plan: PlanCurator, required: PlanCurator, want: true},
		{plan: PlanCurator, required: PlanEnthusiast, want: false},
		{plan: PlanEnthusiast, required: PlanCollector, want: true},
		{plan: PlanEnthusiast, required: PlanEnthusiast, want: true},
	}

	for _, tt := range tests {
		if got := HasTier(tt.plan, tt.required); got != tt.want {
			t.Fatalf("HasTier(%q, %q) = %v, want %v", tt.plan, tt.required, got, tt.want)
		}
	}
}

func TestIsValidPlan(t *testing.T) {
	for _, plan := range []string{"collector", "curator", "enthusiast"} {
		if !IsValidPlan(plan) {
			t.Fatalf("expected plan %q to be valid", plan)
		}
	}
	for _, plan := range []string{"", "free", "premium", "collector2"} {
		if IsValidPlan(plan) {
			t.Fatalf("expected plan %q to be invalid", plan)
		}
	}
}

func TestLimitsFor(t *testing.T) {
	free := LimitsFor(PlanCollector)
	if free.Unlimited {
		t.Fatalf("expected collector limits to be bounded")
	}
	if free.Scans != 10 || free.Albums != 100 || free.Gear != 3 {
		t.Fatalf("unexpected collector limits: %+v", free)
	}

	for _, plan := range []Plan{PlanCurator, PlanEnthusiast} {
		if !LimitsFor(plan).Unlimited {
			t.Fatalf("expected plan %q to be unlimited", plan)
		}
	}

	if got := LimitsFor(Plan("bogus")); got != free {
		t.Fatalf("expected unknown plan to fall back to collector limits, got %+v", got)
	}
}
