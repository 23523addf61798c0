package trend

import (
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestEvaluateGoalDecisionTable(t *testing.T) {
	now := day(2026, 3, 1)
	// latest=80, target=75, 10 days remaining → requiredDaily = -0.5
	goal := Goal{TargetValue: 75, TargetDate: day(2026, 3, 11)}

	tests := []struct {
		name   string
		latest *float64
		goal   Goal
		slope  *float64
		want   Verdict
	}{
		{"losing fast enough", f64(80), goal, f64(-0.6), Feasible},
		{"exactly at the cushion", f64(80), goal, f64(-0.4), Feasible},
		{"losing too slowly", f64(80), goal, f64(-0.2), NotFeasible},
		{"trending the wrong way", f64(80), goal, f64(0.1), NotFeasible},
		{"already at goal, flat trend", f64(80), Goal{TargetValue: 80, TargetDate: day(2026, 3, 11)}, f64(0.0), Feasible},
		{"no trend yet, goal away", f64(80), goal, nil, NotFeasible},
		{"no observations", nil, goal, f64(-0.5), Undetermined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateGoal(tt.latest, tt.goal, tt.slope, now)
			if got != tt.want {
				t.Errorf("EvaluateGoal = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEvaluateGoalPastOrTodayIsUndetermined(t *testing.T) {
	now := day(2026, 3, 10)

	tests := []struct {
		name   string
		target time.Time
	}{
		{"target today", day(2026, 3, 10)},
		{"target in the past", day(2026, 3, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EvaluateGoal(f64(80), Goal{TargetValue: 60, TargetDate: tt.target}, f64(-5), now)
			if got != Undetermined {
				t.Errorf("EvaluateGoal = %s, want undetermined regardless of slope", got)
			}
		})
	}
}

func TestEvaluateGoalNegligibleOppositeSlope(t *testing.T) {
	// An opposite-sign slope below the 0.01 threshold is not a sign
	// conflict; it falls through to the cushion comparison.
	now := day(2026, 3, 1)
	goal := Goal{TargetValue: 75, TargetDate: day(2026, 3, 11)}

	got := EvaluateGoal(f64(80), goal, f64(0.005), now)

	if got != NotFeasible {
		t.Errorf("EvaluateGoal = %s, want not_feasible via cushion rule", got)
	}
}

func TestVerdictString(t *testing.T) {
	tests := []struct {
		v    Verdict
		want string
	}{
		{Feasible, "feasible"},
		{NotFeasible, "not_feasible"},
		{Undetermined, "undetermined"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Verdict(%d).String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}
