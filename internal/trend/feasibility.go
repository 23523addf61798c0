package trend

import (
	"math"
	"time"
)

// Verdict classifies whether a goal is reachable on the observed trend.
type Verdict int

const (
	// Undetermined means no verdict is possible: no observations yet, or
	// the goal date is today or in the past. It is an outcome, not an error.
	Undetermined Verdict = iota
	Feasible
	NotFeasible
)

func (v Verdict) String() string {
	switch v {
	case Feasible:
		return "feasible"
	case NotFeasible:
		return "not_feasible"
	default:
		return "undetermined"
	}
}

// Goal is a user-chosen target value and date.
type Goal struct {
	TargetValue float64
	TargetDate  time.Time
}

// Policy thresholds. A slope smaller than flatSlope is treated as no trend;
// rateCushion lets a trend within 20% of the required rate still qualify.
const (
	flatSlope   = 0.01
	rateCushion = 0.8
)

// EvaluateGoal compares the required rate-of-change against the observed
// trend. latest and slope are nil when no observation exists or the
// regression is undefined; an undefined slope is evaluated as 0.
//
// The rules are checked in order:
//  1. already at goal with a flat trend → Feasible
//  2. trend moves opposite to the requirement and is not negligible → NotFeasible
//  3. trend rate within the cushion of the required rate → Feasible
//  4. otherwise → NotFeasible
func EvaluateGoal(latest *float64, goal Goal, slope *float64, now time.Time) Verdict {
	if latest == nil {
		return Undetermined
	}

	daysRemaining := WholeDays(now, goal.TargetDate)
	if daysRemaining <= 0 {
		return Undetermined
	}

	requiredDaily := (goal.TargetValue - *latest) / float64(daysRemaining)

	s := 0.0
	if slope != nil {
		s = *slope
	}

	switch {
	case requiredDaily == 0 && math.Abs(s) < flatSlope:
		return Feasible
	case requiredDaily*s < 0 && math.Abs(s) > flatSlope:
		return NotFeasible
	case math.Abs(s) >= rateCushion*math.Abs(requiredDaily):
		return Feasible
	default:
		return NotFeasible
	}
}
