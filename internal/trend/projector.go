package trend

import (
	"fmt"
	"math"
	"time"
)

// Projector answers prediction queries against a fitted line anchored at a
// series base date. The zero value (no regression) answers every query with
// the undefined/empty outcome.
type Projector struct {
	reg     Regression
	defined bool
	base    time.Time
}

// NewProjector builds a projector for the given fit. defined mirrors the ok
// result of Fit.
func NewProjector(reg Regression, defined bool, base time.Time) Projector {
	return Projector{reg: reg, defined: defined, base: base}
}

// Defined reports whether the underlying regression exists.
func (p Projector) Defined() bool {
	return p.defined
}

// Slope returns the fitted slope in units per day. Only meaningful when
// Defined reports true.
func (p Projector) Slope() float64 {
	return p.reg.Slope
}

// Predict evaluates the fitted line on the given calendar date.
// The day difference is whole days; fractional time-of-day is discarded,
// consistent with series construction. ok is false when the regression is
// undefined.
func (p Projector) Predict(date time.Time) (float64, bool) {
	if !p.defined {
		return 0, false
	}
	x := float64(WholeDays(p.base, date))
	return p.reg.Slope*x + p.reg.Intercept, true
}

// Polyline materializes horizonDays+1 points at unit-day spacing starting at
// fromX, inclusive of both ends. It returns nil when the regression is
// undefined. The result is recomputed on every call; it depends only on the
// arguments.
func (p Projector) Polyline(fromX float64, horizonDays int) []XY {
	if !p.defined || horizonDays < 0 {
		return nil
	}
	line := make([]XY, 0, horizonDays+1)
	for i := 0; i <= horizonDays; i++ {
		x := fromX + float64(i)
		line = append(line, XY{X: x, Y: p.reg.Slope*x + p.reg.Intercept})
	}
	return line
}

// WeeklyRate formats the trend as a per-week rate with one decimal place.
func (p Projector) WeeklyRate() string {
	if !p.defined {
		return ""
	}
	return fmt.Sprintf("%.1f kg/week", p.reg.Slope*7)
}

// ViewRange computes the padded display range for the observed y-values:
// [min − pad/2, max + pad/2] with pad = clamp(max−min, 1, 10). For a flat
// series (min == max) the pad is 1.0, giving a half-unit margin either side.
func ViewRange(ys []float64) (lo, hi float64) {
	if len(ys) == 0 {
		return 0, 0
	}
	min, max := ys[0], ys[0]
	for _, y := range ys[1:] {
		min = math.Min(min, y)
		max = math.Max(max, y)
	}
	pad := max - min
	if pad < 1.0 {
		pad = 1.0
	}
	if pad > 10.0 {
		pad = 10.0
	}
	return min - pad/2, max + pad/2
}
