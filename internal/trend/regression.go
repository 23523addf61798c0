package trend

// Regression is a fitted line y = Slope*x + Intercept.
// Slope is in observed units per day.
type Regression struct {
	Slope     float64
	Intercept float64
}

// Fit computes an ordinary least squares fit over the series.
// ok is false when the fit is undefined: fewer than two points, or all
// points sharing the same x (every observation on the same day). An
// undefined fit is a distinct outcome from a zero slope and callers must
// branch on it rather than coerce it to zero.
func Fit(points []Point) (Regression, bool) {
	if len(points) < 2 {
		return Regression{}, false
	}

	n := float64(len(points))
	var sumX, sumY, sumXY, sumX2 float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
		sumXY += p.X * p.Y
		sumX2 += p.X * p.X
	}

	denom := n*sumX2 - sumX*sumX
	if denom == 0 {
		return Regression{}, false
	}

	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n
	return Regression{Slope: slope, Intercept: intercept}, true
}
