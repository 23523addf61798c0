package trend

import (
	"math"
	"sort"
	"time"
)

// Point is one dated observation projected onto a numeric day axis.
// X counts days since the series base date (the earliest observed day).
type Point struct {
	X   float64
	Y   float64
	Day time.Time
}

// Observation is a raw dated measurement before projection.
type Observation struct {
	Day   time.Time
	Value float64
}

// XY is a chart coordinate.
type XY struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BuildSeries converts dated observations into a series of points ordered by
// day, with X measured in whole days from the earliest day. The returned
// slice is a fresh allocation; the series is always rebuilt in full.
func BuildSeries(obs []Observation) []Point {
	if len(obs) == 0 {
		return nil
	}

	sorted := make([]Observation, len(obs))
	copy(sorted, obs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Day.Before(sorted[j].Day)
	})

	base := sorted[0].Day
	points := make([]Point, len(sorted))
	for i, o := range sorted {
		points[i] = Point{
			X:   float64(WholeDays(base, o.Day)),
			Y:   o.Value,
			Day: o.Day,
		}
	}
	return points
}

// WholeDays returns the whole-day difference between two instants,
// discarding the time-of-day of both.
func WholeDays(from, to time.Time) int {
	f := dayFloor(from)
	t := dayFloor(to)
	// Rounding absorbs DST days that are 23 or 25 hours long.
	return int(math.Round(t.Sub(f).Hours() / 24.0))
}

func dayFloor(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
