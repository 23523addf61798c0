package server

import (
	"net/http"
	"time"

	"github.com/otterable/minifitna/internal/models"
)

// Summary aggregates the dashboard payload: latest weight, delta to the
// target, the last seven days of running, and the current daily streaks.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)
	userID := session.UserID

	var s models.Summary

	var day string
	var kg float64
	err := h.db.QueryRow(
		"SELECT day, weight_kg FROM weights WHERE user_id = ? ORDER BY day DESC LIMIT 1",
		userID,
	).Scan(&day, &kg)
	if err == nil {
		s.LatestWeight = &kg
		s.LatestWeightDay = &day
	}

	var targetWeight, dailyRunKm float64
	if err := h.db.QueryRow(
		"SELECT target_weight, daily_run_km FROM users WHERE id = ?", userID,
	).Scan(&targetWeight, &dailyRunKm); err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.DailyRunGoalKm = dailyRunKm
	if s.LatestWeight != nil {
		delta := *s.LatestWeight - targetWeight
		s.DeltaToTarget = &delta
	}

	start7 := time.Now().AddDate(0, 0, -6).Format(dateLayout)
	h.db.QueryRow(
		"SELECT COALESCE(SUM(distance_km), 0) FROM runs WHERE user_id = ? AND day >= ?",
		userID, start7,
	).Scan(&s.Run7dKm)

	s.WeighStreak = h.streak("weights", userID)
	s.RunStreak = h.streak("runs", userID)

	JSONResponse(w, s)
}

// streak counts consecutive days with an entry, walking back from today.
func (h *Handlers) streak(table string, userID int) int {
	day := time.Now()
	count := 0
	for {
		var one int
		err := h.db.QueryRow(
			"SELECT 1 FROM "+table+" WHERE user_id = ? AND day = ? LIMIT 1",
			userID, day.Format(dateLayout),
		).Scan(&one)
		if err != nil {
			break
		}
		count++
		day = day.AddDate(0, 0, -1)
	}
	return count
}
