package models

import "time"

// User represents a registered account on the backend
type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents an active user session
type Session struct {
	Token     string    `json:"token"`
	UserID    int       `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WeightEntry is one dated body-weight observation.
// Day is an ISO-8601 calendar date ("2006-01-02").
type WeightEntry struct {
	Day      string  `json:"day"`
	WeightKg float64 `json:"weight_kg"`
}

// RunEntry is one dated run record.
type RunEntry struct {
	Day         string  `json:"day"`
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// Profile holds the per-user preferences stored in the backend "me" record.
// WeighTime and RunTime are wall-clock times in "HH:MM" form.
type Profile struct {
	ID           int     `json:"id,omitempty"`
	Username     string  `json:"username,omitempty"`
	TargetWeight float64 `json:"target_weight"`
	DailyRunKm   float64 `json:"daily_run_km"`
	WeighTime    string  `json:"weigh_time"`
	RunTime      string  `json:"run_time"`
}

// Summary is the backend's aggregated dashboard payload.
type Summary struct {
	LatestWeight    *float64 `json:"latest_weight"`
	LatestWeightDay *string  `json:"latest_weight_day"`
	DeltaToTarget   *float64 `json:"delta_to_target"`
	DailyRunGoalKm  float64  `json:"daily_run_goal_km"`
	Run7dKm         float64  `json:"run_7d_km"`
	WeighStreak     int      `json:"weigh_streak"`
	RunStreak       int      `json:"run_streak"`
}

// ServerConfig holds backend server configuration
type ServerConfig struct {
	Port   string
	DBPath string
}

// EngineConfig holds trend & reminder engine configuration
type EngineConfig struct {
	BaseURL     string
	StorePath   string
	Port        string // status/WebSocket listen port
	ShoutrrrURL string // reminder delivery target; empty disables reminders
	Username    string
	Password    string
}
