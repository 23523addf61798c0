package server

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/otterable/minifitna/internal/models"
)

const dateLayout = "2006-01-02"

// Handlers bundles the HTTP handlers with their database.
type Handlers struct {
	db *sql.DB
}

// NewHandlers creates the handler set.
func NewHandlers(db *sql.DB) *Handlers {
	return &Handlers{db: db}
}

// JSONResponse sends a JSON response
func JSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[Server] Failed to encode JSON response: %v", err)
	}
}

// JSONError sends a JSON error response
func JSONError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Ping answers the liveness probe.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	JSONResponse(w, map[string]any{
		"pong": true,
		"utc":  time.Now().UTC().Format(time.RFC3339),
	})
}

// Health reports whether the database answers.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]string{"status": "ok"})
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *credentials) normalize() {
	c.Username = strings.ToLower(strings.TrimSpace(c.Username))
}

// Register creates an account and opens a session.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		JSONError(w, "invalid_json", http.StatusBadRequest)
		return
	}
	creds.normalize()
	if creds.Username == "" || creds.Password == "" {
		JSONError(w, "username_password_required", http.StatusBadRequest)
		return
	}

	hash, err := HashPassword(creds.Password)
	if err != nil {
		JSONError(w, "hash_failure", http.StatusInternalServerError)
		return
	}

	res, err := h.db.Exec(
		"INSERT INTO users (username, password_hash) VALUES (?, ?)",
		creds.Username, hash,
	)
	if err != nil {
		JSONError(w, "username_taken", http.StatusConflict)
		return
	}

	userID, _ := res.LastInsertId()
	token, err := CreateSession(h.db, int(userID))
	if err != nil {
		JSONError(w, "session_failure", http.StatusInternalServerError)
		return
	}

	log.Printf("[Server] Registered user %s", creds.Username)
	JSONResponse(w, map[string]string{"token": token, "username": creds.Username})
}

// Login authenticates and opens a session.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		JSONError(w, "invalid_json", http.StatusBadRequest)
		return
	}
	creds.normalize()
	if creds.Username == "" || creds.Password == "" {
		JSONError(w, "username_password_required", http.StatusBadRequest)
		return
	}

	var user models.User
	err := h.db.QueryRow(
		"SELECT id, username, password_hash FROM users WHERE username = ?",
		creds.Username,
	).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil || !CheckPassword(creds.Password, user.PasswordHash) {
		JSONError(w, "invalid_credentials", http.StatusUnauthorized)
		return
	}

	token, err := CreateSession(h.db, user.ID)
	if err != nil {
		JSONError(w, "session_failure", http.StatusInternalServerError)
		return
	}

	log.Printf("[Server] Login: %s", user.Username)
	JSONResponse(w, map[string]string{"token": token, "username": user.Username})
}

// MeGet returns the profile record.
func (h *Handlers) MeGet(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)

	p, err := h.loadProfile(session.UserID)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	JSONResponse(w, p)
}

// MePut replaces the profile record and returns the stored result.
func (h *Handlers) MePut(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)

	var p models.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		JSONError(w, "invalid_json", http.StatusBadRequest)
		return
	}
	if p.WeighTime == "" {
		p.WeighTime = "08:00"
	}
	if p.RunTime == "" {
		p.RunTime = "18:00"
	}

	_, err := h.db.Exec(
		"UPDATE users SET target_weight=?, daily_run_km=?, weigh_time=?, run_time=? WHERE id=?",
		p.TargetWeight, p.DailyRunKm, p.WeighTime, p.RunTime, session.UserID,
	)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	stored, err := h.loadProfile(session.UserID)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	JSONResponse(w, stored)
}

func (h *Handlers) loadProfile(userID int) (models.Profile, error) {
	var p models.Profile
	err := h.db.QueryRow(
		"SELECT id, username, target_weight, daily_run_km, weigh_time, run_time FROM users WHERE id = ?",
		userID,
	).Scan(&p.ID, &p.Username, &p.TargetWeight, &p.DailyRunKm, &p.WeighTime, &p.RunTime)
	return p, err
}

// WeightsList returns weight entries, optionally bounded by start/end days.
func (h *Handlers) WeightsList(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)

	query := "SELECT day, weight_kg FROM weights WHERE user_id = ?"
	args := []any{session.UserID}
	query, args = appendRange(query, args, r)
	query += " ORDER BY day DESC"

	rows, err := h.db.Query(query, args...)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	entries := make([]models.WeightEntry, 0)
	for rows.Next() {
		var e models.WeightEntry
		if err := rows.Scan(&e.Day, &e.WeightKg); err != nil {
			JSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		entries = append(entries, e)
	}
	JSONResponse(w, entries)
}

// WeightsAdd upserts the weight for a day (defaulting to today).
func (h *Handlers) WeightsAdd(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)

	var e models.WeightEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		JSONError(w, "invalid_json", http.StatusBadRequest)
		return
	}
	if e.Day == "" {
		e.Day = time.Now().Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, e.Day); err != nil {
		JSONError(w, "invalid_day", http.StatusBadRequest)
		return
	}

	_, err := h.db.Exec(`
		INSERT INTO weights (user_id, day, weight_kg) VALUES (?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET weight_kg = excluded.weight_kg`,
		session.UserID, e.Day, e.WeightKg,
	)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]any{"status": "ok", "day": e.Day, "weight_kg": e.WeightKg})
}

// RunsList returns run entries, optionally bounded by start/end days.
func (h *Handlers) RunsList(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)

	query := "SELECT day, distance_km, duration_min FROM runs WHERE user_id = ?"
	args := []any{session.UserID}
	query, args = appendRange(query, args, r)
	query += " ORDER BY day DESC"

	rows, err := h.db.Query(query, args...)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	entries := make([]models.RunEntry, 0)
	for rows.Next() {
		var e models.RunEntry
		if err := rows.Scan(&e.Day, &e.DistanceKm, &e.DurationMin); err != nil {
			JSONError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		entries = append(entries, e)
	}
	JSONResponse(w, entries)
}

// RunsAdd upserts the run for a day (defaulting to today).
func (h *Handlers) RunsAdd(w http.ResponseWriter, r *http.Request) {
	session := SessionFromContext(r)

	var e models.RunEntry
	if err := json.NewDecoder(r.Body).Decode(&e); err != nil {
		JSONError(w, "invalid_json", http.StatusBadRequest)
		return
	}
	if e.Day == "" {
		e.Day = time.Now().Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, e.Day); err != nil {
		JSONError(w, "invalid_day", http.StatusBadRequest)
		return
	}

	_, err := h.db.Exec(`
		INSERT INTO runs (user_id, day, distance_km, duration_min) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, day) DO UPDATE SET
			distance_km = excluded.distance_km,
			duration_min = excluded.duration_min`,
		session.UserID, e.Day, e.DistanceKm, e.DurationMin,
	)
	if err != nil {
		JSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	JSONResponse(w, map[string]any{
		"status": "ok", "day": e.Day,
		"distance_km": e.DistanceKm, "duration_min": e.DurationMin,
	})
}

func appendRange(query string, args []any, r *http.Request) (string, []any) {
	if start := r.URL.Query().Get("start"); start != "" {
		query += " AND day >= ?"
		args = append(args, start)
	}
	if end := r.URL.Query().Get("end"); end != "" {
		query += " AND day <= ?"
		args = append(args, end)
	}
	return query, args
}
