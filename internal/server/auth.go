package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/otterable/minifitna/internal/models"
)

const sessionLifetime = 14 * 24 * time.Hour

const sqliteTime = "2006-01-02 15:04:05"

// HashPassword creates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// CreateSession creates a new session for a user and returns its token.
func CreateSession(db *sql.DB, userID int) (string, error) {
	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(sessionLifetime)

	_, err := db.Exec(
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt.Format(sqliteTime),
	)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return token, nil
}

// GetSession retrieves a live session by token, or nil.
func GetSession(db *sql.DB, token string) *models.Session {
	if token == "" {
		return nil
	}

	var session models.Session
	var expiresAt string
	err := db.QueryRow(`
		SELECT s.token, s.user_id, u.username, s.expires_at
		FROM sessions s
		JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > datetime('now')
	`, token).Scan(&session.Token, &session.UserID, &session.Username, &expiresAt)
	if err != nil {
		return nil
	}

	session.ExpiresAt, _ = time.Parse(sqliteTime, expiresAt)
	return &session
}

// contextKey is the type for context keys in the server package
type contextKey string

// SessionKey is the context key for session data
const SessionKey contextKey = "session"

// RequireAuth rejects requests without a valid bearer token before calling
// next. The engine treats the resulting 401 like any other 4xx.
func RequireAuth(db *sql.DB, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			JSONError(w, "missing_token", http.StatusUnauthorized)
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		session := GetSession(db, token)
		if session == nil {
			JSONError(w, "invalid_token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), SessionKey, session)
		next(w, r.WithContext(ctx))
	}
}

// SessionFromContext extracts the session stored in the request context.
func SessionFromContext(r *http.Request) *models.Session {
	if session, ok := r.Context().Value(SessionKey).(*models.Session); ok {
		return session
	}
	return nil
}
