package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"flightdeck-go/internal/metrics"
	"flightdeck-go/internal/profile"
	"flightdeck-go/internal/session"
)

// SessionStore implements session.Store on SQLite. Access tokens are
// encrypted at rest with AES-256-GCM; the profile is stored as plain JSON.
type SessionStore struct {
	storage *SQLiteStorage
	key     []byte
}

// NewSessionStore wraps storage with the given encryption key.
func NewSessionStore(storage *SQLiteStorage, key []byte) (*SessionStore, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	return &SessionStore{storage: storage, key: key}, nil
}

func validateSession(s *session.Session) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("%w: session ID cannot be empty", ErrInvalidInput)
	}
	if s.UserID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}
	if s.ExpiresAt.IsZero() {
		return fmt.Errorf("%w: expiry cannot be zero", ErrInvalidInput)
	}
	return nil
}

// Create persists a session, encrypting its token if present.
func (st *SessionStore) Create(ctx context.Context, s *session.Session) error {
	if err := validateSession(s); err != nil {
		return err
	}

	var token, nonce []byte
	if s.AccessToken != "" {
		var err error
		token, nonce, err = EncryptToken(st.key, []byte(s.AccessToken))
		if err != nil {
			return fmt.Errorf("failed to encrypt token: %w", err)
		}
	}

	var profileJSON sql.NullString
	if s.Profile != nil {
		raw, err := json.Marshal(s.Profile)
		if err != nil {
			return fmt.Errorf("failed to encode profile: %w", err)
		}
		profileJSON = sql.NullString{String: string(raw), Valid: true}
	}

	query := `INSERT OR REPLACE INTO sessions
		(session_id, user_id, encrypted_token, nonce, profile_json, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := st.storage.db.ExecContext(ctx, query,
		s.ID, s.UserID, token, nonce, profileJSON, s.ExpiresAt.UTC(), s.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	st.refreshGauge(ctx)
	return nil
}

// Get loads a session by ID. Expired rows are deleted on read and reported
// as not found.
func (st *SessionStore) Get(ctx context.Context, id string) (*session.Session, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: session ID cannot be empty", ErrInvalidInput)
	}

	query := `SELECT user_id, encrypted_token, nonce, profile_json, expires_at, created_at
		FROM sessions WHERE session_id = ?`
	row := st.storage.db.QueryRowContext(ctx, query, id)

	var (
		s           = session.Session{ID: id}
		token       []byte
		nonce       []byte
		profileJSON sql.NullString
	)
	err := row.Scan(&s.UserID, &token, &nonce, &profileJSON, &s.ExpiresAt, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if time.Now().After(s.ExpiresAt) {
		_ = st.Delete(ctx, id)
		return nil, session.ErrNotFound
	}

	if len(token) > 0 {
		plain, err := DecryptToken(st.key, token, nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt token: %w", err)
		}
		s.AccessToken = string(plain)
	}
	if profileJSON.Valid {
		var p profile.Profile
		if err := json.Unmarshal([]byte(profileJSON.String), &p); err != nil {
			return nil, fmt.Errorf("failed to decode profile: %w", err)
		}
		s.Profile = &p
	}
	return &s, nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (st *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: session ID cannot be empty", ErrInvalidInput)
	}
	_, err := st.storage.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	st.refreshGauge(ctx)
	return nil
}

// PurgeExpired deletes all sessions past their expiry.
func (st *SessionStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := st.storage.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at < ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	st.refreshGauge(ctx)
	return n, nil
}

// refreshGauge sets ActiveSessions from the table itself, so replacing an
// existing session never drifts the count.
func (st *SessionStore) refreshGauge(ctx context.Context) {
	var n int
	err := st.storage.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE expires_at > ?`, time.Now().UTC(),
	).Scan(&n)
	if err != nil {
		return
	}
	metrics.ActiveSessions.Set(float64(n))
}
