package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/xiaot623/gogo/chat/internal/domain"
)

// SQLiteStore implements SessionRepository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ SessionRepository = (*SQLiteStore)(nil)

// NewSQLiteStore opens the database and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite store: empty dsn")
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	// Shared-cache connections fail with SQLITE_LOCKED instead of waiting on
	// busy_timeout, so they are serialized too.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") || strings.Contains(dsn, "cache=shared") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to migrate database")
	}

	return store, nil
}

// FileDSN returns the DSN for a database file: WAL journal so readers do not
// block the writer, and a busy timeout so concurrent writers wait for the lock.
func FileDSN(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("sqlite store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			turns TEXT NOT NULL DEFAULT '[]',
			turn_count INTEGER NOT NULL DEFAULT 0,
			active INTEGER NOT NULL DEFAULT 1,
			tags TEXT,
			summary TEXT,
			version INTEGER NOT NULL DEFAULT 0,
			created_at_ns INTEGER NOT NULL,
			updated_at_ns INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_owner_updated ON sessions(owner_id, active, updated_at_ns DESC)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sessionColumns = `session_id, owner_id, turns, turn_count, active, tags, summary, version, created_at_ns, updated_at_ns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		session            domain.Session
		turns              string
		active             int
		tags, summary      sql.NullString
		createdNs, updated int64
	)
	if err := row.Scan(&session.SessionID, &session.OwnerID, &turns, &session.TurnCount, &active,
		&tags, &summary, &session.Version, &createdNs, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(turns), &session.Turns); err != nil {
		return nil, errors.Wrapf(err, "decode turns of session %s", session.SessionID)
	}
	if session.Turns == nil {
		session.Turns = []domain.Turn{}
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &session.Tags); err != nil {
			return nil, errors.Wrapf(err, "decode tags of session %s", session.SessionID)
		}
	}
	session.Summary = summary.String
	session.Active = active == 1
	session.CreatedAt = time.Unix(0, createdNs).UTC()
	session.UpdatedAt = time.Unix(0, updated).UTC()
	return &session, nil
}

// GetSession retrieves a session by ID.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_id = ?`, sessionID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	return session, nil
}

// CreateSession inserts a session unless the id already exists.
func (s *SQLiteStore) CreateSession(ctx context.Context, session *domain.Session) (bool, error) {
	turns, tags, err := encodeSession(session)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`,
		session.SessionID, session.OwnerID, turns, len(session.Turns), boolToInt(session.Active),
		tags, nullString(session.Summary), session.Version,
		session.CreatedAt.UnixNano(), session.UpdatedAt.UnixNano())
	if err != nil {
		return false, errors.Wrap(err, "create session")
	}
	return rowsAffected(res)
}

// UpdateSession writes the turn log with a version check.
func (s *SQLiteStore) UpdateSession(ctx context.Context, session *domain.Session, expectedVersion int64) (bool, error) {
	turns, tags, err := encodeSession(session)
	if err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET turns = ?, turn_count = ?, tags = ?, summary = ?, updated_at_ns = ?, version = version + 1
		WHERE session_id = ? AND owner_id = ? AND version = ? AND active = 1`,
		turns, len(session.Turns), tags, nullString(session.Summary), session.UpdatedAt.UnixNano(),
		session.SessionID, session.OwnerID, expectedVersion)
	if err != nil {
		return false, errors.Wrap(err, "update session")
	}
	return rowsAffected(res)
}

// DeactivateSession soft-deletes one active session.
func (s *SQLiteStore) DeactivateSession(ctx context.Context, ownerID, sessionID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET active = 0, updated_at_ns = ?, version = version + 1
		WHERE owner_id = ? AND session_id = ? AND active = 1`,
		at.UnixNano(), ownerID, sessionID)
	if err != nil {
		return false, errors.Wrap(err, "deactivate session")
	}
	return rowsAffected(res)
}

// DeactivateSessions soft-deletes every active session of an owner.
func (s *SQLiteStore) DeactivateSessions(ctx context.Context, ownerID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET active = 0, updated_at_ns = ?, version = version + 1
		WHERE owner_id = ? AND active = 1`,
		at.UnixNano(), ownerID)
	if err != nil {
		return 0, errors.Wrap(err, "deactivate sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deactivate sessions")
	}
	return n, nil
}

func filterClause(filter SessionFilter) (string, []any) {
	where := `owner_id = ? AND active = 1`
	args := []any{filter.OwnerID}
	if filter.SessionID != "" {
		where += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	return where, args
}

// ListSessions returns a page of active sessions, newest update first.
func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]domain.Session, error) {
	where, args := filterClause(filter)
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE ` + where +
		` ORDER BY updated_at_ns DESC, session_id ASC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list sessions")
	}
	return sessions, nil
}

// CountSessions counts active sessions matching the filter.
func (s *SQLiteStore) CountSessions(ctx context.Context, filter SessionFilter) (int, error) {
	where, args := filterClause(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions WHERE `+where, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count sessions")
	}
	return n, nil
}

// SessionStats aggregates the active sessions of an owner.
func (s *SQLiteStore) SessionStats(ctx context.Context, ownerID string) (domain.UsageStats, error) {
	var stats domain.UsageStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(turn_count), 0), COALESCE(AVG(turn_count), 0)
		FROM sessions WHERE owner_id = ? AND active = 1`, ownerID).
		Scan(&stats.TotalSessions, &stats.TotalMessages, &stats.AverageMessagesPerSession)
	if err != nil {
		return domain.UsageStats{}, errors.Wrap(err, "session stats")
	}
	return stats, nil
}

func encodeSession(session *domain.Session) (string, sql.NullString, error) {
	turns := session.Turns
	if turns == nil {
		turns = []domain.Turn{}
	}
	turnsJSON, err := json.Marshal(turns)
	if err != nil {
		return "", sql.NullString{}, errors.Wrap(err, "encode turns")
	}
	var tags sql.NullString
	if len(session.Tags) > 0 {
		b, err := json.Marshal(session.Tags)
		if err != nil {
			return "", sql.NullString{}, errors.Wrap(err, "encode tags")
		}
		tags = sql.NullString{String: string(b), Valid: true}
	}
	return string(turnsJSON), tags, nil
}

func rowsAffected(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
