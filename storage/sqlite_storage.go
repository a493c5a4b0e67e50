package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SQLiteStorage persists sessions in SQLite and serves reads from memory
type SQLiteStorage struct {
	db          *sql.DB
	memoryCache *Storage
	dbPath      string
	logger      *zap.Logger
}

// NewSQLiteStorage opens (or creates) the database at dbPath and loads all sessions
func NewSQLiteStorage(dbPath string, logger *zap.Logger) (*SQLiteStorage, error) {
	if dbPath == "" {
		return nil, errors.New("database path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps ":memory:" databases consistent
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := migrateSchema(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	storage := &SQLiteStorage{
		db:          db,
		memoryCache: New(),
		dbPath:      dbPath,
		logger:      logger,
	}

	if err := storage.loadFromDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load sessions: %w", err)
	}

	return storage, nil
}

func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			user_id INTEGER PRIMARY KEY,
			state TEXT NOT NULL,
			pending_user_id INTEGER NOT NULL DEFAULT 0,
			updated_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sessions table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_sessions_updated_at ON sessions(updated_at)`)
	if err != nil {
		return fmt.Errorf("failed to create updated_at index: %w", err)
	}
	return nil
}

// migrateSchema adds columns introduced after the first release
func migrateSchema(db *sql.DB, logger *zap.Logger) error {
	exists, err := columnExists(db, "sessions", "pending_user_id")
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	logger.Info("Schema migration: adding 'pending_user_id' column to 'sessions' table")
	if _, err := db.Exec("ALTER TABLE sessions ADD COLUMN pending_user_id INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("failed to add pending_user_id column: %w", err)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, fmt.Errorf("failed to query table info for %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			typeName  string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &typeName, &notnull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan table info row: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("error iterating table info rows: %w", err)
	}
	return false, nil
}

func (s *SQLiteStorage) loadFromDB() error {
	rows, err := s.db.Query("SELECT user_id, state, pending_user_id, updated_at FROM sessions")
	if err != nil {
		return fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	loaded := 0
	for rows.Next() {
		var (
			session   Session
			updatedAt int64
		)
		if err := rows.Scan(&session.UserID, &session.State, &session.PendingUserID, &updatedAt); err != nil {
			return fmt.Errorf("failed to scan session row: %w", err)
		}
		session.UpdatedAt = time.Unix(0, updatedAt)
		s.memoryCache.SaveSession(session)
		loaded++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating session rows: %w", err)
	}

	s.logger.Info("Loaded sessions from database", zap.Int("count", loaded), zap.String("path", s.dbPath))
	return nil
}

// GetSession returns the session for a user (from cache)
func (s *SQLiteStorage) GetSession(userID int64) (Session, bool) {
	return s.memoryCache.GetSession(userID)
}

// SaveSession writes the session to the database and the cache
func (s *SQLiteStorage) SaveSession(session Session) error {
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO sessions (user_id, state, pending_user_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			state = excluded.state,
			pending_user_id = excluded.pending_user_id,
			updated_at = excluded.updated_at`,
		session.UserID, session.State, session.PendingUserID, session.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to save session for user %d: %w", session.UserID, err)
	}

	return s.memoryCache.SaveSession(session)
}

// DeleteSessionsBefore removes stale sessions from the database and the cache
func (s *SQLiteStorage) DeleteSessionsBefore(cutoff time.Time) (int, error) {
	res, err := s.db.Exec("DELETE FROM sessions WHERE updated_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if _, err := s.memoryCache.DeleteSessionsBefore(cutoff); err != nil {
		return 0, err
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted sessions: %w", err)
	}
	return int(removed), nil
}

// SessionCount returns the number of stored sessions (from cache)
func (s *SQLiteStorage) SessionCount() int {
	return s.memoryCache.SessionCount()
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

var _ SessionStore = (*SQLiteStorage)(nil)
