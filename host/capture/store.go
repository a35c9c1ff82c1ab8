package capture

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL,
    device     TEXT     NOT NULL,
    config     TEXT
);
CREATE TABLE IF NOT EXISTS frames (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  INTEGER NOT NULL REFERENCES sessions (id),
    received_at INTEGER NOT NULL,
    seq         INTEGER NOT NULL,
    channel     INTEGER NOT NULL,
    payload     BLOB    NOT NULL
);
CREATE INDEX IF NOT EXISTS frames_session_channel ON frames (session_id, channel);`

const (
	insertSessionSQL = `
INSERT INTO sessions (start_time, device, config)
VALUES (CURRENT_TIMESTAMP, ?, ?)`

	insertFrameSQL = `
INSERT INTO frames (session_id, received_at, seq, channel, payload)
VALUES (?, ?, ?, ?, ?)`

	countFramesSQL = `
SELECT COUNT(*) FROM frames WHERE session_id = ? AND channel = ?`
)

// Store records capture sessions to SQLite. The database is opened on
// first use.
type Store struct {
	dbPath string

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	mu     sync.Mutex
	insert *sql.Stmt

	closeOnce sync.Once
	closeErr  error
}

// NewStore creates a store backed by the database file at dbPath.
func NewStore(dbPath string) *Store {
	return &Store{dbPath: dbPath}
}

func (s *Store) getDB() (*sql.DB, error) {
	s.dbOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.dbErr = fmt.Errorf("opening database: %w", err)
			return
		}

		if _, err = db.Exec(initSchemaSQL); err != nil {
			_ = db.Close()
			s.dbErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.db = db
	})

	return s.db, s.dbErr
}

// CreateSession starts a new session and returns its id. config is
// stored as JSON.
func (s *Store) CreateSession(ctx context.Context, device string, config any) (int64, error) {
	var configData sql.NullString
	if config != nil {
		p, err := json.Marshal(config)
		if err != nil {
			return 0, fmt.Errorf("marshaling config: %w", err)
		}
		configData = sql.NullString{String: string(p), Valid: true}
	}

	db, err := s.getDB()
	if err != nil {
		return 0, err
	}

	result, err := db.ExecContext(ctx, insertSessionSQL, device, configData)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}
	return result.LastInsertId()
}

// SaveFrame appends a frame to a session.
func (s *Store) SaveFrame(ctx context.Context, sessionID int64, rec Record) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insert == nil {
		if s.insert, err = db.PrepareContext(ctx, insertFrameSQL); err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
	}
	_, err = s.insert.ExecContext(ctx, sessionID, rec.Time.UnixNano(), rec.Seq, rec.Channel, rec.Payload)
	if err != nil {
		return fmt.Errorf("inserting frame: %w", err)
	}
	return nil
}

// CountFrames returns how many frames of channel a session holds.
func (s *Store) CountFrames(ctx context.Context, sessionID int64, channel uint8) (n int64, err error) {
	db, err := s.getDB()
	if err != nil {
		return 0, err
	}
	err = db.QueryRowContext(ctx, countFramesSQL, sessionID, channel).Scan(&n)
	if err != nil {
		err = fmt.Errorf("counting frames: %w", err)
	}
	return n, err
}

// Writer binds the store to one session as a FrameWriter.
func (s *Store) Writer(ctx context.Context, sessionID int64) FrameWriter {
	return FrameWriterFunc(func(rec Record) error {
		return s.SaveFrame(ctx, sessionID, rec)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.insert != nil {
			s.closeErr = s.insert.Close()
		}
		s.mu.Unlock()
		if s.db != nil {
			if err := s.db.Close(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
	})
	return s.closeErr
}
