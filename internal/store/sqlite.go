package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/syncpad/syncpad/internal/domain"
)

// SQLite implements Store on a single sqlite database file.
type SQLite struct {
	db *sql.DB
}

func Open(dbPath string) (*SQLite, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	// WAL for concurrent readers, busy timeout so racing writers queue
	// instead of failing.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Info().Str("module", "store").Str("path", dbPath).Msg("database initialized")
	return &SQLite{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		current_code TEXT NOT NULL DEFAULT '// Start coding together!',
		language TEXT NOT NULL DEFAULT 'javascript',
		version INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_activity DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS participants (
		conn_id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		username TEXT NOT NULL,
		color TEXT NOT NULL,
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_participants_room ON participants(room_id);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		username TEXT NOT NULL,
		text TEXT NOT NULL,
		timestamp_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room_ts ON messages(room_id, timestamp_ms);

	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		code TEXT NOT NULL,
		language TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_snapshots_room ON snapshots(room_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// sqliteTimeLayout matches the text CURRENT_TIMESTAMP writes, so
// Go-supplied datetimes and database-written ones compare correctly.
const sqliteTimeLayout = "2006-01-02 15:04:05"

func sqlTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

// Rooms

func (s *SQLite) EnsureRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO rooms (id, current_code, language) VALUES (?, ?, ?)",
		string(id), domain.DefaultCode, domain.DefaultLanguage,
	)
	if err != nil {
		return nil, err
	}
	return s.Room(ctx, id)
}

func (s *SQLite) Room(ctx context.Context, id domain.RoomID) (*domain.Room, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, current_code, language, version, created_at, last_activity FROM rooms WHERE id = ?",
		string(id),
	)

	var room domain.Room
	err := row.Scan(&room.ID, &room.Code, &room.Language, &room.Version, &room.CreatedAt, &room.LastActivity)
	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	room.Participants, err = s.Participants(ctx, id)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *SQLite) SetCode(ctx context.Context, id domain.RoomID, code string) error {
	// Version is bumped in the same statement, so interleaved writers
	// still advance it by exactly one each.
	res, err := s.db.ExecContext(ctx,
		"UPDATE rooms SET current_code = ?, version = version + 1, last_activity = CURRENT_TIMESTAMP WHERE id = ?",
		code, string(id),
	)
	if err != nil {
		return err
	}
	return checkRoomAffected(res)
}

func (s *SQLite) SetLanguage(ctx context.Context, id domain.RoomID, language string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE rooms SET language = ?, last_activity = CURRENT_TIMESTAMP WHERE id = ?",
		language, string(id),
	)
	if err != nil {
		return err
	}
	return checkRoomAffected(res)
}

func checkRoomAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRoomNotFound
	}
	return nil
}

// Presence

func (s *SQLite) ReplaceParticipant(ctx context.Context, id domain.RoomID, p domain.Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// A rejoin under the same username evicts the stale entry so the
	// roster never holds duplicates.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM participants WHERE room_id = ? AND username = ?",
		string(id), p.Username,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO participants (conn_id, room_id, username, color, joined_at) VALUES (?, ?, ?, ?, ?)",
		p.ConnID, string(id), p.Username, p.Color, sqlTime(p.JoinedAt),
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE rooms SET last_activity = CURRENT_TIMESTAMP WHERE id = ?",
		string(id),
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) RemoveParticipant(ctx context.Context, id domain.RoomID, connID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM participants WHERE room_id = ? AND conn_id = ?",
		string(id), connID,
	)
	return err
}

func (s *SQLite) Participants(ctx context.Context, id domain.RoomID) ([]domain.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT conn_id, username, color, joined_at FROM participants WHERE room_id = ? ORDER BY joined_at ASC, conn_id ASC",
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Participant
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.ConnID, &p.Username, &p.Color, &p.JoinedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Chat

func (s *SQLite) AppendMessage(ctx context.Context, m *domain.ChatMessage) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (room_id, username, text, timestamp_ms) VALUES (?, ?, ?, ?)",
		string(m.RoomID), m.Username, m.Text, m.Timestamp.UnixMilli(),
	)
	if err != nil {
		return err
	}
	m.ID, err = res.LastInsertId()
	return err
}

func (s *SQLite) RecentMessages(ctx context.Context, id domain.RoomID, limit int) ([]domain.ChatMessage, error) {
	// Most recent window, replayed oldest-first.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, room_id, username, text, timestamp_ms FROM (
			SELECT id, room_id, username, text, timestamp_ms
			FROM messages
			WHERE room_id = ?
			ORDER BY timestamp_ms DESC, id DESC
			LIMIT ?
		) ORDER BY timestamp_ms ASC, id ASC
	`, string(id), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ChatMessage
	for rows.Next() {
		var m domain.ChatMessage
		var ms int64
		if err := rows.Scan(&m.ID, &m.RoomID, &m.Username, &m.Text, &ms); err != nil {
			return nil, err
		}
		m.Timestamp = time.UnixMilli(ms).UTC()
		out = append(out, m)
	}
	return out, rows.Err()
}

// Snapshots

func (s *SQLite) CreateSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO snapshots (room_id, code, language, version, created_by, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		string(snap.RoomID), snap.Code, snap.Language, snap.Version, snap.CreatedBy, sqlTime(now),
	)
	if err != nil {
		return err
	}
	snap.ID, err = res.LastInsertId()
	snap.CreatedAt = now
	return err
}

func (s *SQLite) SnapshotsByRoom(ctx context.Context, id domain.RoomID) ([]domain.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, room_id, code, language, version, created_by, created_at FROM snapshots WHERE room_id = ? ORDER BY created_at DESC, id DESC",
		string(id),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		var s domain.Snapshot
		if err := rows.Scan(&s.ID, &s.RoomID, &s.Code, &s.Language, &s.Version, &s.CreatedBy, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Users

func (s *SQLite) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users (id, username, password_hash) VALUES (?, ?, ?)",
		string(u.ID), u.Username, u.PasswordHash,
	)
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return domain.ErrUsernameTaken
	}
	return err
}

func (s *SQLite) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash FROM users WHERE username = ?",
		username,
	)

	var u domain.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Retention

func (s *SQLite) DeleteIdleRooms(ctx context.Context, before time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	// Snapshots are kept on purpose: they are immutable checkpoints,
	// not live room state.
	cutoff := sqlTime(before)
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM participants WHERE room_id IN (SELECT id FROM rooms WHERE last_activity < ?)",
		cutoff,
	); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM messages WHERE room_id IN (SELECT id FROM rooms WHERE last_activity < ?)",
		cutoff,
	); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM rooms WHERE last_activity < ?", cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

func (s *SQLite) DeleteMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE timestamp_ms < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
