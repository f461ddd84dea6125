// Package store provides the Soul Engine's embedded SQLite-backed behavior
// tables: hot-reloadable impulse weights and interest-keyword patterns,
// a cost-ledger mirror, and conversational session/message bookkeeping for
// adapters.
//
// It is a direct descendant of the teacher's internal/core.Engine: the
// same WAL-mode connection string, the same config-version polling loop
// for hot reload, and the same thin Exec/Query/QueryRow passthroughs,
// re-themed from GoClode's provider/module tables to the Soul Engine's
// domain tables. internal/session.Manager's session/message bookkeeping
// is folded in here since both are SQLite-resident state owned by one
// connection.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rs/zerolog"
)

// Store is the embedded database and its hot-reload watcher.
type Store struct {
	db     *sql.DB
	dbPath string
	log    zerolog.Logger

	mu       sync.RWMutex
	watchers []func(event string)

	ctx    context.Context
	cancel context.CancelFunc

	configVersion int64
}

// Open creates or attaches to the SQLite database at dbPath, applying the
// schema and starting the hot-reload watcher.
func Open(dbPath string, log zerolog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("store: dbPath is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("store: create db dir: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		db:     db,
		dbPath: dbPath,
		log:    log.With().Str("component", "store").Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("store: init schema: %w", err)
	}

	go s.watchConfig()

	s.log.Info().Str("path", dbPath).Msg("store opened")
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	type TEXT DEFAULT 'string' CHECK (type IN ('string', 'int', 'bool', 'json')),
	updated_at INTEGER DEFAULT (strftime('%s', 'now')),
	version INTEGER DEFAULT 1
);

CREATE TRIGGER IF NOT EXISTS config_version_bump
AFTER UPDATE ON config
BEGIN
	UPDATE config SET version = version + 1, updated_at = strftime('%s', 'now') WHERE key = NEW.key;
END;

CREATE TABLE IF NOT EXISTS impulse_weights (
	impulse_type TEXT PRIMARY KEY,
	base_rate REAL NOT NULL DEFAULT 0.1,
	needs_tools INTEGER NOT NULL DEFAULT 0,
	cooldown_minutes INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	updated_at INTEGER DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS interest_patterns (
	pattern_id TEXT PRIMARY KEY,
	topic TEXT NOT NULL,
	keyword TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 0.5,
	enabled INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_interest_keyword ON interest_patterns(keyword);

CREATE TABLE IF NOT EXISTS dirty_block_rules (
	event_type TEXT NOT NULL,
	block_name TEXT NOT NULL,
	PRIMARY KEY (event_type, block_name)
);

CREATE TABLE IF NOT EXISTS cost_ledger (
	date TEXT NOT NULL,
	category TEXT NOT NULL,
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	calls INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (date, category)
);

CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	created_at INTEGER DEFAULT (strftime('%s', 'now')),
	last_active_at INTEGER DEFAULT (strftime('%s', 'now')),
	metadata TEXT DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS messages (
	message_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	role TEXT CHECK (role IN ('user', 'assistant', 'system')),
	content TEXT NOT NULL,
	tokens_in INTEGER DEFAULT 0,
	tokens_out INTEGER DEFAULT 0,
	created_at INTEGER DEFAULT (strftime('%s', 'now')),

	FOREIGN KEY(session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at);

INSERT OR IGNORE INTO impulse_weights (impulse_type, base_rate, needs_tools, cooldown_minutes) VALUES
	('share_thought', 0.15, 0, 0),
	('ask_question', 0.12, 0, 0),
	('news_research', 0.08, 1, 60),
	('server_check', 0.05, 1, 120),
	('hobby_pursuit', 0.1, 0, 0),
	('express_emotion', 0.12, 0, 0),
	('tech_suggestion', 0.08, 1, 60),
	('provoke', 0.03, 0, 120),
	('dream_share', 0.07, 0, 180),
	('memory_reflect', 0.1, 0, 30),
	('github_check', 0.1, 1, 90);

INSERT OR IGNORE INTO dirty_block_rules (event_type, block_name) VALUES
	('message.received', 'MEM'),
	('message.received', 'BONDS'),
	('heartbeat.completed', 'STATE'),
	('heartbeat.completed', 'DREAMS'),
	('interest.detected', 'INTERESTS'),
	('performance.detected', 'SHADOW'),
	('rluf.feedback', 'BONDS'),
	('rluf.feedback', 'GROWTH');
`

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schema)
	return err
}

// watchConfig polls the config table's version column for changes, the
// same poll-and-notify shape as the teacher's Engine.watchConfig.
func (s *Store) watchConfig() {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			var maxVersion int64
			if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM config").Scan(&maxVersion); err != nil {
				continue
			}
			if maxVersion > s.configVersion {
				s.configVersion = maxVersion
				s.notifyWatchers("config_changed")
			}
		}
	}
}

// OnChange registers a callback invoked (in its own goroutine) whenever
// hot-reloadable config changes.
func (s *Store) OnChange(fn func(event string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

func (s *Store) notifyWatchers(event string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fn := range s.watchers {
		go fn(event)
	}
}

// DB exposes the underlying connection for components that need direct
// queries beyond the helpers below.
func (s *Store) DB() *sql.DB { return s.db }

// GetConfig retrieves a config value, returning "" if absent.
func (s *Store) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig upserts a config value, bumping its version for hot reload.
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = strftime('%s', 'now'), version = version + 1
	`, key, value)
	return err
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	s.cancel()
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}
