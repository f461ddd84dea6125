// Package audit implements the Soul Engine's append-only security
// journal: a fixed allowlist of bus event types is written as compact
// JSON lines, rotated monthly or when a file exceeds 5 MiB.
//
// It generalizes the teacher's internal/modules.DebugModule, which
// persisted structured trace/assertion rows into SQLite for later
// inspection; here the sink is a flat append-only file rather than a
// table, since the audit log must survive independently of the embedded
// database and be trivially greppable by an operator.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	humanize "github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/hbcaspa/soulengine/internal/bus"
)

// maxFileSize triggers rotation regardless of month boundary.
const maxFileSize = 5 * 1024 * 1024

// allowlist is the fixed set of security-relevant event types the audit
// log records; everything else on the bus is out of scope for it.
var allowlist = map[string]bool{
	"seed.validation-failed": true,
	"seed.recovered":         true,
	"seed.recovery-failed":   true,
	"seed.migrated":          true,
	"seed.drift-detected":    true,
	"state.rolled-back":      true,
	"state.committed":        true,
	"cost.budget-exceeded":   true,
	"mood.clamped":           true,
	"correction.applied":     true,
	"mcp.toolCalled":         true,
}

// Entry is one audit line.
type Entry struct {
	TS       int64          `json:"ts"`
	Event    string         `json:"event"`
	Source   string         `json:"source"`
	Severity string         `json:"severity,omitempty"`
	Changes  map[string]any `json:"changes,omitempty"`
	Error    string         `json:"error,omitempty"`
	Detail   string         `json:"detail,omitempty"`
}

// Logger subscribes to the bus and appends allowlisted events to a
// rotating file.
type Logger struct {
	mu      sync.Mutex
	dir     string
	current *os.File
	month   string
	log     zerolog.Logger
}

// NewLogger opens (or creates) dir for monthly-rotated audit files.
func NewLogger(dir string, log zerolog.Logger) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	l := &Logger{dir: dir, log: log.With().Str("component", "audit").Logger()}
	if err := l.rotateIfNeeded(); err != nil {
		return nil, err
	}
	return l, nil
}

// Attach subscribes this logger to every allowlisted event type on b.
func (l *Logger) Attach(b *bus.Bus) {
	for eventType := range allowlist {
		et := eventType
		b.On(et, func(e bus.Event) error {
			l.record(e)
			return nil
		})
	}
}

func (l *Logger) record(e bus.Event) {
	if !allowlist[e.Type] {
		return
	}
	entry := Entry{TS: e.TS, Event: e.Type, Source: e.Source}
	if e.Payload != nil {
		if sev, ok := e.Payload["severity"].(string); ok {
			entry.Severity = sev
		}
		if errStr, ok := e.Payload["error"].(string); ok {
			entry.Error = errStr
		}
		if detail, ok := e.Payload["detail"].(string); ok {
			entry.Detail = detail
		}
		entry.Changes = e.Payload
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(); err != nil {
		l.log.Error().Err(err).Msg("audit rotation failed")
		return
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if _, err := l.current.Write(append(data, '\n')); err != nil {
		l.log.Error().Err(err).Msg("audit write failed")
	}
}

// rotateIfNeeded opens a new monthly file if the month changed, or a
// fresh sequence file if the current one exceeds maxFileSize. Caller must
// hold l.mu, except on first call from NewLogger.
func (l *Logger) rotateIfNeeded() error {
	now := time.Now()
	month := now.Format("2006-01")

	if l.current != nil && l.month == month {
		info, err := l.current.Stat()
		if err == nil && info.Size() < maxFileSize {
			return nil
		}
		l.log.Info().Str("size", humanize.Bytes(uint64(sizeOrZero(l.current)))).Msg("rotating audit log by size")
	}

	if l.current != nil {
		_ = l.current.Close()
	}

	path := filepath.Join(l.dir, fmt.Sprintf("audit-%s.jsonl", month))
	if l.month == month {
		// Size-triggered rotation within the same month: suffix with a
		// timestamp so the prior file becomes immutable.
		archivePath := filepath.Join(l.dir, fmt.Sprintf("audit-%s-%d.jsonl", month, now.Unix()))
		if _, err := os.Stat(path); err == nil {
			_ = os.Rename(path, archivePath)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("audit: open %s: %w", path, err)
	}
	l.current = f
	l.month = month
	return nil
}

func sizeOrZero(f *os.File) int64 {
	info, err := f.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

// Close flushes and closes the current file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return nil
	}
	return l.current.Close()
}
