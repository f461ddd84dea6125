package bus

import (
	"encoding/json"
	"os"
	"sync"
)

const journalCap = 100

// journalEntry is the compact per-line projection written to the journal file.
type journalEntry struct {
	ID      uint64 `json:"id"`
	Type    string `json:"type"`
	TS      int64  `json:"ts"`
	Source  string `json:"source"`
	Channel string `json:"channel,omitempty"`
	User    string `json:"user,omitempty"`
	Mood    string `json:"mood,omitempty"`
	Trigger string `json:"trigger,omitempty"`
}

// skipTypes are high-frequency events excluded from the file journal to
// keep it useful for recovery rather than flooded by ticks.
var skipTypes = map[string]bool{
	"pulse.written": true,
	"impulse.tick":  true,
}

// journal is a coalescing, serial writer over a line-capped file. Writes
// are best-effort: a failure here must never fail the emit that triggered
// it.
type journal struct {
	path string

	mu      sync.Mutex
	writing bool
	pending []Event
}

func newJournal(path string) *journal {
	return &journal{path: path}
}

func (j *journal) append(ev Event) {
	if skipTypes[ev.Type] {
		return
	}
	j.mu.Lock()
	j.pending = append(j.pending, ev)
	if j.writing {
		// A flush is already in flight; it will pick up this entry too.
		j.mu.Unlock()
		return
	}
	j.writing = true
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()

	j.flush(batch)

	j.mu.Lock()
	j.writing = false
	more := len(j.pending) > 0
	j.mu.Unlock()
	if more {
		j.drainRemaining()
	}
}

func (j *journal) drainRemaining() {
	j.mu.Lock()
	if j.writing {
		j.mu.Unlock()
		return
	}
	j.writing = true
	batch := j.pending
	j.pending = nil
	j.mu.Unlock()

	j.flush(batch)

	j.mu.Lock()
	j.writing = false
	j.mu.Unlock()
}

func (j *journal) flush(batch []Event) {
	if len(batch) == 0 {
		return
	}
	lines := j.readExisting()
	for _, ev := range batch {
		entry := journalEntry{ID: ev.ID, Type: ev.Type, TS: ev.TS, Source: ev.Source}
		if ev.Payload != nil {
			if c, ok := ev.Payload["channel"].(string); ok {
				entry.Channel = c
			}
			if u, ok := ev.Payload["user"].(string); ok {
				entry.User = u
			}
			if m, ok := ev.Payload["mood"].(string); ok {
				entry.Mood = m
			}
			if t, ok := ev.Payload["trigger"].(string); ok {
				entry.Trigger = t
			}
		}
		encoded, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		lines = append(lines, string(encoded))
	}
	if len(lines) > journalCap {
		lines = lines[len(lines)-journalCap:]
	}
	j.write(lines)
}

func (j *journal) readExisting() []string {
	data, err := os.ReadFile(j.path)
	if err != nil {
		return nil
	}
	var lines []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				lines = append(lines, string(data[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, string(data[start:]))
	}
	return lines
}

func (j *journal) write(lines []string) {
	tmp := j.path + ".tmp"
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, j.path)
}
