package versioner

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hbcaspa/soulengine/internal/identity"
	"github.com/hbcaspa/soulengine/internal/soulerr"
)

// CommitRecord is one parsed git log entry for the identity document.
type CommitRecord struct {
	Hash       string
	TS         time.Time
	Message    string
	DirtyTypes []string
}

// History returns up to limit commits touching path (or the whole tree if
// path is empty), most recent first.
func (v *Versioner) History(path string, limit int) ([]CommitRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	args := []string{"log", fmt.Sprintf("-n%d", limit), "--format=%H|%ct|%s"}
	if path != "" {
		args = append(args, "--", path)
	}
	out, err := v.exec(args...)
	if err != nil {
		return nil, soulerr.New(soulerr.External, "versioner.history", err)
	}
	return parseLog(out), nil
}

func parseLog(out string) []CommitRecord {
	var records []CommitRecord
	for _, line := range strings.Split(out, "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 3)
		if len(parts) < 3 {
			continue
		}
		ts, _ := strconv.ParseInt(parts[1], 10, 64)
		message := parts[2]
		records = append(records, CommitRecord{
			Hash:       parts[0],
			TS:         time.Unix(ts, 0),
			Message:    strings.SplitN(message, "\n", 2)[0],
			DirtyTypes: extractDirtyTypes(message),
		})
	}
	return records
}

func extractDirtyTypes(message string) []string {
	start := strings.Index(message, "[")
	end := strings.Index(message, "]")
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	inner := message[start+1 : end]
	if inner == "auto" {
		return nil
	}
	return []string{inner}
}

// Diff returns the patch text for hash, after validating it against a
// `[0-9a-f]{4,40}` pattern, the only untrusted input crossing the
// versioner's boundary.
func (v *Versioner) Diff(hash string) (string, error) {
	if !validHash(hash) {
		return "", soulerr.New(soulerr.Validation, "versioner.diff", fmt.Errorf("malformed hash %q", hash))
	}
	out, err := v.exec("show", hash)
	if err != nil {
		return "", soulerr.New(soulerr.External, "versioner.diff", err)
	}
	return out, nil
}

// Timeline returns every commit since the given time, oldest first.
func (v *Versioner) Timeline(since time.Time) ([]CommitRecord, error) {
	out, err := v.exec("log", "--since="+since.Format(time.RFC3339), "--format=%H|%ct|%s", "--reverse")
	if err != nil {
		return nil, soulerr.New(soulerr.External, "versioner.timeline", err)
	}
	return parseLog(out), nil
}

// Revert produces a new forward commit that inverts hash; history is
// never rewritten. Emits state.rolled-back on success.
func (v *Versioner) Revert(hash string) (string, error) {
	if !validHash(hash) {
		return "", soulerr.New(soulerr.Validation, "versioner.revert", fmt.Errorf("malformed hash %q", hash))
	}
	if _, err := v.exec("revert", "--no-edit", hash); err != nil {
		return "", soulerr.New(soulerr.External, "versioner.revert", err)
	}
	newHash, err := v.currentCommit()
	if err != nil {
		return "", soulerr.New(soulerr.External, "versioner.revert.hash", err)
	}
	if v.bus != nil {
		v.bus.Emit("state.rolled-back", "versioner", map[string]any{"reverted": hash, "new_hash": newHash})
	}
	return newHash, nil
}

// recoveryDepth is how many recent commits RecoverLastValid walks before
// giving up.
const recoveryDepth = 5

// RecoverLastValid walks the last K commits in reverse; for each, it loads
// the identity document from that revision and validates it. The first
// valid revision found is written over the current document atomically.
func (v *Versioner) RecoverLastValid() (string, error) {
	records, err := v.History(v.identPath, recoveryDepth)
	if err != nil {
		return "", err
	}
	relPath := v.identPath
	if rel, err := filepath.Rel(v.workDir, v.identPath); err == nil {
		relPath = rel
	}
	for _, rec := range records {
		content, err := v.showFileAt(rec.Hash, relPath)
		if err != nil {
			continue
		}
		doc, err := identity.Parse([]byte(content))
		if err != nil {
			continue
		}
		result := identity.Validate(content, doc)
		if !result.Valid {
			continue
		}
		if err := identity.WriteAtomic(v.identPath, content); err != nil {
			continue
		}
		if v.bus != nil {
			v.bus.Emit("seed.recovered", "versioner", map[string]any{"hash": rec.Hash})
		}
		return rec.Hash, nil
	}
	if v.bus != nil {
		v.bus.Emit("seed.recovery-failed", "versioner", map[string]any{"checked": len(records)})
	}
	return "", soulerr.New(soulerr.Integrity, "versioner.recover", fmt.Errorf("no valid revision found in last %d commits", recoveryDepth))
}

func (v *Versioner) showFileAt(hash, relPath string) (string, error) {
	out, err := v.exec("show", hash+":"+relPath)
	if err != nil {
		return "", err
	}
	return out, nil
}

// Shutdown flushes any pending debounced commit and records session end.
func (v *Versioner) Shutdown() {
	v.Flush()
	_, _ = v.commitIfDirty("[session] end")
}
