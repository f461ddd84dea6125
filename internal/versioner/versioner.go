// Package versioner implements the Soul Engine's State Versioner: a
// debounced, git-backed commit layer over the on-disk identity document
// and its siblings, providing the recovery substrate for the Seed
// Consolidator and drift detection across revisions.
//
// It is a direct generalization of the teacher's internal/git/auto.go: the
// same exec-a-git-binary-with-Dir-set shape, the same "non-destructive
// undo via git revert" idea, extended here with a debounce queue, a
// hash-validated history reader, and a recovery walk the teacher's
// single-shot Undo did not need.
package versioner

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hbcaspa/soulengine/internal/bus"
	"github.com/hbcaspa/soulengine/internal/identity"
	"github.com/hbcaspa/soulengine/internal/soulerr"
)

var hashPattern = regexp.MustCompile(`^[0-9a-f]{4,40}$`)

// ignoredPaths lists runtime artifacts the repository must never track:
// process pulse, event journal, embedded database, session guard,
// encrypted secrets.
var ignoredPaths = []string{
	"*.pulse",
	"journal.log",
	"*.db",
	"*.db-wal",
	"*.db-shm",
	"session.guard",
	"*.env.enc",
}

// queueEntry is one pending debounced change.
type queueEntry struct {
	changeType string
	detail     string
}

// Versioner debounces writes into coalesced commits and exposes
// history/rollback/recovery reads over them.
type Versioner struct {
	workDir string
	identPath string
	debounce  time.Duration

	bus *bus.Bus
	log zerolog.Logger

	mu      sync.Mutex
	pending []queueEntry
	timer   *time.Timer
}

// New constructs a Versioner rooted at workDir, tracking identPath (the
// identity document) for drift detection on every commit.
func New(workDir, identPath string, debounce time.Duration, b *bus.Bus, log zerolog.Logger) *Versioner {
	if debounce <= 0 {
		debounce = 60 * time.Second
	}
	return &Versioner{
		workDir:   workDir,
		identPath: identPath,
		debounce:  debounce,
		bus:       b,
		log:       log.With().Str("component", "versioner").Logger(),
	}
}

// Init ensures a git history exists at workDir, writes the ignore list if
// absent, and commits the current tree.
func (v *Versioner) Init() error {
	if !v.isRepo() {
		if _, err := v.exec("init"); err != nil {
			return soulerr.New(soulerr.External, "versioner.init", err)
		}
	}
	ignorePath := filepath.Join(v.workDir, ".gitignore")
	if _, err := os.Stat(ignorePath); os.IsNotExist(err) {
		content := strings.Join(ignoredPaths, "\n") + "\n"
		if err := os.WriteFile(ignorePath, []byte(content), 0o644); err != nil {
			return soulerr.New(soulerr.External, "versioner.init.gitignore", err)
		}
	}
	if _, err := v.commitIfDirty("[init] seed founded"); err != nil {
		return err
	}
	v.log.Info().Str("work_dir", v.workDir).Msg("versioner initialized")
	return nil
}

func (v *Versioner) isRepo() bool {
	info, err := os.Stat(filepath.Join(v.workDir, ".git"))
	return err == nil && info.IsDir()
}

// Queue accumulates a dirty entry and (re)arms the debounce timer. A
// change that arrives while a flush is in flight arms a fresh timer at
// once and is committed by the next flush.
func (v *Versioner) Queue(changeType, detail string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending = append(v.pending, queueEntry{changeType: changeType, detail: detail})
	if v.timer != nil {
		v.timer.Stop()
	}
	v.timer = time.AfterFunc(v.debounce, v.flush)
}

func (v *Versioner) flush() {
	v.mu.Lock()
	entries := v.pending
	v.pending = nil
	v.timer = nil
	v.mu.Unlock()

	if len(entries) == 0 {
		return
	}
	message := formatCommitMessage(entries)
	if _, err := v.commitIfDirty(message); err != nil {
		v.log.Error().Err(err).Msg("debounced commit failed")
	}
}

func formatCommitMessage(entries []queueEntry) string {
	if len(entries) == 1 {
		return fmt.Sprintf("[%s] %s", entries[0].changeType, entries[0].detail)
	}
	types := make([]string, 0, len(entries))
	seen := make(map[string]bool)
	for _, e := range entries {
		if !seen[e.changeType] {
			seen[e.changeType] = true
			types = append(types, e.changeType)
		}
	}
	return fmt.Sprintf("[auto] %d changes: %s", len(entries), strings.Join(types, ", "))
}

// Flush forces any pending debounced changes to commit immediately,
// used on shutdown.
func (v *Versioner) Flush() {
	v.mu.Lock()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
	v.mu.Unlock()
	v.flush()
}

// Commit stages all tracked changes and commits iff the working tree
// differs, capturing the prior identity document revision for drift
// detection and emitting seed.drift-detected after the commit succeeds.
func (v *Versioner) Commit(message string) (string, error) {
	return v.commitIfDirty(message)
}

func (v *Versioner) commitIfDirty(message string) (string, error) {
	prior := v.readIdentityQuiet()

	if _, err := v.exec("add", "-A"); err != nil {
		return "", soulerr.New(soulerr.External, "versioner.add", err)
	}
	status, err := v.exec("diff", "--cached", "--name-only")
	if err != nil {
		return "", soulerr.New(soulerr.External, "versioner.status", err)
	}
	if strings.TrimSpace(status) == "" {
		return "", nil
	}

	fullMessage := fmt.Sprintf("%s\n\nSoul-Engine-Commit: %s", message, uuid.NewString())
	if _, err := v.exec("commit", "-m", fullMessage); err != nil {
		return "", soulerr.New(soulerr.External, "versioner.commit", err)
	}
	hash, err := v.currentCommit()
	if err != nil {
		return "", soulerr.New(soulerr.External, "versioner.hash", err)
	}

	if v.bus != nil {
		v.bus.Emit("state.committed", "versioner", map[string]any{"hash": hash, "message": message})
	}

	v.detectDrift(prior, hash)
	return hash, nil
}

func (v *Versioner) readIdentityQuiet() *identity.Document {
	if v.identPath == "" {
		return nil
	}
	data, err := os.ReadFile(v.identPath)
	if err != nil {
		return nil
	}
	doc, err := identity.Parse(data)
	if err != nil {
		return nil
	}
	return doc
}

func (v *Versioner) detectDrift(prior *identity.Document, hash string) {
	if prior == nil || v.bus == nil {
		return
	}
	current := v.readIdentityQuiet()
	if current == nil {
		return
	}
	diff := identity.CompareDocuments(prior, current)
	if !diff.Changed() {
		return
	}
	v.bus.Emit("seed.drift-detected", "versioner", map[string]any{
		"hash":     hash,
		"severity": string(diff.HighestSeverity()),
		"blocks":   blockNames(diff),
	})
}

func blockNames(d identity.Diff) []string {
	out := make([]string, 0, len(d.Changes))
	for _, c := range d.Changes {
		out = append(out, c.Block)
	}
	return out
}

func (v *Versioner) currentCommit() (string, error) {
	out, err := v.exec("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (v *Versioner) exec(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = v.workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return stdout.String(), nil
}

func validHash(hash string) bool {
	return hashPattern.MatchString(hash)
}
