// Package consolidator implements the Seed Consolidator: a dirty-block
// tracker over the identity document plus the fast (mechanical) and deep
// (generator-assisted) rewrite passes that keep it current.
//
// The event→dirty-blocks table and the single-writer discipline are
// grounded on the teacher's ModuleManager.hooks (an event-keyed map of
// handler lists dispatched in priority order): here each matching row
// contributes block names to a dirty set instead of running a handler,
// and a single atomic flag takes the place of the teacher's per-module
// mutex since only one consolidation may be in flight at a time.
package consolidator

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/hbcaspa/soulengine/internal/affect"
	"github.com/hbcaspa/soulengine/internal/bus"
	"github.com/hbcaspa/soulengine/internal/generator"
	"github.com/hbcaspa/soulengine/internal/identity"
	"github.com/hbcaspa/soulengine/internal/soulerr"
	"github.com/hbcaspa/soulengine/internal/store"
	"github.com/hbcaspa/soulengine/internal/versioner"
)

const (
	deepInterval       = 4 * time.Hour
	deepEventThreshold = 100
	fastInterval       = 30 * time.Minute
	fastEventThreshold = 20
	deepTokenBudget    = 1024
	defaultMaxFailures = 3
)

// dirtyEvents are the event types the dirty-block table keys rows on.
var dirtyEvents = []string{
	"message.received",
	"heartbeat.completed",
	"interest.detected",
	"performance.detected",
	"rluf.feedback",
}

// InterestsSource supplies the accumulated interest weights the INTERESTS
// templater renders, narrowed from the impulse scheduler's state so this
// package never imports internal/impulse.
type InterestsSource interface {
	Interests() map[string]float64
}

// MoodSource supplies the affect export the STATE rewrite prompt embeds,
// narrowed the same way.
type MoodSource interface {
	Export() affect.Export
}

// Consolidator owns the dirty-block set and drives fast/deep rewrites of
// the identity document.
type Consolidator struct {
	mu                  sync.Mutex
	dirtyBlocks         map[string]bool
	eventsSinceFast     int
	eventsSinceDeep     int
	lastFastTS          time.Time
	lastDeepTS          time.Time
	consecutiveFailures int
	mechanicalOnly      bool
	maxFailures         int

	consolidating atomic.Bool

	identPath                 string
	dailyNotesPath            string
	externalConsciousnessPath string

	store     *store.Store
	bus       *bus.Bus
	ver       *versioner.Versioner
	gen       generator.Generator
	interests InterestsSource
	mood      MoodSource
	log       zerolog.Logger
}

// New constructs a Consolidator. interests and mood may be nil; when nil,
// the INTERESTS templater and STATE rewrite prompt degrade to empty
// inputs rather than failing.
func New(identPath, dailyNotesPath, externalConsciousnessPath string, st *store.Store, b *bus.Bus, ver *versioner.Versioner, gen generator.Generator, interests InterestsSource, mood MoodSource, log zerolog.Logger) *Consolidator {
	return &Consolidator{
		dirtyBlocks:               make(map[string]bool),
		maxFailures:               defaultMaxFailures,
		lastFastTS:                time.Now(),
		lastDeepTS:                time.Now(),
		identPath:                 identPath,
		dailyNotesPath:            dailyNotesPath,
		externalConsciousnessPath: externalConsciousnessPath,
		store:                     st,
		bus:                       b,
		ver:                       ver,
		gen:                       gen,
		interests:                 interests,
		mood:                      mood,
		log:                       log.With().Str("component", "consolidator").Logger(),
	}
}

// Attach subscribes the consolidator to every event type that dirties an
// identity block.
func (c *Consolidator) Attach(b *bus.Bus) {
	for _, t := range dirtyEvents {
		b.On(t, c.handleEvent)
	}
}

func (c *Consolidator) handleEvent(e bus.Event) error {
	if c.store == nil {
		return nil
	}
	blocks, err := c.store.DirtyBlocksFor(e.Type)
	if err != nil {
		return soulerr.New(soulerr.Integrity, "consolidator.dirty_blocks", err)
	}
	if len(blocks) == 0 {
		return nil
	}
	c.mu.Lock()
	for _, blk := range blocks {
		c.dirtyBlocks[blk] = true
	}
	c.eventsSinceFast++
	c.eventsSinceDeep++
	c.mu.Unlock()
	return nil
}

// ShouldConsolidate decides deep/fast/none per the documented thresholds
// and, for deep/fast, kicks off the corresponding pass in the background
// so the caller (the impulse tick loop) never blocks on it. It implements
// the narrow Consolidator interface internal/impulse's tick loop depends
// on.
func (c *Consolidator) ShouldConsolidate() string {
	c.mu.Lock()
	kind := c.decide(time.Now())
	c.mu.Unlock()

	switch kind {
	case "deep":
		go func() {
			if err := c.ConsolidateDeep(context.Background()); err != nil {
				c.log.Error().Err(err).Msg("deep consolidation failed")
			}
		}()
	case "fast":
		go func() {
			if err := c.ConsolidateFast(context.Background()); err != nil {
				c.log.Error().Err(err).Msg("fast consolidation failed")
			}
		}()
	}
	return kind
}

func (c *Consolidator) decide(now time.Time) string {
	if now.Sub(c.lastDeepTS) >= deepInterval || c.eventsSinceDeep >= deepEventThreshold {
		return "deep"
	}
	if len(c.dirtyBlocks) > 0 && (now.Sub(c.lastFastTS) >= fastInterval || c.eventsSinceFast >= fastEventThreshold) {
		return "fast"
	}
	return "none"
}

// ConsolidateFast runs one mechanical pass, a no-op if a consolidation is
// already in flight.
func (c *Consolidator) ConsolidateFast(ctx context.Context) error {
	if !c.consolidating.CompareAndSwap(false, true) {
		return nil
	}
	defer c.consolidating.Store(false)
	return c.doFast(time.Now())
}

// ConsolidateDeep runs a fast pass followed by the two generator-assisted
// rewrites, unless recovery mode has restricted the consolidator to
// mechanical-only passes. A no-op if a consolidation is already in
// flight.
func (c *Consolidator) ConsolidateDeep(ctx context.Context) error {
	if !c.consolidating.CompareAndSwap(false, true) {
		return nil
	}
	defer c.consolidating.Store(false)

	now := time.Now()
	if err := c.doFast(now); err != nil {
		c.log.Warn().Err(err).Msg("deep consolidation: fast pass failed, continuing")
	}

	c.mu.Lock()
	mechanicalOnly := c.mechanicalOnly
	c.mu.Unlock()
	if mechanicalOnly {
		c.log.Info().Msg("deep consolidation skipped: mechanical-only recovery mode")
		return nil
	}

	return c.doDeepGenerate(ctx, now)
}

// Status is the read model the CLI's status banner renders.
type Status struct {
	DirtyBlocks         []string
	EventsSinceFast     int
	EventsSinceDeep     int
	LastFastTS          time.Time
	LastDeepTS          time.Time
	ConsecutiveFailures int
	MechanicalOnly      bool
}

// Status returns a snapshot of the consolidator's bookkeeping.
func (c *Consolidator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	dirty := make([]string, 0, len(c.dirtyBlocks))
	for name := range c.dirtyBlocks {
		dirty = append(dirty, name)
	}
	return Status{
		DirtyBlocks:         dirty,
		EventsSinceFast:     c.eventsSinceFast,
		EventsSinceDeep:     c.eventsSinceDeep,
		LastFastTS:          c.lastFastTS,
		LastDeepTS:          c.lastDeepTS,
		ConsecutiveFailures: c.consecutiveFailures,
		MechanicalOnly:      c.mechanicalOnly,
	}
}

func (c *Consolidator) doFast(now time.Time) error {
	raw, err := os.ReadFile(c.identPath)
	if err != nil {
		return soulerr.New(soulerr.Fatal, "consolidator.fast.read", err)
	}
	doc, err := identity.Parse(raw)
	if err != nil {
		return soulerr.New(soulerr.Integrity, "consolidator.fast.parse", err)
	}

	c.mu.Lock()
	dirty := make([]string, 0, len(c.dirtyBlocks))
	for name := range c.dirtyBlocks {
		dirty = append(dirty, name)
	}
	c.mu.Unlock()

	bodies := make(map[string]string)
	var handled []string
	for _, name := range dirty {
		tmpl, ok := mechanicalTemplaters[name]
		if !ok {
			continue
		}
		bodies[name] = tmpl(c, doc, name)
		handled = append(handled, name)
	}

	text := identity.ReplaceBlocks(string(raw), bodies)
	text = identity.UpdateHeader(text, now, doc.Header.Sessions)

	newDoc, err := identity.Parse([]byte(text))
	if err != nil {
		return soulerr.New(soulerr.Integrity, "consolidator.fast.reparse", err)
	}
	result := identity.Validate(text, newDoc)
	if !result.Valid {
		c.handleFailure("fast", result)
		return soulerr.New(soulerr.Validation, "consolidator.fast.validate", fmt.Errorf("%s", strings.Join(result.Errors, "; ")))
	}

	if err := identity.WriteAtomic(c.identPath, text); err != nil {
		return soulerr.New(soulerr.External, "consolidator.fast.write", err)
	}

	c.mu.Lock()
	for _, name := range handled {
		delete(c.dirtyBlocks, name)
	}
	c.lastFastTS = now
	c.eventsSinceFast = 0
	c.consecutiveFailures = 0
	c.mu.Unlock()

	if c.ver != nil {
		c.ver.Queue("consolidate", "fast pass: "+strings.Join(handled, ", "))
	}
	if c.bus != nil {
		c.bus.Emit("seed.consolidated", "consolidator", map[string]any{"kind": "fast", "blocks": handled})
	}
	c.log.Info().Strs("blocks", handled).Msg("fast consolidation complete")
	return nil
}
