// Package engine wires every subsystem into one running daemon: the
// event bus, affect state, identity document, versioner, store, impulse
// scheduler, consolidator, generator, cost tracker, audit log, and
// metrics. It generalizes the teacher's core.Engine, which held one
// *sql.DB and a config-watcher goroutine, to a daemon that owns several
// independently-ticking loops over a shared bus instead of one database
// handle.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/hbcaspa/soulengine/internal/affect"
	"github.com/hbcaspa/soulengine/internal/audit"
	"github.com/hbcaspa/soulengine/internal/bus"
	"github.com/hbcaspa/soulengine/internal/config"
	"github.com/hbcaspa/soulengine/internal/consolidator"
	"github.com/hbcaspa/soulengine/internal/cost"
	"github.com/hbcaspa/soulengine/internal/generator"
	"github.com/hbcaspa/soulengine/internal/generator/httpgen"
	"github.com/hbcaspa/soulengine/internal/identity"
	"github.com/hbcaspa/soulengine/internal/impulse"
	"github.com/hbcaspa/soulengine/internal/metrics"
	"github.com/hbcaspa/soulengine/internal/soulerr"
	"github.com/hbcaspa/soulengine/internal/store"
	"github.com/hbcaspa/soulengine/internal/versioner"
)

// Engine owns every long-lived component and the daemon's loops.
type Engine struct {
	cfg   *config.Config
	paths Paths
	log   zerolog.Logger

	bus    *bus.Bus
	store  *store.Store
	affect *affect.State
	vers   *versioner.Versioner
	audit  *audit.Logger
	cost   *cost.Tracker
	gen    generator.Generator

	impulseSched *impulse.Scheduler
	identCache   *impulse.IdentityCache
	consol       *consolidator.Consolidator

	impulseLog *impulseLog

	cancel context.CancelFunc
	done   chan struct{}
}

// New validates the identity document, migrates it if stale, and wires
// every subsystem against cfg.SoulRoot. It returns a soulerr.Fatal error
// if the soul root has no identity document to bootstrap from.
func New(cfg *config.Config) (*Engine, error) {
	paths := NewPaths(cfg.SoulRoot)
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()

	if _, err := os.Stat(paths.Seed); err != nil {
		return nil, soulerr.New(soulerr.Fatal, "engine.New", fmt.Errorf("no identity document at %s: %w", paths.Seed, err))
	}

	doc, err := identity.Migrate(paths.Seed)
	if err != nil {
		return nil, soulerr.New(soulerr.Fatal, "identity.Migrate", err)
	}
	content, err := os.ReadFile(paths.Seed)
	if err != nil {
		return nil, soulerr.New(soulerr.Fatal, "engine.New", err)
	}
	if res := identity.Validate(string(content), doc); !res.Valid {
		return nil, soulerr.New(soulerr.Fatal, "identity.Validate", fmt.Errorf("invalid identity document: %v", res.Errors))
	}

	for _, dir := range []string{paths.MemoryDir, paths.HeartbeatDir, paths.StatelogDir, filepath.Dir(paths.DB), filepath.Dir(paths.EventJournal)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, soulerr.New(soulerr.Fatal, "engine.New", err)
		}
	}

	st, err := store.Open(paths.DB, log.With().Str("component", "store").Logger())
	if err != nil {
		return nil, soulerr.New(soulerr.Fatal, "store.Open", err)
	}

	b := bus.New(
		bus.WithDebug(cfg.BusDebug),
		bus.WithJournalPath(paths.EventJournal),
		bus.WithMoodSnapshotPath(paths.Field),
	)

	affectState := affect.Load(paths.Mood)
	affectState.Attach(b, paths.Mood, paths.AllostaticField)

	vers := versioner.New(paths.Root, paths.Seed, 2*time.Minute, b, log.With().Str("component", "versioner").Logger())

	var gen generator.Generator = httpgen.New(httpgen.Config{
		BaseURL: cfg.GeneratorBaseURL,
		APIKey:  cfg.GeneratorAPIKey,
		Model:   cfg.GeneratorModel,
	})

	costTracker := cost.NewTracker(paths.Cost, st, b, cfg.DailyTokenBudget)

	auditLogger, err := audit.NewLogger(paths.AuditDir, log.With().Str("component", "audit").Logger())
	if err != nil {
		return nil, soulerr.New(soulerr.Fatal, "audit.NewLogger", err)
	}
	auditLogger.Attach(b)

	impulseSched := impulse.New(paths.ImpulseState, st, b, log.With().Str("component", "impulse").Logger())
	identCache := impulse.NewIdentityCache(paths.Seed)

	consol := consolidator.New(
		paths.Seed, paths.TodayNotes(time.Now()), paths.ExternalConsciousness,
		st, b, vers,
		costTracker.Wrap(gen, cost.CategoryConsolidation),
		impulseSched, affectState,
		log.With().Str("component", "consolidator").Logger(),
	)
	consol.Attach(b)

	metrics.Attach(b)
	b.On("mood.changed", func(bus.Event) error {
		metrics.ObserveMood(affectState.Export())
		return nil
	})

	e := &Engine{
		cfg:          cfg,
		paths:        paths,
		log:          log,
		bus:          b,
		store:        st,
		affect:       affectState,
		vers:         vers,
		audit:        auditLogger,
		cost:         costTracker,
		gen:          gen,
		impulseSched: impulseSched,
		identCache:   identCache,
		consol:       consol,
		impulseLog:   newImpulseLog(paths.ImpulseLog),
		done:         make(chan struct{}),
	}
	return e, nil
}

// Status is the read model the CLI's status banner renders.
type Status struct {
	Mood          affect.Export
	Consolidator  consolidator.Status
	Impulse       impulse.State
	TokensToday   int
	OutputToday   int
	CallsToday    int
	BusEventCount uint64
}

// Status snapshots every subsystem's current read model.
func (e *Engine) Status() Status {
	in, out, calls := e.cost.Today()
	snap := e.impulseSched.Snapshot()
	return Status{
		Mood:          e.affect.Export(),
		Consolidator:  e.consol.Status(),
		Impulse:       snap,
		TokensToday:   in,
		OutputToday:   out,
		CallsToday:    calls,
		BusEventCount: e.bus.Count(),
	}
}
