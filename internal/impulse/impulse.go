// Package impulse implements the Soul Engine's proactive tick-and-fire
// loop: a lightweight tick that drifts affect and decays engagement, and a
// heavier fire that selects one action from a weighted registry and routes
// it to a generator call.
//
// The registry and its reload-on-config-change lifecycle are grounded on
// the teacher's core.ModuleManager (internal/core/modules.go): a fixed
// table loaded from the database, held under a lock, and re-read when the
// store signals a change — generalized here from "modules and hooks" to
// "impulse types and their weight-function parameters".
package impulse

import (
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hbcaspa/soulengine/internal/bus"
	"github.com/hbcaspa/soulengine/internal/store"
)

// Type names the fixed ~11-entry impulse registry.
type Type string

const (
	ShareThought   Type = "share_thought"
	AskQuestion    Type = "ask_question"
	NewsResearch   Type = "news_research"
	ServerCheck    Type = "server_check"
	HobbyPursuit   Type = "hobby_pursuit"
	ExpressEmotion Type = "express_emotion"
	TechSuggestion Type = "tech_suggestion"
	Provoke        Type = "provoke"
	DreamShare     Type = "dream_share"
	MemoryReflect  Type = "memory_reflect"
	GithubCheck    Type = "github_check"
)

// DefaultType is the fallback selection when every weight is zero.
const DefaultType = ShareThought

// AllTypes lists the registry in a stable order, for iteration and tests.
var AllTypes = []Type{
	ShareThought, AskQuestion, NewsResearch, ServerCheck, HobbyPursuit,
	ExpressEmotion, TechSuggestion, Provoke, DreamShare, MemoryReflect, GithubCheck,
}

// TypedTick is one entry in the recent_types ring.
type TypedTick struct {
	Type Type
	At   time.Time
}

// State is the impulse scheduler's persisted bookkeeping, mirroring the
// state shape named for the scheduler.
type State struct {
	LastImpulseTS      time.Time
	LastUserMessageTS  time.Time
	Engagement         float64
	DailyCount         int
	DailyDate          string
	ConsecutiveIgnored int
	RecentTypes        []TypedTick
	Interests          map[string]float64

	// responseDeadlineHandled tracks whether the last firing's response
	// window has already been resolved (either by a timely user message or
	// by Tick counting it as ignored), so it is only ever counted once.
	responseDeadlineHandled bool
}

const (
	engagementDecayPerTick = 0.01
	engagementDecayOnFire  = 0.03
	interestDecayPerTick   = 0.02
	interestFloor          = 0.05
	recentTypesWindow      = 20
)

func newState() *State {
	return &State{
		Engagement: 0.5,
		DailyDate:  time.Now().Format("2006-01-02"),
		Interests:  make(map[string]float64),
	}
}

// registryEntry is one loaded impulse type's tunables.
type registryEntry struct {
	baseRate        float64
	needsTools      bool
	cooldownMinutes int
}

// Scheduler owns the impulse registry and state, and runs the tick/fire
// loops via its caller (internal/engine owns the goroutines and timers;
// this type is pure decision logic plus I/O side effects per call).
type Scheduler struct {
	mu    sync.Mutex
	state *State

	statePath string
	store     *store.Store
	bus       *bus.Bus
	log       zerolog.Logger

	registry map[Type]registryEntry
	rng      *rand.Rand
}

// New constructs a Scheduler, loading persisted state (if any) and the
// registry from the store.
func New(statePath string, st *store.Store, b *bus.Bus, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		statePath: statePath,
		store:     st,
		bus:       b,
		log:       log.With().Str("component", "impulse").Logger(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.state = loadState(statePath)
	s.reload()
	if st != nil {
		st.OnChange(func(string) { s.reload() })
	}
	return s
}

// reload re-reads the registry from the store, falling back to the
// built-in defaults on any error, matching ModuleManager.reload's
// tolerate-and-keep-serving posture.
func (s *Scheduler) reload() {
	registry := defaultRegistry()
	if s.store != nil {
		if rows, err := s.store.ImpulseWeights(); err == nil {
			for _, r := range rows {
				if !r.Enabled {
					delete(registry, Type(r.ImpulseType))
					continue
				}
				registry[Type(r.ImpulseType)] = registryEntry{
					baseRate:        r.BaseRate,
					needsTools:      r.NeedsTools,
					cooldownMinutes: r.CooldownMinutes,
				}
			}
		} else {
			s.log.Warn().Err(err).Msg("impulse: using built-in registry, store read failed")
		}
	}
	s.mu.Lock()
	s.registry = registry
	s.mu.Unlock()
}

func defaultRegistry() map[Type]registryEntry {
	return map[Type]registryEntry{
		ShareThought:   {baseRate: 0.18, cooldownMinutes: 20},
		AskQuestion:    {baseRate: 0.14, cooldownMinutes: 30},
		NewsResearch:   {baseRate: 0.10, needsTools: true, cooldownMinutes: 60},
		ServerCheck:    {baseRate: 0.08, needsTools: true, cooldownMinutes: 45},
		HobbyPursuit:   {baseRate: 0.10, cooldownMinutes: 60},
		ExpressEmotion: {baseRate: 0.10, cooldownMinutes: 40},
		TechSuggestion: {baseRate: 0.08, cooldownMinutes: 60},
		Provoke:        {baseRate: 0.04, cooldownMinutes: 120},
		DreamShare:     {baseRate: 0.06, cooldownMinutes: 180},
		MemoryReflect:  {baseRate: 0.08, cooldownMinutes: 90},
		GithubCheck:    {baseRate: 0.04, needsTools: true, cooldownMinutes: 90},
	}
}

// Snapshot returns a copy of the current state for inspection/persistence.
func (s *Scheduler) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.state
	cp.RecentTypes = append([]TypedTick(nil), s.state.RecentTypes...)
	cp.Interests = make(map[string]float64, len(s.state.Interests))
	for k, v := range s.state.Interests {
		cp.Interests[k] = v
	}
	return cp
}

// Persist writes state atomically, best-effort like every other checkpoint
// file in this codebase.
func (s *Scheduler) Persist() {
	snap := s.Snapshot()
	persistState(s.statePath, &snap)
}

// Interests returns a copy of the accumulated interest weights, narrowed
// from Snapshot so internal/consolidator's INTERESTS templater can depend
// on this single method instead of the whole Scheduler.
func (s *Scheduler) Interests() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64, len(s.state.Interests))
	for k, v := range s.state.Interests {
		out[k] = v
	}
	return out
}

// Seed reseeds the selection RNG, for deterministic tests.
func (s *Scheduler) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng = rand.New(rand.NewSource(seed))
}
