package affect

import (
	"math/rand"
	"sync"
	"time"
)

// MoodHistoryCap bounds how many mood snapshots are retained in history.
const MoodHistoryCap = 20

// hourlyDeltaCap bounds the sum of |delta| applied to one axis within any
// trailing 60-minute window.
const hourlyDeltaCap = 0.6

// changeEmitValenceThreshold and changeEmitEnergyThreshold gate
// mood.changed emission so small wobbles don't amplify downstream.
const (
	changeEmitValenceThreshold = 0.1
	changeEmitEnergyThreshold  = 0.15
)

// Mood is the externally visible affective summary.
type Mood struct {
	Valence float64 `json:"valence"`
	Energy  float64 `json:"energy"`
	Label   string  `json:"label"`
}

// deltaEntry is one logged update, used to enforce the hourly cap.
type deltaEntry struct {
	at time.Time
	dv float64
	de float64
}

// quadrantFamily holds the synonym pool for one valence/energy quadrant.
type quadrantFamily []string

var labelFamilies = map[string]quadrantFamily{
	"pos-high": {"elated", "energized", "buoyant"},
	"pos-low":  {"content", "settled", "at ease"},
	"neg-high": {"agitated", "wired", "on edge"},
	"neg-low":  {"low", "flat", "weary"},
	"neutral":  {"steady", "even", "quiet"},
}

func quadrant(valence, energy float64) string {
	switch {
	case valence > 0.2 && energy >= 0.5:
		return "pos-high"
	case valence > 0.2 && energy < 0.5:
		return "pos-low"
	case valence < -0.2 && energy >= 0.5:
		return "neg-high"
	case valence < -0.2 && energy < 0.5:
		return "neg-low"
	default:
		return "neutral"
	}
}

// ClampReason explains why an applied delta was smaller than requested.
type ClampReason string

const (
	ClampNone        ClampReason = ""
	ClampPerTick     ClampReason = "max_delta_per_tick"
	ClampHourlyCap   ClampReason = "hourly_cap"
)

// UpdateResult reports what update() actually did, for mood.changed /
// mood.clamped emission decisions.
type UpdateResult struct {
	Mood           Mood
	Changed        bool
	LabelChanged   bool
	Clamped        bool
	ClampReason    ClampReason
	RequestedDV    float64
	RequestedDE    float64
	AppliedDV      float64
	AppliedDE      float64
	Trigger        string
}

// State is the live affective state: mood, allostatic vector, and the
// bookkeeping needed to enforce the hourly delta cap and stable label
// selection.
type State struct {
	mu sync.Mutex

	mood    Mood
	vector  Vector
	history []Mood
	deltas  []deltaEntry

	lastUserMessage time.Time
	lastDream       time.Time

	rng *rand.Rand
}

const maxDeltaPerTick = 0.3

// New constructs a State at rest: zero valence, 0.5 energy, baseline vector.
func New() *State {
	s := &State{
		vector: NewVector(),
		rng:    rand.New(rand.NewSource(1)),
	}
	s.mood = Mood{Valence: 0, Energy: 0.5, Label: s.deriveLabel(0, 0)}
	s.history = append(s.history, s.mood)
	return s
}

// deriveLabel picks a synonym for the quadrant the given valence/energy
// falls in. Update calls it only when the quadrant changes, so the label
// stays stable while the mood moves within one quadrant.
func (s *State) deriveLabel(valence, energy float64) string {
	family := labelFamilies[quadrant(valence, energy)]
	return family[s.rng.Intn(len(family))]
}

// Update applies a requested (Δv, Δe) nudge attributed to trigger, running
// the clamp → hourly-cap pipeline, and reports what happened. Gravity is
// not applied here; the drift tick applies it.
func (s *State) Update(dv, de float64, trigger string) UpdateResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqDV, reqDE := dv, de
	appliedDV := clampAbs(dv, maxDeltaPerTick)
	appliedDE := clampAbs(de, maxDeltaPerTick)
	reason := ClampNone
	if appliedDV != dv || appliedDE != de {
		reason = ClampPerTick
	}

	now := time.Now()
	s.pruneDeltas(now)
	vSpent, eSpent := s.spentInWindow()
	if vSpent+absF(appliedDV) > hourlyDeltaCap {
		room := hourlyDeltaCap - vSpent
		if room < 0 {
			room = 0
		}
		appliedDV = clampAbs(appliedDV, room)
		reason = ClampHourlyCap
	}
	if eSpent+absF(appliedDE) > hourlyDeltaCap {
		room := hourlyDeltaCap - eSpent
		if room < 0 {
			room = 0
		}
		appliedDE = clampAbs(appliedDE, room)
		reason = ClampHourlyCap
	}

	prevValence, prevEnergy := s.mood.Valence, s.mood.Energy
	prevQuadrant := quadrant(prevValence, prevEnergy)

	s.mood.Valence = clamp(s.mood.Valence+appliedDV, -1, 1)
	s.mood.Energy = clamp(s.mood.Energy+appliedDE, 0, 1)

	labelChanged := quadrant(s.mood.Valence, s.mood.Energy) != prevQuadrant
	if labelChanged {
		s.mood.Label = s.deriveLabel(s.mood.Valence, s.mood.Energy)
	}

	s.vector[Valence] = s.mood.Valence
	s.vector[Arousal] = s.mood.Energy

	s.deltas = append(s.deltas, deltaEntry{at: now, dv: appliedDV, de: appliedDE})
	s.history = append(s.history, s.mood)
	if len(s.history) > MoodHistoryCap {
		s.history = s.history[len(s.history)-MoodHistoryCap:]
	}

	changed := absF(s.mood.Valence-prevValence) > changeEmitValenceThreshold ||
		absF(s.mood.Energy-prevEnergy) > changeEmitEnergyThreshold ||
		labelChanged

	return UpdateResult{
		Mood:         s.mood,
		Changed:      changed,
		LabelChanged: labelChanged,
		Clamped:      reason != ClampNone,
		ClampReason:  reason,
		RequestedDV:  reqDV,
		RequestedDE:  reqDE,
		AppliedDV:    appliedDV,
		AppliedDE:    appliedDE,
		Trigger:      trigger,
	}
}

// applyGravity pulls valence/energy toward baseline once deviation exceeds
// the threshold, same rule as the allostatic vector's own dimensions.
func (s *State) applyGravity() {
	if absF(s.mood.Valence-defaultParams[Valence].Baseline) > deviationThreshold {
		s.mood.Valence = clamp(s.mood.Valence+defaultParams[Valence].Gravity*sign(defaultParams[Valence].Baseline-s.mood.Valence), -1, 1)
	}
	if absF(s.mood.Energy-defaultParams[Arousal].Baseline) > deviationThreshold {
		s.mood.Energy = clamp(s.mood.Energy+defaultParams[Arousal].Gravity*sign(defaultParams[Arousal].Baseline-s.mood.Energy), 0, 1)
	}
}

func (s *State) pruneDeltas(now time.Time) {
	cutoff := now.Add(-time.Hour)
	i := 0
	for i < len(s.deltas) && s.deltas[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		s.deltas = s.deltas[i:]
	}
}

func (s *State) spentInWindow() (float64, float64) {
	var v, e float64
	for _, d := range s.deltas {
		v += absF(d.dv)
		e += absF(d.de)
	}
	return v, e
}

func clampAbs(x, max float64) float64 {
	if x > max {
		return max
	}
	if x < -max {
		return -max
	}
	return x
}

func absF(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Snapshot returns the current mood and a copy of the allostatic vector.
func (s *State) Snapshot() (Mood, Vector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mood, s.vector.Snapshot()
}

// History returns the bounded mood history, oldest first.
func (s *State) History() []Mood {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Mood, len(s.history))
	copy(out, s.history)
	return out
}
