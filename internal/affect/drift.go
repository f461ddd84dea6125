package affect

import (
	"time"

	"github.com/hbcaspa/soulengine/internal/bus"
)

// driftDimensions are the axes the periodic tick perturbs with tiny
// zero-mean noise.
var driftDimensions = []Dimension{Openness, Vigilance, CreativeTension, SocialOrientation, TimeFocus, IntegrationPressure}

const driftNoiseAmplitude = 0.02

// Tick applies the drift pass: noise, time-of-day influence, context
// pressure, and (after those) gravity on every dimension including mood.
// now is passed in rather than read from time.Now so callers (and tests)
// control the clock.
func (s *State) Tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range driftDimensions {
		noise := (s.rng.Float64()*2 - 1) * driftNoiseAmplitude
		s.vector.nudge(d, noise)
	}

	s.applyTimeOfDay(now)
	s.applyContextPressure(now)

	for _, d := range AllDimensions {
		s.gravitate(d)
	}
	s.applyGravity()
}

func (s *State) applyTimeOfDay(now time.Time) {
	h := now.Hour()
	switch {
	case h >= 5 && h < 11: // morning
		s.vector.nudge(Openness, 0.03)
	case h >= 22 || h < 5: // night
		s.vector.nudge(CreativeTension, 0.03)
	case h >= 13 && h < 17: // mid-afternoon
		s.vector.nudge(IntegrationPressure, 0.03)
	}
}

func (s *State) applyContextPressure(now time.Time) {
	if !s.lastUserMessage.IsZero() {
		idle := now.Sub(s.lastUserMessage)
		if idle > 30*time.Minute {
			s.vector.nudge(SocialOrientation, -0.02)
		}
	}
	if !s.lastDream.IsZero() {
		sinceDream := now.Sub(s.lastDream)
		if sinceDream > 6*time.Hour {
			s.vector.nudge(CreativeTension, 0.02)
		}
	}
}

// gravitate applies a dimension's own gravity pull if it has drifted past
// the deviation threshold. The drift tick calls it once for the whole
// vector after all nudges; Vector.nudge itself applies no gravity.
func (s *State) gravitate(d Dimension) {
	p := defaultParams[d]
	v := s.vector[d]
	if absF(v-p.Baseline) > deviationThreshold {
		s.vector[d] = clamp(v+p.Gravity*sign(p.Baseline-v), p.Min, p.Max)
	}
}

// RecordUserMessage updates the context-pressure clock used by the drift
// tick.
func (s *State) RecordUserMessage(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUserMessage = at
}

// RecordDream updates the dream clock used by the drift tick.
func (s *State) RecordDream(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastDream = at
}

// eventReaction is one row of the fixed event → dimension-nudge table.
type eventReaction struct {
	dv, de float64 // mood deltas, applied via Update
	vector map[Dimension]float64
}

var eventReactions = map[string]eventReaction{
	"message.received": {
		vector: map[Dimension]float64{Arousal: 0.1, SocialOrientation: 0.15, TimeFocus: -0.05},
	},
	"heartbeat.completed": {
		vector: map[Dimension]float64{CreativeTension: -0.1},
	},
	"performance.detected": {
		vector: map[Dimension]float64{Vigilance: 0.15},
	},
}

// React looks up the event type in the fixed reaction table and, if
// present, nudges the vector through the per-tick clamp (gravity is left
// to the drift tick). Reports
// whether anything changed enough to warrant republishing mood.changed.
func (s *State) React(eventType string, now time.Time) (UpdateResult, bool) {
	reaction, ok := eventReactions[eventType]
	if !ok {
		return UpdateResult{}, false
	}
	s.mu.Lock()
	for d, delta := range reaction.vector {
		s.vector.nudge(d, delta)
	}
	s.mu.Unlock()
	if reaction.dv == 0 && reaction.de == 0 {
		return UpdateResult{}, false
	}
	res := s.Update(reaction.dv, reaction.de, eventType)
	return res, res.Changed
}

// Attach subscribes the state to every event type in the reaction table,
// checkpointing and republishing mood.changed on whichever reactions
// cross the emit threshold, and mood.clamped whenever the clamp/hourly-cap
// pipeline reduced the requested delta.
func (s *State) Attach(b *bus.Bus, statePath, projectionPath string) {
	for eventType := range eventReactions {
		et := eventType
		b.On(et, func(e bus.Event) error {
			res, changed := s.React(et, time.Now())
			emitClamp(b, res)
			if changed {
				b.Emit("mood.changed", "affect", map[string]any{"mood": res.Mood, "trigger": res.Trigger})
			}
			s.Checkpoint(statePath, projectionPath)
			return nil
		})
	}
}

// emitClamp publishes mood.clamped whenever Update reduced a requested
// delta, carrying both the requested and applied values and the reason so
// subscribers (the audit log) can tell a per-tick clamp from an hourly-cap
// clamp.
func emitClamp(b *bus.Bus, res UpdateResult) {
	if !res.Clamped {
		return
	}
	b.Emit("mood.clamped", "affect", map[string]any{
		"reason":       string(res.ClampReason),
		"trigger":      res.Trigger,
		"requested_dv": res.RequestedDV,
		"requested_de": res.RequestedDE,
		"applied_dv":   res.AppliedDV,
		"applied_de":   res.AppliedDE,
	})
}
