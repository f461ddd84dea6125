package impulse

import (
	"math/rand"
	"time"

	"github.com/hbcaspa/soulengine/internal/affect"
)

// weights computes the full weight vector for the current state.
func (s *Scheduler) weights(now time.Time, mood affect.Mood, vector affect.Vector) map[Type]float64 {
	s.mu.Lock()
	registry := s.registry
	state := s.state
	s.mu.Unlock()

	out := make(map[Type]float64, len(registry))
	for t, entry := range registry {
		fn, ok := weightFuncs[t]
		if !ok {
			fn = weightDefault
		}
		cooldown := time.Duration(entry.cooldownMinutes) * time.Minute
		in := weightInput{
			now:      now,
			mood:     mood,
			vector:   vector,
			state:    state,
			baseRate: entry.baseRate,
			cooldown: cooldown,
		}
		in.recentInCooldown = recentCount(in, t, cooldown)
		out[t] = fn(in)
	}
	return out
}

// Select performs weighted-random selection over the current weight
// vector: draw uniform in [0, sum), walk cumulatively, and on zero total
// fall back to DefaultType.
func (s *Scheduler) Select(now time.Time, mood affect.Mood, vector affect.Vector) Type {
	w := s.weights(now, mood, vector)

	var sum float64
	for _, v := range w {
		sum += v
	}
	if sum <= 0 {
		return DefaultType
	}

	s.mu.Lock()
	r := s.rng.Float64() * sum
	s.mu.Unlock()

	var cum float64
	for _, t := range AllTypes {
		v, ok := w[t]
		if !ok {
			continue
		}
		cum += v
		if r < cum {
			return t
		}
	}
	return DefaultType
}

// NextDelay computes the delay before the next fire loop iteration,
// exposed so internal/engine can drive the fire loop's timer without
// reaching into the scheduler's unexported state.
func (s *Scheduler) NextDelay(now time.Time, mood affect.Mood, minDelay, maxDelay time.Duration, nightFrom, nightTo int) time.Duration {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return calculateDelay(now, mood, state, minDelay, maxDelay, nightFrom, nightTo)
}

// calculateDelay derives the next fire delay from a day/night base range,
// energy/engagement dampening, consecutive-ignored backoff, and jitter,
// clamped to [minDelay, maxDelay].
func calculateDelay(now time.Time, mood affect.Mood, state *State, minDelay, maxDelay time.Duration, nightFrom, nightTo int) time.Duration {
	base := baseDelay(now, minDelay, maxDelay, nightFrom, nightTo)

	factor := (1 - mood.Energy*0.4) * (1 - state.Engagement*0.3)
	if factor < 0.1 {
		factor = 0.1
	}
	delay := time.Duration(float64(base) * factor)

	if state.ConsecutiveIgnored > 3 {
		backoff := 1.0 + float64(state.ConsecutiveIgnored-3)*0.5
		if backoff > 4 {
			backoff = 4
		}
		delay = time.Duration(float64(delay) * backoff)
	}

	jitter := 1 + (jitterRand()*0.6 - 0.3) // ±30%
	delay = time.Duration(float64(delay) * jitter)

	if delay < minDelay {
		delay = minDelay
	}
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// baseDelay picks a point in the night range (1-4h) during configured
// night hours, or ramps linearly between min/max delay during the day.
func baseDelay(now time.Time, minDelay, maxDelay time.Duration, nightFrom, nightTo int) time.Duration {
	hour := now.Hour()
	if inNightWindow(hour, nightFrom, nightTo) {
		return time.Hour + time.Duration(jitterRand()*3*float64(time.Hour))
	}
	dayFraction := dayProgress(hour, nightFrom, nightTo)
	span := maxDelay - minDelay
	return minDelay + time.Duration(dayFraction*float64(span))
}

func inNightWindow(hour, from, to int) bool {
	if from <= to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}

// dayProgress maps the current daytime hour onto [0,1] across the
// non-night span, for the day ramp in baseDelay.
func dayProgress(hour, nightFrom, nightTo int) float64 {
	dayStart := nightTo
	dayEnd := nightFrom
	if dayEnd <= dayStart {
		dayEnd += 24
	}
	h := hour
	if h < dayStart {
		h += 24
	}
	span := dayEnd - dayStart
	if span <= 0 {
		return 0.5
	}
	progress := float64(h-dayStart) / float64(span)
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	return progress
}

// jitterRand is a package-level hook so tests could substitute
// determinism; production uses math/rand's global source, acceptable
// since delay jitter has no correctness requirement beyond "within
// bounds".
var jitterRand = func() float64 { return rand.Float64() }
