package impulse

import (
	"os"
	"time"

	"github.com/hbcaspa/soulengine/internal/affect"
)

// TickPeriod is how often the light tick loop runs.
const TickPeriod = 2 * time.Minute

// Consolidator is the narrow slice of the Seed Consolidator the tick loop
// needs, kept as an interface here so impulse never imports consolidator.
type Consolidator interface {
	ShouldConsolidate() string
}

// Tick runs one light pass: decays engagement and interests, checkpoints
// state, writes the pulse file, and asks the consolidator whether to
// fire. It never calls a generator.
func (s *Scheduler) Tick(now time.Time, affectState *affect.State, pulsePath string, consolidator Consolidator) {
	affectState.Tick(now)

	s.mu.Lock()
	s.state.Engagement = clamp01(s.state.Engagement - engagementDecayPerTick)
	for topic, w := range s.state.Interests {
		w -= interestDecayPerTick
		if w < interestFloor {
			delete(s.state.Interests, topic)
			continue
		}
		s.state.Interests[topic] = w
	}
	if s.state.DailyDate != now.Format("2006-01-02") {
		s.state.DailyDate = now.Format("2006-01-02")
		s.state.DailyCount = 0
	}
	if !s.state.responseDeadlineHandled && !s.state.LastImpulseTS.IsZero() &&
		now.Sub(s.state.LastImpulseTS) > responseWindow {
		s.state.ConsecutiveIgnored++
		s.state.responseDeadlineHandled = true
	}
	s.mu.Unlock()

	s.Persist()
	writePulse(pulsePath, now)

	if consolidator != nil {
		_ = consolidator.ShouldConsolidate()
	}

	if s.bus != nil {
		s.bus.Emit("impulse.tick", "impulse", map[string]any{"ts": now.Unix()})
	}
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// writePulse touches the heartbeat pulse file with the current timestamp,
// best-effort.
func writePulse(path string, now time.Time) {
	if path == "" {
		return
	}
	_ = os.WriteFile(path, []byte(now.Format(time.RFC3339)), 0o644)
}
