package impulse

import (
	"time"

	"github.com/hbcaspa/soulengine/internal/store"
)

// Learned is what onUserMessage hands back for downstream routing: the
// topics it recognized and whether this message counts as a response to
// the last fired impulse.
type Learned struct {
	Topics           map[string]float64
	RespondedToImpulse bool
	EngagementBoost  float64
}

// responseWindow is how long after a firing a user message still counts
// as a response to it.
const responseWindow = time.Hour

// OnUserMessage extracts interest/topic hits from text using the store's
// hot-reloadable keyword table (the same "load patterns from a
// hot-reloadable table, scan lowercased input for substring hits" shape
// the teacher's ui.IntentParser uses for intent patterns, repointed at
// interests), marks the last impulse responded-to if within the response
// window, and decays/ boosts engagement accordingly.
func (s *Scheduler) OnUserMessage(now time.Time, text string) Learned {
	var patterns []store.InterestPattern
	if s.store != nil {
		patterns, _ = s.store.InterestPatterns()
	}
	hits := store.MatchInterests(text, patterns)

	s.mu.Lock()
	for topic, w := range hits {
		if w > s.state.Interests[topic] {
			s.state.Interests[topic] = w
		}
	}
	s.state.LastUserMessageTS = now

	learned := Learned{Topics: hits}
	if !s.state.LastImpulseTS.IsZero() && now.Sub(s.state.LastImpulseTS) <= responseWindow {
		latency := now.Sub(s.state.LastImpulseTS)
		boost := 0.2 * (1 - float64(latency)/float64(responseWindow))
		if boost < 0 {
			boost = 0
		}
		s.state.Engagement = clamp01(s.state.Engagement + boost)
		s.state.ConsecutiveIgnored = 0
		s.state.responseDeadlineHandled = true
		learned.RespondedToImpulse = true
		learned.EngagementBoost = boost
	}
	s.mu.Unlock()

	s.Persist()
	return learned
}
