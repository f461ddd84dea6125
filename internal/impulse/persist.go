package impulse

import (
	"encoding/json"
	"os"
	"time"
)

type persistedState struct {
	LastImpulseTS      time.Time          `json:"last_impulse_ts"`
	LastUserMessageTS  time.Time          `json:"last_user_message_ts"`
	Engagement         float64            `json:"engagement"`
	DailyCount         int                `json:"daily_count"`
	DailyDate          string             `json:"daily_date"`
	ConsecutiveIgnored int                `json:"consecutive_ignored"`
	RecentTypes        []TypedTick        `json:"recent_types"`
	Interests          map[string]float64 `json:"interests"`
}

// loadState reads statePath, falling back to a fresh State on absence or
// corruption.
func loadState(statePath string) *State {
	data, err := os.ReadFile(statePath)
	if err != nil {
		return newState()
	}
	var p persistedState
	if err := json.Unmarshal(data, &p); err != nil {
		return newState()
	}
	s := &State{
		LastImpulseTS:      p.LastImpulseTS,
		LastUserMessageTS:  p.LastUserMessageTS,
		Engagement:         p.Engagement,
		DailyCount:         p.DailyCount,
		DailyDate:          p.DailyDate,
		ConsecutiveIgnored: p.ConsecutiveIgnored,
		RecentTypes:        p.RecentTypes,
		Interests:          p.Interests,
	}
	if s.Interests == nil {
		s.Interests = make(map[string]float64)
	}
	if s.DailyDate == "" {
		s.DailyDate = time.Now().Format("2006-01-02")
	}
	return s
}

func persistState(statePath string, s *State) {
	p := persistedState{
		LastImpulseTS:      s.LastImpulseTS,
		LastUserMessageTS:  s.LastUserMessageTS,
		Engagement:         s.Engagement,
		DailyCount:         s.DailyCount,
		DailyDate:          s.DailyDate,
		ConsecutiveIgnored: s.ConsecutiveIgnored,
		RecentTypes:        s.RecentTypes,
		Interests:          s.Interests,
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return
	}
	tmp := statePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, statePath)
}
