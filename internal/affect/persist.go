package affect

import (
	"encoding/json"
	"os"
	"time"
)

// persistedState is the authoritative JSON checkpoint written on every
// tick and read back on startup.
type persistedState struct {
	Mood    Mood      `json:"mood"`
	Vector  Vector    `json:"vector"`
	History []Mood    `json:"history"`
	SavedAt time.Time `json:"saved_at"`
}

// fieldProjection is the secondary file for external observers: derived
// values only, no internal bookkeeping.
type fieldProjection struct {
	Mood        Mood        `json:"mood"`
	Modulations Modulations `json:"modulations"`
	Dominant    Dimension   `json:"dominant"`
	SavedAt     time.Time   `json:"saved_at"`
}

// Load reads statePath, falling back to a fresh State if the file is
// absent or corrupt, tolerating corruption rather than failing startup.
func Load(statePath string) *State {
	data, err := os.ReadFile(statePath)
	if err != nil {
		return New()
	}
	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		return New()
	}
	s := New()
	s.mood = ps.Mood
	if ps.Vector != nil {
		s.vector = ps.Vector
	}
	if len(ps.History) > 0 {
		s.history = ps.History
	}
	return s
}

// Checkpoint writes both the authoritative state file and the field
// projection. Failures are swallowed: a missed checkpoint is recovered by
// the next tick, and affect state is process-resident, not a correctness
// boundary for anything else.
func (s *State) Checkpoint(statePath, projectionPath string) {
	mood, vector := s.Snapshot()
	history := s.History()

	ps := persistedState{Mood: mood, Vector: vector, History: history, SavedAt: time.Now()}
	writeAtomicJSON(statePath, ps)

	fp := fieldProjection{
		Mood:        mood,
		Modulations: computeModulations(vector),
		Dominant:    vector.Dominant(),
		SavedAt:     time.Now(),
	}
	writeAtomicJSON(projectionPath, fp)
}

func writeAtomicJSON(path string, v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	_ = os.Rename(tmp, path)
}
