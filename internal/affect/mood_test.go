package affect

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestUpdateClampsPerTickDelta(t *testing.T) {
	s := New()
	res := s.Update(0.9, 0, "test")
	assert.LessOrEqual(t, res.AppliedDV, maxDeltaPerTick+1e-9)
	assert.True(t, res.Clamped)
	assert.Equal(t, ClampPerTick, res.ClampReason)
}

func TestUpdateEnforcesHourlyCap(t *testing.T) {
	s := New()
	var last UpdateResult
	for i := 0; i < 5; i++ {
		last = s.Update(0.3, 0, "repeat")
	}
	mood, _ := s.Snapshot()
	assert.LessOrEqual(t, mood.Valence, 1.0)
	if last.Clamped {
		assert.Equal(t, ClampHourlyCap, last.ClampReason)
	}
}

func TestUpdateEmitsChangeOnlyAboveThreshold(t *testing.T) {
	s := New()
	res := s.Update(0.05, 0.05, "tiny")
	assert.False(t, res.Changed, "small deltas below both thresholds must not mark changed")

	s2 := New()
	res2 := s2.Update(0.2, 0, "big enough")
	assert.True(t, res2.Changed)
}

func TestMoodValenceAndEnergyStayInRange(t *testing.T) {
	s := New()
	for i := 0; i < 50; i++ {
		s.Update(1, 1, "stress-test")
	}
	mood, _ := s.Snapshot()
	assert.GreaterOrEqual(t, mood.Valence, -1.0)
	assert.LessOrEqual(t, mood.Valence, 1.0)
	assert.GreaterOrEqual(t, mood.Energy, 0.0)
	assert.LessOrEqual(t, mood.Energy, 1.0)
}

func TestHistoryIsBoundedToCap(t *testing.T) {
	s := New()
	for i := 0; i < MoodHistoryCap+30; i++ {
		s.Update(0.01, 0.01, "drip")
	}
	assert.Len(t, s.History(), MoodHistoryCap)
}

func TestCheckpointRoundTripsAfterCorruption(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "affect.json")
	projPath := filepath.Join(dir, "affect_fields.json")

	s := New()
	s.Update(0.3, 0.2, "seed")
	s.Checkpoint(statePath, projPath)

	reloaded := Load(statePath)
	mood, _ := reloaded.Snapshot()
	orig, _ := s.Snapshot()
	assert.Equal(t, orig.Valence, mood.Valence)

	corruptPath := filepath.Join(dir, "corrupt.json")
	assert.NoError(t, os.WriteFile(corruptPath, []byte("{not json"), 0o644))
	assert.NotPanics(t, func() {
		fallback := Load(corruptPath)
		m, _ := fallback.Snapshot()
		assert.Equal(t, 0.5, m.Energy)
	})
}

func TestDriftTickKeepsDimensionsInRange(t *testing.T) {
	s := New()
	now := time.Now()
	for i := 0; i < 200; i++ {
		s.Tick(now.Add(time.Duration(i) * 2 * time.Minute))
	}
	_, vector := s.Snapshot()
	for _, d := range AllDimensions {
		p := defaultParams[d]
		assert.GreaterOrEqual(t, vector[d], p.Min)
		assert.LessOrEqual(t, vector[d], p.Max)
	}
}
