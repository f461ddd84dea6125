package affect

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewVectorStartsAtBaseline(t *testing.T) {
	v := NewVector()
	for _, d := range AllDimensions {
		assert.Equal(t, defaultParams[d].Baseline, v[d])
	}
}

func TestNudgeRespectsPerTickCeiling(t *testing.T) {
	v := NewVector()
	v.nudge(Openness, 10)
	assert.LessOrEqual(t, v[Openness], defaultParams[Openness].Max)
}

func TestNudgeNeverLeavesDeclaredRange(t *testing.T) {
	v := NewVector()
	for i := 0; i < 100; i++ {
		v.nudge(Vigilance, 0.5)
		v.nudge(Vigilance, -0.5)
	}
	p := defaultParams[Vigilance]
	assert.GreaterOrEqual(t, v[Vigilance], p.Min)
	assert.LessOrEqual(t, v[Vigilance], p.Max)
}

func TestDominantPicksLargestDeviation(t *testing.T) {
	v := NewVector()
	v[CreativeTension] = defaultParams[CreativeTension].Max
	assert.Equal(t, CreativeTension, v.Dominant())
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	v := NewVector()
	snap := v.Snapshot()
	snap[Openness] = 0.99
	assert.NotEqual(t, v[Openness], snap[Openness])
}
