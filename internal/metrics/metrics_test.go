package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/hbcaspa/soulengine/internal/affect"
	"github.com/hbcaspa/soulengine/internal/bus"
)

func gatherNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	assert.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestAttachCountsKnownEventType(t *testing.T) {
	b := bus.New()
	Attach(b)

	before := testutil.ToFloat64(BusEventsTotal.WithLabelValues("mood.changed"))
	b.Emit("mood.changed", "test", nil)
	after := testutil.ToFloat64(BusEventsTotal.WithLabelValues("mood.changed"))

	assert.Equal(t, before+1, after)
}

func TestObserveMoodSetsGauges(t *testing.T) {
	vec := affect.NewVector()
	vec[affect.Valence] = 0.4
	vec[affect.Arousal] = 0.7
	ObserveMood(affect.Export{
		Mood:   affect.Mood{Valence: 0.4, Energy: 0.7},
		Vector: vec,
	})

	assert.Equal(t, 0.4, testutil.ToFloat64(MoodValence))
	assert.Equal(t, 0.7, testutil.ToFloat64(MoodEnergy))

	names := gatherNames(t)
	assert.True(t, names["soulengine_allostatic_dimension"])
}

func TestRecordGeneratorUsageAccumulates(t *testing.T) {
	before := testutil.ToFloat64(GeneratorTokensTotal.WithLabelValues("conversation", "input"))
	RecordGeneratorUsage("conversation", 10, 20)
	after := testutil.ToFloat64(GeneratorTokensTotal.WithLabelValues("conversation", "input"))
	assert.Equal(t, before+10, after)
}

func TestRecordConsolidationSetsRecoveryGauge(t *testing.T) {
	RecordConsolidation("deep", true, 2, true)
	assert.Equal(t, float64(1), testutil.ToFloat64(ConsolidatorRecoveryMode))
	assert.Equal(t, float64(2), testutil.ToFloat64(ConsolidatorConsecutiveFailures))

	RecordConsolidation("deep", false, 0, false)
	assert.Equal(t, float64(0), testutil.ToFloat64(ConsolidatorRecoveryMode))
}

func TestHandlerIsNotNil(t *testing.T) {
	assert.NotNil(t, Handler())
}
