package cost

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbcaspa/soulengine/internal/bus"
	"github.com/hbcaspa/soulengine/internal/generator"
)

type fakeGenerator struct {
	result generator.Result
	err    error
}

func (f fakeGenerator) Generate(ctx context.Context, system string, history []generator.Message, user string, opts generator.Options) (generator.Result, error) {
	return f.result, f.err
}

func TestEstimateTokensCeilsCharsOverFour(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 3, EstimateTokens("abcdefghij"))
}

func TestWrapRecordsUsageFromInnerGenerator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cost.json")
	tracker := NewTracker(path, nil, nil, 0)

	inner := fakeGenerator{result: generator.Result{Content: "hi", InputTokens: 10, OutputTokens: 5}}
	wrapped := tracker.Wrap(inner, CategoryImpulse)

	_, err := wrapped.Generate(context.Background(), "sys", nil, "hello", generator.Options{})
	require.NoError(t, err)

	require.Len(t, tracker.records, 1)
	for _, r := range tracker.records {
		assert.Equal(t, 10, r.InputTokens)
		assert.Equal(t, 5, r.OutputTokens)
		assert.Equal(t, 1, r.Calls)
	}
}

func TestBudgetExceededEmitsEventOncePerDay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cost.json")
	b := bus.New()
	tracker := NewTracker(path, nil, b, 10)

	tracker.Record(CategoryImpulse, 8, 8)
	tracker.Record(CategoryImpulse, 1, 1)

	events := b.Recent(10)
	count := 0
	for _, e := range events {
		if e.Type == "cost.budget-exceeded" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
