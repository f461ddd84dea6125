package impulse

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbcaspa/soulengine/internal/affect"
	"github.com/hbcaspa/soulengine/internal/generator"
)

type fakeConsolidator struct{ called bool }

func (f *fakeConsolidator) ShouldConsolidate() string {
	f.called = true
	return "none"
}

func TestTickDecaysEngagementAndInterests(t *testing.T) {
	s := newTestScheduler(t)
	s.state.Engagement = 0.8
	s.state.Interests["go"] = 0.06

	affectState := affect.New()
	pulsePath := filepath.Join(t.TempDir(), "pulse")
	cons := &fakeConsolidator{}

	s.Tick(time.Now(), affectState, pulsePath, cons)

	assert.Less(t, s.state.Engagement, 0.8)
	assert.True(t, cons.called)
	_, hasGo := s.state.Interests["go"]
	assert.False(t, hasGo, "interest below floor after decay should be dropped")
}

func TestOnUserMessageBoostsEngagementWithinResponseWindow(t *testing.T) {
	s := newTestScheduler(t)
	s.state.LastImpulseTS = time.Now().Add(-10 * time.Minute)
	before := s.state.Engagement

	learned := s.OnUserMessage(time.Now(), "tell me about golang concurrency")

	assert.True(t, learned.RespondedToImpulse)
	assert.Greater(t, s.state.Engagement, before)
}

func TestOnUserMessageOutsideWindowDoesNotCountAsResponse(t *testing.T) {
	s := newTestScheduler(t)
	s.state.LastImpulseTS = time.Now().Add(-2 * time.Hour)

	learned := s.OnUserMessage(time.Now(), "hello")

	assert.False(t, learned.RespondedToImpulse)
}

type fakeGen struct {
	content string
	err     error
}

func (g fakeGen) Generate(ctx context.Context, system string, history []generator.Message, user string, opts generator.Options) (generator.Result, error) {
	return generator.Result{Content: g.content}, g.err
}

type fakeDelivery struct {
	delivered string
	deliveredType Type
}

func (d *fakeDelivery) Deliver(ctx context.Context, impulseType Type, content string) error {
	d.delivered = content
	d.deliveredType = impulseType
	return nil
}

func TestFireTrimsHeadingsAndClampsLength(t *testing.T) {
	s := newTestScheduler(t)
	s.Seed(1)

	identPath := filepath.Join(t.TempDir(), "identity.txt")
	writeMinimalIdentity(t, identPath)
	cache := NewIdentityCache(identPath)

	longContent := "## A heading\n" + repeatChar('x', 2500)
	gen := fakeGen{content: longContent}
	delivery := &fakeDelivery{}
	affectState := affect.New()

	result, err := s.Fire(context.Background(), gen, cache, delivery, affectState)
	require.NoError(t, err)
	assert.True(t, result.Fired)
	assert.LessOrEqual(t, len(result.Content), maxContentChars)
	assert.NotContains(t, result.Content, "##")
	assert.Equal(t, result.Content, delivery.delivered)
}

func TestFireTracksRecentTypesAndDecreasesEngagement(t *testing.T) {
	s := newTestScheduler(t)
	s.Seed(2)
	before := s.state.Engagement

	identPath := filepath.Join(t.TempDir(), "identity.txt")
	writeMinimalIdentity(t, identPath)
	cache := NewIdentityCache(identPath)

	gen := fakeGen{content: "just a thought"}
	affectState := affect.New()

	_, err := s.Fire(context.Background(), gen, cache, nil, affectState)
	require.NoError(t, err)

	assert.Less(t, s.state.Engagement, before)
	require.Len(t, s.state.RecentTypes, 1)
}

func writeMinimalIdentity(t *testing.T, path string) {
	t.Helper()
	content := "@META{version:1|born:2026-01-01T00:00:00Z|condensed:2026-01-01T00:00:00Z|sessions:1}\n" +
		"@SELF{name:Test}\n@STATE{mood:steady}\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func repeatChar(c byte, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = c
	}
	return string(b)
}
