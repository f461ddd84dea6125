package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbcaspa/soulengine/internal/config"
)

const sampleSeed = `@META{version:2|born:2026-01-01T00:00:00Z|condensed:2026-01-01T00:00:00Z|sessions:1}
@KERN{1:stay curious|2:be kind}
@SELF{name:Test Soul}
@STATE{focus:learning}
@BONDS{user:friend}
@MEM{[core|c:1|r:1] remembers the first conversation}
`

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "SEED.md"), []byte(sampleSeed), 0o644))

	impulseEnabled := &atomic.Bool{}
	impulseEnabled.Store(true)

	return &config.Config{
		SoulRoot:         root,
		ImpulseEnabled:   impulseEnabled,
		DailyTokenBudget: 0,
		HeartbeatCron:    "0 0 31 2 *", // Feb 31 never occurs; heartbeat loop stays idle for the test
		ImpulseMinDelay:  time.Hour,
		ImpulseMaxDelay:  2 * time.Hour,
		ImpulseNightFrom: 23,
		ImpulseNightTo:   7,
		GeneratorBaseURL: "http://127.0.0.1:0",
		GeneratorModel:   "test-model",
	}
}

func TestNewWiresUpFromAValidSeed(t *testing.T) {
	cfg := newTestConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, e)
	t.Cleanup(func() { _ = e.store.Close() })

	status := e.Status()
	assert.NotEmpty(t, status.Mood.Mood.Label)
	assert.Equal(t, uint64(0), status.BusEventCount)
}

func TestNewRejectsMissingSeed(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.Remove(filepath.Join(cfg.SoulRoot, "SEED.md")))

	_, err := New(cfg)
	require.Error(t, err)
}

func TestSessionGuardWarnsOnPriorUncleanShutdown(t *testing.T) {
	cfg := newTestConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.store.Close() })

	require.NoError(t, os.WriteFile(e.paths.SessionGuard, []byte("stale"), 0o644))
	assert.True(t, e.checkSessionGuard())

	e.disarmSessionGuard()
	assert.False(t, e.checkSessionGuard())
}

func TestRunPerformsCleanShutdownOnCancel(t *testing.T) {
	cfg := newTestConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- e.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-runDone:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	_, err = os.Stat(e.paths.SessionGuard)
	assert.True(t, os.IsNotExist(err), "session guard should be removed on clean shutdown")
}

func TestDeliverLogsWithoutError(t *testing.T) {
	cfg := newTestConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.store.Close() })

	err = e.Deliver(context.Background(), "share-thought", "a passing thought")
	assert.NoError(t, err)
}
