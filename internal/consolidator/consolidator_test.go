package consolidator

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbcaspa/soulengine/internal/bus"
	"github.com/hbcaspa/soulengine/internal/generator"
	"github.com/hbcaspa/soulengine/internal/versioner"
)

const validSeed = "@META{version:1|sessions:1}\n" +
	"@KERN{1:axiom}\n@SELF{name:x}\n@STATE{focus:x}\n" +
	"@MEM{[core|c:1|r:1] m}\n@BONDS{user:x}\n@INTERESTS{golang:0.50}\n"

func run(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	require.NoError(t, cmd.Run())
}

func newTestConsolidator(t *testing.T, gen generator.Generator) (*Consolidator, string, *versioner.Versioner) {
	t.Helper()
	dir := t.TempDir()
	run(t, dir, "init")
	run(t, dir, "config", "user.email", "test@example.com")
	run(t, dir, "config", "user.name", "Test")

	identPath := filepath.Join(dir, "seed.txt")
	require.NoError(t, os.WriteFile(identPath, []byte(validSeed), 0o644))

	b := bus.New()
	ver := versioner.New(dir, identPath, 50*time.Millisecond, b, zerolog.Nop())
	require.NoError(t, ver.Init())

	c := New(identPath, "", "", nil, b, ver, gen, nil, nil, zerolog.Nop())
	return c, identPath, ver
}

type fakeGen struct {
	content string
	err     error
}

func (g fakeGen) Generate(ctx context.Context, system string, history []generator.Message, user string, opts generator.Options) (generator.Result, error) {
	return generator.Result{Content: g.content}, g.err
}

func TestFastConsolidationRewritesInterestsAndTimestamp(t *testing.T) {
	interests := fakeInterests{"golang": 0.9, "rust": 0.4}
	c, identPath, _ := newTestConsolidator(t, nil)
	c.interests = interests
	c.dirtyBlocks["INTERESTS"] = true

	require.NoError(t, c.ConsolidateFast(context.Background()))

	data, err := os.ReadFile(identPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "golang:0.90")
	assert.Contains(t, string(data), "condensed:")
}

type fakeInterests map[string]float64

func (f fakeInterests) Interests() map[string]float64 { return f }

func TestDeepConsolidationRewritesStateAndMem(t *testing.T) {
	gen := fakeGen{content: "focus:y"}
	c, identPath, _ := newTestConsolidator(t, gen)

	require.NoError(t, c.ConsolidateDeep(context.Background()))

	data, err := os.ReadFile(identPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focus:y")
	assert.NotContains(t, string(data), "@STATE{@STATE")
}

func TestDeepConsolidationStripsAccidentalWrapper(t *testing.T) {
	gen := fakeGen{content: "@STATE{focus:z}"}
	c, identPath, _ := newTestConsolidator(t, gen)

	require.NoError(t, c.ConsolidateDeep(context.Background()))

	data, err := os.ReadFile(identPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "focus:z")
	assert.NotContains(t, string(data), "@STATE{@STATE")
}

// TestValidationFailureTriggersRecovery has the MEM call return an empty
// body, which leaves the mandatory MEM block empty; Validate rejects it,
// recovery restores the last committed (valid) revision, and the
// consecutive-failure counter advances.
func TestValidationFailureTriggersRecovery(t *testing.T) {
	gen := brokenMemGen{}
	c, identPath, ver := newTestConsolidator(t, gen)

	// Commit the valid seed so RecoverLastValid has something to walk back
	// to.
	ver.Queue("seed", "initial")
	ver.Flush()

	err := c.ConsolidateDeep(context.Background())
	require.Error(t, err)

	data, err2 := os.ReadFile(identPath)
	require.NoError(t, err2)
	assert.Contains(t, string(data), "core|c:1|r:1")

	assert.Equal(t, 1, c.Status().ConsecutiveFailures)
}

// brokenMemGen answers the STATE call normally but returns an empty MEM
// block body, which Validate rejects as a missing mandatory block.
type brokenMemGen struct{}

func (brokenMemGen) Generate(ctx context.Context, system string, history []generator.Message, user string, opts generator.Options) (generator.Result, error) {
	if strings.Contains(system, "MEM") {
		return generator.Result{Content: ""}, nil
	}
	return generator.Result{Content: "focus:y"}, nil
}

func TestRecoveryModeEntersAfterConsecutiveFailures(t *testing.T) {
	gen := brokenMemGen{}
	c, _, ver := newTestConsolidator(t, gen)
	c.maxFailures = 3
	ver.Queue("seed", "initial")
	ver.Flush()

	for i := 0; i < 3; i++ {
		_ = c.ConsolidateDeep(context.Background())
	}

	assert.True(t, c.InRecoveryMode())

	c.ResetRecoveryState()
	assert.False(t, c.InRecoveryMode())
	assert.Equal(t, 0, c.Status().ConsecutiveFailures)
}

func TestShouldConsolidateReturnsNoneWithNothingDirty(t *testing.T) {
	c, _, _ := newTestConsolidator(t, nil)
	assert.Equal(t, "none", c.decide(time.Now()))
}

func TestShouldConsolidateReturnsDeepAfterInterval(t *testing.T) {
	c, _, _ := newTestConsolidator(t, nil)
	future := time.Now().Add(5 * time.Hour)
	assert.Equal(t, "deep", c.decide(future))
}

func TestShouldConsolidateReturnsFastWhenDirtyAndOverThreshold(t *testing.T) {
	c, _, _ := newTestConsolidator(t, nil)
	c.dirtyBlocks["INTERESTS"] = true
	future := time.Now().Add(time.Hour)
	assert.Equal(t, "fast", c.decide(future))
}

func TestConcurrentConsolidationIsNoOp(t *testing.T) {
	c, _, _ := newTestConsolidator(t, nil)
	c.consolidating.Store(true)
	assert.NoError(t, c.ConsolidateFast(context.Background()))
}
