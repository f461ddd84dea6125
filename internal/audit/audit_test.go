package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hbcaspa/soulengine/internal/bus"
)

func TestAttachRecordsOnlyAllowlistedEvents(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, zerolog.Nop())
	require.NoError(t, err)
	defer logger.Close()

	b := bus.New()
	logger.Attach(b)

	b.Emit("seed.recovered", "versioner", map[string]any{"hash": "abcd1234"})
	b.Emit("impulse.tick", "impulse", nil) // not allowlisted

	entries := readLines(t, dir)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0], "seed.recovered")
}

func readLines(t *testing.T, dir string) []string {
	t.Helper()
	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(dir, f.Name()))
		require.NoError(t, err)
		if len(data) > 0 {
			out = append(out, string(data))
		}
	}
	return out
}
