package identity

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceBlockSubstitutesExistingBlock(t *testing.T) {
	content := "@META{version:1}\n@STATE{focus:old}\n"
	out := replaceBlock(content, "STATE", "focus:new")
	assert.Contains(t, out, "@STATE{focus:new}")
	assert.NotContains(t, out, "focus:old")
}

func TestReplaceBlockAppendsWhenAbsent(t *testing.T) {
	content := "@META{version:1}\n"
	out := replaceBlock(content, "DREAMS", "last:none")
	assert.Contains(t, out, "@DREAMS{last:none}")
}

func TestReplaceBlockIsIdempotent(t *testing.T) {
	content := "@META{version:1}\n@STATE{focus:writing}\n"
	once := replaceBlock(content, "STATE", "focus:writing")
	twice := replaceBlock(once, "STATE", "focus:writing")
	assert.Equal(t, once, twice)
}

func TestUpdateHeaderPatchesCondensedAndSessions(t *testing.T) {
	content := "@META{version:1|born:2024-01-01T00:00:00Z|condensed:2024-01-01T00:00:00Z|sessions:3}\n"
	out := UpdateHeader(content, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), 4)
	doc, err := Parse([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, 4, doc.Header.Sessions)
	assert.Equal(t, "condensed:2024-06-01T00:00:00Z", extractSegment(out, "condensed"))
	assert.Equal(t, "born:2024-01-01T00:00:00Z", extractSegment(out, "born"))
}

func extractSegment(content, key string) string {
	doc, _ := Parse([]byte(content))
	if b, ok := doc.Blocks["META"]; ok {
		if v, ok := b.Pairs[key]; ok {
			return key + ":" + v
		}
	}
	return ""
}

func TestWriteAtomicCreatesFileViaRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.txt")
	require.NoError(t, WriteAtomic(path, "@META{version:1}\n"))
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".tmp")
}
