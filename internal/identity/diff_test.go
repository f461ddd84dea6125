package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, s string) *Document {
	t.Helper()
	d, err := Parse([]byte(s))
	require.NoError(t, err)
	return d
}

func TestDiffOfIdenticalDocumentsIsUnchanged(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	diff := CompareDocuments(doc, doc)
	assert.False(t, diff.Changed())
}

func TestDiffClassifiesKernChangeAsCritical(t *testing.T) {
	old := mustParse(t, sampleDoc)
	newer := mustParse(t, replaceBlock(sampleDoc, "KERN", "1:be honest|2:stay curious|3:new axiom"))
	diff := CompareDocuments(old, newer)
	assert.Equal(t, SeverityCritical, diff.HighestSeverity())
}

func TestDiffClassifiesSelfChangeAsSignificant(t *testing.T) {
	old := mustParse(t, sampleDoc)
	newer := mustParse(t, replaceBlock(sampleDoc, "SELF", "name:aria|tone:cooler"))
	diff := CompareDocuments(old, newer)
	assert.Equal(t, SeveritySignificant, diff.HighestSeverity())
}

func TestDiffFlagsSessionsMovingBackwardAsSignificant(t *testing.T) {
	old := mustParse(t, sampleDoc)
	newerContent := replaceBlock(sampleDoc, "META", "version:2|born:2024-01-05T00:00:00Z|condensed:2024-06-01T12:00:00Z|sessions:3")
	newer := mustParse(t, newerContent)
	diff := CompareDocuments(old, newer)
	found := false
	for _, c := range diff.Changes {
		if c.Block == "META" && c.Severity == SeveritySignificant {
			found = true
		}
	}
	assert.True(t, found)
}
