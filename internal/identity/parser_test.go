package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDoc = `@META{version:2|born:2024-01-05T00:00:00Z|condensed:2024-06-01T12:00:00Z|sessions:7}
@KERN{1:be honest|2:stay curious}
@SELF{name:aria|tone:warm}
@STATE{focus:writing}
@MEM{[core|c:0.9|r:5] founding memory|[active|c:0.5|r:1] recent observation}
@BONDS{user:primary companion}
`

func TestParseRoundTripsMemTags(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	entries := doc.MemEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, MemCore, entries[0].Class)
	assert.True(t, entries[0].Immutable())
	assert.Equal(t, MemClass("active"), entries[1].Class)
	assert.False(t, entries[1].Immutable())
}

func TestParseExtractsHeaderFromMetaBlock(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	assert.Equal(t, 7, doc.Header.Sessions)
}

func TestHasBondsBlockAcceptsAnyAlias(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	alias, ok := doc.HasBondsBlock()
	assert.True(t, ok)
	assert.Equal(t, "BONDS", alias)
}

func TestScanBlocksHandlesNestedBraces(t *testing.T) {
	text := `@SELF{note:a {nested} value|mood:steady}`
	doc, err := Parse([]byte("@META{version:1}\n" + text))
	require.NoError(t, err)
	self, ok := doc.Blocks["SELF"]
	require.True(t, ok)
	assert.Contains(t, self.Pairs["note"], "nested")
}

func TestLaterDuplicateKeyWinsWithinBlock(t *testing.T) {
	text := "@SELF{tone:cold|tone:warm}"
	doc, err := Parse([]byte("@META{version:1}\n" + text))
	require.NoError(t, err)
	assert.Equal(t, "warm", doc.Blocks["SELF"].Pairs["tone"])
}
