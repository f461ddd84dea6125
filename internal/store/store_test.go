package store

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soul.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestImpulseWeightsSeedsDefaultEleven(t *testing.T) {
	s := openTestStore(t)
	weights, err := s.ImpulseWeights()
	require.NoError(t, err)
	assert.Len(t, weights, 11)
}

func TestDirtyBlocksForKnownEvent(t *testing.T) {
	s := openTestStore(t)
	blocks, err := s.DirtyBlocksFor("message.received")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"MEM", "BONDS"}, blocks)
}

func TestSetConfigBumpsVersion(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SetConfig("test_key", "1"))
	v, err := s.GetConfig("test_key")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
	var before, after int64
	require.NoError(t, s.DB().QueryRow(`SELECT version FROM config WHERE key = ?`, "test_key").Scan(&before))
	require.NoError(t, s.SetConfig("test_key", "2"))
	v, err = s.GetConfig("test_key")
	require.NoError(t, err)
	assert.Equal(t, "2", v)
	require.NoError(t, s.DB().QueryRow(`SELECT version FROM config WHERE key = ?`, "test_key").Scan(&after))
	assert.Greater(t, after, before)
}

func TestConversationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	sid, err := s.CreateSession()
	require.NoError(t, err)

	require.NoError(t, s.AddMessage(Message{SessionID: sid, Role: "user", Content: "hello"}))
	require.NoError(t, s.AddMessage(Message{SessionID: sid, Role: "assistant", Content: "hi there"}))

	msgs, err := s.ContextMessages(sid, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "hi there", msgs[1].Content)
}

func TestRecordCostAccumulates(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.RecordCost("2026-08-01", "conversation", 100, 50, 1))
	require.NoError(t, s.RecordCost("2026-08-01", "conversation", 20, 10, 1))

	rows, err := s.CostLedgerSince("2026-01-01")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 120, rows[0].InputTokens)
	assert.Equal(t, 2, rows[0].Calls)
}

func TestMatchInterestsFindsKeywordHits(t *testing.T) {
	hits := MatchInterests("I love astrophotography and deep space", []InterestPattern{
		{Topic: "astronomy", Keyword: "space", Weight: 0.7},
		{Topic: "cooking", Keyword: "recipe", Weight: 0.5},
	})
	assert.Contains(t, hits, "astronomy")
	assert.NotContains(t, hits, "cooking")
}
