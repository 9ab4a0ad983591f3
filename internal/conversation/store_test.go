package conversation

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func msg(id string, offset int, text string) models.Message {
	return models.Message{
		ID:        id,
		TaskID:    "t1",
		Author:    models.Author{ID: "u1", Name: "Ann"},
		Body:      models.TextBody{Text: text},
		CreatedAt: t0.Add(time.Duration(offset) * time.Second),
	}
}

func ids(msgs []models.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.ID)
	}
	return out
}

func TestMergeIsIdempotent(t *testing.T) {
	s := NewStore()
	m := msg("m1", 1, "hi")

	assert.True(t, s.Merge(m, SourceSocket))
	once := s.Messages()

	assert.False(t, s.Merge(m, SourceSocket))
	assert.False(t, s.Merge(m, SourcePage))
	assert.Equal(t, once, s.Messages())
}

func TestMergeKeepsChronologicalOrder(t *testing.T) {
	s := NewStore()
	s.Merge(msg("m2", 2, "b"), SourcePage)
	s.Merge(msg("m4", 4, "d"), SourcePage)

	s.Merge(msg("m5", 5, "e"), SourceSocket)
	s.Merge(msg("m3", 3, "c"), SourceSocket)
	s.Merge(msg("m1", 1, "a"), SourceSocket)

	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, ids(s.Messages()))
}

func TestMergeIgnoresEmptyID(t *testing.T) {
	s := NewStore()
	assert.False(t, s.Merge(models.Message{}, SourceSocket))
	assert.Zero(t, s.Len())
}

func TestMergePageCountsOnlyNew(t *testing.T) {
	s := NewStore()
	s.Merge(msg("m3", 3, "c"), SourcePage)

	added := s.MergePage([]models.Message{msg("m1", 1, "a"), msg("m2", 2, "b"), msg("m3", 3, "c")})
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids(s.Messages()))
}

func TestConfirmReplacesPlaceholder(t *testing.T) {
	s := NewStore()
	s.Merge(msg("m1", 1, "before"), SourcePage)
	s.AppendPending(models.Message{ID: "tmp-1", Body: models.TextBody{Text: "hello"}, CreatedAt: t0.Add(time.Hour)})

	pending := s.Messages()[1]
	assert.True(t, pending.Pending)

	assert.True(t, s.Confirm("tmp-1", msg("abc123", 7200, "hello")))

	got := s.Messages()
	require.Len(t, got, 2)
	assert.Equal(t, "abc123", got[1].ID)
	assert.Equal(t, "hello", got[1].Text())
	assert.False(t, got[1].Pending)
	assert.False(t, s.Has("tmp-1"))
}

func TestConfirmAfterSocketEcho(t *testing.T) {
	s := NewStore()
	s.AppendPending(models.Message{ID: "tmp-1", Body: models.TextBody{Text: "hello"}, CreatedAt: t0})

	server := msg("abc123", 1, "hello")
	require.True(t, s.Merge(server, SourceSocket))
	assert.Equal(t, 2, s.Len())

	assert.False(t, s.Confirm("tmp-1", server))

	got := s.Messages()
	require.Len(t, got, 1)
	assert.Equal(t, "abc123", got[0].ID)
}

func TestConfirmReordersByServerTime(t *testing.T) {
	s := NewStore()
	s.AppendPending(models.Message{ID: "tmp-1", Body: models.TextBody{Text: "mine"}, CreatedAt: t0})
	require.True(t, s.Merge(msg("peer", 1, "theirs"), SourceSocket))

	require.True(t, s.Confirm("tmp-1", msg("mine", 2, "mine")))

	assert.Equal(t, []string{"peer", "mine"}, ids(s.Messages()))
	assert.Equal(t, 1, s.Position("mine"))
}

func mergedCount(t *testing.T, source, result string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != "chat_client_messages_merged_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["source"] == source && labels["result"] == result {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMergePageLabelsEachMessage(t *testing.T) {
	s := NewStore()
	s.Merge(msg("m1", 1, "a"), SourceSocket)
	inserted := mergedCount(t, string(SourcePage), "inserted")
	duplicate := mergedCount(t, string(SourcePage), "duplicate")

	added := s.MergePage([]models.Message{msg("m1", 1, "a"), msg("m2", 2, "b"), msg("m3", 3, "c")})
	require.Equal(t, 2, added)

	assert.Equal(t, inserted+2, mergedCount(t, string(SourcePage), "inserted"))
	assert.Equal(t, duplicate+1, mergedCount(t, string(SourcePage), "duplicate"))
}

func TestConfirmWithoutPlaceholderInserts(t *testing.T) {
	s := NewStore()
	assert.True(t, s.Confirm("tmp-gone", msg("abc123", 1, "hello")))
	assert.Equal(t, []string{"abc123"}, ids(s.Messages()))
}

func TestUpdateAndRestoreAreEntryLevel(t *testing.T) {
	s := NewStore()
	s.Merge(msg("m1", 1, "old"), SourcePage)

	prev, ok := s.Update("m1", func(m *models.Message) {
		m.Body = models.TextBody{Text: "new"}
		m.ID = "hijack"
	})
	require.True(t, ok)
	assert.Equal(t, "old", prev.Text())

	// a peer message lands while the edit is in flight
	s.Merge(msg("m2", 2, "peer"), SourceSocket)

	cur, _ := s.Get("m1")
	assert.Equal(t, "new", cur.Text())

	assert.True(t, s.Restore(prev))
	cur, _ = s.Get("m1")
	assert.Equal(t, "old", cur.Text())
	assert.Equal(t, []string{"m1", "m2"}, ids(s.Messages()))
}

func TestRemoveAndNewest(t *testing.T) {
	s := NewStore()
	_, ok := s.Newest()
	assert.False(t, ok)

	s.Merge(msg("m1", 1, "a"), SourcePage)
	s.AppendPending(models.Message{ID: "tmp-1", CreatedAt: t0.Add(time.Minute)})

	newest, ok := s.Newest()
	require.True(t, ok)
	assert.Equal(t, "tmp-1", newest.ID)
	assert.Equal(t, 1, s.Confirmed())

	assert.True(t, s.Remove("tmp-1"))
	assert.False(t, s.Remove("tmp-1"))
	assert.Equal(t, -1, s.Position("tmp-1"))
	assert.Equal(t, 0, s.Position("m1"))
}
