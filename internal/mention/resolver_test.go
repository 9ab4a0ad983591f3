package mention

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-client/internal/models"
)

var roster = []models.Member{
	{ID: "0", Name: "Me"},
	{ID: "1", Name: "Ann"},
	{ID: "2", Name: "Bo"},
	{ID: "3", Name: "Annika"},
}

func TestDetectOpensSuggestions(t *testing.T) {
	r := NewResolver("0", roster)

	require.True(t, r.Detect("hi @an", 6))
	assert.True(t, r.Open())
	assert.Equal(t, []models.Member{roster[1], roster[3]}, r.Suggestions())

	assert.False(t, r.Detect("hi there", 8))
	assert.False(t, r.Open())
}

func TestDetectUsesTextBeforeCaret(t *testing.T) {
	r := NewResolver("0", roster)

	assert.True(t, r.Detect("@bo and more", 3))
	assert.Equal(t, []models.Member{roster[2]}, r.Suggestions())
}

func TestCandidatesExcludeSelfAndTracked(t *testing.T) {
	r := NewResolver("0", roster)

	r.Detect("@", 1)
	text, _, ok := r.Accept("@", 1)
	require.True(t, ok)
	assert.Equal(t, "@Ann ", text)

	got := r.Candidates("")
	assert.Equal(t, []models.Member{roster[2], roster[3]}, got)
}

func TestNavigationClamps(t *testing.T) {
	r := NewResolver("0", roster)
	r.Detect("@", 1)

	r.Prev()
	assert.Equal(t, 0, r.Index())

	r.Next()
	r.Next()
	r.Next()
	r.Next()
	assert.Equal(t, 2, r.Index())

	r.Prev()
	assert.Equal(t, 1, r.Index())

	r.Close()
	assert.False(t, r.Open())
	assert.Nil(t, r.Suggestions())
}

func TestSelectSplicesAndMovesCaret(t *testing.T) {
	r := NewResolver("0", roster)
	text := "hi @B tail"

	require.True(t, r.Detect(text, 5))
	out, caret := r.Select(text, 5, roster[2])

	assert.Equal(t, "hi @Bo  tail", out)
	assert.Equal(t, 7, caret)
	assert.Equal(t, []string{"2"}, r.Tracked())
	assert.False(t, r.Open())
}

func TestBackspaceDeletesTrackedMention(t *testing.T) {
	r := NewResolver("0", roster)
	r.Detect("hi @A", 5)
	text, caret := r.Select("hi @A", 5, roster[1])
	require.Equal(t, "hi @Ann ", text)

	out, pos := r.Backspace(text, caret)

	assert.Equal(t, "hi ", out)
	assert.Equal(t, 3, pos)
	assert.Empty(t, r.Tracked())
}

func TestBackspaceWithoutTrailingSpace(t *testing.T) {
	r := NewResolver("0", roster)
	r.Detect("@", 1)
	text, _ := r.Select("@", 1, roster[2])

	out, pos := r.Backspace(text[:len(text)-1], len(text)-1)
	assert.Equal(t, "", out)
	assert.Equal(t, 0, pos)
}

func TestBackspacePrefersLongestName(t *testing.T) {
	members := []models.Member{{ID: "j", Name: "John"}, {ID: "jd", Name: "John Doe"}}
	r := NewResolver("0", members)

	r.Detect("@", 1)
	text, _ := r.Select("@", 1, members[0])
	r.Detect(text+"@", len(text)+1)
	text, caret := r.Select(text+"@", len(text)+1, members[1])
	require.Equal(t, "@John @John Doe ", text)

	out, _ := r.Backspace(text, caret)
	assert.Equal(t, "@John ", out)
	assert.Equal(t, []string{"j"}, r.Tracked())
}

func TestBackspaceDeletesOneRune(t *testing.T) {
	r := NewResolver("0", roster)

	out, pos := r.Backspace("héllo @Ann", len("hé"))
	assert.Equal(t, "hllo @Ann", out)
	assert.Equal(t, 1, pos)

	out, pos = r.Backspace("x", 0)
	assert.Equal(t, "x", out)
	assert.Equal(t, 0, pos)
}

func TestResolveIDsRosterOrder(t *testing.T) {
	members := []models.Member{{ID: "1", Name: "Ann"}, {ID: "2", Name: "Bo"}}
	r := NewResolver("0", members)

	assert.Equal(t, []string{"1", "2"}, r.ResolveIDs("hi @Ann and @Bo"))
	assert.Equal(t, []string{"1", "2"}, r.ResolveIDs("@Bo first, then @Ann"))
	assert.Equal(t, []string{"2"}, r.ResolveIDs("@Annie is not @Bo's friend"))
	assert.Empty(t, r.ResolveIDs("no mentions"))
}

func TestResolveIDsIgnoresTrackingDrift(t *testing.T) {
	r := NewResolver("0", roster)
	r.Detect("@", 1)
	text, _ := r.Select("@", 1, roster[1])

	// the mention was typed over after selection
	edited := "@Bo " + text[len("@Ann "):]
	assert.Equal(t, []string{"1"}, r.Tracked())
	assert.Equal(t, []string{"2"}, r.ResolveIDs(edited))
}

func TestResolveIDsLongestMatch(t *testing.T) {
	members := []models.Member{{ID: "j", Name: "John"}, {ID: "jd", Name: "John Doe"}}
	r := NewResolver("0", members)

	assert.Equal(t, []string{"jd"}, r.ResolveIDs("ping @John Doe"))
	assert.Equal(t, []string{"j", "jd"}, r.ResolveIDs("@John Doe and @John"))
}

func TestSetRosterDropsStaleTracking(t *testing.T) {
	r := NewResolver("0", roster)
	r.Detect("@", 1)
	r.Select("@", 1, roster[1])

	r.SetRoster([]models.Member{roster[2]})
	assert.Empty(t, r.Tracked())
}
