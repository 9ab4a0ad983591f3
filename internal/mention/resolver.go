package mention

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"chat-client/internal/models"
)

// trailingToken matches a partial @mention that ends at the caret.
var trailingToken = regexp.MustCompile(`@([a-zA-Z0-9_ ]*)$`)

// Resolver tracks @mentions while a message is being composed.
// Carets are byte offsets into the text.
type Resolver struct {
	selfID string
	roster []models.Member

	tracked []models.Member

	open       bool
	start      int
	query      string
	index      int
	candidates []models.Member
}

// NewResolver constructs a Resolver for a conversation roster.
func NewResolver(selfID string, roster []models.Member) *Resolver {
	r := &Resolver{selfID: selfID}
	r.SetRoster(roster)
	return r
}

// SetRoster replaces the member list. Tracked members no longer on the roster are dropped.
func (r *Resolver) SetRoster(roster []models.Member) {
	r.roster = append([]models.Member(nil), roster...)
	kept := r.tracked[:0]
	for _, t := range r.tracked {
		if r.onRoster(t.ID) {
			kept = append(kept, t)
		}
	}
	r.tracked = kept
}

// Roster returns a copy of the member list.
func (r *Resolver) Roster() []models.Member {
	return append([]models.Member(nil), r.roster...)
}

// Detect inspects the text before the caret. When it ends in a partial @token the
// suggestion list opens with candidates for it, otherwise the list closes.
func (r *Resolver) Detect(text string, caret int) bool {
	caret = clampCaret(text, caret)
	loc := trailingToken.FindStringSubmatchIndex(text[:caret])
	if loc == nil {
		r.Close()
		return false
	}
	r.open = true
	r.start = loc[0]
	r.query = text[loc[2]:loc[3]]
	r.candidates = r.Candidates(r.query)
	r.index = 0
	return true
}

// Candidates filters the roster by a case-insensitive substring of the name. Self and
// already tracked members are excluded; roster order is kept.
func (r *Resolver) Candidates(query string) []models.Member {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]models.Member, 0, len(r.roster))
	for _, m := range r.roster {
		if m.ID == r.selfID || r.isTracked(m.ID) {
			continue
		}
		if q == "" || strings.Contains(strings.ToLower(m.Name), q) {
			out = append(out, m)
		}
	}
	return out
}

// Open reports whether the suggestion list is showing.
func (r *Resolver) Open() bool {
	return r.open
}

// Suggestions returns the candidates of the open list.
func (r *Resolver) Suggestions() []models.Member {
	if !r.open {
		return nil
	}
	return append([]models.Member(nil), r.candidates...)
}

// Index is the highlighted suggestion.
func (r *Resolver) Index() int {
	return r.index
}

// Next moves the highlight down, stopping at the last candidate.
func (r *Resolver) Next() {
	if r.index < len(r.candidates)-1 {
		r.index++
	}
}

// Prev moves the highlight up, stopping at the first candidate.
func (r *Resolver) Prev() {
	if r.index > 0 {
		r.index--
	}
}

// Close dismisses the suggestion list (Escape).
func (r *Resolver) Close() {
	r.open = false
	r.query = ""
	r.index = 0
	r.candidates = nil
}

// Accept selects the highlighted candidate (Enter).
func (r *Resolver) Accept(text string, caret int) (string, int, bool) {
	if !r.open || len(r.candidates) == 0 {
		return text, caret, false
	}
	out, pos := r.Select(text, caret, r.candidates[r.index])
	return out, pos, true
}

// Select replaces the detected token with "@Name " and tracks the member. It returns
// the new text and a caret placed right after the inserted mention.
func (r *Resolver) Select(text string, caret int, m models.Member) (string, int) {
	caret = clampCaret(text, caret)
	start := caret
	if r.open && r.start <= caret {
		start = r.start
	}
	insert := "@" + m.Name + " "
	out := text[:start] + insert + text[caret:]
	if !r.isTracked(m.ID) {
		r.tracked = append(r.tracked, m)
	}
	r.Close()
	return out, start + len(insert)
}

// Backspace deletes a whole tracked "@Name" or "@Name " span ending at the caret and
// untracks its member. Otherwise it deletes one rune.
func (r *Resolver) Backspace(text string, caret int) (string, int) {
	caret = clampCaret(text, caret)
	if caret == 0 {
		return text, 0
	}
	head := text[:caret]

	byLength := append([]models.Member(nil), r.tracked...)
	sort.SliceStable(byLength, func(i, j int) bool {
		return len(byLength[i].Name) > len(byLength[j].Name)
	})
	for _, m := range byLength {
		for _, span := range []string{"@" + m.Name + " ", "@" + m.Name} {
			if strings.HasSuffix(head, span) {
				r.untrack(m.ID)
				cut := caret - len(span)
				return text[:cut] + text[caret:], cut
			}
		}
	}

	_, size := utf8.DecodeLastRuneInString(head)
	return text[:caret-size] + text[caret:], caret - size
}

// Tracked returns the ids selected from the suggestion list so far.
func (r *Resolver) Tracked() []string {
	ids := make([]string, 0, len(r.tracked))
	for _, m := range r.tracked {
		ids = append(ids, m.ID)
	}
	return ids
}

// Reset forgets tracked mentions and closes the list, typically after a submit.
func (r *Resolver) Reset() {
	r.tracked = nil
	r.Close()
}

// ResolveIDs rescans the final text for @Name across the full roster and returns the
// ids of every mentioned member in roster order.
func (r *Resolver) ResolveIDs(text string) []string {
	names := make([]string, 0, len(r.roster))
	for _, m := range r.roster {
		names = append(names, m.Name)
	}
	found := scan(text, names)

	ids := make([]string, 0, len(found))
	for _, m := range r.roster {
		if found[m.Name] {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

func (r *Resolver) isTracked(id string) bool {
	for _, m := range r.tracked {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (r *Resolver) untrack(id string) {
	for i, m := range r.tracked {
		if m.ID == id {
			r.tracked = append(r.tracked[:i], r.tracked[i+1:]...)
			return
		}
	}
}

func (r *Resolver) onRoster(id string) bool {
	for _, m := range r.roster {
		if m.ID == id {
			return true
		}
	}
	return false
}

// scan reports which names appear as @Name in text. At each @ the longest matching
// name wins, so "John" is not found inside "@John Doe".
func scan(text string, names []string) map[string]bool {
	found := make(map[string]bool)
	for i := 0; i < len(text); i++ {
		if text[i] != '@' {
			continue
		}
		if name, ok := longestAt(text, i+1, names); ok {
			found[name] = true
			i += len(name)
		}
	}
	return found
}

// longestAt returns the longest name starting at text[pos:] that ends on a word boundary.
func longestAt(text string, pos int, names []string) (string, bool) {
	best := ""
	for _, n := range names {
		if n == "" || len(n) <= len(best) || !strings.HasPrefix(text[pos:], n) {
			continue
		}
		if !boundary(text, pos+len(n)) {
			continue
		}
		best = n
	}
	return best, best != ""
}

func boundary(text string, at int) bool {
	if at >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[at:])
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_')
}

func clampCaret(text string, caret int) int {
	if caret < 0 {
		return 0
	}
	if caret > len(text) {
		return len(text)
	}
	return caret
}
