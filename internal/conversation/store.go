package conversation

import (
	"sync"

	"chat-client/internal/models"
	"chat-client/internal/observability"
)

// Source names where a merged message came from.
type Source string

const (
	SourcePage   Source = "page"
	SourceSocket Source = "socket"
	SourceSubmit Source = "submit"
)

// Store is the ordered message list of one conversation. Every insertion goes through
// the id index, so a message is present at most once whatever path delivered it.
type Store struct {
	mu    sync.RWMutex
	items []models.Message
	ids   map[string]struct{}
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{ids: make(map[string]struct{})}
}

// Merge inserts m unless a message with the same id is present. The message lands in
// chronological position, which is the end for anything newer than the list.
func (s *Store) Merge(m models.Message, source Source) bool {
	s.mu.Lock()
	inserted := s.insertLocked(m)
	s.mu.Unlock()

	observability.IncMerge(string(source), inserted)
	return inserted
}

// MergePage merges a history page and returns how many messages were new.
func (s *Store) MergePage(msgs []models.Message) int {
	s.mu.Lock()
	inserted := make([]bool, len(msgs))
	added := 0
	for i, m := range msgs {
		if inserted[i] = s.insertLocked(m); inserted[i] {
			added++
		}
	}
	s.mu.Unlock()

	for _, ok := range inserted {
		observability.IncMerge(string(SourcePage), ok)
	}
	return added
}

// AppendPending adds a local placeholder at the end of the list.
func (s *Store) AppendPending(m models.Message) {
	m.Pending = true
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, m)
	s.ids[m.ID] = struct{}{}
}

// Confirm swaps the placeholder tempID for the server record, placed by the server's
// timestamp. When the server id is
// already present, because the socket echo won the race, the placeholder is dropped
// instead. It reports whether the server record was newly added.
func (s *Store) Confirm(tempID string, server models.Message) bool {
	server.Pending = false

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(tempID)
	if _, dup := s.ids[server.ID]; dup {
		if idx >= 0 {
			s.removeAtLocked(idx)
		}
		return false
	}
	if idx < 0 {
		return s.insertLocked(server)
	}
	s.removeAtLocked(idx)
	return s.insertLocked(server)
}

// Remove deletes the entry with id.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return false
	}
	s.removeAtLocked(idx)
	return true
}

// Update applies fn to the entry with id in place and returns the entry as it was.
func (s *Store) Update(id string, fn func(*models.Message)) (models.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Message{}, false
	}
	prev := s.items[idx]
	fn(&s.items[idx])
	s.items[idx].ID = prev.ID
	return prev, true
}

// Restore puts a snapshot taken by Update back, if its entry still exists.
func (s *Store) Restore(prev models.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexLocked(prev.ID)
	if idx < 0 {
		return false
	}
	s.items[idx] = prev
	return true
}

// Get returns the entry with id.
func (s *Store) Get(id string) (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.Message{}, false
	}
	return s.items[idx], true
}

// Has reports whether id is present.
func (s *Store) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[id]
	return ok
}

// Position returns the index of id in the list, or -1.
func (s *Store) Position(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexLocked(id)
}

// Messages returns a copy of the list, oldest first.
func (s *Store) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Message(nil), s.items...)
}

// Len counts all entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Confirmed counts entries that are not placeholders.
func (s *Store) Confirmed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.items {
		if !m.Pending {
			n++
		}
	}
	return n
}

// Newest returns the last entry.
func (s *Store) Newest() (models.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.items) == 0 {
		return models.Message{}, false
	}
	return s.items[len(s.items)-1], true
}

func (s *Store) insertLocked(m models.Message) bool {
	if m.ID == "" {
		return false
	}
	if _, ok := s.ids[m.ID]; ok {
		return false
	}
	pos := len(s.items)
	for pos > 0 && s.items[pos-1].CreatedAt.After(m.CreatedAt) {
		pos--
	}
	s.items = append(s.items, models.Message{})
	copy(s.items[pos+1:], s.items[pos:])
	s.items[pos] = m
	s.ids[m.ID] = struct{}{}
	return true
}

func (s *Store) indexLocked(id string) int {
	if _, ok := s.ids[id]; !ok {
		return -1
	}
	for i := len(s.items) - 1; i >= 0; i-- {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) removeAtLocked(idx int) {
	delete(s.ids, s.items[idx].ID)
	s.items = append(s.items[:idx], s.items[idx+1:]...)
}
