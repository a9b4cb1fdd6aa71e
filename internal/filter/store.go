package filter

import (
	"reflect"
	"sync"
)

// DefaultHistoryLimit bounds the undo history when NewStore gets a
// non-positive limit.
const DefaultHistoryLimit = 50

// Store holds the active rules, one per field, plus an undo history of
// previous rule sets. It is safe for concurrent use, but callers that edit
// rules and run filters from different goroutines should still serialize
// the two so a run never sees a half-finished edit sequence.
type Store struct {
	mu      sync.RWMutex
	rules   RuleSet
	history []RuleSet
	limit   int
}

// NewStore returns an empty store keeping at most historyLimit undo steps.
func NewStore(historyLimit int) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &Store{
		rules: make(RuleSet),
		limit: historyLimit,
	}
}

// Set replaces the rule for r.Field. Keywords are trimmed and de-duplicated;
// a rule left without keywords removes any existing rule for the field.
// Invalid rules return an error and leave the store unchanged.
func (s *Store) Set(r Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}
	r = r.clone()
	r.Keywords = normalizeKeywords(r.Keywords)
	if r.Match == Exact {
		r.Threshold = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(r.Keywords) == 0 {
		s.clearLocked(r.Field)
		return nil
	}
	if cur, ok := s.rules[r.Field]; ok && reflect.DeepEqual(cur, r) {
		return nil
	}
	s.pushLocked()
	s.rules[r.Field] = r
	return nil
}

// Clear removes the rule for field. It reports whether a rule was removed.
func (s *Store) Clear(field string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked(field)
}

func (s *Store) clearLocked(field string) bool {
	if _, ok := s.rules[field]; !ok {
		return false
	}
	s.pushLocked()
	delete(s.rules, field)
	return true
}

// Reset removes every rule. The previous set can be restored with Undo.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rules) == 0 {
		return
	}
	s.pushLocked()
	s.rules = make(RuleSet)
}

// Undo restores the rule set as it was before the last change.
// It reports false when there is nothing to undo.
func (s *Store) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if n == 0 {
		return false
	}
	s.rules = s.history[n-1]
	s.history = s.history[:n-1]
	return true
}

// Active returns a snapshot of the current rules.
func (s *Store) Active() RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules.Clone()
}

// Get returns the rule for field.
func (s *Store) Get(field string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rules[field]
	return r.clone(), ok
}

// Len returns the number of active rules.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}

// UndoDepth returns how many changes can be undone.
func (s *Store) UndoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

func (s *Store) pushLocked() {
	s.history = append(s.history, s.rules.Clone())
	if over := len(s.history) - s.limit; over > 0 {
		s.history = append([]RuleSet(nil), s.history[over:]...)
	}
}
