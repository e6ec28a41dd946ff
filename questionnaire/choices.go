package questionnaire

import "sync"

// selectionState holds multi-select toggle state per user, keyed by the
// question's local index. Selections are UI state only: nothing is persisted
// until the user confirms. Switching to a different question discards any
// previous picks.
type selectionState struct {
	mu    sync.Mutex
	users map[string]*userSelection
}

type userSelection struct {
	local  int
	marked []bool
}

func newSelectionState() *selectionState {
	return &selectionState{users: make(map[string]*userSelection)}
}

func (s *selectionState) toggle(username string, local, optionCount, ordinal int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.users[username]
	if sel == nil || sel.local != local || len(sel.marked) != optionCount {
		sel = &userSelection{local: local, marked: make([]bool, optionCount)}
		s.users[username] = sel
	}
	sel.marked[ordinal] = !sel.marked[ordinal]
}

func (s *selectionState) isPicked(username string, local, ordinal int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.users[username]
	if sel == nil || sel.local != local || ordinal >= len(sel.marked) {
		return false
	}
	return sel.marked[ordinal]
}

// picked returns the marked option labels in catalog order, regardless of the
// order the user clicked them in.
func (s *selectionState) picked(username string, local int, options []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sel := s.users[username]
	if sel == nil || sel.local != local {
		return nil
	}

	var labels []string
	for i, marked := range sel.marked {
		if marked && i < len(options) {
			labels = append(labels, options[i])
		}
	}
	return labels
}

func (s *selectionState) clear(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
}
