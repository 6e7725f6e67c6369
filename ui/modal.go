package ui

// ModalState is the open flag and payload of one modal.
type ModalState struct {
	IsOpen bool `json:"isOpen"`
	Data   any  `json:"data,omitempty"`
}

// OpenModal opens name with data.
func (s *Store) OpenModal(name string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modals[name] = ModalState{IsOpen: true, Data: data}
}

// CloseModal closes name and keeps its data.
func (s *Store) CloseModal(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.modals[name]
	m.IsOpen = false
	s.modals[name] = m
}

// CloseAllModals closes every modal and keeps their data.
func (s *Store) CloseAllModals() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, m := range s.modals {
		m.IsOpen = false
		s.modals[name] = m
	}
}

// Modal returns the state of name; unknown modals are closed.
func (s *Store) Modal(name string) ModalState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.modals[name]
}
