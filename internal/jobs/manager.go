package jobs

import (
	"errors"
	"fmt"
	"sync"

	"subtitle-studio/internal/domain"
)

// ErrSessionActive is returned when starting while another session is live.
var ErrSessionActive = errors.New("recognition session already active")

// ErrNoActiveSession is returned when a transition needs a live session.
var ErrNoActiveSession = errors.New("no active recognition session")

// Manager tracks the single allowed recognition session and its transitions.
type Manager struct {
	mu      sync.RWMutex
	current domain.Session
}

// NewManager creates a manager in idle state.
func NewManager() *Manager {
	return &Manager{
		current: domain.Session{
			Status: domain.SessionStatusIdle,
		},
	}
}

// Start claims the session slot and moves it to starting.
func (m *Manager) Start(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if isActive(m.current.Status) {
		return ErrSessionActive
	}

	m.current = domain.Session{
		ID:     sessionID,
		Status: domain.SessionStatusStarting,
	}
	return nil
}

// Transition validates and applies a state change for the current session.
// Returning to idle releases the slot.
func (m *Manager) Transition(status domain.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.ID == "" {
		return ErrNoActiveSession
	}
	if status == m.current.Status {
		return nil
	}
	if !isValidTransition(m.current.Status, status) {
		return fmt.Errorf("invalid transition: %s -> %s", m.current.Status, status)
	}

	if status == domain.SessionStatusIdle {
		m.current = domain.Session{Status: domain.SessionStatusIdle}
		return nil
	}
	m.current.Status = status
	return nil
}

// Current returns a snapshot of the current session.
func (m *Manager) Current() domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Reset clears session metadata and returns the manager to idle.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = domain.Session{Status: domain.SessionStatusIdle}
}

// IsActive reports whether a session occupies the slot.
func (m *Manager) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return isActive(m.current.Status)
}

func isActive(status domain.SessionStatus) bool {
	switch status {
	case domain.SessionStatusStarting, domain.SessionStatusStreaming, domain.SessionStatusStopping:
		return true
	default:
		return false
	}
}

// isValidTransition enforces idle -> starting -> streaming -> stopping -> idle,
// with early returns to idle on spawn failure or process exit.
func isValidTransition(from, to domain.SessionStatus) bool {
	switch from {
	case domain.SessionStatusIdle:
		return to == domain.SessionStatusStarting
	case domain.SessionStatusStarting:
		return to == domain.SessionStatusStreaming || to == domain.SessionStatusIdle
	case domain.SessionStatusStreaming:
		return to == domain.SessionStatusStopping || to == domain.SessionStatusIdle
	case domain.SessionStatusStopping:
		return to == domain.SessionStatusIdle
	default:
		return false
	}
}
