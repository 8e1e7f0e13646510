package observatory

import (
	"log/slog"
	"sync"

	"github.com/wcharczuk/observatory/internal/metrics"
)

// Session is a live viewer channel bound to one inspected tab.
type Session interface {
	ID() string
	TabID() int
	Send(Message) error
}

// NewSessions returns a new, empty session registry.
func NewSessions() *Sessions {
	return &Sessions{
		byTab:   make(map[int]*sessionEntry),
		metrics: metrics.New(),
	}
}

// Sessions maps tab ids to at most one registered viewer session each.
type Sessions struct {
	mu      sync.RWMutex
	byTab   map[int]*sessionEntry
	metrics *metrics.Metrics
}

type sessionEntry struct {
	session Session
	domain  string
}

// WithMetrics sets the registry metrics and returns a reference to the same registry.
func (s *Sessions) WithMetrics(m *metrics.Metrics) *Sessions {
	s.metrics = m
	return s
}

// Register records a session for its tab, replacing any prior session for that tab.
//
// The domain is optional and selects which STATE updates the session receives.
func (s *Sessions) Register(session Session, domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if previous, ok := s.byTab[session.TabID()]; ok && previous.session.ID() != session.ID() {
		slog.Debug("viewer session replaced",
			slog.Int("tab_id", session.TabID()),
			slog.String("previous_session_id", previous.session.ID()),
			slog.String("session_id", session.ID()),
		)
	}
	s.byTab[session.TabID()] = &sessionEntry{session: session, domain: domain}
	s.metrics.ActiveSessions.Set(float64(len(s.byTab)))
}

// Unregister removes the mapping for a session's tab if it still points at
// that session; a session that was replaced does not remove its successor.
func (s *Sessions) Unregister(session Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.byTab[session.TabID()]
	if !ok || entry.session.ID() != session.ID() {
		return
	}
	delete(s.byTab, session.TabID())
	s.metrics.ActiveSessions.Set(float64(len(s.byTab)))
}

// Get returns the session registered for a tab.
func (s *Sessions) Get(tabID int) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.byTab[tabID]
	if !ok {
		return nil, false
	}
	return entry.session, true
}

// Len returns the number of registered sessions.
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byTab)
}

// Send delivers a message to the session for a tab, if there is one.
//
// Send failures are swallowed; a viewer whose channel closed is expected to re-register.
func (s *Sessions) Send(tabID int, msg Message) {
	session, ok := s.Get(tabID)
	if !ok {
		return
	}
	s.deliver(session, msg)
}

// SendDomain delivers a message to every session watching a domain.
func (s *Sessions) SendDomain(domain string, msg Message) {
	s.mu.RLock()
	var targets []Session
	for _, entry := range s.byTab {
		if entry.domain == domain {
			targets = append(targets, entry.session)
		}
	}
	s.mu.RUnlock()
	for _, session := range targets {
		s.deliver(session, msg)
	}
}

func (s *Sessions) deliver(session Session, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("viewer send panicked", slog.String("session_id", session.ID()), slog.Any("panic", r))
		}
	}()
	if err := session.Send(msg); err != nil {
		slog.Debug("viewer send failed",
			slog.String("session_id", session.ID()),
			slog.Int("tab_id", session.TabID()),
			slog.Any("err", err),
		)
	}
}
