package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/metrics"
	"github.com/hireloop/proctor/internal/models"
	mongorepo "github.com/hireloop/proctor/internal/repositories/mongo"
	"github.com/hireloop/proctor/internal/utils"
)

// State is the connection lifecycle. Only Active sessions process inbound
// frames; frames arriving after Close are dropped silently.
type State int32

const (
	StateUnauthenticated State = iota
	StateAccepted
	StateActive
	StateClosed
)

// Session is one live connection's state: identity, channel kind, and the
// teardown hooks registered while wiring it up (hub unsubscribes, decoder
// close). Close is idempotent.
type Session struct {
	ID      string
	UserID  string
	ExamID  string
	Channel hub.Channel

	mu        sync.Mutex
	state     State
	teardowns []func()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Active reports whether inbound frames should be processed.
func (s *Session) Active() bool { return s.State() == StateActive }

// OnClose registers a teardown hook; hooks run once, in reverse order, when
// the session closes.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		fn()
		return
	}
	s.teardowns = append(s.teardowns, fn)
	s.mu.Unlock()
}

// Manager owns connection sessions: authentication gating before accept,
// registration for push addressing, and idempotent teardown.
type Manager struct {
	sessions mongorepo.SessionRepository
	log      *logrus.Entry
}

func NewManager(sessions mongorepo.SessionRepository, log *logrus.Entry) *Manager {
	return &Manager{sessions: sessions, log: log}
}

// Accept registers an authenticated connection. Callers must have resolved
// the user identity already; an empty userID is a refusal, never a partial
// accept.
func (m *Manager) Accept(ctx context.Context, userID, examID string, ch hub.Channel) (*Session, error) {
	const op = "session.Manager.Accept"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthenticated connection refused", nil)
	}

	s := &Session{
		ID:      uuid.NewString(),
		UserID:  userID,
		ExamID:  examID,
		Channel: ch,
		state:   StateAccepted,
	}

	rec := &models.Session{
		SessionID: s.ID,
		UserID:    userID,
		ExamID:    examID,
		Channel:   string(ch),
		Status:    "active",
		CreatedAt: time.Now().UTC(),
	}
	if err := m.sessions.Create(ctx, rec); err != nil {
		// registration is advisory; the live connection still works
		m.log.WithError(err).WithField("session_id", s.ID).Warn("session registration failed")
	}

	metrics.ActiveSessions.WithLabelValues(string(ch)).Inc()
	m.log.WithFields(logrus.Fields{
		"session_id": s.ID,
		"user_id":    userID,
		"channel":    string(ch),
	}).Info("session accepted")
	return s, nil
}

// Activate moves an accepted session into frame processing.
func (m *Manager) Activate(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateAccepted {
		s.state = StateActive
	}
}

// Close tears the session down: state flips to Closed first so concurrent
// frame handlers see it, then hooks run in reverse registration order.
// Double teardown is a no-op.
func (m *Manager) Close(ctx context.Context, s *Session) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	hooks := s.teardowns
	s.teardowns = nil
	s.mu.Unlock()

	for i := len(hooks) - 1; i >= 0; i-- {
		hooks[i]()
	}

	if err := m.sessions.Close(ctx, s.ID, time.Now().UTC()); err != nil {
		m.log.WithError(err).WithField("session_id", s.ID).Warn("session close write failed")
	}
	metrics.ActiveSessions.WithLabelValues(string(s.Channel)).Dec()
	m.log.WithField("session_id", s.ID).Info("session closed")
}
