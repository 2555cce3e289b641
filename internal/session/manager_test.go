package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/proctor/internal/hub"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/utils"
)

type memSessionRepo struct {
	mu   sync.Mutex
	rows map[string]models.Session
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{rows: make(map[string]models.Session)}
}

func (m *memSessionRepo) Create(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.SessionID] = *s
	return nil
}

func (m *memSessionRepo) GetBySessionID(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := s
	return &cp, nil
}

func (m *memSessionRepo) Close(_ context.Context, id string, closedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.rows[id]; ok && s.Status == "active" {
		s.Status = "closed"
		at := closedAt
		s.ClosedAt = &at
		m.rows[id] = s
	}
	return nil
}

func (m *memSessionRepo) ListActiveByUser(_ context.Context, userID string) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Session
	for _, s := range m.rows {
		if s.UserID == userID && s.Status == "active" {
			out = append(out, s)
		}
	}
	return out, nil
}

func newTestManager() (*Manager, *memSessionRepo) {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	repo := newMemSessionRepo()
	return NewManager(repo, log.WithField("component", "session")), repo
}

func TestAcceptRefusesUnauthenticated(t *testing.T) {
	m, repo := newTestManager()

	_, err := m.Accept(context.Background(), "", "", hub.ChannelAudio)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnauthorized))
	assert.Empty(t, repo.rows)
}

func TestLifecycleStates(t *testing.T) {
	m, repo := newTestManager()
	ctx := context.Background()

	s, err := m.Accept(ctx, "user-1", "exam-1", hub.ChannelAudio)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, s.State())
	assert.False(t, s.Active())

	m.Activate(s)
	assert.True(t, s.Active())

	m.Close(ctx, s)
	assert.Equal(t, StateClosed, s.State())
	assert.False(t, s.Active())

	rec, err := repo.GetBySessionID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "closed", rec.Status)
	require.NotNil(t, rec.ClosedAt)
}

func TestCloseIdempotentAndOrdered(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	s, err := m.Accept(ctx, "user-1", "", hub.ChannelVideo)
	require.NoError(t, err)
	m.Activate(s)

	var order []string
	s.OnClose(func() { order = append(order, "first") })
	s.OnClose(func() { order = append(order, "second") })

	m.Close(ctx, s)
	m.Close(ctx, s) // double teardown must not run hooks again

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestOnCloseAfterCloseRunsImmediately(t *testing.T) {
	m, _ := newTestManager()
	ctx := context.Background()

	s, err := m.Accept(ctx, "user-1", "", hub.ChannelObservation)
	require.NoError(t, err)
	m.Close(ctx, s)

	ran := false
	s.OnClose(func() { ran = true })
	assert.True(t, ran)
}
