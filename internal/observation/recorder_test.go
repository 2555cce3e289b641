package observation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/perception"
	"github.com/hireloop/proctor/internal/utils"
)

// memObservationRepo mimics the postgres upsert without any cross-call
// locking of its own; serialization must come from the recorder.
type memObservationRepo struct {
	mu      sync.Mutex
	rows    map[string]models.ExamObservation
	saveErr error
}

func newMemObservationRepo() *memObservationRepo {
	return &memObservationRepo{rows: make(map[string]models.ExamObservation)}
}

func (m *memObservationRepo) Get(_ context.Context, examID string) (*models.ExamObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[examID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := row
	return &cp, nil
}

func (m *memObservationRepo) Save(_ context.Context, o *models.ExamObservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rows[o.ExamID] = *o
	return nil
}

func newTestRecorder(repo *memObservationRepo) *Recorder {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewRecorder(repo, log.WithField("component", "observation"))
}

func listLen(t *testing.T, raw []byte) int {
	t.Helper()
	var list []json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &list))
	return len(list)
}

func TestRecordCreatesAndAppends(t *testing.T) {
	repo := newMemObservationRepo()
	r := newTestRecorder(repo)
	ctx := context.Background()

	res := perception.Result{
		Emotions: []perception.Detection{{Label: "neutral", Confidence: 0.8}},
		Clothing: []perception.Detection{{Label: "jacket", Confidence: 0.9}},
	}
	r.Record(ctx, "exam-1", res)
	r.Record(ctx, "exam-1", res)

	row, err := repo.Get(ctx, "exam-1")
	require.NoError(t, err)
	assert.Equal(t, 2, listLen(t, row.Clothing))
	assert.Equal(t, 2, listLen(t, row.FaceExpressions))
	assert.Equal(t, 2, listLen(t, row.Gestures))

	var entries []struct {
		Clothing []perception.Detection `json:"clothing"`
		Time     string                 `json:"current_time"`
	}
	require.NoError(t, json.Unmarshal(row.Clothing, &entries))
	assert.Equal(t, "jacket", entries[0].Clothing[0].Label)
	assert.NotEmpty(t, entries[0].Time)
}

// Ten concurrent frame completions for one exam must leave exactly ten
// entries per category, no lost updates.
func TestRecordConcurrentAppendsNoLostUpdates(t *testing.T) {
	repo := newMemObservationRepo()
	r := newTestRecorder(repo)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Record(context.Background(), "exam-9", perception.Result{
				Emotions: []perception.Detection{{Label: "happiness"}},
			})
		}()
	}
	wg.Wait()

	row, err := repo.Get(context.Background(), "exam-9")
	require.NoError(t, err)
	assert.Equal(t, 10, listLen(t, row.FaceExpressions))
	assert.Equal(t, 10, listLen(t, row.Clothing))
}

func TestRecordSwallowsPersistenceFailure(t *testing.T) {
	repo := newMemObservationRepo()
	repo.saveErr = errors.New("connection refused")
	r := newTestRecorder(repo)

	assert.NotPanics(t, func() {
		r.Record(context.Background(), "exam-2", perception.Result{})
	})
	_, err := repo.Get(context.Background(), "exam-2")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestRecordSkipsDecodeErrorResults(t *testing.T) {
	repo := newMemObservationRepo()
	r := newTestRecorder(repo)

	r.Record(context.Background(), "exam-3", perception.Result{Err: "Failed to decode image"})
	_, err := repo.Get(context.Background(), "exam-3")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
