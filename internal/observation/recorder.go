package observation

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/hireloop/proctor/internal/metrics"
	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/perception"
	"github.com/hireloop/proctor/internal/repositories/postgres"
	"github.com/hireloop/proctor/internal/utils"
)

type clothingEntry struct {
	Clothing []perception.Detection `json:"clothing"`
	Time     string                 `json:"current_time"`
}

type emotionEntry struct {
	Emotions []perception.Detection `json:"emotions"`
	Time     string                 `json:"current_time"`
}

type gestureEntry struct {
	Gestures []perception.Detection `json:"gestures"`
	Time     string                 `json:"current_time"`
}

// Recorder appends perception results to the per-exam observation record.
// Appends are read-modify-write against stored JSON lists, so they are
// serialized per exam; different exams proceed in parallel. Failures are
// logged and swallowed, never surfaced to the perception pipeline.
type Recorder struct {
	repo postgres.ObservationRepo
	log  *logrus.Entry

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewRecorder(repo postgres.ObservationRepo, log *logrus.Entry) *Recorder {
	return &Recorder{
		repo:  repo,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

func (r *Recorder) examLock(examID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[examID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[examID] = l
	}
	return l
}

// Record appends one frame's detections to each category list of the exam's
// observation record, creating the record on first use.
func (r *Recorder) Record(ctx context.Context, examID string, res perception.Result) {
	if examID == "" || res.Err != "" {
		return
	}

	l := r.examLock(examID)
	l.Lock()
	defer l.Unlock()

	obs, err := r.repo.Get(ctx, examID)
	if errors.Is(err, utils.ErrNotFound) {
		obs = &models.ExamObservation{
			ExamID:          examID,
			Clothing:        datatypes.JSON("[]"),
			FaceExpressions: datatypes.JSON("[]"),
			Gestures:        datatypes.JSON("[]"),
		}
		err = nil
	}
	if err != nil {
		r.swallow(examID, "load observation record", err)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)

	if obs.Clothing, err = appendEntry(obs.Clothing, clothingEntry{Clothing: emptyIfNil(res.Clothing), Time: now}); err != nil {
		r.swallow(examID, "append clothing entry", err)
		return
	}
	if obs.FaceExpressions, err = appendEntry(obs.FaceExpressions, emotionEntry{Emotions: emptyIfNil(res.Emotions), Time: now}); err != nil {
		r.swallow(examID, "append emotion entry", err)
		return
	}
	if obs.Gestures, err = appendEntry(obs.Gestures, gestureEntry{Gestures: emptyIfNil(res.Gestures), Time: now}); err != nil {
		r.swallow(examID, "append gesture entry", err)
		return
	}

	if err := r.repo.Save(ctx, obs); err != nil {
		r.swallow(examID, "save observation record", err)
	}
}

func (r *Recorder) swallow(examID, what string, err error) {
	metrics.ObservationAppendFailures.Inc()
	r.log.WithError(err).WithField("exam_id", examID).Warn(what + " failed")
}

func appendEntry(stored datatypes.JSON, entry any) (datatypes.JSON, error) {
	var list []json.RawMessage
	if len(stored) > 0 {
		if err := json.Unmarshal([]byte(stored), &list); err != nil {
			return stored, err
		}
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return stored, err
	}
	list = append(list, raw)
	out, err := json.Marshal(list)
	return datatypes.JSON(out), err
}

func emptyIfNil(d []perception.Detection) []perception.Detection {
	if d == nil {
		return []perception.Detection{}
	}
	return d
}
