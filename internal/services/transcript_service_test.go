package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/speech"
)

type memTranscriptRepo struct {
	mu   sync.Mutex
	docs []models.TranscriptBuffer
}

func (m *memTranscriptRepo) Insert(_ context.Context, t *models.TranscriptBuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = append(m.docs, *t)
	return nil
}

func (m *memTranscriptRepo) ListBySession(_ context.Context, sessionID string, _ int64) ([]models.TranscriptBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TranscriptBuffer
	for _, d := range m.docs {
		if d.SessionID == sessionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func finalEvent(text string) speech.Event {
	return speech.Event{
		Kind:       speech.EventFinal,
		Text:       text,
		Confidence: 0.9,
		Quality:    speech.Quality{Status: speech.StatusGood, MaxAmplitude: 1200, RMS: 340.5},
		Timestamp:  time.Now().UTC(),
	}
}

func TestRecordFinalKeepsAudio(t *testing.T) {
	repo := &memTranscriptRepo{}
	svc := NewTranscriptService(repo, 0)

	err := svc.Record(context.Background(), "sess-1", "user-1", "exam-1", finalEvent("hello"), "QUJD")
	require.NoError(t, err)

	docs, err := svc.ListBySession(context.Background(), "sess-1", 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	d := docs[0]
	assert.Equal(t, "final", d.Kind)
	assert.Equal(t, "hello", d.Text)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)
	assert.Equal(t, speech.StatusGood, d.QualityStatus)
	require.NotNil(t, d.AudioBase64)
	assert.Equal(t, "QUJD", *d.AudioBase64)
	assert.Equal(t, 24*time.Hour, d.ExpiresAt.Sub(d.Timestamp))
}

func TestRecordPartialDropsAudioAndConfidence(t *testing.T) {
	repo := &memTranscriptRepo{}
	svc := NewTranscriptService(repo, time.Hour)

	ev := finalEvent("typing")
	ev.Kind = speech.EventPartial

	err := svc.Record(context.Background(), "sess-1", "user-1", "", ev, "QUJD")
	require.NoError(t, err)

	docs, _ := svc.ListBySession(context.Background(), "sess-1", 10)
	require.Len(t, docs, 1)
	assert.Equal(t, "partial", docs[0].Kind)
	assert.Zero(t, docs[0].Confidence)
	assert.Nil(t, docs[0].AudioBase64)
	assert.Equal(t, time.Hour, docs[0].ExpiresAt.Sub(docs[0].Timestamp))
}

func TestRecordRequiresIdentity(t *testing.T) {
	svc := NewTranscriptService(&memTranscriptRepo{}, 0)

	err := svc.Record(context.Background(), "", "user-1", "", finalEvent("x"), "")
	require.Error(t, err)
	err = svc.Record(context.Background(), "sess-1", "", "", finalEvent("x"), "")
	require.Error(t, err)
}
