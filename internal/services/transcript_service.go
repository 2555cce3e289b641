package services

import (
	"context"
	"time"

	"github.com/hireloop/proctor/internal/models"
	mongorepo "github.com/hireloop/proctor/internal/repositories/mongo"
	"github.com/hireloop/proctor/internal/speech"
	"github.com/hireloop/proctor/internal/utils"
)

type TranscriptService interface {
	Record(ctx context.Context, sessionID, userID, examID string, ev speech.Event, audioBase64 string) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptBuffer, error)
}

type transcriptService struct {
	transcripts mongorepo.TranscriptRepository
	ttl         time.Duration
}

func NewTranscriptService(transcripts mongorepo.TranscriptRepository, ttl time.Duration) TranscriptService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &transcriptService{transcripts: transcripts, ttl: ttl}
}

// Record archives one decoder event. The raw audio chunk is kept for final
// transcripts only; partials would duplicate the same bytes many times over.
func (s *transcriptService) Record(ctx context.Context, sessionID, userID, examID string, ev speech.Event, audioBase64 string) error {
	const op = "TranscriptService.Record"

	if sessionID == "" || userID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id and user_id are required", nil)
	}

	doc := &models.TranscriptBuffer{
		SessionID: sessionID,
		UserID:    userID,
		ExamID:    examID,

		Kind: string(ev.Kind),
		Text: ev.Text,

		QualityStatus: ev.Quality.Status,
		MaxAmplitude:  ev.Quality.MaxAmplitude,
		RMS:           ev.Quality.RMS,
		Clipping:      ev.Quality.Clipping,

		Timestamp: ev.Timestamp.UTC(),
		ExpiresAt: ev.Timestamp.UTC().Add(s.ttl),
	}
	if ev.Kind == speech.EventFinal {
		doc.Confidence = ev.Confidence
		if audioBase64 != "" {
			doc.AudioBase64 = &audioBase64
		}
	}

	if err := s.transcripts.Insert(ctx, doc); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to insert transcript", err)
	}
	return nil
}

func (s *transcriptService) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptBuffer, error) {
	const op = "TranscriptService.ListBySession"

	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	out, err := s.transcripts.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcripts", err)
	}
	return out, nil
}
