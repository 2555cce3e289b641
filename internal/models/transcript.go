package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TranscriptBuffer is the short-lived per-chunk transcript archive. Entries
// expire via TTL index; durable interview answers live in postgres.
type TranscriptBuffer struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	UserID    string             `bson:"user_id" json:"user_id"`
	ExamID    string             `bson:"exam_id,omitempty" json:"exam_id,omitempty"`

	Kind       string  `bson:"kind" json:"kind"` // partial|final
	Text       string  `bson:"text" json:"text"`
	Confidence float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`

	QualityStatus string  `bson:"quality_status" json:"quality_status"`
	MaxAmplitude  int     `bson:"max_amplitude,omitempty" json:"max_amplitude,omitempty"`
	RMS           float64 `bson:"rms,omitempty" json:"rms,omitempty"`
	Clipping      bool    `bson:"clipping,omitempty" json:"clipping,omitempty"`

	AudioBase64 *string `bson:"audio_base64,omitempty" json:"audio_base64,omitempty"`

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
