package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Session struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	UserID    string             `bson:"user_id" json:"user_id"`
	ExamID    string             `bson:"exam_id,omitempty" json:"exam_id,omitempty"`

	Channel string `bson:"channel" json:"channel"` // audio|video|signaling|observation|interview|notification
	Status  string `bson:"status" json:"status"`   // active|closed

	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	ClosedAt  *time.Time `bson:"closed_at,omitempty" json:"closed_at,omitempty"`
}
