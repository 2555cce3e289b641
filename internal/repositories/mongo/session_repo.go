package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/hireloop/proctor/internal/models"
	"github.com/hireloop/proctor/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type SessionRepository interface {
	Create(ctx context.Context, s *models.Session) error
	GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error)
	Close(ctx context.Context, sessionID string, closedAt time.Time) error
	ListActiveByUser(ctx context.Context, userID string) ([]models.Session, error)
}

type sessionRepo struct {
	col *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepository {
	return &sessionRepo{col: db.Collection("sessions")}
}

func (r *sessionRepo) Create(ctx context.Context, s *models.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, s)
	return err
}

func (r *sessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.Session, error) {
	var s models.Session
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &s, err
}

// Close is idempotent: closing an already-closed session matches nothing and
// is not an error.
func (r *sessionRepo) Close(ctx context.Context, sessionID string, closedAt time.Time) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "status": "active"},
		bson.M{"$set": bson.M{
			"status":    "closed",
			"closed_at": closedAt.UTC(),
		}},
	)
	return err
}

func (r *sessionRepo) ListActiveByUser(ctx context.Context, userID string) ([]models.Session, error) {
	cur, err := r.col.Find(ctx, bson.M{"user_id": userID, "status": "active"})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Session
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
