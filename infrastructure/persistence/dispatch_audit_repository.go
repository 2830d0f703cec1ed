package persistence

import (
	"context"
	"sync"

	"crosspost/domain/model"
	"crosspost/domain/repository"
	"crosspost/infrastructure/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const dispatchOutcomeCollection = "dispatch_outcomes"

// DispatchAuditRepository appends send outcomes to a Mongo collection.
type DispatchAuditRepository struct {
	collection *mongo.Collection
}

func NewDispatchAuditRepository(client *mongo.Client, database string) repository.IDispatchAudit {
	return &DispatchAuditRepository{collection: client.Database(database).Collection(dispatchOutcomeCollection)}
}

// EnsureIndexes creates the post_id lookup index.
func (r *DispatchAuditRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "post_id", Value: 1}, {Key: "attempted_at", Value: 1}},
	})
	return err
}

func (r *DispatchAuditRepository) Append(ctx context.Context, outcome model.DispatchOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	_, err := r.collection.InsertOne(ctx, outcome)
	return err
}

func (r *DispatchAuditRepository) ListByPost(ctx context.Context, postID string) ([]model.DispatchOutcome, error) {
	opts := options.Find().SetSort(bson.D{{Key: "attempted_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.D{{Key: "post_id", Value: postID}}, opts)
	if err != nil {
		return nil, err
	}
	defer func(cursor *mongo.Cursor, ctx context.Context) {
		if err := cursor.Close(ctx); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while closing cursor")
		}
	}(cursor, ctx)

	list := make([]model.DispatchOutcome, 0)
	for cursor.Next(ctx) {
		var o model.DispatchOutcome
		if err := cursor.Decode(&o); err != nil {
			logger.GetLogger().WithField("error", err).Error("Error while decoding dispatch outcome")
			continue
		}
		list = append(list, o)
	}
	return list, cursor.Err()
}

// MemoryDispatchAudit keeps outcomes in process; used when Mongo is not configured.
type MemoryDispatchAudit struct {
	mu       sync.RWMutex
	outcomes []model.DispatchOutcome
}

func NewMemoryDispatchAudit() *MemoryDispatchAudit {
	return &MemoryDispatchAudit{}
}

func (m *MemoryDispatchAudit) Append(_ context.Context, outcome model.DispatchOutcome) error {
	if outcome.ID == "" {
		outcome.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.outcomes = append(m.outcomes, outcome)
	m.mu.Unlock()
	return nil
}

func (m *MemoryDispatchAudit) ListByPost(_ context.Context, postID string) ([]model.DispatchOutcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]model.DispatchOutcome, 0)
	for _, o := range m.outcomes {
		if o.PostID == postID {
			list = append(list, o)
		}
	}
	return list, nil
}
