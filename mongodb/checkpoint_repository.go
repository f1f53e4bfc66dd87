package mongodb

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pilab-dev/fitsync/domain"
)

// checkpointDoc wraps a domain.Checkpoint with its composite document id so
// one (client, stream) pair owns exactly one document.
type checkpointDoc struct {
	ID                string `bson:"_id"`
	domain.Checkpoint `bson:",inline"`
}

func checkpointKey(clientID string, stream domain.MetricStream) string {
	return clientID + "/" + string(stream)
}

// CheckpointRepository stores ingestion progress in MongoDB.
type CheckpointRepository struct {
	coll *mongo.Collection
}

func NewCheckpointRepository(db *mongo.Database) domain.CheckpointRepository {
	return &CheckpointRepository{
		coll: db.Collection(CheckpointsCollection),
	}
}

func (r *CheckpointRepository) Get(ctx context.Context, clientID string, stream domain.MetricStream) (*domain.Checkpoint, error) {
	var doc checkpointDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": checkpointKey(clientID, stream)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Absent until the first successful sync.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return &doc.Checkpoint, nil
}

func (r *CheckpointRepository) Advance(ctx context.Context, cp *domain.Checkpoint) error {
	doc := checkpointDoc{
		ID:         checkpointKey(cp.ClientID, cp.Stream),
		Checkpoint: *cp,
	}
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": doc.ID}, doc,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	log.Debug().
		Str("client_id", cp.ClientID).
		Str("stream", string(cp.Stream)).
		Int64("last_record_id", cp.LastRecordID).
		Time("last_timestamp", cp.LastTimestamp).
		Msg("checkpoint advanced")
	return nil
}
