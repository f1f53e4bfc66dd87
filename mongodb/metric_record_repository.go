package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pilab-dev/fitsync/domain"
)

// MetricRecordRepository appends metric records to MongoDB. The unique
// compound index on (client_id, stream, record_id) is what makes ingestion
// idempotent: a batch containing an already-stored record id fails on the
// duplicate key and is retried against a recomputed window on the next tick.
type MetricRecordRepository struct {
	coll *mongo.Collection
}

func NewMetricRecordRepository(ctx context.Context, db *mongo.Database) (domain.MetricRecordRepository, error) {
	coll := db.Collection(MetricRecordsCollection)

	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "client_id", Value: 1},
			{Key: "stream", Value: 1},
			{Key: "record_id", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure metric record index: %w", err)
	}

	return &MetricRecordRepository{coll: coll}, nil
}

func (r *MetricRecordRepository) InsertMany(ctx context.Context, records []domain.MetricRecord) error {
	if len(records) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(records))
	for _, record := range records {
		docs = append(docs, record)
	}

	if _, err := r.coll.InsertMany(ctx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("duplicate record id in batch: %w", err)
		}
		return fmt.Errorf("failed to insert metric records: %w", err)
	}
	return nil
}

func (r *MetricRecordRepository) FindSince(ctx context.Context, clientID string, stream domain.MetricStream, since time.Time) ([]domain.MetricRecord, error) {
	cursor, err := r.coll.Find(ctx, bson.M{
		"client_id": clientID,
		"stream":    stream,
		"timestamp": bson.M{"$gte": since},
	}, options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query metric records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []domain.MetricRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode metric records: %w", err)
	}
	return records, nil
}

func (r *MetricRecordRepository) Latest(ctx context.Context, clientID string, stream domain.MetricStream) (*domain.MetricRecord, error) {
	var record domain.MetricRecord
	err := r.coll.FindOne(ctx, bson.M{
		"client_id": clientID,
		"stream":    stream,
	}, options.FindOne().SetSort(bson.D{
		{Key: "timestamp", Value: -1},
		{Key: "record_id", Value: -1},
	})).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest metric record: %w", err)
	}
	return &record, nil
}
