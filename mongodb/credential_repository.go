package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/pilab-dev/fitsync/domain"
)

// CredentialRepository stores client credentials in MongoDB, one document per
// client id. Put replaces the whole document so the token pair stays atomic.
type CredentialRepository struct {
	coll *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) domain.CredentialRepository {
	return &CredentialRepository{
		coll: db.Collection(CredentialsCollection),
	}
}

func (r *CredentialRepository) Put(ctx context.Context, cred *domain.Credential) error {
	_, err := r.coll.ReplaceOne(ctx,
		bson.M{"_id": cred.ClientID}, cred,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Get(ctx context.Context, clientID string) (*domain.Credential, error) {
	var cred domain.Credential
	err := r.coll.FindOne(ctx, bson.M{"_id": clientID}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credential: %w", err)
	}
	return &cred, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, clientID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": clientID})
	return err
}

func (r *CredentialRepository) ListClientIDs(ctx context.Context) ([]string, error) {
	cursor, err := r.coll.Find(ctx, bson.M{},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("failed to list client ids: %w", err)
	}
	defer cursor.Close(ctx)

	var ids []string
	for cursor.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode client id: %w", err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, cursor.Err()
}

func (r *CredentialRepository) ForEach(ctx context.Context, fn func(cred *domain.Credential) error) error {
	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to enumerate credentials: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var cred domain.Credential
		if err := cursor.Decode(&cred); err != nil {
			return fmt.Errorf("failed to decode credential: %w", err)
		}
		if err := fn(&cred); err != nil {
			return err
		}
	}
	return cursor.Err()
}
