package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

type snapshotDocument struct {
	Key       string    `bson:"_id"`
	Snapshot  string    `bson:"snapshot"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type MongoStorage struct {
	collection *mongo.Collection
}

func NewMongoStorage(db *mongo.Database) *MongoStorage {
	return &MongoStorage{collection: db.Collection("carts")}
}

func (m *MongoStorage) Load(ctx context.Context, key string) ([]byte, error) {
	var doc snapshotDocument
	err := m.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	return []byte(doc.Snapshot), nil
}

func (m *MongoStorage) Save(ctx context.Context, key string, snapshot []byte) error {
	update := bson.M{"$set": bson.M{
		"snapshot":   string(snapshot),
		"updated_at": time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": key}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoStorage) Delete(ctx context.Context, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}
