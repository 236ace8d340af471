package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const plantNameKey = "Plant Name"

// MongoStore reads records from a MongoDB collection whose documents use the
// spaced field names of Record.
type MongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongoStore connects to uri and checks the server is reachable.
func NewMongoStore(ctx context.Context, uri, db, collection string, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	logger.Info("Fact store connected",
		zap.String("driver", "mongo"),
		zap.String("database", db),
		zap.String("collection", collection))

	return &MongoStore{
		client: client,
		coll:   client.Database(db).Collection(collection),
	}, nil
}

func (s *MongoStore) FindByName(ctx context.Context, name string) (*Record, error) {
	var doc bson.M
	err := s.coll.FindOne(ctx, bson.D{{Key: plantNameKey, Value: name}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return recordFromDocument(name, doc), nil
}

func (s *MongoStore) Upsert(ctx context.Context, rec Record) error {
	_, err := s.coll.ReplaceOne(ctx,
		bson.D{{Key: plantNameKey, Value: rec.PlantName}},
		rec,
		options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

// recordFromDocument tolerates documents written by other tools, where a
// field may be missing or hold a non-string value.
func recordFromDocument(name string, doc bson.M) *Record {
	return &Record{
		PlantName:           name,
		BotanicalName:       stringField(doc, "Botanical Name"),
		ChemicalComponents:  stringField(doc, "Chemical Components"),
		MedicinalProperties: stringField(doc, "Medicinal Properties"),
		MedicalUses:         stringField(doc, "Medical Uses"),
	}
}

func stringField(doc bson.M, key string) string {
	switch v := doc[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case bson.A:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
