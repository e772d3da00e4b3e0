package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/Waelalhamad/HydroQuest-Project/internal/modules/telemetry/types"
)

// ReadingsCollection is the collection name used by the mongo backend.
const ReadingsCollection = "readings"

// mongo server code for a document rejected by a $jsonSchema validator.
const mongoDocumentValidationFailure = 121

type readingDocument struct {
	ID          bson.ObjectID `bson:"_id,omitempty"`
	Temperature *float64      `bson:"temperature,omitempty"`
	TDSValue    *float64      `bson:"TDS_Value,omitempty"`
	Latitude    *float64      `bson:"latitude,omitempty"`
	Longitude   *float64      `bson:"longitude,omitempty"`
	Speed       float64       `bson:"speed"`
	Timestamp   time.Time     `bson:"timestamp"`
}

func (d readingDocument) toReading() types.Reading {
	return types.Reading{
		ID:          d.ID.Hex(),
		Temperature: d.Temperature,
		TDSValue:    d.TDSValue,
		Latitude:    d.Latitude,
		Longitude:   d.Longitude,
		Speed:       d.Speed,
		Timestamp:   d.Timestamp.UTC(),
	}
}

type mongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRepository stores readings as documents in database.readings.
func NewMongoRepository(client *mongo.Client, database string) ReadingRepository {
	return &mongoRepository{
		client:     client,
		collection: client.Database(database).Collection(ReadingsCollection),
	}
}

// EnsureMongoIndexes creates the descending timestamp index used by both
// read queries.
func EnsureMongoIndexes(ctx context.Context, client *mongo.Client, database string) error {
	coll := client.Database(database).Collection(ReadingsCollection)
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}},
	})
	if err != nil {
		return classifyMongoError("create indexes", err)
	}
	return nil
}

func (r *mongoRepository) InsertReading(ctx context.Context, rec types.Reading) (types.Reading, error) {
	if err := types.Validate(rec); err != nil {
		return types.Reading{}, err
	}
	// BSON dates hold milliseconds; return what a later read will see.
	rec.Timestamp = rec.Timestamp.UTC().Truncate(time.Millisecond)
	doc := readingDocument{
		ID:          bson.NewObjectID(),
		Temperature: rec.Temperature,
		TDSValue:    rec.TDSValue,
		Latitude:    rec.Latitude,
		Longitude:   rec.Longitude,
		Speed:       rec.Speed,
		Timestamp:   rec.Timestamp,
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return types.Reading{}, classifyMongoError("insert reading", err)
	}
	rec.ID = doc.ID.Hex()
	return rec, nil
}

func (r *mongoRepository) GetLatestReadings(ctx context.Context, limit int) ([]types.Reading, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.D{}, opts)
}

func (r *mongoRepository) GetReadingsBetween(ctx context.Context, from time.Time, to time.Time) ([]types.Reading, error) {
	filter := bson.D{{Key: "timestamp", Value: bson.D{
		{Key: "$gte", Value: from.UTC()},
		{Key: "$lte", Value: to.UTC()},
	}}}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}})
	return r.find(ctx, filter, opts)
}

func (r *mongoRepository) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping: %w: %v", types.ErrStoreUnavailable, err)
	}
	return nil
}

func (r *mongoRepository) find(ctx context.Context, filter any, opts *options.FindOptionsBuilder) ([]types.Reading, error) {
	cur, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, classifyMongoError("find readings", err)
	}
	var docs []readingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, classifyMongoError("decode readings", err)
	}
	out := make([]types.Reading, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toReading())
	}
	return out, nil
}

func classifyMongoError(op string, err error) error {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == mongoDocumentValidationFailure {
				return &types.ValidationFailure{Fields: map[string]string{"document": e.Message}}
			}
		}
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) || errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("%s: %w: %v", op, types.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
