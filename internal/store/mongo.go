package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/i474232898/air-quality-service/internal/airquality"
)

// MongoConfig locates the records collection.
type MongoConfig struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// MongoStore implements airquality.Store on a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

type locationDocument struct {
	City      string  `bson:"city"`
	Latitude  float64 `bson:"latitude"`
	Longitude float64 `bson:"longitude"`
	Timezone  string  `bson:"timezone"`
}

type recordDocument struct {
	ID         primitive.ObjectID    `bson:"_id,omitempty"`
	Location   locationDocument      `bson:"location"`
	Timestamp  time.Time             `bson:"timestamp"`
	AQI        *float64              `bson:"aqi"`
	Category   string                `bson:"aqiCategory"`
	Pollutants airquality.Pollutants `bson:"pollutants"`
	Weather    map[string]*float64   `bson:"weather"`
	Source     string                `bson:"source"`
	CreatedAt  time.Time             `bson:"createdAt"`
	UpdatedAt  time.Time             `bson:"updatedAt"`
}

// NewMongoStore connects, pings and ensures the query indexes exist.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	collection := client.Database(cfg.Database).Collection(cfg.Collection)
	_, err = collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location.city", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "timestamp", Value: -1}}},
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo create indexes failed: %w", err)
	}

	return &MongoStore{client: client, collection: collection}, nil
}

// Persist inserts records in order and returns their hex object ids.
func (s *MongoStore) Persist(ctx context.Context, records []airquality.Record) ([]string, error) {
	if len(records) == 0 {
		return []string{}, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		doc := toDocument(r, now)
		doc.ID = primitive.NewObjectID()
		docs = append(docs, doc)
		ids = append(ids, doc.ID.Hex())
	}

	if _, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return nil, fmt.Errorf("mongo insert failed: %w", err)
	}
	return ids, nil
}

// Query returns matching documents, newest timestamp first.
func (s *MongoStore) Query(ctx context.Context, filter airquality.Filter) ([]airquality.Record, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(filter.EffectiveLimit()))

	cursor, err := s.collection.Find(ctx, buildMongoFilter(filter), opts)
	if err != nil {
		return nil, fmt.Errorf("mongo find failed: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]airquality.Record, 0)
	for cursor.Next(ctx) {
		var doc recordDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("mongo decode failed: %w", err)
		}
		out = append(out, doc.toRecord())
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// buildMongoFilter translates a Filter into a query document. The city is
// quoted so it matches as a literal substring.
func buildMongoFilter(f airquality.Filter) bson.M {
	query := bson.M{}
	if f.CityContains != "" {
		query["location.city"] = bson.M{
			"$regex":   regexp.QuoteMeta(f.CityContains),
			"$options": "i",
		}
	}

	ts := bson.M{}
	if f.From != nil {
		ts["$gte"] = f.From.UTC()
	}
	if f.To != nil {
		ts["$lte"] = f.To.UTC()
	}
	if len(ts) > 0 {
		query["timestamp"] = ts
	}
	return query
}

func toDocument(r airquality.Record, now time.Time) recordDocument {
	weather := map[string]*float64(r.Weather)
	if weather == nil {
		weather = map[string]*float64{}
	}
	return recordDocument{
		Location: locationDocument{
			City:      r.Location.City,
			Latitude:  r.Location.Latitude,
			Longitude: r.Location.Longitude,
			Timezone:  r.Location.Timezone,
		},
		Timestamp:  r.Timestamp.UTC(),
		AQI:        r.AQI,
		Category:   string(r.Category),
		Pollutants: r.Pollutants,
		Weather:    weather,
		Source:     r.Source,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func (d recordDocument) toRecord() airquality.Record {
	weather := airquality.Weather(d.Weather)
	if weather == nil {
		weather = airquality.Weather{}
	}
	return airquality.Record{
		ID: d.ID.Hex(),
		Location: airquality.Location{
			City:      d.Location.City,
			Latitude:  d.Location.Latitude,
			Longitude: d.Location.Longitude,
			Timezone:  d.Location.Timezone,
		},
		Timestamp:  d.Timestamp.UTC(),
		AQI:        d.AQI,
		Category:   airquality.Category(d.Category),
		Pollutants: d.Pollutants,
		Weather:    weather,
		Source:     d.Source,
		CreatedAt:  d.CreatedAt.UTC(),
	}
}
