package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for MongoDB replay storage.
type MongoConfig struct {
	URI        string // e.g. mongodb://localhost:27017
	Database   string // e.g. rescue
	Collection string // e.g. replay_ticks
}

// MongoStore implements SnapshotStore on MongoDB backend.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	codec      *Codec
	ctxTimeout time.Duration
}

type mongoTick struct {
	EpisodeID  string    `bson:"episode_id"`
	Tick       int       `bson:"tick"`
	RecordedAt time.Time `bson:"recorded_at"`
	Data       []byte    `bson:"data"`
}

// NewMongoStore establishes connection and returns the store.
func NewMongoStore(ctx context.Context, cfg MongoConfig, codec *Codec) (*MongoStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "rescue"
	}
	if cfg.Collection == "" {
		cfg.Collection = "replay_ticks"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	// ping
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	store := &MongoStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		codec:      codec,
		ctxTimeout: 5 * time.Second,
	}
	if err := store.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return store, nil
}

func (m *MongoStore) ensureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	idx := mongo.IndexModel{
		Keys:    bson.D{{Key: "episode_id", Value: 1}, {Key: "tick", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("episode_tick_unique"),
	}
	_, err := m.collection.Indexes().CreateOne(ctx, idx)
	return err
}

// Save upserts the tick document.
func (m *MongoStore) Save(ctx context.Context, rec Record) error {
	data, err := m.codec.Encode(rec)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()
	filter := bson.M{"episode_id": rec.EpisodeID, "tick": rec.Tick}
	doc := mongoTick{EpisodeID: rec.EpisodeID, Tick: rec.Tick, RecordedAt: rec.RecordedAt, Data: data}
	_, err = m.collection.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo save tick %d: %w", rec.Tick, err)
	}
	return nil
}

// Load fetches a single tick.
func (m *MongoStore) Load(ctx context.Context, episodeID string, tick int) (Record, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	var doc mongoTick
	err := m.collection.FindOne(ctx, bson.M{"episode_id": episodeID, "tick": tick}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	rec, err := m.codec.Decode(doc.Data)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Range returns ticks from..to sorted by tick.
func (m *MongoStore) Range(ctx context.Context, episodeID string, from, to int) ([]Record, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	filter := bson.M{"episode_id": episodeID, "tick": bson.M{"$gte": from, "$lte": to}}
	cur, err := m.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "tick", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	result := make([]Record, 0)
	for cur.Next(ctx) {
		var doc mongoTick
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := m.codec.Decode(doc.Data)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, cur.Err()
}

// Episodes lists distinct episode ids.
func (m *MongoStore) Episodes(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.ctxTimeout)
	defer cancel()

	values, err := m.collection.Distinct(ctx, "episode_id", bson.M{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close disconnects the client.
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), m.ctxTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}
