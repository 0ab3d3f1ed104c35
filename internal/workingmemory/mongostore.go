package workingmemory

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/mandubian/ccos-sub020/internal/ccoserr"
)

// mongoEntry is Entry's BSON projection; Value is stored as-is (the driver
// handles any BSON-representable Go value) under a dedicated field so the
// document can also carry a unique index on source_action_id for ingestion
// idempotency at the storage layer, not just in application logic.
type mongoEntry struct {
	Key            string    `bson:"key"`
	Value          any       `bson:"value"`
	Tags           []string  `bson:"tags"`
	SourceActionID string    `bson:"source_action_id,omitempty"`
	CreatedAt      time.Time `bson:"created_at"`
}

// MongoStore backs working memory with a MongoDB collection, mirroring the
// teacher pack's `features/memory/mongo` durable recall layer.
type MongoStore struct {
	collection *mongo.Collection
}

// NewMongoStore constructs a MongoStore over collection. Callers are
// expected to have already created a unique index on source_action_id
// (sparse, since most entries have none) for storage-layer idempotency.
func NewMongoStore(collection *mongo.Collection) *MongoStore {
	return &MongoStore{collection: collection}
}

// EnsureIndexes creates the indexes MongoStore relies on: a unique sparse
// index on source_action_id (ingestion idempotency) and a key index (fast
// Get lookups).
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "source_action_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "key", Value: 1}},
		},
	})
	if err != nil {
		return ccoserr.NewWithCause(ccoserr.KindProvider, "working memory mongo store: create indexes failed", err)
	}
	return nil
}

// Append inserts entry. A duplicate-key error on source_action_id is
// swallowed as a successful no-op: the entry was already ingested by a
// concurrent or prior run.
func (s *MongoStore) Append(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	doc := mongoEntry{Key: entry.Key, Value: entry.Value, Tags: entry.Tags, SourceActionID: entry.SourceActionID, CreatedAt: entry.CreatedAt}
	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return ccoserr.NewWithCause(ccoserr.KindProvider, "working memory mongo store: insert failed", err)
	}
	return nil
}

// Query returns entries matching params.Tags, newest first.
func (s *MongoStore) Query(ctx context.Context, params QueryParams) ([]Entry, error) {
	filter := bson.M{}
	if len(params.Tags) > 0 {
		filter["tags"] = bson.M{"$all": params.Tags}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if params.Limit > 0 {
		opts.SetLimit(int64(params.Limit))
	}
	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "working memory mongo store: query failed", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoEntry
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, ccoserr.NewWithCause(ccoserr.KindProvider, "working memory mongo store: decode failed", err)
	}
	out := make([]Entry, len(docs))
	for i, d := range docs {
		out[i] = Entry{Key: d.Key, Value: d.Value, Tags: d.Tags, SourceActionID: d.SourceActionID, CreatedAt: d.CreatedAt}
	}
	return out, nil
}

// Seen reports whether an entry derived from sourceActionID already exists.
func (s *MongoStore) Seen(ctx context.Context, sourceActionID string) (bool, error) {
	if sourceActionID == "" {
		return false, nil
	}
	count, err := s.collection.CountDocuments(ctx, bson.M{"source_action_id": sourceActionID})
	if err != nil {
		return false, ccoserr.NewWithCause(ccoserr.KindProvider, "working memory mongo store: seen check failed", err)
	}
	return count > 0, nil
}

// Put upserts a keyed entry, backing ccos.memory.store.
func (s *MongoStore) Put(ctx context.Context, key string, value any) error {
	_, err := s.collection.UpdateOne(ctx,
		bson.M{"key": key, "source_action_id": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"value": value, "created_at": time.Now()}, "$setOnInsert": bson.M{"key": key}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return ccoserr.NewWithCause(ccoserr.KindProvider, "working memory mongo store: put failed", err)
	}
	return nil
}

// Get returns the most recent value stored under key, backing
// ccos.memory.get.
func (s *MongoStore) Get(ctx context.Context, key string) (any, bool, error) {
	var doc mongoEntry
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})
	err := s.collection.FindOne(ctx, bson.M{"key": key}, opts).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, false, nil
		}
		return nil, false, ccoserr.NewWithCause(ccoserr.KindProvider, "working memory mongo store: get failed", err)
	}
	return doc.Value, true, nil
}
