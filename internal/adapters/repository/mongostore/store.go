// Package mongostore is a plan store backed by a MongoDB collection.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tapdin/planner/internal/adapters/repository"
	"github.com/tapdin/planner/internal/domain/errs"
	"github.com/tapdin/planner/internal/domain/model"
)

// Defaults for the Mongo store.
const (
	DefaultDatabase       = "tapdin"
	DefaultCollection     = "plans"
	DefaultConnectTimeout = 10 * time.Second
)

// Store persists plans as documents keyed by ObjectID.
type Store struct {
	client     *mongo.Client
	coll       *mongo.Collection
	database   string
	collection string
	timeout    time.Duration
	now        func() time.Time
}

var _ repository.Store = (*Store)(nil)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithDatabase selects the database name.
func WithDatabase(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.database = name
		}
	}
}

// WithCollection selects the collection name.
func WithCollection(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.collection = name
		}
	}
}

// WithConnectTimeout bounds the initial connection and ping.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock replaces the clock used to stamp CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to uri and verifies the server answers.
func Open(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	const op = "mongostore.open"
	s := &Store{
		database:   DefaultDatabase,
		collection: DefaultCollection,
		timeout:    DefaultConnectTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrStore, err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errs.WrapKind(op, errs.ErrStore, err)
	}

	s.client = client
	s.coll = client.Database(s.database).Collection(s.collection)
	return s, nil
}

// Create inserts a plan and returns its ObjectID in hex.
func (s *Store) Create(ctx context.Context, rec model.EventRecord, meta model.Meta) (string, error) {
	const op = "mongostore.create"
	doc := toDocument(rec, meta, s.now())
	doc.ID = primitive.NewObjectID()
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return "", errs.WrapKind(op, errs.ErrStore, err)
	}
	return doc.ID.Hex(), nil
}

// List returns every plan, newest first.
func (s *Store) List(ctx context.Context) ([]model.Plan, error) {
	const op = "mongostore.list"
	findOpts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})
	cur, err := s.coll.Find(ctx, bson.D{}, findOpts)
	if err != nil {
		return nil, errs.WrapKind(op, errs.ErrStore, err)
	}

	var docs []planDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errs.WrapKind(op, errs.ErrStore, err)
	}

	plans := make([]model.Plan, 0, len(docs))
	for _, d := range docs {
		plans = append(plans, d.plan())
	}
	return plans, nil
}

// Delete removes the plan with the given hex ObjectID.
func (s *Store) Delete(ctx context.Context, id string) error {
	const op = "mongostore.delete"
	oid, err := parseObjectID(op, id)
	if err != nil {
		return err
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return errs.WrapKind(op, errs.ErrStore, err)
	}
	if res.DeletedCount == 0 {
		return errs.NewKind(op, errs.ErrNotFound)
	}
	return nil
}

// Count returns the number of stored plans.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.coll.CountDocuments(ctx, bson.D{})
	if err != nil {
		return 0, errs.WrapKind("mongostore.count", errs.ErrStore, err)
	}
	return int(n), nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, readpref.Primary()); err != nil {
		return errs.WrapKind("mongostore.ping", errs.ErrStore, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func parseObjectID(op, id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.WrapKind(op, errs.ErrInvalidID, err)
	}
	return oid, nil
}
