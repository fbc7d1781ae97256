package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/observability"
)

const systemName = "mongodb"

// Store is the façade over one MongoDB collection.
type Store[T any] struct {
	collection *mongo.Collection
	name       string
	recorder   Recorder
}

// NewStore binds a store for collection.
func NewStore[T any](client *Client, collection ports.Collection) *Store[T] {
	return &Store[T]{
		collection: client.database.Collection(collection.String()),
		name:       collection.String(),
		recorder:   client.recorder,
	}
}

func (s *Store[T]) GetOne(ctx context.Context, filter ports.Filter) (out T, err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.name, "get_one")
	defer span.End()
	defer s.observe("get_one", time.Now(), &err)

	err = s.collection.FindOne(ctx, toBSON(filter)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, ports.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("get %s document: %w", s.name, err)
	}
	return out, nil
}

func (s *Store[T]) GetMany(ctx context.Context, filter ports.Filter, opts ports.ListOptions) (_ []T, err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.name, "get_many")
	defer span.End()
	defer s.observe("get_many", time.Now(), &err)

	find := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	if opts.Skip > 0 {
		find.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		find.SetLimit(opts.Limit)
	}
	cursor, err := s.collection.Find(ctx, toBSON(filter), find)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list %s documents: %w", s.name, err)
	}
	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("decode %s documents: %w", s.name, err)
	}
	return out, nil
}

func (s *Store[T]) Count(ctx context.Context, filter ports.Filter) (_ int64, err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.name, "count")
	defer span.End()
	defer s.observe("count", time.Now(), &err)

	count, err := s.collection.CountDocuments(ctx, toBSON(filter))
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("count %s documents: %w", s.name, err)
	}
	return count, nil
}

func (s *Store[T]) InsertMany(ctx context.Context, records []T) (err error) {
	if len(records) == 0 {
		return nil
	}
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.name, "insert_many")
	defer span.End()
	defer s.observe("insert_many", time.Now(), &err)

	docs := make([]interface{}, 0, len(records))
	for _, record := range records {
		docs = append(docs, record)
	}
	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert %s documents: %w", s.name, err)
	}
	return nil
}

func (s *Store[T]) UpdateOne(ctx context.Context, filter ports.Filter, update ports.Update, upsert bool) (err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.name, "update_one")
	defer span.End()
	defer s.observe("update_one", time.Now(), &err)

	_, err = s.collection.UpdateOne(ctx, toBSON(filter), bson.M(update), options.Update().SetUpsert(upsert))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update %s document: %w", s.name, err)
	}
	return nil
}

func (s *Store[T]) observe(operation string, start time.Time, errp *error) {
	if s.recorder == nil {
		return
	}
	err := *errp
	if errors.Is(err, ports.ErrNotFound) {
		err = nil
	}
	s.recorder.ObserveStoreOperation(systemName, s.name, operation, time.Since(start), err)
}

// toBSON never returns nil; the driver rejects nil filters.
func toBSON(filter ports.Filter) bson.M {
	if filter == nil {
		return bson.M{}
	}
	return bson.M(filter)
}

var _ ports.Store[bson.M] = (*Store[bson.M])(nil)
