package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/db"
	"github.com/integrationos/gateway/internal/observability"
)

const systemName = "sqlite"

type documentDatabase interface {
	Conn() db.DBTX
	WithTx(ctx context.Context, fn func(tx db.DBTX) error) error
	ObserveOperation(collection, operation string, elapsed time.Duration, err error)
}

// Store keeps one collection of JSON documents in the shared documents table.
type Store[T any] struct {
	database   documentDatabase
	collection ports.Collection
}

// NewStore binds a document store for collection to database.
func NewStore[T any](database documentDatabase, collection ports.Collection) *Store[T] {
	return &Store[T]{database: database, collection: collection}
}

func (s *Store[T]) GetOne(ctx context.Context, filter ports.Filter) (out T, err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.collection.String(), "get_one")
	defer span.End()
	defer s.observe("get_one", time.Now(), &err)

	where, args, err := whereClause(s.collection, filter)
	if err != nil {
		span.RecordError(err)
		return out, err
	}
	var body string
	err = s.database.Conn().QueryRowContext(ctx,
		"SELECT body FROM documents WHERE "+where+" ORDER BY created_at, id LIMIT 1",
		args...,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return out, ports.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("get %s document: %w", s.collection, err)
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		span.RecordError(err)
		return out, fmt.Errorf("decode %s document: %w", s.collection, err)
	}
	return out, nil
}

func (s *Store[T]) GetMany(ctx context.Context, filter ports.Filter, opts ports.ListOptions) (_ []T, err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.collection.String(), "get_many")
	defer span.End()
	defer s.observe("get_many", time.Now(), &err)

	where, args, err := whereClause(s.collection, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = -1
	}
	skip := opts.Skip
	if skip < 0 {
		skip = 0
	}
	args = append(args, limit, skip)

	rows, err := s.database.Conn().QueryContext(ctx,
		"SELECT body FROM documents WHERE "+where+" ORDER BY created_at, id LIMIT ? OFFSET ?",
		args...,
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list %s documents: %w", s.collection, err)
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("scan %s document: %w", s.collection, err)
		}
		var item T
		if err := json.Unmarshal([]byte(body), &item); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("decode %s document: %w", s.collection, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list %s documents: %w", s.collection, err)
	}
	return out, nil
}

func (s *Store[T]) Count(ctx context.Context, filter ports.Filter) (_ int64, err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.collection.String(), "count")
	defer span.End()
	defer s.observe("count", time.Now(), &err)

	where, args, err := whereClause(s.collection, filter)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	var count int64
	if err := s.database.Conn().QueryRowContext(ctx,
		"SELECT COUNT(*) FROM documents WHERE "+where,
		args...,
	).Scan(&count); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("count %s documents: %w", s.collection, err)
	}
	return count, nil
}

// InsertMany writes every record in one transaction. A duplicate id fails the whole batch.
func (s *Store[T]) InsertMany(ctx context.Context, records []T) (err error) {
	if len(records) == 0 {
		return nil
	}
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.collection.String(), "insert_many")
	defer span.End()
	defer s.observe("insert_many", time.Now(), &err)

	docs := make([]document, 0, len(records))
	for _, record := range records {
		doc, err := toDocument(record)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("encode %s document: %w", s.collection, err)
		}
		docs = append(docs, doc)
	}

	now := time.Now().UnixMilli()
	err = s.database.WithTx(ctx, func(tx db.DBTX) error {
		for _, doc := range docs {
			if err := insertDocument(ctx, tx, s.collection, doc, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("insert %s documents: %w", s.collection, err)
	}
	return nil
}

// UpdateOne applies update to the first matching document. With upsert set and no match,
// a document seeded from the filter's equality fields is inserted. No match without upsert is not an error.
func (s *Store[T]) UpdateOne(ctx context.Context, filter ports.Filter, update ports.Update, upsert bool) (err error) {
	ctx, span := observability.StartStoreSpan(ctx, systemName, s.collection.String(), "update_one")
	defer span.End()
	defer s.observe("update_one", time.Now(), &err)

	ops, err := parseUpdate(update)
	if err != nil {
		span.RecordError(err)
		return err
	}
	where, args, err := whereClause(s.collection, filter)
	if err != nil {
		span.RecordError(err)
		return err
	}

	err = s.database.WithTx(ctx, func(tx db.DBTX) error {
		var id, body string
		err := tx.QueryRowContext(ctx,
			"SELECT id, body FROM documents WHERE "+where+" ORDER BY created_at, id LIMIT 1",
			args...,
		).Scan(&id, &body)
		now := time.Now().UnixMilli()

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if !upsert {
				return nil
			}
			doc := seedDocument(filter)
			if err := ops.apply(doc, true); err != nil {
				return err
			}
			return insertDocument(ctx, tx, s.collection, doc, now)
		case err != nil:
			return err
		}

		doc := document{}
		if err := json.Unmarshal([]byte(body), &doc); err != nil {
			return fmt.Errorf("decode stored document: %w", err)
		}
		if err := ops.apply(doc, false); err != nil {
			return err
		}
		doc["_id"] = id
		encoded, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?",
			string(encoded), now, s.collection.String(), id,
		)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("update %s document: %w", s.collection, err)
	}
	return nil
}

// observe reports one operation to the latency window. A lookup that finds nothing is not a failure.
func (s *Store[T]) observe(operation string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, ports.ErrNotFound) {
		err = nil
	}
	s.database.ObserveOperation(s.collection.String(), operation, time.Since(start), err)
}

func insertDocument(ctx context.Context, tx db.DBTX, collection ports.Collection, doc document, now int64) error {
	id, _ := doc["_id"].(string)
	if strings.TrimSpace(id) == "" {
		id = uuid.NewString()
		doc["_id"] = id
	}
	encoded, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		collection.String(), id, string(encoded), now, now,
	)
	return err
}

var _ ports.Store[map[string]any] = (*Store[map[string]any])(nil)
