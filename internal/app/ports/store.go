package ports

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.GetOne when no document matches the filter.
var ErrNotFound = errors.New("document not found")

// Collection names one document collection of the control database.
type Collection string

const (
	CollectionEvents                     Collection = "events"
	CollectionMetrics                    Collection = "metrics"
	CollectionEventAccess                Collection = "event-access"
	CollectionConnections                Collection = "connections"
	CollectionConnectionDefinitions      Collection = "connection-definitions"
	CollectionConnectionOAuthDefinitions Collection = "connection-oauth-definitions"
	CollectionConnectionModelDefinitions Collection = "connection-model-definitions"
	CollectionCommonModels               Collection = "common-models"
	CollectionCommonEnums                Collection = "common-enums"
)

func (c Collection) String() string {
	return string(c)
}

// Filter selects documents by field equality. Keys may be dotted paths into embedded documents.
type Filter map[string]any

// Update is an operator document ($set, $inc, $setOnInsert, $unset).
type Update map[string]any

// ListOptions pages a GetMany call. A zero Limit means no limit.
type ListOptions struct {
	Skip  int64
	Limit int64
}

// Store is the persistence contract for one collection. Every call maps to exactly
// one backing operation; retry policy belongs to the caller.
type Store[T any] interface {
	GetOne(ctx context.Context, filter Filter) (T, error)
	GetMany(ctx context.Context, filter Filter, opts ListOptions) ([]T, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	InsertMany(ctx context.Context, records []T) error
	UpdateOne(ctx context.Context, filter Filter, update Update, upsert bool) error
}
