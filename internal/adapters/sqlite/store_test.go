package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/integrationos/gateway/internal/app/domain"
	"github.com/integrationos/gateway/internal/app/ports"
	"github.com/integrationos/gateway/internal/db"
	"github.com/integrationos/gateway/internal/observability"
)

func newTestDatabase(t *testing.T) *db.Database {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "control"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestStoreInsertManyAndGetOne(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.EventAccess](newTestDatabase(t), ports.CollectionEventAccess)

	records := []domain.EventAccess{
		{ID: "acc-1", AccessKey: "sk_live_1", Platform: "stripe", Active: true, Ownership: domain.Ownership{ClientID: "tenant-a"}},
		{ID: "acc-2", AccessKey: "sk_live_2", Platform: "shopify", Active: false, Ownership: domain.Ownership{ClientID: "tenant-b"}},
	}
	if err := store.InsertMany(ctx, records); err != nil {
		t.Fatalf("insert many: %v", err)
	}

	got, err := store.GetOne(ctx, ports.Filter{"accessKey": "sk_live_2", "deleted": false})
	if err != nil {
		t.Fatalf("get one: %v", err)
	}
	if got.ID != "acc-2" || got.Ownership.ClientID != "tenant-b" {
		t.Fatalf("unexpected access record: %+v", got)
	}

	got, err = store.GetOne(ctx, ports.Filter{"ownership.clientId": "tenant-a", "active": true})
	if err != nil {
		t.Fatalf("get one by nested field: %v", err)
	}
	if got.ID != "acc-1" {
		t.Fatalf("expected acc-1, got %q", got.ID)
	}
}

func TestStoreGetOneReturnsNotFound(t *testing.T) {
	store := NewStore[domain.Connection](newTestDatabase(t), ports.CollectionConnections)

	_, err := store.GetOne(context.Background(), ports.Filter{"key": "missing"})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreInsertManyIsAtomicOnDuplicateID(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.Event](newTestDatabase(t), ports.CollectionEvents)

	if err := store.InsertMany(ctx, []domain.Event{{ID: "evt-1"}}); err != nil {
		t.Fatalf("seed insert: %v", err)
	}
	err := store.InsertMany(ctx, []domain.Event{{ID: "evt-2"}, {ID: "evt-1"}})
	if err == nil {
		t.Fatal("expected duplicate id to fail the batch")
	}

	count, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected failed batch to leave 1 document, got %d", count)
	}
}

func TestStoreGetManyPagesInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.ConnectionDefinition](newTestDatabase(t), ports.CollectionConnectionDefinitions)

	defs := make([]domain.ConnectionDefinition, 0, 5)
	for i := 0; i < 5; i++ {
		defs = append(defs, domain.ConnectionDefinition{ID: fmt.Sprintf("def-%d", i), Platform: "stripe", Active: true})
	}
	defs = append(defs, domain.ConnectionDefinition{ID: "other", Platform: "shopify", Active: true})
	if err := store.InsertMany(ctx, defs); err != nil {
		t.Fatalf("insert many: %v", err)
	}

	page, err := store.GetMany(ctx, ports.Filter{"platform": "stripe"}, ports.ListOptions{Skip: 1, Limit: 2})
	if err != nil {
		t.Fatalf("get many: %v", err)
	}
	if len(page) != 2 || page[0].ID != "def-1" || page[1].ID != "def-2" {
		t.Fatalf("unexpected page: %+v", page)
	}

	all, err := store.GetMany(ctx, ports.Filter{"platform": "stripe"}, ports.ListOptions{})
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 stripe definitions, got %d", len(all))
	}

	total, err := store.Count(ctx, ports.Filter{"active": true})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 6 {
		t.Fatalf("expected 6 active definitions, got %d", total)
	}
}

func TestStoreUpdateOneUpsertsMetricAggregate(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.MetricDocument](newTestDatabase(t), ports.CollectionMetrics)

	update := ports.Update{
		"$inc":         map[string]any{"passthrough.total": 1, "passthrough.platforms.stripe.total": 1},
		"$set":         map[string]any{"updatedAt": int64(20)},
		"$setOnInsert": map[string]any{"createdAt": int64(10)},
	}
	for i := 0; i < 3; i++ {
		if err := store.UpdateOne(ctx, ports.Filter{"clientId": "tenant-a"}, update, true); err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
	}

	doc, err := store.GetOne(ctx, ports.Filter{"clientId": "tenant-a"})
	if err != nil {
		t.Fatalf("get aggregate: %v", err)
	}
	passthrough := doc["passthrough"].(map[string]any)
	if passthrough["total"] != float64(3) {
		t.Fatalf("expected total 3, got %v", passthrough["total"])
	}
	stripe := passthrough["platforms"].(map[string]any)["stripe"].(map[string]any)
	if stripe["total"] != float64(3) {
		t.Fatalf("expected platform total 3, got %v", stripe["total"])
	}
	if doc["createdAt"] != float64(10) {
		t.Fatalf("expected createdAt from first insert, got %v", doc["createdAt"])
	}

	count, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one aggregate document, got %d", count)
	}
}

func TestStoreUpdateOneWithoutUpsertIgnoresMissing(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.MetricDocument](newTestDatabase(t), ports.CollectionMetrics)

	err := store.UpdateOne(ctx, ports.Filter{"clientId": "nobody"}, ports.Update{"$inc": map[string]any{"total": 1}}, false)
	if err != nil {
		t.Fatalf("update without match: %v", err)
	}
	count, err := store.Count(ctx, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no documents, got %d", count)
	}
}

func TestStoreUpdateOneSetAndUnset(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.Connection](newTestDatabase(t), ports.CollectionConnections)

	if err := store.InsertMany(ctx, []domain.Connection{{ID: "conn-1", Key: "stripe::a", Secret: "cipher", Active: true}}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.UpdateOne(ctx, ports.Filter{"_id": "conn-1"}, ports.Update{
		"$set":   map[string]any{"active": false, "ownership": domain.Ownership{ClientID: "tenant-z"}},
		"$unset": map[string]any{"secret": ""},
	}, false)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.GetOne(ctx, ports.Filter{"_id": "conn-1"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Active || got.Secret != "" || got.Ownership.ClientID != "tenant-z" {
		t.Fatalf("unexpected connection after update: %+v", got)
	}
}

func TestStoreRejectsUnsupportedDocuments(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.MetricDocument](newTestDatabase(t), ports.CollectionMetrics)

	err := store.UpdateOne(ctx, ports.Filter{"clientId": "a"}, ports.Update{"$push": map[string]any{"x": 1}}, true)
	if !errors.Is(err, ErrUnsupportedUpdate) {
		t.Fatalf("expected ErrUnsupportedUpdate, got %v", err)
	}
	_, err = store.GetOne(ctx, ports.Filter{"clientId": []string{"a"}})
	if !errors.Is(err, ErrUnsupportedFilter) {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
}

func TestStoreConcurrentUpsertsDoNotLoseIncrements(t *testing.T) {
	ctx := context.Background()
	store := NewStore[domain.MetricDocument](newTestDatabase(t), ports.CollectionMetrics)

	const writers = 10
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.UpdateOne(ctx, ports.Filter{"clientId": "system"}, ports.Update{"$inc": map[string]any{"unified.total": 1}}, true)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent upsert: %v", err)
		}
	}

	doc, err := store.GetOne(ctx, ports.Filter{"clientId": "system"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if total := doc["unified"].(map[string]any)["total"]; total != float64(writers) {
		t.Fatalf("expected %d increments, got %v", writers, total)
	}
}

func TestStoreOperationsReportLatency(t *testing.T) {
	ctx := context.Background()
	database := newTestDatabase(t)
	telemetry := observability.NewMetrics()
	database.SetLatencyRecorder(telemetry)

	events := NewStore[domain.Event](database, ports.CollectionEvents)
	if err := events.InsertMany(ctx, []domain.Event{{ID: "evt-1", Name: "created"}}); err != nil {
		t.Fatalf("insert many: %v", err)
	}
	connections := NewStore[domain.Connection](database, ports.CollectionConnections)
	if _, err := connections.GetOne(ctx, ports.Filter{"key": "missing"}); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	seen := map[db.OperationKey]db.OperationLatency{}
	for _, entry := range database.OperationLatencies() {
		seen[entry.OperationKey] = entry
	}
	insert, ok := seen[db.OperationKey{Collection: "events", Operation: "insert_many"}]
	if !ok || insert.Count != 1 || insert.Errors != 0 {
		t.Fatalf("expected one insert_many sample, got %+v", seen)
	}
	lookup, ok := seen[db.OperationKey{Collection: "connections", Operation: "get_one"}]
	if !ok || lookup.Errors != 0 {
		t.Fatalf("expected a not-found lookup to count as success, got %+v", seen)
	}

	families, err := telemetry.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var observed uint64
	for _, family := range families {
		if family.GetName() != "gateway_store_operation_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			observed += metric.GetHistogram().GetSampleCount()
		}
	}
	if observed != 2 {
		t.Fatalf("expected two histogram samples, got %d", observed)
	}
}
