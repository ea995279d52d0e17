package mongo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func TestCargoLifecycleAgainstMongo(t *testing.T) {
	url := os.Getenv("CARGODESK_TEST_MONGO_URL")
	if url == "" {
		t.Skip("set CARGODESK_TEST_MONGO_URL to run mongo integration test")
	}

	ctx := context.Background()
	database := fmt.Sprintf("cargodesk_it_%d", time.Now().UnixNano())
	s, err := New(ctx, url, database)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.db.Drop(context.Background())
		_ = s.Close()
	})
	if err := s.EnsureIndexes(ctx); err != nil {
		t.Fatalf("indexes: %v", err)
	}

	if _, err := s.db.Collection(colBranches).InsertOne(ctx, bson.M{"_id": int64(7), "name": "Test", "code": "TS", "invoice_start_number": int64(1)}); err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	created, err := s.PersistCargo(ctx, domain.Payload{
		"booking_no": "TS:000012",
		"branch_id":  int64(7),
		"items":      []any{map[string]any{"box_number": "1", "name": "Dates", "piece_no": "4"}},
		"box_weight": []any{"7.000"},
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	items, ok := created.Record["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("payload not decoded into generic form: %#v", created.Record["items"])
	}

	counter, err := s.FetchBranchInvoiceCounter(ctx, 7)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if counter.HighestObserved != 12 || counter.BranchCode != "TS" {
		t.Fatalf("unexpected counter: %+v", counter)
	}

	if err := s.PersistCargoUpdate(ctx, created.ID, domain.Payload{"total_cost": "9.00"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.FetchCargoByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Record["total_cost"] != "9.00" || got.Record["booking_no"] != "TS:000012" {
		t.Fatalf("unexpected record: %+v", got.Record)
	}

	if _, err := s.FetchCargoByID(ctx, 999); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
