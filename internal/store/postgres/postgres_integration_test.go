package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cargodesk/backend/internal/domain"
	"cargodesk/backend/internal/store"
)

var _ store.Repository = (*Store)(nil)

func TestCargoLifecycleAgainstPostgres(t *testing.T) {
	databaseURL := os.Getenv("CARGODESK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set CARGODESK_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	branchID := time.Now().UnixNano() % 1_000_000_000
	code := fmt.Sprintf("IT%d", branchID%1000)
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM cargos WHERE branch_id = $1`, branchID)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM branches WHERE id = $1`, branchID)
	})
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO branches (id, name, code, invoice_start_number)
		VALUES ($1, 'Integration Branch', $2, 40)
	`, branchID, code); err != nil {
		t.Fatalf("seed branch: %v", err)
	}

	counter, err := s.FetchBranchInvoiceCounter(ctx, branchID)
	if err != nil {
		t.Fatalf("counter: %v", err)
	}
	if counter.StartNumber != 40 || counter.HighestObserved != 0 || counter.BranchCode != code {
		t.Fatalf("unexpected fresh counter: %+v", counter)
	}

	created, err := s.PersistCargo(ctx, domain.Payload{
		"booking_no":      code + ":000045",
		"branch_id":       branchID,
		"special_remarks": "keep upright",
		"items":           []any{map[string]any{"box_number": "1", "name": "Dates", "piece_no": "4", "weight": "0.000"}},
		"box_weight":      []any{"7.000"},
	})
	if err != nil {
		t.Fatalf("persist: %v", err)
	}

	counter, err = s.FetchBranchInvoiceCounter(ctx, branchID)
	if err != nil {
		t.Fatalf("counter after insert: %v", err)
	}
	if counter.HighestObserved != 45 {
		t.Fatalf("expected highest 45, got %d", counter.HighestObserved)
	}

	if err := s.PersistCargoUpdate(ctx, created.ID, domain.Payload{"total_cost": "10.00"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, err := s.FetchCargoByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if got.Record["total_cost"] != "10.00" || got.Record["special_remarks"] != "keep upright" {
		t.Fatalf("update did not merge: %+v", got.Record)
	}

	if _, err := s.FetchCargoByID(ctx, -1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.PersistCargoUpdate(ctx, -1, domain.Payload{"x": 1}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
}
