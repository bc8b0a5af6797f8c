package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"centropos/backend/internal/domain"
)

func TestOracleRoundTripsUomsAndStock(t *testing.T) {
	databaseURL := os.Getenv("CENTROPOS_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set CENTROPOS_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	stamp := time.Now().UnixNano()
	code := fmt.Sprintf("SKU-IT-%d", stamp)
	main := fmt.Sprintf("Main IT %d", stamp)
	back := fmt.Sprintf("Back IT %d", stamp)

	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM location_stock WHERE item_code = $1`, code)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM item_uoms WHERE item_code = $1`, code)
		_, _ = s.db.ExecContext(ctx, `DELETE FROM stock_locations WHERE name IN ($1, $2)`, main, back)
	})

	err = s.UpsertUomDetails(ctx, code, []domain.UomDetail{
		{Uom: "Nos", Rate: decimal.NewFromInt(10), Qty: decimal.NewFromInt(1)},
		{Uom: "Box", Rate: decimal.NewFromInt(100), Qty: decimal.NewFromInt(12), MinPrice: decimal.NewFromInt(90)},
	})
	if err != nil {
		t.Fatalf("upsert uoms: %v", err)
	}
	if err := s.SetDefaultLocation(ctx, main); err != nil {
		t.Fatalf("set default: %v", err)
	}
	if err := s.SetStock(ctx, code, main, "Nos", decimal.NewFromInt(5)); err != nil {
		t.Fatalf("set stock main: %v", err)
	}
	if err := s.SetStock(ctx, code, back, "Box", decimal.NewFromInt(3)); err != nil {
		t.Fatalf("set stock back: %v", err)
	}

	uoms, err := s.LookupUomDetails(ctx, code)
	if err != nil {
		t.Fatalf("lookup uoms: %v", err)
	}
	if len(uoms) != 2 || uoms[0].Uom != "Nos" || !uoms[1].MinPrice.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("unexpected uoms: %+v", uoms)
	}

	stock, err := s.LookupStockByLocation(ctx, code)
	if err != nil {
		t.Fatalf("lookup stock: %v", err)
	}
	if len(stock) != 2 || stock[0].Location != main {
		t.Fatalf("expected default location first, got %+v", stock)
	}
	if !stock[1].Quantities[0].Qty.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected back stock: %+v", stock[1])
	}

	def, err := s.DefaultLocation(ctx)
	if err != nil || def != main {
		t.Fatalf("default location = %q, %v", def, err)
	}
}
