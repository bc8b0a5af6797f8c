package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestCartLinesAssignsIDsAndDefaultUom(t *testing.T) {
	lines := NewCartLines(
		domain.CartLine{ItemCode: "SKU1", Quantity: d("1"), StandardRate: d("10")},
		domain.CartLine{ItemCode: "SKU1", Quantity: d("2"), StandardRate: d("10")},
	)

	all, err := lines.Lines(context.Background())
	if err != nil {
		t.Fatalf("lines: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(all))
	}
	if all[0].ID == "" || all[0].ID == all[1].ID {
		t.Fatalf("expected distinct ids, got %q and %q", all[0].ID, all[1].ID)
	}
	if all[0].Uom != domain.DefaultUom {
		t.Fatalf("expected default uom, got %q", all[0].Uom)
	}
}

func TestCartLinesUpdateIsPositional(t *testing.T) {
	ctx := context.Background()
	lines := NewCartLines(
		domain.CartLine{ItemCode: "SKU1", Quantity: d("1")},
		domain.CartLine{ItemCode: "SKU1", Quantity: d("1")},
	)

	qty := d("7")
	if _, err := lines.UpdateLine(ctx, 1, domain.LinePatch{Quantity: &qty}); err != nil {
		t.Fatalf("update: %v", err)
	}

	first, _ := lines.Line(ctx, 0)
	second, _ := lines.Line(ctx, 1)
	if !first.Quantity.Equal(d("1")) || !second.Quantity.Equal(d("7")) {
		t.Fatalf("expected only row 1 to change, got %s and %s", first.Quantity, second.Quantity)
	}
}

func TestCartLinesRejectsAllocationMismatch(t *testing.T) {
	ctx := context.Background()
	lines := NewCartLines(domain.CartLine{ItemCode: "SKU1", Quantity: d("5")})

	allocs := []domain.WarehouseAllocation{{Location: "A", Allocated: d("3")}}
	_, err := lines.UpdateLine(ctx, 0, domain.LinePatch{WarehouseAllocations: &allocs})
	if !errors.Is(err, store.ErrInvalidLine) {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}

	qty := d("3")
	line, err := lines.UpdateLine(ctx, 0, domain.LinePatch{Quantity: &qty, WarehouseAllocations: &allocs})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(line.WarehouseAllocations) != 1 {
		t.Fatalf("expected allocations stored, got %+v", line.WarehouseAllocations)
	}

	cleared := []domain.WarehouseAllocation{}
	qty = d("4")
	line, err = lines.UpdateLine(ctx, 0, domain.LinePatch{Quantity: &qty, WarehouseAllocations: &cleared})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if line.WarehouseAllocations != nil {
		t.Fatalf("expected allocations cleared, got %+v", line.WarehouseAllocations)
	}
}

func TestCartLinesRejectsOutOfRangeDiscount(t *testing.T) {
	lines := NewCartLines(domain.CartLine{ItemCode: "SKU1", Quantity: d("1")})
	discount := d("101")
	_, err := lines.UpdateLine(context.Background(), 0, domain.LinePatch{DiscountPercentage: &discount})
	if !errors.Is(err, store.ErrInvalidLine) {
		t.Fatalf("expected ErrInvalidLine, got %v", err)
	}
}

func TestCartLinesRemove(t *testing.T) {
	ctx := context.Background()
	lines := NewCartLines(
		domain.CartLine{ItemCode: "A", Quantity: d("1")},
		domain.CartLine{ItemCode: "B", Quantity: d("1")},
	)
	if err := lines.RemoveLine(ctx, 0); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := lines.RemoveLine(ctx, 5); !errors.Is(err, store.ErrRowOutOfRange) {
		t.Fatalf("expected ErrRowOutOfRange, got %v", err)
	}
	all, _ := lines.Lines(ctx)
	if len(all) != 1 || all[0].ItemCode != "B" {
		t.Fatalf("unexpected lines after remove: %+v", all)
	}
}

func TestInventoryStockListsDefaultFirst(t *testing.T) {
	ctx := context.Background()
	inv := NewInventory("Main")
	if err := inv.UpsertUomDetails(ctx, "sku1", []domain.UomDetail{{Uom: "Nos", Rate: d("10"), Qty: d("1")}}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := inv.SetStock(ctx, "SKU1", "Back", "Nos", d("9")); err != nil {
		t.Fatalf("set back: %v", err)
	}
	if err := inv.SetStock(ctx, "SKU1", "Main", "Nos", d("2")); err != nil {
		t.Fatalf("set main: %v", err)
	}

	stock, err := inv.LookupStockByLocation(ctx, "SKU1")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(stock) != 2 || stock[0].Location != "Main" || stock[1].Location != "Back" {
		t.Fatalf("unexpected stock order: %+v", stock)
	}

	if _, err := inv.LookupUomDetails(ctx, "missing"); !errors.Is(err, store.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem, got %v", err)
	}
	if err := inv.SetStock(ctx, "missing", "Main", "Nos", d("1")); !errors.Is(err, store.ErrUnknownItem) {
		t.Fatalf("expected ErrUnknownItem for stock, got %v", err)
	}
}

func TestSeededUsersAreHashed(t *testing.T) {
	t.Setenv("SEED_ADMIN_PASSWORD", "a-secret")
	t.Setenv("SEED_TERMINAL_PASSWORD", "t-secret")

	inv, err := NewSeeded(nil)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	users, err := inv.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 seeded users, got %d", len(users))
	}
	for _, u := range users {
		if u.Password == "a-secret" || u.Password == "t-secret" {
			t.Fatalf("password for %s stored in plain text", u.Username)
		}
	}
	if _, err := inv.DefaultLocation(context.Background()); err != nil {
		t.Fatalf("seeded default location: %v", err)
	}
}
