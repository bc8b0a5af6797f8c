package editor

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"centropos/backend/internal/domain"
)

func TestNegativeQuantityIsRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newInventory(t), DefaultConfig(), sku1("5"))

	if err := f.editor.StartEdit(ctx, 0, domain.FieldQuantity); err != nil {
		t.Fatalf("start edit: %v", err)
	}
	_ = f.editor.UpdateBuffer(ctx, "2")
	_ = f.editor.UpdateBuffer(ctx, "-5")
	outcome, err := f.editor.CommitAndExit(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if outcome != CommitRejected {
		t.Fatalf("expected rejected, got %s", outcome)
	}
	if f.editor.Focus().Editing {
		t.Fatalf("expected edit mode to exit")
	}
	mustEqual(t, f.line(t, 0).Quantity, "5", "quantity")
}

func TestInvalidNumbersAreRejected(t *testing.T) {
	cases := []struct {
		field domain.Field
		text  string
	}{
		{domain.FieldQuantity, "abc"},
		{domain.FieldQuantity, ""},
		{domain.FieldRate, "-1"},
		{domain.FieldDiscount, "101"},
		{domain.FieldDiscount, "-0.5"},
	}
	for _, tc := range cases {
		f := newFixture(t, newInventory(t), DefaultConfig(), sku1("1"))
		before := f.line(t, 0)
		f.typeAndEnter(t, 0, tc.field, tc.text)
		after := f.line(t, 0)
		if !after.Quantity.Equal(before.Quantity) || !after.StandardRate.Equal(before.StandardRate) ||
			!after.DiscountPercentage.Equal(before.DiscountPercentage) {
			t.Fatalf("%s %q changed the line: %s -> %s", tc.field, tc.text, describe(before), describe(after))
		}
		if got := f.editor.Focus(); got.Editing || got.ActiveField != tc.field {
			t.Fatalf("%s %q: expected idle on the same field, got %+v", tc.field, tc.text, got)
		}
	}
}

func TestQuantityCommitClearsAllocations(t *testing.T) {
	line := sku1("5")
	line.WarehouseAllocations = []domain.WarehouseAllocation{
		{Location: "LocA", Allocated: d("3")},
		{Location: "LocB", Allocated: d("2")},
	}
	f := newFixture(t, newInventory(t), DefaultConfig(), line)

	f.typeAndEnter(t, 0, domain.FieldQuantity, "2")
	got := f.line(t, 0)
	mustEqual(t, got.Quantity, "2", "quantity")
	if len(got.WarehouseAllocations) != 0 {
		t.Fatalf("expected allocations cleared, got %+v", got.WarehouseAllocations)
	}
}

func TestDuplicateItemCodesAreIsolated(t *testing.T) {
	f := newFixture(t, newInventory(t), DefaultConfig(), sku1("1"), sku1("1"))

	f.typeAndEnter(t, 1, domain.FieldQuantity, "3")
	f.typeAndEnter(t, 1, domain.FieldDiscount, "50")

	first, second := f.line(t, 0), f.line(t, 1)
	mustEqual(t, first.Quantity, "1", "row 0 quantity")
	mustEqual(t, first.DiscountPercentage, "0", "row 0 discount")
	mustEqual(t, second.Quantity, "3", "row 1 quantity")
	mustEqual(t, second.DiscountPercentage, "50", "row 1 discount")
}

func TestOracleOutageLetsCommitProceed(t *testing.T) {
	f := newFixture(t, downOracle{}, DefaultConfig(), sku1("1"))

	f.typeAndEnter(t, 0, domain.FieldQuantity, "50")
	mustEqual(t, f.line(t, 0).Quantity, "50", "quantity")
	if !slices.Contains(f.rec.noticeCodes(), domain.NoticeOracleUnavailable) {
		t.Fatalf("expected oracle_unavailable notice, got %v", f.rec.noticeCodes())
	}
	if len(f.rec.allocations) != 0 {
		t.Fatalf("no allocation can be requested without stock data")
	}
}

func TestResponseForMovedFocusIsDiscarded(t *testing.T) {
	ctx := context.Background()
	gate := &gatedOracle{
		Inventory: newInventory(t),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	f := newFixture(t, gate, DefaultConfig(), sku1("1"), sku1("1"))

	if err := f.editor.StartEdit(ctx, 0, domain.FieldQuantity); err != nil {
		t.Fatalf("start edit: %v", err)
	}
	_ = f.editor.UpdateBuffer(ctx, "2")

	done := make(chan CommitOutcome, 1)
	go func() {
		outcome, _ := f.editor.CommitAndExit(ctx)
		done <- outcome
	}()

	select {
	case <-gate.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("oracle was never queried")
	}

	if err := f.editor.StartEdit(ctx, 0, domain.FieldQuantity); !errors.Is(err, ErrCommitPending) {
		t.Fatalf("expected ErrCommitPending while the commit is in flight, got %v", err)
	}
	if err := f.editor.Select(ctx, 1); err != nil {
		t.Fatalf("select: %v", err)
	}
	close(gate.release)

	select {
	case outcome := <-done:
		if outcome != CommitDiscarded {
			t.Fatalf("expected discarded, got %s", outcome)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("commit never finished")
	}
	mustEqual(t, f.line(t, 0).Quantity, "1", "row 0 quantity")
	mustEqual(t, f.line(t, 1).Quantity, "1", "row 1 quantity")
	if !slices.Contains(f.rec.noticeCodes(), domain.NoticeStaleResponse) {
		t.Fatalf("expected stale_response notice, got %v", f.rec.noticeCodes())
	}
}

func TestLiveUpdateIsProvisional(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newInventory(t), DefaultConfig(), sku1("1"))

	_ = f.editor.StartEdit(ctx, 0, domain.FieldRate)
	_ = f.editor.UpdateBuffer(ctx, "15")
	mustEqual(t, f.line(t, 0).StandardRate, "15", "provisional rate")

	f.rec.mu.Lock()
	last := f.rec.commits[len(f.rec.commits)-1]
	f.rec.mu.Unlock()
	if !last.Provisional {
		t.Fatalf("expected the live patch to be marked provisional")
	}

	total, err := f.editor.Total(ctx)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	mustEqual(t, total, "15", "live total")
}

func TestTotalAppliesDiscount(t *testing.T) {
	line := sku1("3")
	line.DiscountPercentage = d("10")
	f := newFixture(t, newInventory(t), DefaultConfig(), line, sku1("1"))

	total, err := f.editor.Total(context.Background())
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	mustEqual(t, total, "37", "total")
}
