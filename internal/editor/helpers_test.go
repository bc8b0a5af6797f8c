package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
	"centropos/backend/internal/store/memory"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type focusEvent struct {
	row     int
	field   domain.Field
	editing bool
}

type recorder struct {
	mu          sync.Mutex
	focus       []focusEvent
	commits     []domain.LinePatch
	allocations []domain.AllocationRequest
	removed     []int
	notices     []domain.Notice
	scrolls     []int
	flags       chan bool
}

func newRecorder() *recorder {
	return &recorder{flags: make(chan bool, 8)}
}

func (r *recorder) FocusChanged(row int, field domain.Field, editing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focus = append(r.focus, focusEvent{row, field, editing})
}

func (r *recorder) LineCommitted(_ int, patch domain.LinePatch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits = append(r.commits, patch)
}

func (r *recorder) AllocationRequested(req domain.AllocationRequest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations = append(r.allocations, req)
}

func (r *recorder) LineRemoved(row int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, row)
}

func (r *recorder) Notice(n domain.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, n)
}

func (r *recorder) LineFlagged(_ int, on bool) {
	r.flags <- on
}

func (r *recorder) ScrollIntoView(row int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scrolls = append(r.scrolls, row)
}

func (r *recorder) noticeCodes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	codes := make([]string, len(r.notices))
	for i, n := range r.notices {
		codes[i] = n.Code
	}
	return codes
}

func (r *recorder) lastAllocation(t *testing.T) domain.AllocationRequest {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.allocations) == 0 {
		t.Fatalf("expected an allocation request")
	}
	return r.allocations[len(r.allocations)-1]
}

// newInventory seeds SKU1 with Nos/Box and stock at LocA (default) and LocB.
func newInventory(t *testing.T) *memory.Inventory {
	t.Helper()
	ctx := context.Background()
	inv := memory.NewInventory("LocA")
	err := inv.UpsertUomDetails(ctx, "SKU1", []domain.UomDetail{
		{Uom: "Nos", Rate: d("10"), Qty: d("1"), MinPrice: d("8"), MaxPrice: d("20")},
		{Uom: "Box", Rate: d("100"), Qty: d("12")},
	})
	if err != nil {
		t.Fatalf("seed uoms: %v", err)
	}
	for _, s := range []struct {
		loc string
		qty string
	}{{"LocA", "3"}, {"LocB", "4"}} {
		if err := inv.SetStock(ctx, "SKU1", s.loc, "Nos", d(s.qty)); err != nil {
			t.Fatalf("seed stock: %v", err)
		}
	}
	return inv
}

func sku1(qty string) domain.CartLine {
	return domain.CartLine{
		ItemCode:     "SKU1",
		ItemName:     "Sample item",
		Quantity:     d(qty),
		Uom:          "Nos",
		StandardRate: d("10"),
	}
}

type fixture struct {
	editor *Editor
	lines  *memory.CartLines
	rec    *recorder
}

func newFixture(t *testing.T, oracle store.InventoryOracle, cfg Config, lines ...domain.CartLine) fixture {
	t.Helper()
	cart := memory.NewCartLines(lines...)
	rec := newRecorder()
	e := New(cart, oracle, cfg, WithListener(rec))
	t.Cleanup(e.Close)
	return fixture{editor: e, lines: cart, rec: rec}
}

func (f fixture) line(t *testing.T, row int) domain.CartLine {
	t.Helper()
	line, err := f.lines.Line(context.Background(), row)
	if err != nil {
		t.Fatalf("line %d: %v", row, err)
	}
	return *line
}

// typeAndEnter opens field on row, replaces the buffer and presses Enter.
func (f fixture) typeAndEnter(t *testing.T, row int, field domain.Field, text string) {
	t.Helper()
	ctx := context.Background()
	if err := f.editor.StartEdit(ctx, row, field); err != nil {
		t.Fatalf("start edit: %v", err)
	}
	if err := f.editor.UpdateBuffer(ctx, text); err != nil {
		t.Fatalf("update buffer: %v", err)
	}
	if err := f.editor.HandleKey(ctx, domain.KeyEnter); err != nil {
		t.Fatalf("enter: %v", err)
	}
}

var errRefused = errors.New("dial tcp 127.0.0.1:8080: connect: connection refused")

type downOracle struct{}

func (downOracle) LookupUomDetails(context.Context, string) ([]domain.UomDetail, error) {
	return nil, errRefused
}

func (downOracle) LookupStockByLocation(context.Context, string) ([]domain.LocationStock, error) {
	return nil, errRefused
}

func (downOracle) DefaultLocation(context.Context) (string, error) {
	return "", errRefused
}

// gatedOracle blocks stock lookups until release is closed.
type gatedOracle struct {
	*memory.Inventory
	entered chan struct{}
	release chan struct{}
}

func (g *gatedOracle) LookupStockByLocation(ctx context.Context, itemCode string) ([]domain.LocationStock, error) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return g.Inventory.LookupStockByLocation(ctx, itemCode)
}

func liveConfig() Config {
	cfg := DefaultConfig()
	cfg.PriceWarningDuration = 20 * time.Millisecond
	return cfg
}

func mustEqual(t *testing.T, got decimal.Decimal, want string, what string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Fatalf("%s = %s, want %s", what, got, want)
	}
}

func describe(line domain.CartLine) string {
	return fmt.Sprintf("%s %s %s @ %s", line.ItemCode, line.Quantity, line.Uom, line.StandardRate)
}
