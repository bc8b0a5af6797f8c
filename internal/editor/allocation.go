package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

type pendingAllocation struct {
	req      domain.AllocationRequest
	patch    domain.LinePatch
	snapshot domain.CartLine
	dirty    bool
	advance  bool
}

type inventoryInfo struct {
	uoms       []domain.UomDetail
	uomsErr    error
	stock      []domain.LocationStock
	stockErr   error
	defaultLoc string
	defaultErr error
}

// fetchInventory queries the oracle concurrently. Lookup failures are kept
// per answer so one outage does not hide the others.
func (e *Editor) fetchInventory(ctx context.Context, itemCode string, withStock bool) inventoryInfo {
	var info inventoryInfo
	var g errgroup.Group
	g.Go(func() error {
		info.uoms, info.uomsErr = e.oracle.LookupUomDetails(ctx, itemCode)
		return nil
	})
	if withStock {
		g.Go(func() error {
			info.stock, info.stockErr = e.oracle.LookupStockByLocation(ctx, itemCode)
			return nil
		})
		g.Go(func() error {
			info.defaultLoc, info.defaultErr = e.oracle.DefaultLocation(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return info
}

// usable reports whether an oracle answer can be acted on; stale last-known
// data counts.
func usable(err error) bool {
	return err == nil || errors.Is(err, store.ErrStale)
}

func degraded(err error) bool {
	return err != nil && !errors.Is(err, store.ErrUnknownItem) && !errors.Is(err, store.ErrNoDefaultStore)
}

// noteOracle raises one soft-failure notice when any lookup degraded.
func (e *Editor) noteOracle(row int, info inventoryInfo) {
	errs := []error{info.uomsErr, info.stockErr, info.defaultErr}
	stale, down := false, false
	for _, err := range errs {
		if !degraded(err) {
			continue
		}
		if errors.Is(err, store.ErrStale) {
			stale = true
		} else {
			down = true
		}
	}
	switch {
	case down:
		e.notice(domain.NoticeWarning, domain.NoticeOracleUnavailable, row,
			"inventory service unavailable; stock and price bounds not fully checked")
	case stale:
		e.notice(domain.NoticeWarning, domain.NoticeOracleUnavailable, row,
			"inventory service unavailable; using last known stock and prices")
	}
}

func conversionFactor(uoms []domain.UomDetail, uom string) decimal.Decimal {
	for _, d := range uoms {
		if strings.EqualFold(d.Uom, uom) {
			return d.Qty
		}
	}
	return decimal.Zero
}

// availableAt returns stock at location expressed in uom. An exact UOM entry
// wins; otherwise other units are converted through their factors.
func availableAt(stock []domain.LocationStock, location, uom string, uoms []domain.UomDetail) decimal.Decimal {
	for _, entry := range stock {
		if entry.Location != location {
			continue
		}
		for _, q := range entry.Quantities {
			if strings.EqualFold(q.Uom, uom) {
				return q.Qty
			}
		}
		target := conversionFactor(uoms, uom)
		if !target.IsPositive() {
			return decimal.Zero
		}
		total := decimal.Zero
		for _, q := range entry.Quantities {
			if f := conversionFactor(uoms, q.Uom); f.IsPositive() {
				total = total.Add(q.Qty.Mul(f).Div(target))
			}
		}
		return total
	}
	return decimal.Zero
}

func (e *Editor) isReconciled(lineID string, line domain.CartLine) bool {
	r, ok := e.reconciled[lineID]
	return ok && r.qty.Equal(line.Quantity) && strings.EqualFold(r.uom, line.Uom)
}

// unreconcile drops the mark once a committed patch touches the quantity,
// the unit or the split. Only ResolveAllocation sets it again.
func (e *Editor) unreconcile(lineID string, patch domain.LinePatch) {
	if patch.Quantity != nil || patch.Uom != nil || patch.WarehouseAllocations != nil {
		delete(e.reconciled, lineID)
	}
}

// allocationFor returns a request when the default location cannot cover
// final. prior supplies an existing split to resume.
func (e *Editor) allocationFor(lineID string, row int, trigger domain.Field, prior, final domain.CartLine, info inventoryInfo) *domain.AllocationRequest {
	if !usable(info.stockErr) || !usable(info.defaultErr) || info.defaultLoc == "" {
		return nil
	}
	if !final.Quantity.IsPositive() || e.isReconciled(lineID, final) {
		return nil
	}
	atDefault := availableAt(info.stock, info.defaultLoc, final.Uom, info.uoms)
	if final.Quantity.LessThanOrEqual(atDefault) {
		return nil
	}

	prefill := map[string]decimal.Decimal{}
	if strings.EqualFold(prior.Uom, final.Uom) {
		for _, a := range prior.WarehouseAllocations {
			prefill[a.Location] = prefill[a.Location].Add(a.Allocated)
		}
	}
	if len(prefill) == 0 {
		prefill[info.defaultLoc] = decimal.Min(final.Quantity, atDefault)
	}

	seen := map[string]bool{}
	candidates := make([]domain.AllocationCandidate, 0, len(info.stock)+1)
	add := func(location string) {
		if seen[location] {
			return
		}
		seen[location] = true
		candidates = append(candidates, domain.AllocationCandidate{
			Location:  location,
			Available: availableAt(info.stock, location, final.Uom, info.uoms),
			Allocated: prefill[location],
			Default:   location == info.defaultLoc,
		})
	}
	add(info.defaultLoc)
	for _, entry := range info.stock {
		add(entry.Location)
	}
	for _, a := range prior.WarehouseAllocations {
		if _, ok := prefill[a.Location]; ok {
			add(a.Location)
		}
	}

	return &domain.AllocationRequest{
		ID:              uuid.NewString(),
		Row:             row,
		LineID:          lineID,
		ItemCode:        final.ItemCode,
		Uom:             final.Uom,
		RequiredQty:     final.Quantity,
		DefaultLocation: info.defaultLoc,
		Trigger:         trigger,
		Candidates:      candidates,
		CreatedAt:       e.now(),
	}
}

func (e *Editor) openAllocation(req domain.AllocationRequest, patch domain.LinePatch, snapshot domain.CartLine, dirty, advance bool) {
	e.allocation = &pendingAllocation{req: req, patch: patch, snapshot: snapshot, dirty: dirty, advance: advance}
	e.logger.Info("allocation requested",
		zap.String("request", req.ID),
		zap.String("item_code", req.ItemCode),
		zap.Stringer("required", req.RequiredQty),
		zap.String("uom", req.Uom))
	e.emit(func(l Listener) { l.AllocationRequested(req) })
}

// ResolveAllocation commits the operator's split together with the change
// that raised the request. On a validation error the request stays open.
func (e *Editor) ResolveAllocation(ctx context.Context, id string, allocations []domain.WarehouseAllocation) error {
	e.lock()
	defer e.unlock()

	p := e.allocation
	if p == nil || p.req.ID != id {
		return ErrNoAllocation
	}

	available := make(map[string]decimal.Decimal, len(p.req.Candidates))
	for _, c := range p.req.Candidates {
		available[c.Location] = c.Available
	}
	total := decimal.Zero
	seen := map[string]bool{}
	kept := make([]domain.WarehouseAllocation, 0, len(allocations))
	for _, a := range allocations {
		limit, known := available[a.Location]
		switch {
		case !known:
			return &ValidationError{Err: ErrInvalidAllocation, Details: fmt.Sprintf("unknown location %q", a.Location)}
		case seen[a.Location]:
			return &ValidationError{Err: ErrInvalidAllocation, Details: fmt.Sprintf("location %q listed twice", a.Location)}
		case a.Allocated.IsNegative():
			return &ValidationError{Err: ErrInvalidAllocation, Details: fmt.Sprintf("negative quantity at %q", a.Location)}
		case a.Allocated.GreaterThan(limit):
			return &ValidationError{Err: ErrInvalidAllocation, Details: fmt.Sprintf("%s exceeds %s available at %q", a.Allocated, limit, a.Location)}
		}
		seen[a.Location] = true
		total = total.Add(a.Allocated)
		if a.Allocated.IsPositive() {
			kept = append(kept, a)
		}
	}
	if e.cfg.AllocationExactSum && !total.Equal(p.req.RequiredQty) {
		return &ValidationError{
			Err:     ErrAllocationSumMismatch,
			Details: fmt.Sprintf("allocated %s of %s %s", total, p.req.RequiredQty, p.req.Uom),
		}
	}

	index, _, err := e.lineByID(ctx, p.req.LineID)
	if err != nil {
		e.allocation = nil
		return err
	}
	qty := total
	patch := p.patch.Merge(domain.LinePatch{Quantity: &qty, WarehouseAllocations: &kept})
	updated, err := e.lines.UpdateLine(ctx, index, patch)
	if err != nil {
		return err
	}
	e.allocation = nil
	e.reconciled[p.req.LineID] = reconcileKey{qty: updated.Quantity, uom: updated.Uom}

	row := e.rowOfLine(ctx, p.req.LineID)
	e.emitCommitted(row, patch)
	e.logger.Info("allocation resolved", zap.String("request", id), zap.Int("locations", len(kept)))

	if p.advance && row >= 0 && row == e.focus.SelectedRow && e.focus.ActiveField == p.req.Trigger && !e.focus.Editing {
		if view, err := e.view(ctx); err == nil {
			e.advance(view, row, p.req.Trigger)
		}
	} else {
		e.emitFocus()
	}
	return nil
}

// AbandonAllocation drops the request and the change that raised it.
func (e *Editor) AbandonAllocation(ctx context.Context, id string) error {
	e.lock()
	defer e.unlock()

	p := e.allocation
	if p == nil || p.req.ID != id {
		return ErrNoAllocation
	}
	e.allocation = nil
	if p.dirty {
		e.restore(ctx, p.snapshot)
	}
	e.logger.Info("allocation abandoned", zap.String("request", id))
	e.emitFocus()
	return nil
}
