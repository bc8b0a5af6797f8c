package editor

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

type uomOption struct {
	uom  string
	rate decimal.Decimal
}

type uomTicket struct {
	lineID string
	line   domain.CartLine
}

// CycleUom switches the line at row to the next unit in the oracle's order
// and commits the unit and its rate together. An open edit is committed
// first. Without an oracle answer the line's cached rates are used, ordered
// by unit name; with neither it is a no-op.
func (e *Editor) CycleUom(ctx context.Context, row int) (CommitOutcome, error) {
	if err := e.settleEdit(ctx); err != nil {
		return CommitNoop, err
	}
	t, err := e.prepareUom(ctx, row)
	if err != nil {
		return CommitNoop, err
	}
	info := e.fetchInventory(ctx, t.line.ItemCode, true)
	return e.finishUom(ctx, t, info, "")
}

// ApplyUom sets a unit by name, e.g. from a scanner or a typed unit. An
// unknown unit restores the previous unit and its rate and raises a notice.
func (e *Editor) ApplyUom(ctx context.Context, row int, uom string) (CommitOutcome, error) {
	uom = strings.TrimSpace(uom)
	if uom == "" {
		return CommitRejected, nil
	}
	if err := e.settleEdit(ctx); err != nil {
		return CommitNoop, err
	}
	t, err := e.prepareUom(ctx, row)
	if err != nil {
		return CommitNoop, err
	}
	info := e.fetchInventory(ctx, t.line.ItemCode, true)
	return e.finishUom(ctx, t, info, uom)
}

// settleEdit commits an open edit on any row before a unit change.
func (e *Editor) settleEdit(ctx context.Context) error {
	if f, _ := e.state(); !f.Editing {
		return nil
	}
	return e.settle(ctx)
}

func (e *Editor) prepareUom(ctx context.Context, row int) (*uomTicket, error) {
	e.lock()
	defer e.unlock()

	view, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= len(view) {
		return nil, store.ErrRowOutOfRange
	}
	line := view[row].line
	if e.allocation != nil && e.allocation.req.LineID == line.ID {
		return nil, ErrAllocationPending
	}
	if e.pending[line.ID] {
		return nil, ErrCommitPending
	}
	if e.session != nil && e.session.lineID == line.ID {
		return nil, ErrEditInProgress
	}
	e.pending[line.ID] = true
	return &uomTicket{lineID: line.ID, line: line}, nil
}

func (e *Editor) finishUom(ctx context.Context, t *uomTicket, info inventoryInfo, requested string) (CommitOutcome, error) {
	e.lock()
	defer e.unlock()
	delete(e.pending, t.lineID)

	index, line, err := e.lineByID(ctx, t.lineID)
	if err != nil {
		return CommitDiscarded, nil
	}
	row := e.rowOfLine(ctx, t.lineID)
	if !strings.EqualFold(line.Uom, t.line.Uom) || !line.Quantity.Equal(t.line.Quantity) {
		e.notice(domain.NoticeInfo, domain.NoticeStaleResponse, row,
			"unit change on %s was not applied because the line changed", line.ItemCode)
		return CommitDiscarded, nil
	}

	e.noteOracle(row, info)
	options, fromOracle := uomOptions(info, line)
	if len(options) == 0 {
		return CommitNoop, nil
	}

	current := indexOfUom(options, line.Uom)
	var next uomOption
	if requested == "" {
		next = options[(max(current, 0)+1)%len(options)]
	} else {
		i := indexOfUom(options, requested)
		if i < 0 {
			return e.revertUom(ctx, index, row, line, options, current, requested)
		}
		next = options[i]
	}
	if strings.EqualFold(next.uom, line.Uom) && next.rate.Equal(line.StandardRate) {
		return CommitNoop, nil
	}

	uom, rate := next.uom, next.rate
	patch := domain.LinePatch{Uom: &uom, StandardRate: &rate}
	if fromOracle {
		patch.UomRates = make(map[string]decimal.Decimal, len(options))
		for _, o := range options {
			patch.UomRates[o.uom] = o.rate
		}
	}
	if len(line.WarehouseAllocations) > 0 && !strings.EqualFold(uom, line.Uom) {
		cleared := []domain.WarehouseAllocation{}
		patch.WarehouseAllocations = &cleared
	}

	final := line.Apply(patch)
	if req := e.allocationFor(t.lineID, row, domain.FieldUom, line, final, info); req != nil {
		e.openAllocation(*req, patch, line, false, false)
		return CommitAwaitingAllocation, nil
	}

	if _, err := e.lines.UpdateLine(ctx, index, patch); err != nil {
		return CommitRejected, err
	}
	e.unreconcile(t.lineID, patch)
	e.emitCommitted(row, patch)
	e.logger.Debug("uom changed", zap.String("line", t.lineID), zap.String("uom", uom))
	return CommitApplied, nil
}

// revertUom restores the line's unit with the rate that belongs to it.
func (e *Editor) revertUom(ctx context.Context, index, row int, line domain.CartLine, options []uomOption, current int, rejected string) (CommitOutcome, error) {
	rate := line.StandardRate
	if current >= 0 {
		rate = options[current].rate
	}
	if !rate.Equal(line.StandardRate) {
		uom := line.Uom
		patch := domain.LinePatch{Uom: &uom, StandardRate: &rate}
		if _, err := e.lines.UpdateLine(ctx, index, patch); err != nil {
			return CommitRejected, err
		}
		e.emitCommitted(row, patch)
	}
	e.notice(domain.NoticeWarning, domain.NoticeUnknownUom, row,
		"unit %q is not known for %s; restored %q at %s", rejected, line.ItemCode, line.Uom, rate)
	return CommitRejected, nil
}

// uomOptions lists the units to cycle through and whether they came from the
// oracle.
func uomOptions(info inventoryInfo, line domain.CartLine) ([]uomOption, bool) {
	if usable(info.uomsErr) && len(info.uoms) > 0 {
		options := make([]uomOption, 0, len(info.uoms))
		for _, d := range info.uoms {
			options = append(options, uomOption{uom: d.Uom, rate: d.Rate})
		}
		return options, true
	}
	if errors.Is(info.uomsErr, store.ErrUnknownItem) || len(line.UomRates) == 0 {
		return nil, false
	}
	names := make([]string, 0, len(line.UomRates))
	for uom := range line.UomRates {
		names = append(names, uom)
	}
	slices.Sort(names)
	options := make([]uomOption, len(names))
	for i, uom := range names {
		options[i] = uomOption{uom: uom, rate: line.UomRates[uom]}
	}
	return options, false
}

func indexOfUom(options []uomOption, uom string) int {
	for i, o := range options {
		if strings.EqualFold(o.uom, uom) {
			return i
		}
	}
	return -1
}
