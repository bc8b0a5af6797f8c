package editor

import (
	"context"

	"go.uber.org/zap"

	"centropos/backend/internal/domain"
)

type verdict int

const (
	verdictReject verdict = iota
	verdictNoop
	verdictApply
	// verdictCheck needs the inventory oracle before it can be applied.
	verdictCheck
)

// ticket carries a commit across the unlocked oracle call.
type ticket struct {
	lineID   string
	field    domain.Field
	snapshot domain.CartLine
	dirty    bool
	patch    domain.LinePatch
	clamp    bool
	advance  bool
}

// CommitAndExit commits the open edit and leaves edit mode on the same cell.
func (e *Editor) CommitAndExit(ctx context.Context) (CommitOutcome, error) {
	return e.commitCurrent(ctx, false)
}

// Blur commits the open edit when the grid loses focus.
func (e *Editor) Blur(ctx context.Context) (CommitOutcome, error) {
	return e.commitCurrent(ctx, false)
}

// UpdateBuffer replaces the edit buffer. With LiveUpdate on, a parseable
// Quantity, Rate or Description is written to the line as a provisional patch.
func (e *Editor) UpdateBuffer(ctx context.Context, text string) error {
	e.lock()
	defer e.unlock()

	if !e.focus.Editing || e.session == nil {
		return ErrNotEditing
	}
	e.focus.Buffer = text
	if !e.cfg.LiveUpdate {
		return nil
	}

	var patch domain.LinePatch
	switch e.focus.ActiveField {
	case domain.FieldQuantity:
		qty, err := parseAmount(text)
		if err != nil {
			return nil
		}
		cleared := []domain.WarehouseAllocation{}
		patch = domain.LinePatch{Quantity: &qty, WarehouseAllocations: &cleared}
	case domain.FieldRate:
		rate, err := parseAmount(text)
		if err != nil {
			return nil
		}
		patch = domain.LinePatch{StandardRate: &rate}
	case domain.FieldDescription:
		label := text
		patch = domain.LinePatch{ItemDescription: &label}
	default:
		return nil
	}
	patch.Provisional = true

	index, _, err := e.lineByID(ctx, e.session.lineID)
	if err != nil {
		return err
	}
	if _, err := e.lines.UpdateLine(ctx, index, patch); err != nil {
		e.logger.Debug("provisional update refused", zap.Error(err))
		return nil
	}
	e.session.dirty = true
	e.emitCommitted(e.focus.SelectedRow, patch)
	return nil
}

func (e *Editor) commitCurrent(ctx context.Context, advance bool) (CommitOutcome, error) {
	t, outcome, err := e.prepareCommit(ctx, advance)
	if t == nil {
		return outcome, err
	}
	info := e.fetchInventory(ctx, t.snapshot.ItemCode, true)
	return e.finishCommit(ctx, t, info)
}

// prepareCommit validates the buffer. Commits that need no oracle answer are
// applied here; the rest are parked as a ticket with the row marked pending.
func (e *Editor) prepareCommit(ctx context.Context, advance bool) (*ticket, CommitOutcome, error) {
	e.lock()
	defer e.unlock()

	if !e.focus.Editing || e.session == nil {
		return nil, CommitNoop, nil
	}
	s := e.session
	row, field := e.focus.SelectedRow, e.focus.ActiveField
	patch, v := e.buildPatch(field, e.focus.Buffer, s.snapshot)

	switch v {
	case verdictReject:
		if s.dirty {
			e.restore(ctx, s.snapshot)
		}
		e.setFocus(row, field, false)
		e.logger.Debug("commit rejected", zap.String("line", s.lineID), zap.Stringer("field", field))
		return nil, CommitRejected, nil

	case verdictNoop:
		if s.dirty {
			e.restore(ctx, s.snapshot)
		}
		e.setFocus(row, field, false)
		if advance {
			if view, err := e.view(ctx); err == nil {
				e.advance(view, row, field)
			}
		}
		return nil, CommitNoop, nil

	case verdictApply:
		index, _, err := e.lineByID(ctx, s.lineID)
		if err != nil {
			e.setFocus(row, field, false)
			return nil, CommitDiscarded, err
		}
		if _, err := e.lines.UpdateLine(ctx, index, patch); err != nil {
			if s.dirty {
				e.restore(ctx, s.snapshot)
			}
			e.setFocus(row, field, false)
			return nil, CommitRejected, err
		}
		e.emitCommitted(row, patch)
		e.setFocus(row, field, false)
		if advance {
			if view, err := e.view(ctx); err == nil {
				e.advance(view, row, field)
			}
		}
		return nil, CommitApplied, nil
	}

	t := &ticket{
		lineID:   s.lineID,
		field:    field,
		snapshot: s.snapshot,
		dirty:    s.dirty,
		patch:    patch,
		clamp:    field == domain.FieldRate,
		advance:  advance,
	}
	e.pending[s.lineID] = true
	e.setFocus(row, field, false)
	return t, CommitNoop, nil
}

// finishCommit applies a parked commit once the oracle has answered, unless
// focus has moved off the row and field the commit was issued for.
func (e *Editor) finishCommit(ctx context.Context, t *ticket, info inventoryInfo) (CommitOutcome, error) {
	e.lock()
	defer e.unlock()
	delete(e.pending, t.lineID)

	view, err := e.view(ctx)
	if err != nil {
		return CommitDiscarded, err
	}
	row := e.focus.SelectedRow
	if row < 0 || row >= len(view) || view[row].line.ID != t.lineID || e.focus.ActiveField != t.field || e.focus.Editing {
		if t.dirty {
			e.restore(ctx, t.snapshot)
		}
		e.notice(domain.NoticeInfo, domain.NoticeStaleResponse, e.rowOfLine(ctx, t.lineID),
			"%s edit on %s was not applied because focus moved", t.field, t.snapshot.ItemCode)
		return CommitDiscarded, nil
	}
	index := view[row].index

	e.noteOracle(row, info)
	patch := t.patch
	final := t.snapshot.Apply(patch)

	if t.clamp && patch.StandardRate != nil {
		if bounds, ok := boundsFor(info, final.Uom); ok {
			if clamped, changed := ClampRate(*patch.StandardRate, bounds); changed {
				requested := *patch.StandardRate
				patch.StandardRate = &clamped
				final.StandardRate = clamped
				e.notice(domain.NoticeWarning, domain.NoticePriceClamped, row,
					"rate %s for %s is outside %s; set to %s", requested, final.Uom, describeBounds(bounds), clamped)
				e.flagLine(t.lineID, row)
			}
		}
	}

	if req := e.allocationFor(t.lineID, row, t.field, t.snapshot, final, info); req != nil {
		e.openAllocation(*req, patch, t.snapshot, t.dirty, t.advance)
		return CommitAwaitingAllocation, nil
	}

	if _, err := e.lines.UpdateLine(ctx, index, patch); err != nil {
		if t.dirty {
			e.restore(ctx, t.snapshot)
		}
		return CommitRejected, err
	}
	e.unreconcile(t.lineID, patch)
	e.emitCommitted(row, patch)
	e.logger.Debug("commit applied", zap.String("line", t.lineID), zap.Stringer("field", t.field))
	if t.advance {
		e.advance(view, row, t.field)
	}
	return CommitApplied, nil
}

func (e *Editor) buildPatch(field domain.Field, buffer string, snapshot domain.CartLine) (domain.LinePatch, verdict) {
	switch field {
	case domain.FieldDescription:
		if !e.cfg.AllowLabelEdit {
			return domain.LinePatch{}, verdictReject
		}
		if buffer == snapshot.Label() {
			return domain.LinePatch{}, verdictNoop
		}
		label := buffer
		return domain.LinePatch{ItemDescription: &label}, verdictApply

	case domain.FieldQuantity:
		qty, err := parseAmount(buffer)
		if err != nil {
			return domain.LinePatch{}, verdictReject
		}
		if qty.Equal(snapshot.Quantity) {
			if len(snapshot.WarehouseAllocations) > 0 {
				return domain.LinePatch{}, verdictNoop
			}
			// Unchanged but never checked against stock.
			return domain.LinePatch{Quantity: &qty}, verdictCheck
		}
		cleared := []domain.WarehouseAllocation{}
		return domain.LinePatch{Quantity: &qty, WarehouseAllocations: &cleared}, verdictCheck

	case domain.FieldDiscount:
		discount, err := parseDiscount(buffer)
		if err != nil {
			return domain.LinePatch{}, verdictReject
		}
		if discount.Equal(snapshot.DiscountPercentage) {
			return domain.LinePatch{}, verdictNoop
		}
		return domain.LinePatch{DiscountPercentage: &discount}, verdictApply

	case domain.FieldRate:
		rate, err := parseAmount(buffer)
		if err != nil {
			return domain.LinePatch{}, verdictReject
		}
		if rate.Equal(snapshot.StandardRate) {
			return domain.LinePatch{}, verdictNoop
		}
		return domain.LinePatch{StandardRate: &rate}, verdictCheck
	}
	return domain.LinePatch{}, verdictReject
}

func describeBounds(b domain.UomDetail) string {
	lo, hi := "-", "-"
	if b.MinPrice.IsPositive() {
		lo = b.MinPrice.String()
	}
	if b.MaxPrice.IsPositive() {
		hi = b.MaxPrice.String()
	}
	return "[" + lo + ", " + hi + "]"
}
