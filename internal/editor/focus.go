package editor

import (
	"context"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

// Select moves focus to row without opening an edit session. An open edit on
// another row is committed first.
func (e *Editor) Select(ctx context.Context, row int) error {
	f, allocating := e.state()
	if allocating {
		return ErrAllocationPending
	}
	if f.Editing && f.SelectedRow == row {
		return nil
	}
	if err := e.settle(ctx); err != nil {
		return err
	}

	e.lock()
	defer e.unlock()
	if e.allocation != nil {
		return ErrAllocationPending
	}
	view, err := e.view(ctx)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(view) {
		return store.ErrRowOutOfRange
	}
	e.setFocus(row, e.focus.ActiveField, false)
	return nil
}

// StartEdit opens an edit session on a text field. The buffer is always
// seeded from the target row's committed value.
func (e *Editor) StartEdit(ctx context.Context, row int, field domain.Field) error {
	f, allocating := e.state()
	if allocating {
		return ErrAllocationPending
	}
	if f.Editing && f.SelectedRow == row && f.ActiveField == field {
		return nil
	}
	if err := e.settle(ctx); err != nil {
		return err
	}

	e.lock()
	defer e.unlock()
	if e.allocation != nil {
		return ErrAllocationPending
	}
	view, err := e.view(ctx)
	if err != nil {
		return err
	}
	return e.beginEdit(view, row, field)
}

// Navigate moves focus one step. An open edit is committed first; vertical
// moves keep editing the same field on the new row, horizontal moves land
// idle on the new field.
func (e *Editor) Navigate(ctx context.Context, dir domain.Direction) error {
	f, allocating := e.state()
	if allocating {
		return ErrAllocationPending
	}

	reopen := false
	if f.Editing {
		outcome, err := e.commitCurrent(ctx, false)
		if err != nil {
			return err
		}
		switch outcome {
		case CommitAwaitingAllocation:
			return ErrAllocationPending
		case CommitDiscarded:
			return nil
		case CommitApplied, CommitNoop:
			reopen = dir.Vertical()
		}
	}

	e.lock()
	defer e.unlock()
	if e.allocation != nil {
		return ErrAllocationPending
	}
	view, err := e.view(ctx)
	if err != nil {
		return err
	}

	row, field := e.focus.SelectedRow, e.focus.ActiveField
	if row >= len(view) {
		row = len(view) - 1
	}
	switch dir {
	case domain.DirUp, domain.DirDown:
		if len(view) == 0 {
			return nil
		}
		switch {
		case row < 0 && dir == domain.DirDown:
			row = 0
		case row < 0:
			row = len(view) - 1
		case dir == domain.DirUp:
			row = max(row-1, 0)
		default:
			row = min(row+1, len(view)-1)
		}
		if reopen && e.beginEdit(view, row, field) == nil {
			return nil
		}
	case domain.DirLeft:
		if row < 0 {
			return nil
		}
		field = field.Step(-1)
	case domain.DirRight:
		if row < 0 {
			return nil
		}
		field = field.Step(1)
	}
	e.setFocus(row, field, false)
	return nil
}

// CancelEdit discards the buffer and restores any provisional values.
func (e *Editor) CancelEdit(ctx context.Context) error {
	e.lock()
	defer e.unlock()
	if !e.focus.Editing || e.session == nil {
		return nil
	}
	if e.session.dirty {
		e.restore(ctx, e.session.snapshot)
	}
	e.setFocus(e.focus.SelectedRow, e.focus.ActiveField, false)
	return nil
}

func (e *Editor) state() (domain.FocusState, bool) {
	e.lock()
	defer e.unlock()
	return e.focus, e.allocation != nil
}

func (e *Editor) editable(field domain.Field) bool {
	if !field.TextInput() {
		return false
	}
	return field != domain.FieldDescription || e.cfg.AllowLabelEdit
}

func (e *Editor) beginEdit(view []viewRow, row int, field domain.Field) error {
	if row < 0 || row >= len(view) {
		return store.ErrRowOutOfRange
	}
	if !e.editable(field) {
		return ErrNotEditable
	}
	line := view[row].line
	if e.pending[line.ID] {
		return ErrCommitPending
	}

	e.session = &editSession{lineID: line.ID, snapshot: line}
	e.focus = domain.FocusState{
		SelectedRow: row,
		ActiveField: field,
		Editing:     true,
		Buffer:      seedBuffer(line, field),
	}
	e.emitFocus()
	e.scrollIfNeeded(row)
	return nil
}

// setFocus moves focus; leaving edit mode drops the session and buffer.
func (e *Editor) setFocus(row int, field domain.Field, editing bool) {
	next := domain.FocusState{SelectedRow: row, ActiveField: field, Editing: editing}
	if editing {
		next.Buffer = e.focus.Buffer
	} else {
		e.session = nil
	}
	if next == e.focus {
		return
	}
	e.focus = next
	e.emitFocus()
	e.scrollIfNeeded(row)
}

// advance moves to the field after the one just committed.
func (e *Editor) advance(view []viewRow, row int, field domain.Field) {
	next := field.Step(1)
	if next == field {
		return
	}
	if e.editable(next) && e.beginEdit(view, row, next) == nil {
		return
	}
	e.setFocus(row, next, false)
}

func (e *Editor) scrollIfNeeded(row int) {
	if row < 0 || e.viewHeight <= 0 {
		return
	}
	switch {
	case row < e.viewTop:
		e.viewTop = row
	case row >= e.viewTop+e.viewHeight:
		e.viewTop = row - e.viewHeight + 1
	default:
		return
	}
	e.emit(func(l Listener) { l.ScrollIntoView(row) })
}

func seedBuffer(line domain.CartLine, field domain.Field) string {
	switch field {
	case domain.FieldDescription:
		return line.Label()
	case domain.FieldQuantity:
		return line.Quantity.String()
	case domain.FieldDiscount:
		return line.DiscountPercentage.String()
	case domain.FieldRate:
		return line.StandardRate.String()
	}
	return ""
}
