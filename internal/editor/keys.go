package editor

import (
	"context"

	"centropos/backend/internal/domain"
)

// HandleKey maps grid keys onto editor operations.
//
// While an allocation request is open only Escape (abandon) is accepted.
// Enter commits and advances; in idle mode Enter or Space opens a text
// field, cycles the unit on the Uom column and Enter removes the row on the
// Actions column. Space while editing belongs to the text input.
func (e *Editor) HandleKey(ctx context.Context, key domain.Key) error {
	f, allocating := e.state()
	if allocating {
		if key != domain.KeyEscape {
			return ErrAllocationPending
		}
		req, ok := e.PendingAllocation()
		if !ok {
			return nil
		}
		return e.AbandonAllocation(ctx, req.ID)
	}

	switch key {
	case domain.KeyUp:
		return e.Navigate(ctx, domain.DirUp)
	case domain.KeyDown:
		return e.Navigate(ctx, domain.DirDown)
	case domain.KeyLeft:
		return e.Navigate(ctx, domain.DirLeft)
	case domain.KeyRight:
		return e.Navigate(ctx, domain.DirRight)
	case domain.KeyEscape:
		return e.CancelEdit(ctx)
	case domain.KeyEnter, domain.KeySpace:
		if f.Editing {
			if key == domain.KeySpace {
				return nil
			}
			_, err := e.commitCurrent(ctx, true)
			return err
		}
		return e.activate(ctx, f, key)
	}
	return nil
}

func (e *Editor) activate(ctx context.Context, f domain.FocusState, key domain.Key) error {
	if f.SelectedRow < 0 {
		return nil
	}
	switch f.ActiveField {
	case domain.FieldActions:
		if key != domain.KeyEnter {
			return nil
		}
		return e.RemoveLine(ctx, f.SelectedRow)
	case domain.FieldUom:
		_, err := e.CycleUom(ctx, f.SelectedRow)
		return err
	default:
		if !e.editable(f.ActiveField) {
			return nil
		}
		return e.StartEdit(ctx, f.SelectedRow, f.ActiveField)
	}
}
