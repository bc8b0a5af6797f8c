package editor

import (
	"fmt"

	"centropos/backend/internal/domain"
)

// Listener receives engine events. Calls are made after the editor releases
// its lock, in the order the events happened. Row arguments are indices into
// the filtered view and are -1 when the line is not visible.
type Listener interface {
	FocusChanged(row int, field domain.Field, editing bool)
	LineCommitted(row int, patch domain.LinePatch)
	// AllocationRequested is answered with Editor.ResolveAllocation or
	// Editor.AbandonAllocation.
	AllocationRequested(req domain.AllocationRequest)
	LineRemoved(row int)
	Notice(n domain.Notice)
	LineFlagged(row int, on bool)
	ScrollIntoView(row int)
}

// NopListener ignores every event. Embed it to implement a subset.
type NopListener struct{}

func (NopListener) FocusChanged(int, domain.Field, bool) {}
func (NopListener) LineCommitted(int, domain.LinePatch) {}
func (NopListener) AllocationRequested(domain.AllocationRequest) {}
func (NopListener) LineRemoved(int) {}
func (NopListener) Notice(domain.Notice) {}
func (NopListener) LineFlagged(int, bool) {}
func (NopListener) ScrollIntoView(int) {}

// emit queues an event; it is dispatched by unlock.
func (e *Editor) emit(fn func(Listener)) {
	e.outbox = append(e.outbox, fn)
}

func (e *Editor) emitFocus() {
	row, field, editing := e.focus.SelectedRow, e.focus.ActiveField, e.focus.Editing
	e.emit(func(l Listener) { l.FocusChanged(row, field, editing) })
}

func (e *Editor) emitCommitted(row int, patch domain.LinePatch) {
	e.emit(func(l Listener) { l.LineCommitted(row, patch) })
}

func (e *Editor) notice(kind domain.NoticeKind, code string, row int, format string, args ...any) {
	n := domain.Notice{Kind: kind, Code: code, Row: row, Message: fmt.Sprintf(format, args...)}
	e.emit(func(l Listener) { l.Notice(n) })
}
