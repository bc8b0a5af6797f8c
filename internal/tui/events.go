package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/editor"
)

type (
	focusMsg      struct{}
	committedMsg  struct{ row int }
	removedMsg    struct{ row int }
	allocationMsg struct{ req domain.AllocationRequest }
	noticeMsg     struct{ notice domain.Notice }
	flaggedMsg    struct {
		row int
		on  bool
	}
	scrollMsg struct{ row int }

	// opDoneMsg ends every editor call made from a command.
	opDoneMsg struct {
		op  string
		err error
	}
)

// bridge forwards editor events into the program as messages. Sends block
// until the model reads them or the program quits.
type bridge struct {
	events chan tea.Msg
	done   chan struct{}
}

var _ editor.Listener = (*bridge)(nil)

func newBridge() *bridge {
	return &bridge{events: make(chan tea.Msg, 64), done: make(chan struct{})}
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case b.events <- msg:
	case <-b.done:
	}
}

func (b *bridge) close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

func (b *bridge) FocusChanged(int, domain.Field, bool)     { b.send(focusMsg{}) }
func (b *bridge) LineCommitted(row int, _ domain.LinePatch) { b.send(committedMsg{row: row}) }
func (b *bridge) AllocationRequested(req domain.AllocationRequest) {
	b.send(allocationMsg{req: req})
}
func (b *bridge) LineRemoved(row int)          { b.send(removedMsg{row: row}) }
func (b *bridge) Notice(n domain.Notice)       { b.send(noticeMsg{notice: n}) }
func (b *bridge) LineFlagged(row int, on bool) { b.send(flaggedMsg{row: row, on: on}) }
func (b *bridge) ScrollIntoView(row int)       { b.send(scrollMsg{row: row}) }

// wait delivers the next event that arrives outside an editor call, such as
// a price flag expiring.
func (b *bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.events:
			return eventMsg{msg}
		case <-b.done:
			return nil
		}
	}
}

type eventMsg struct{ inner tea.Msg }
