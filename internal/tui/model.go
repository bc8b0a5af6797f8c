// Package tui is the terminal cart grid: a bubbletea front end that drives
// an editor.Editor from the keyboard.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/editor"
	"centropos/backend/internal/store"
)

type mode int

const (
	modeGrid mode = iota
	modeAdd
	modeFilter
	modeAllocate
)

// Model is the cart grid screen.
type Model struct {
	ctx    context.Context
	ed     *editor.Editor
	oracle store.InventoryOracle
	bridge *bridge
	logger *zap.Logger

	keys keyMap
	help help.Model

	mode   mode
	input  textinput.Model
	prompt textinput.Model

	lines   []domain.CartLine
	flagged []bool
	focus   domain.FocusState
	total   decimal.Decimal
	filter  string

	alloc       *domain.AllocationRequest
	allocInputs []textinput.Model
	allocFocus  int

	status  string
	isError bool
	busy    int

	width  int
	height int
	top    int
}

type Options struct {
	Config editor.Config
	Logger *zap.Logger
}

// New builds the grid over a cart store. oracle is used both by the editor
// and to price newly added items.
func New(ctx context.Context, lines store.CartStore, oracle store.InventoryOracle, opts Options) Model {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	b := newBridge()
	ed := editor.New(lines, oracle, opts.Config, editor.WithListener(b), editor.WithLogger(opts.Logger))

	input := newInput(32)
	prompt := newInput(64)

	m := Model{
		ctx:    ctx,
		ed:     ed,
		oracle: oracle,
		bridge: b,
		logger: opts.Logger.Named("tui"),
		keys:   defaultKeys(),
		help:   help.New(),
		input:  input,
		prompt: prompt,
		height: 24,
		width:  100,
	}
	m.refresh()
	return m
}

// Editor exposes the engine behind the grid.
func (m Model) Editor() *editor.Editor { return m.ed }

func (m Model) Init() tea.Cmd {
	return m.bridge.wait()
}

// Close stops the editor timers and releases a blocked event send.
func (m Model) Close() {
	m.bridge.close()
	m.ed.Close()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.ed.SetViewport(m.top, m.visibleRows())
		return m, nil

	case eventMsg:
		m.handleEvent(msg.inner)
		m.refresh()
		return m, m.bridge.wait()

	case opDoneMsg:
		m.busy--
		m.drain()
		if msg.err != nil {
			m.setError(msg.op, msg.err)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.Close()
			return m, tea.Quit
		}
		switch m.mode {
		case modeAdd, modeFilter:
			return m.updatePrompt(msg)
		case modeAllocate:
			return m.updateAllocation(msg)
		}
		return m.updateGrid(msg)
	}
	return m, nil
}

func (m Model) updateGrid(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.focus.Editing {
		switch {
		case key.Matches(msg, m.keys.Enter):
			return m, m.keyCmd(domain.KeyEnter)
		case key.Matches(msg, m.keys.Escape):
			return m, m.keyCmd(domain.KeyEscape)
		case key.Matches(msg, m.keys.Up):
			return m, m.keyCmd(domain.KeyUp)
		case key.Matches(msg, m.keys.Down):
			return m, m.keyCmd(domain.KeyDown)
		}
		before := m.input.Value()
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		if value := m.input.Value(); value != before {
			if err := m.ed.UpdateBuffer(m.ctx, value); err != nil && !errors.Is(err, editor.ErrNotEditing) {
				m.setError("update", err)
			}
			m.drain()
			m.refreshLines()
		}
		return m, cmd
	}

	m.status = ""
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		return m, m.keyCmd(domain.KeyUp)
	case key.Matches(msg, m.keys.Down):
		return m, m.keyCmd(domain.KeyDown)
	case key.Matches(msg, m.keys.Left):
		return m, m.keyCmd(domain.KeyLeft)
	case key.Matches(msg, m.keys.Right):
		return m, m.keyCmd(domain.KeyRight)
	case key.Matches(msg, m.keys.Enter):
		return m, m.keyCmd(domain.KeyEnter)
	case key.Matches(msg, m.keys.Space):
		return m, m.keyCmd(domain.KeySpace)
	case key.Matches(msg, m.keys.Escape):
		return m, m.keyCmd(domain.KeyEscape)
	case key.Matches(msg, m.keys.Add):
		m.openPrompt(modeAdd, "item code [qty]: ", "")
		return m, nil
	case key.Matches(msg, m.keys.Filter):
		m.openPrompt(modeFilter, "filter: ", m.filter)
		return m, nil
	}
	return m, nil
}

func (m *Model) openPrompt(next mode, label, value string) {
	m.mode = next
	m.prompt.Prompt = label
	m.prompt.SetValue(value)
	m.prompt.CursorEnd()
	m.prompt.Focus()
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Escape):
		m.mode = modeGrid
		m.prompt.Blur()
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		value := strings.TrimSpace(m.prompt.Value())
		current := m.mode
		m.mode = modeGrid
		m.prompt.Blur()
		if current == modeFilter {
			m.filter = value
			ed := m.ed
			return m, m.op("filter", func(ctx context.Context) error {
				return ed.SetFilter(ctx, value)
			})
		}
		if value == "" {
			return m, nil
		}
		return m, m.addCmd(value)
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

func (m Model) updateAllocation(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.alloc == nil {
		m.mode = modeGrid
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Escape):
		id, ed := m.alloc.ID, m.ed
		return m, m.op("abandon", func(ctx context.Context) error {
			return ed.AbandonAllocation(ctx, id)
		})
	case key.Matches(msg, m.keys.Next), key.Matches(msg, m.keys.Down):
		m.focusAllocation(m.allocFocus + 1)
		return m, nil
	case key.Matches(msg, m.keys.Prev), key.Matches(msg, m.keys.Up):
		m.focusAllocation(m.allocFocus - 1)
		return m, nil
	case key.Matches(msg, m.keys.Enter):
		split, err := m.allocationEntries()
		if err != nil {
			m.setError("allocate", err)
			return m, nil
		}
		id, ed := m.alloc.ID, m.ed
		return m, m.op("allocate", func(ctx context.Context) error {
			return ed.ResolveAllocation(ctx, id, split)
		})
	}
	var cmd tea.Cmd
	m.allocInputs[m.allocFocus], cmd = m.allocInputs[m.allocFocus].Update(msg)
	return m, cmd
}

// newInput returns a prompt-less text input with a steady cursor.
func newInput(limit int) textinput.Model {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = limit
	in.Cursor.SetMode(cursor.CursorStatic)
	return in
}

func (m *Model) focusAllocation(index int) {
	if len(m.allocInputs) == 0 {
		return
	}
	index = (index + len(m.allocInputs)) % len(m.allocInputs)
	m.allocInputs[m.allocFocus].Blur()
	m.allocFocus = index
	m.allocInputs[index].Focus()
}

func (m Model) allocationEntries() ([]domain.WarehouseAllocation, error) {
	split := make([]domain.WarehouseAllocation, 0, len(m.allocInputs))
	for i, in := range m.allocInputs {
		raw := strings.TrimSpace(in.Value())
		if raw == "" {
			continue
		}
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", m.alloc.Candidates[i].Location, raw)
		}
		split = append(split, domain.WarehouseAllocation{Location: m.alloc.Candidates[i].Location, Allocated: qty})
	}
	return split, nil
}

func (m *Model) openAllocation(req domain.AllocationRequest) {
	m.alloc = &req
	m.mode = modeAllocate
	m.allocInputs = make([]textinput.Model, len(req.Candidates))
	for i, c := range req.Candidates {
		in := newInput(16)
		if !c.Allocated.IsZero() {
			in.SetValue(c.Allocated.String())
		}
		m.allocInputs[i] = in
	}
	m.allocFocus = 0
	if len(m.allocInputs) > 0 {
		m.allocInputs[0].Focus()
	}
}

func (m *Model) closeAllocation() {
	m.alloc = nil
	m.allocInputs = nil
	if m.mode == modeAllocate {
		m.mode = modeGrid
	}
}

// keyCmd runs a grid key through the editor off the update loop, since a
// commit may wait on the inventory oracle.
func (m *Model) keyCmd(k domain.Key) tea.Cmd {
	ed := m.ed
	return m.op("key", func(ctx context.Context) error {
		return ed.HandleKey(ctx, k)
	})
}

func (m *Model) op(name string, fn func(context.Context) error) tea.Cmd {
	m.busy++
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: name, err: fn(ctx)}
	}
}

// addCmd prices a new line from the item's first unit and appends it.
func (m *Model) addCmd(input string) tea.Cmd {
	fields := strings.Fields(input)
	code := strings.ToUpper(fields[0])
	qty := decimal.NewFromInt(1)
	if len(fields) > 1 {
		parsed, err := decimal.NewFromString(fields[1])
		if err != nil || !parsed.IsPositive() {
			m.setError("add", fmt.Errorf("quantity %q is not a positive number", fields[1]))
			return nil
		}
		qty = parsed
	}

	oracle, ed := m.oracle, m.ed
	return m.op("add", func(ctx context.Context) error {
		uoms, err := oracle.LookupUomDetails(ctx, code)
		if err != nil && !errors.Is(err, store.ErrStale) {
			return err
		}
		line := domain.CartLine{ItemCode: code, ItemName: code, Quantity: qty, Uom: domain.DefaultUom}
		if len(uoms) > 0 {
			line.Uom = uoms[0].Uom
			line.StandardRate = uoms[0].Rate
			line.UomRates = make(map[string]decimal.Decimal, len(uoms))
			for _, u := range uoms {
				line.UomRates[u.Uom] = u.Rate
			}
		}
		created, err := ed.AddLine(ctx, line)
		if err != nil {
			return err
		}
		lines, err := ed.Lines(ctx)
		if err != nil {
			return err
		}
		for row, l := range lines {
			if l.ID == created.ID {
				return ed.Select(ctx, row)
			}
		}
		return nil
	})
}

// drain handles events already queued by a finished editor call.
func (m *Model) drain() {
	for {
		select {
		case msg := <-m.bridge.events:
			m.handleEvent(msg)
		default:
			return
		}
	}
}

func (m *Model) handleEvent(msg tea.Msg) {
	switch msg := msg.(type) {
	case allocationMsg:
		m.openAllocation(msg.req)
	case noticeMsg:
		m.status = msg.notice.Message
		m.isError = msg.notice.Kind == domain.NoticeWarning
	case scrollMsg:
		m.scrollTo(msg.row)
	}
}

func (m *Model) setError(op string, err error) {
	m.logger.Debug("editor call failed", zap.String("op", op), zap.Error(err))
	m.status = err.Error()
	m.isError = true
}

// refresh re-reads everything the view shows from the editor.
func (m *Model) refresh() {
	m.refreshLines()
	m.focus = m.ed.Focus()
	if m.focus.Editing {
		if m.input.Value() != m.focus.Buffer {
			m.input.SetValue(m.focus.Buffer)
			m.input.CursorEnd()
		}
		m.input.Focus()
	} else {
		m.input.Blur()
	}

	if req, ok := m.ed.PendingAllocation(); ok {
		if m.alloc == nil || m.alloc.ID != req.ID {
			m.openAllocation(req)
		}
	} else if m.alloc != nil {
		m.closeAllocation()
	}
	m.scrollTo(m.focus.SelectedRow)
}

func (m *Model) refreshLines() {
	lines, err := m.ed.Lines(m.ctx)
	if err != nil {
		m.setError("lines", err)
		return
	}
	m.lines = lines
	m.flagged = make([]bool, len(lines))
	for row := range lines {
		m.flagged[row] = m.ed.Flagged(m.ctx, row)
	}
	if total, err := m.ed.Total(m.ctx); err == nil {
		m.total = total
	}
}

func (m *Model) visibleRows() int {
	// title, header, rule, footer, status, help
	return max(m.height-8, 1)
}

func (m *Model) scrollTo(row int) {
	if row < 0 {
		return
	}
	rows := m.visibleRows()
	switch {
	case row < m.top:
		m.top = row
	case row >= m.top+rows:
		m.top = row - rows + 1
	}
}
