package editor

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

type Config struct {
	// AllowLabelEdit makes the Description column enterable.
	AllowLabelEdit bool
	// LiveUpdate writes provisional values to the line on every buffer change.
	LiveUpdate bool
	// AllocationExactSum requires a split to add up to the required quantity.
	// When false the operator's total becomes the line quantity.
	AllocationExactSum bool
	// PriceWarningDuration is how long a clamped line stays flagged.
	PriceWarningDuration time.Duration
}

func DefaultConfig() Config {
	return Config{
		LiveUpdate:           true,
		AllocationExactSum:   true,
		PriceWarningDuration: 4 * time.Second,
	}
}

type Option func(*Editor)

func WithListener(l Listener) Option {
	return func(e *Editor) {
		if l != nil {
			e.listener = l
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Editor) {
		if now != nil {
			e.now = now
		}
	}
}

type editSession struct {
	lineID   string
	snapshot domain.CartLine
	// dirty is set once a provisional value reached the store.
	dirty bool
}

type reconcileKey struct {
	qty decimal.Decimal
	uom string
}

type lineFlag struct {
	until time.Time
	timer *time.Timer
	gen   uint64
}

type viewRow struct {
	index int
	line  domain.CartLine
}

// Editor is the line editing engine of one sale. It is safe for concurrent
// use; oracle queries run without holding the editor lock.
type Editor struct {
	mu       sync.Mutex
	cfg      Config
	lines    store.CartStore
	oracle   store.InventoryOracle
	listener Listener
	logger   *zap.Logger
	now      func() time.Time

	focus      domain.FocusState
	session    *editSession
	filter     string
	viewTop    int
	viewHeight int

	pending    map[string]bool
	allocation *pendingAllocation
	reconciled map[string]reconcileKey
	flags      map[string]*lineFlag
	flagGen    uint64

	outbox []func(Listener)
}

func New(lines store.CartStore, oracle store.InventoryOracle, cfg Config, opts ...Option) *Editor {
	if oracle == nil {
		oracle = offlineOracle{}
	}
	e := &Editor{
		cfg:        cfg,
		lines:      lines,
		oracle:     oracle,
		listener:   NopListener{},
		logger:     zap.NewNop(),
		now:        time.Now,
		focus:      domain.NoFocus(),
		pending:    make(map[string]bool),
		reconciled: make(map[string]reconcileKey),
		flags:      make(map[string]*lineFlag),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("editor")
	return e
}

func (e *Editor) lock() {
	e.mu.Lock()
}

// unlock releases the editor and then dispatches queued events.
func (e *Editor) unlock() {
	events := e.outbox
	e.outbox = nil
	e.mu.Unlock()
	for _, ev := range events {
		ev(e.listener)
	}
}

// Close stops pending flag timers.
func (e *Editor) Close() {
	e.lock()
	defer e.unlock()
	for id, f := range e.flags {
		f.timer.Stop()
		delete(e.flags, id)
	}
}

func (e *Editor) Focus() domain.FocusState {
	e.lock()
	defer e.unlock()
	return e.focus
}

// PendingAllocation returns the open allocation request, if any.
func (e *Editor) PendingAllocation() (domain.AllocationRequest, bool) {
	e.lock()
	defer e.unlock()
	if e.allocation == nil {
		return domain.AllocationRequest{}, false
	}
	return e.allocation.req, true
}

// Lines returns the visible lines in view order.
func (e *Editor) Lines(ctx context.Context) ([]domain.CartLine, error) {
	e.lock()
	defer e.unlock()
	view, err := e.view(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CartLine, len(view))
	for i, r := range view {
		out[i] = r.line
	}
	return out, nil
}

// Total sums every line of the sale, filtered or not.
func (e *Editor) Total(ctx context.Context) (decimal.Decimal, error) {
	lines, err := e.lines.Lines(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Amount())
	}
	return total, nil
}

func (e *Editor) AddLine(ctx context.Context, line domain.CartLine) (*domain.CartLine, error) {
	e.lock()
	defer e.unlock()

	created, err := e.lines.AddLine(ctx, line)
	if err != nil {
		return nil, err
	}
	if row := e.rowOfLine(ctx, created.ID); row >= 0 {
		e.emitCommitted(row, domain.RestorePatch(*created))
	}
	return created, nil
}

// RemoveLine deletes the line at the given view row.
func (e *Editor) RemoveLine(ctx context.Context, row int) error {
	e.lock()
	defer e.unlock()

	view, err := e.view(ctx)
	if err != nil {
		return err
	}
	if row < 0 || row >= len(view) {
		return store.ErrRowOutOfRange
	}
	line := view[row].line
	if e.allocation != nil && e.allocation.req.LineID == line.ID {
		return ErrAllocationPending
	}
	if e.pending[line.ID] {
		return ErrCommitPending
	}
	if err := e.lines.RemoveLine(ctx, view[row].index); err != nil {
		return err
	}

	if e.session != nil && e.session.lineID == line.ID {
		e.session = nil
		e.focus.Editing = false
		e.focus.Buffer = ""
	}
	if f, ok := e.flags[line.ID]; ok {
		f.timer.Stop()
		delete(e.flags, line.ID)
	}
	delete(e.reconciled, line.ID)
	e.emit(func(l Listener) { l.LineRemoved(row) })
	e.logger.Debug("line removed", zap.Int("row", row), zap.String("item_code", line.ItemCode))

	remaining := len(view) - 1
	selected := e.focus.SelectedRow
	switch {
	case remaining == 0:
		selected = -1
	case selected > row:
		selected--
	case selected >= remaining:
		selected = remaining - 1
	}
	if e.allocation != nil {
		e.allocation.req.Row = e.rowOfLine(ctx, e.allocation.req.LineID)
	}
	e.setFocus(selected, e.focus.ActiveField, e.focus.Editing)
	return nil
}

// SetFilter narrows the view to lines whose code, name or label contains
// query (case-insensitive). Focus follows the selected line when it stays
// visible.
func (e *Editor) SetFilter(ctx context.Context, query string) error {
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
	focusedID := ""
	if r := e.focus.SelectedRow; r >= 0 && r < len(view) {
		focusedID = view[r].line.ID
	}

	e.filter = strings.TrimSpace(query)
	row := -1
	if focusedID != "" {
		row = e.rowOfLine(ctx, focusedID)
	}
	e.setFocus(row, e.focus.ActiveField, false)
	return nil
}

// SetViewport records the rows the rendering surface currently shows.
func (e *Editor) SetViewport(top, height int) {
	e.lock()
	defer e.unlock()
	e.viewTop = max(top, 0)
	e.viewHeight = max(height, 0)
	e.scrollIfNeeded(e.focus.SelectedRow)
}

// settle commits an open edit before an operation that changes the view.
func (e *Editor) settle(ctx context.Context) error {
	outcome, err := e.commitCurrent(ctx, false)
	if err != nil {
		return err
	}
	if outcome == CommitAwaitingAllocation {
		return ErrAllocationPending
	}
	return nil
}

func (e *Editor) view(ctx context.Context) ([]viewRow, error) {
	lines, err := e.lines.Lines(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]viewRow, 0, len(lines))
	for i, line := range lines {
		if e.matches(line) {
			rows = append(rows, viewRow{index: i, line: line})
		}
	}
	return rows, nil
}

func (e *Editor) matches(line domain.CartLine) bool {
	if e.filter == "" {
		return true
	}
	q := strings.ToLower(e.filter)
	return strings.Contains(strings.ToLower(line.ItemCode), q) ||
		strings.Contains(strings.ToLower(line.ItemName), q) ||
		strings.Contains(strings.ToLower(line.ItemDescription), q)
}

// lineByID resolves a line to its current store index.
func (e *Editor) lineByID(ctx context.Context, id string) (int, domain.CartLine, error) {
	lines, err := e.lines.Lines(ctx)
	if err != nil {
		return -1, domain.CartLine{}, err
	}
	for i, line := range lines {
		if line.ID == id {
			return i, line, nil
		}
	}
	return -1, domain.CartLine{}, store.ErrNotFound
}

func (e *Editor) rowOfLine(ctx context.Context, id string) int {
	view, err := e.view(ctx)
	if err != nil {
		return -1
	}
	for i, r := range view {
		if r.line.ID == id {
			return i
		}
	}
	return -1
}

// restore writes the snapshot back over provisional values.
func (e *Editor) restore(ctx context.Context, snapshot domain.CartLine) {
	index, _, err := e.lineByID(ctx, snapshot.ID)
	if err != nil {
		return
	}
	patch := domain.RestorePatch(snapshot)
	if _, err := e.lines.UpdateLine(ctx, index, patch); err != nil {
		e.logger.Warn("restore snapshot failed", zap.String("line", snapshot.ID), zap.Error(err))
		return
	}
	e.emitCommitted(e.rowOfLine(ctx, snapshot.ID), patch)
}

type offlineOracle struct{}

func (offlineOracle) LookupUomDetails(context.Context, string) ([]domain.UomDetail, error) {
	return nil, store.ErrOracleUnavailable
}

func (offlineOracle) LookupStockByLocation(context.Context, string) ([]domain.LocationStock, error) {
	return nil, store.ErrOracleUnavailable
}

func (offlineOracle) DefaultLocation(context.Context) (string, error) {
	return "", store.ErrOracleUnavailable
}
