package editor

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"centropos/backend/internal/domain"
)

// ClampRate bounds rate to the unit's [MinPrice, MaxPrice]. A zero rate is a
// deliberate waiver and bypasses the bounds; a bound <= 0 is unset.
func ClampRate(rate decimal.Decimal, bounds domain.UomDetail) (decimal.Decimal, bool) {
	if rate.IsZero() {
		return rate, false
	}
	if bounds.MinPrice.IsPositive() && rate.LessThan(bounds.MinPrice) {
		return bounds.MinPrice, true
	}
	if bounds.MaxPrice.IsPositive() && rate.GreaterThan(bounds.MaxPrice) {
		return bounds.MaxPrice, true
	}
	return rate, false
}

func boundsFor(info inventoryInfo, uom string) (domain.UomDetail, bool) {
	if !usable(info.uomsErr) {
		return domain.UomDetail{}, false
	}
	for _, d := range info.uoms {
		if strings.EqualFold(d.Uom, uom) {
			return d, true
		}
	}
	return domain.UomDetail{}, false
}

// Flagged reports whether the line at row carries a price warning.
func (e *Editor) Flagged(ctx context.Context, row int) bool {
	e.lock()
	defer e.unlock()
	view, err := e.view(ctx)
	if err != nil || row < 0 || row >= len(view) {
		return false
	}
	f, ok := e.flags[view[row].line.ID]
	return ok && e.now().Before(f.until)
}

func (e *Editor) flagLine(lineID string, row int) {
	d := e.cfg.PriceWarningDuration
	if d <= 0 {
		return
	}
	if old, ok := e.flags[lineID]; ok {
		old.timer.Stop()
	}
	e.flagGen++
	gen := e.flagGen
	f := &lineFlag{until: e.now().Add(d), gen: gen}
	f.timer = time.AfterFunc(d, func() { e.expireFlag(lineID, gen) })
	e.flags[lineID] = f
	e.emit(func(l Listener) { l.LineFlagged(row, true) })
}

func (e *Editor) expireFlag(lineID string, gen uint64) {
	e.lock()
	defer e.unlock()
	f, ok := e.flags[lineID]
	if !ok || f.gen != gen {
		return
	}
	delete(e.flags, lineID)
	row := e.rowOfLine(context.Background(), lineID)
	e.emit(func(l Listener) { l.LineFlagged(row, false) })
}
