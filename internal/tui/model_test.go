package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"centropos/backend/internal/editor"
	"centropos/backend/internal/store/memory"
)

func newGrid(t *testing.T) Model {
	t.Helper()
	cfg := editor.DefaultConfig()
	cfg.PriceWarningDuration = time.Hour
	inv, err := memory.NewSeeded(nil)
	require.NoError(t, err)
	m := New(context.Background(), memory.NewCartLines(), inv, Options{Config: cfg})
	t.Cleanup(m.Close)
	return m
}

// send feeds msg to the model and runs editor commands to completion.
func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	for cmd != nil {
		done, ok := cmd().(opDoneMsg)
		if !ok {
			break
		}
		next, cmd = next.Update(done)
	}
	return next.(Model)
}

func press(t *testing.T, m Model, keys ...tea.KeyType) Model {
	t.Helper()
	for _, k := range keys {
		m = send(t, m, tea.KeyMsg{Type: k})
	}
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return send(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func addItem(t *testing.T, m Model, entry string) Model {
	t.Helper()
	m = typeText(t, m, "a")
	require.Equal(t, modeAdd, m.mode)
	m = typeText(t, m, entry)
	return press(t, m, tea.KeyEnter)
}

func TestAddItemPricesFromFirstUnit(t *testing.T) {
	m := addItem(t, newGrid(t), "sku-air-600 2")

	require.Len(t, m.lines, 1)
	line := m.lines[0]
	assert.Equal(t, "SKU-AIR-600", line.ItemCode)
	assert.Equal(t, "Nos", line.Uom)
	assert.Equal(t, "4000", line.StandardRate.String())
	assert.Equal(t, "2", line.Quantity.String())
	assert.Len(t, line.UomRates, 2)
	assert.Equal(t, 0, m.focus.SelectedRow)
	assert.Equal(t, "8000", m.total.String())
	assert.Contains(t, m.View(), "SKU-AIR-600")
}

func TestAddUnknownItemShowsError(t *testing.T) {
	m := addItem(t, newGrid(t), "NOPE")
	assert.Empty(t, m.lines)
	assert.True(t, m.isError)
	assert.NotEmpty(t, m.status)
}

func TestQuantityOverDefaultStockOpensAllocation(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	m = press(t, m, tea.KeyRight, tea.KeyEnter)
	require.True(t, m.focus.Editing)
	assert.Equal(t, "1", m.input.Value())

	m = press(t, m, tea.KeyCtrlU)
	m = typeText(t, m, "30")
	assert.Equal(t, "30", m.lines[0].Quantity.String(), "live update")

	m = press(t, m, tea.KeyEnter)
	require.Equal(t, modeAllocate, m.mode)
	require.NotNil(t, m.alloc)
	require.Len(t, m.allocInputs, 2)
	assert.Equal(t, "Stores - CP", m.alloc.Candidates[0].Location)
	assert.Equal(t, "24", m.allocInputs[0].Value())
	assert.Contains(t, m.View(), "Allocate 30 Nos")

	m = press(t, m, tea.KeyTab)
	m = typeText(t, m, "6")
	m = press(t, m, tea.KeyEnter)

	assert.Equal(t, modeGrid, m.mode)
	assert.Nil(t, m.alloc)
	assert.Equal(t, "30", m.lines[0].Quantity.String())
	assert.Len(t, m.lines[0].WarehouseAllocations, 2)
}

func TestShortSplitKeepsDialogOpen(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	m = press(t, m, tea.KeyRight, tea.KeyEnter, tea.KeyCtrlU)
	m = typeText(t, m, "30")
	m = press(t, m, tea.KeyEnter)
	require.Equal(t, modeAllocate, m.mode)

	m = press(t, m, tea.KeyEnter)
	assert.Equal(t, modeAllocate, m.mode)
	assert.True(t, m.isError)
	assert.Contains(t, m.status, "allocated 24 of 30")
}

func TestEscapeAbandonsAllocation(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	m = press(t, m, tea.KeyRight, tea.KeyEnter, tea.KeyCtrlU)
	m = typeText(t, m, "30")
	m = press(t, m, tea.KeyEnter)
	require.Equal(t, modeAllocate, m.mode)

	m = press(t, m, tea.KeyEscape)
	assert.Equal(t, modeGrid, m.mode)
	assert.Equal(t, "1", m.lines[0].Quantity.String())
}

func TestSpaceCyclesUnit(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	m = press(t, m, tea.KeyRight, tea.KeyRight, tea.KeySpace)

	assert.Equal(t, "Box", m.lines[0].Uom)
	assert.Equal(t, "45000", m.lines[0].StandardRate.String())
}

func TestLowRateIsClampedAndFlagged(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	m = press(t, m, tea.KeyRight, tea.KeyRight, tea.KeyRight, tea.KeyRight, tea.KeyEnter, tea.KeyCtrlU)
	m = typeText(t, m, "100")
	m = press(t, m, tea.KeyEnter)

	assert.Equal(t, "3500", m.lines[0].StandardRate.String())
	assert.True(t, m.flagged[0])
	assert.True(t, m.isError)
	assert.True(t, strings.Contains(m.status, "3500"), m.status)
}

func TestEscapeCancelsEdit(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	m = press(t, m, tea.KeyRight, tea.KeyEnter, tea.KeyCtrlU)
	m = typeText(t, m, "7")
	m = press(t, m, tea.KeyEscape)

	assert.False(t, m.focus.Editing)
	assert.Equal(t, "1", m.lines[0].Quantity.String())
}

func TestFilterNarrowsRows(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	m = addItem(t, m, "SKU-MIE-01")
	require.Len(t, m.lines, 2)

	m = typeText(t, m, "/")
	m = typeText(t, m, "mie")
	m = press(t, m, tea.KeyEnter)

	require.Len(t, m.lines, 1)
	assert.Equal(t, "SKU-MIE-01", m.lines[0].ItemCode)
	assert.Contains(t, m.View(), "filter: mie")
}

func TestEnterOnActionsRemovesLine(t *testing.T) {
	m := addItem(t, newGrid(t), "SKU-AIR-600")
	for i := 0; i < 5; i++ {
		m = press(t, m, tea.KeyRight)
	}
	m = press(t, m, tea.KeyEnter)
	assert.Empty(t, m.lines)
	assert.Equal(t, -1, m.focus.SelectedRow)
}

func TestFitPadsAndTruncates(t *testing.T) {
	assert.Equal(t, "ab  ", fit("ab", 4, false))
	assert.Equal(t, "  ab", fit("ab", 4, true))
	assert.Equal(t, "abc…", fit("abcdef", 4, false))
}
