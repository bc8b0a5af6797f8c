package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"centropos/backend/internal/domain"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	ruleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	cellStyle     = lipgloss.NewStyle().Padding(0, 1)
	selectedStyle = cellStyle.Background(lipgloss.Color("236"))
	activeStyle   = cellStyle.Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230"))
	editingStyle  = cellStyle.Background(lipgloss.Color("230")).Foreground(lipgloss.Color("235"))
	flaggedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("114"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62")).Padding(0, 1)
)

type column struct {
	title string
	width int
	field domain.Field
	right bool
}

var columns = []column{
	{"Description", 28, domain.FieldDescription, false},
	{"Qty", 9, domain.FieldQuantity, true},
	{"UOM", 8, domain.FieldUom, false},
	{"Disc %", 7, domain.FieldDiscount, true},
	{"Rate", 11, domain.FieldRate, true},
	{"", 3, domain.FieldActions, false},
}

const amountWidth = 13

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Cart") + " ")
	if m.filter != "" {
		b.WriteString(mutedStyle.Render("filter: " + m.filter))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderHeader() + "\n")
	b.WriteString(ruleStyle.Render(strings.Repeat("─", m.tableWidth())) + "\n")

	if len(m.lines) == 0 {
		b.WriteString(mutedStyle.Render("  no items, press a to add one") + "\n")
	}
	end := min(m.top+m.visibleRows(), len(m.lines))
	for row := m.top; row < end; row++ {
		b.WriteString(m.renderRow(row) + "\n")
	}

	b.WriteString(ruleStyle.Render(strings.Repeat("─", m.tableWidth())) + "\n")
	total := fmt.Sprintf("Total %s", m.total.StringFixed(2))
	b.WriteString(lipgloss.PlaceHorizontal(m.tableWidth(), lipgloss.Right, headerStyle.Render(total)) + "\n")

	switch m.mode {
	case modeAllocate:
		b.WriteString(m.renderAllocation() + "\n")
	case modeAdd, modeFilter:
		b.WriteString(m.prompt.View() + "\n")
	}

	if m.status != "" {
		style := infoStyle
		if m.isError {
			style = errorStyle
		}
		b.WriteString(style.Render(m.status) + "\n")
	} else if m.busy > 0 {
		b.WriteString(mutedStyle.Render("checking stock…") + "\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) tableWidth() int {
	width := amountWidth + 2
	for _, c := range columns {
		width += c.width + 2
	}
	return width
}

func (m Model) renderHeader() string {
	cells := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		cells = append(cells, cellStyle.Inherit(headerStyle).Render(fit(c.title, c.width, c.right)))
	}
	cells = append(cells, cellStyle.Inherit(headerStyle).Render(fit("Amount", amountWidth, true)))
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func (m Model) renderRow(row int) string {
	line := m.lines[row]
	selected := row == m.focus.SelectedRow
	flagged := row < len(m.flagged) && m.flagged[row]

	cells := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		text := fit(cellText(line, c.field), c.width, c.right)
		style := cellStyle
		switch {
		case selected && c.field == m.focus.ActiveField && m.focus.Editing:
			in := m.input
			in.Width = c.width - 1
			text = in.View()
			style = editingStyle.Width(c.width + 2)
		case selected && c.field == m.focus.ActiveField:
			style = activeStyle
		case selected:
			style = selectedStyle
		}
		if flagged && c.field == domain.FieldRate {
			style = style.Inherit(flaggedStyle)
		}
		cells = append(cells, style.Render(text))
	}
	amount := cellStyle
	if selected {
		amount = selectedStyle
	}
	cells = append(cells, amount.Render(fit(line.Amount().StringFixed(2), amountWidth, true)))
	return lipgloss.JoinHorizontal(lipgloss.Top, cells...)
}

func cellText(line domain.CartLine, field domain.Field) string {
	switch field {
	case domain.FieldDescription:
		label := line.Label()
		if len(line.WarehouseAllocations) > 1 {
			label += fmt.Sprintf(" (%d loc)", len(line.WarehouseAllocations))
		}
		return label
	case domain.FieldQuantity:
		return line.Quantity.String()
	case domain.FieldUom:
		return line.Uom
	case domain.FieldDiscount:
		return line.DiscountPercentage.String()
	case domain.FieldRate:
		return line.StandardRate.StringFixed(2)
	case domain.FieldActions:
		return "✕"
	}
	return ""
}

func (m Model) renderAllocation() string {
	req := m.alloc
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Allocate %s %s of %s", req.RequiredQty, req.Uom, req.ItemCode)) + "\n")
	b.WriteString(mutedStyle.Render("tab: next location  enter: confirm  esc: abandon") + "\n\n")
	for i, c := range req.Candidates {
		name := c.Location
		if c.Default {
			name += " *"
		}
		marker := "  "
		if i == m.allocFocus {
			marker = "> "
		}
		b.WriteString(fmt.Sprintf("%s%s %s %s\n",
			marker,
			fit(name, 24, false),
			mutedStyle.Render(fit("avail "+c.Available.String(), 14, false)),
			m.allocInputs[i].View()))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// fit pads or truncates s to exactly width display cells.
func fit(s string, width int, right bool) string {
	w := lipgloss.Width(s)
	if w > width {
		runes := []rune(s)
		for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
			runes = runes[:len(runes)-1]
		}
		return string(runes) + "…"
	}
	pad := strings.Repeat(" ", width-w)
	if right {
		return pad + s
	}
	return s + pad
}
