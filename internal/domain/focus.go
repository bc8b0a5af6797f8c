package domain

import "strings"

type Field int

// Field order is the horizontal navigation order of the grid.
const (
	FieldDescription Field = iota
	FieldQuantity
	FieldUom
	FieldDiscount
	FieldRate
	FieldActions
)

var fieldNames = [...]string{"description", "quantity", "uom", "discount", "rate", "actions"}

func (f Field) String() string {
	if f < FieldDescription || f > FieldActions {
		return "unknown"
	}
	return fieldNames[f]
}

func ParseField(name string) (Field, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range fieldNames {
		if candidate == name {
			return Field(i), true
		}
	}
	return 0, false
}

// Step moves delta places in field order, clamped at both ends.
func (f Field) Step(delta int) Field {
	next := int(f) + delta
	if next < int(FieldDescription) {
		next = int(FieldDescription)
	}
	if next > int(FieldActions) {
		next = int(FieldActions)
	}
	return Field(next)
}

// TextInput reports whether the field is edited through a text buffer.
func (f Field) TextInput() bool {
	switch f {
	case FieldDescription, FieldQuantity, FieldDiscount, FieldRate:
		return true
	}
	return false
}

func (f Field) Numeric() bool {
	return f == FieldQuantity || f == FieldDiscount || f == FieldRate
}

type Direction int

const (
	DirUp Direction = iota
	DirDown
	DirLeft
	DirRight
)

func (d Direction) Vertical() bool {
	return d == DirUp || d == DirDown
}

type Key int

const (
	KeyUp Key = iota
	KeyDown
	KeyLeft
	KeyRight
	KeyEnter
	KeyEscape
	KeySpace
)

// FocusState is transient grid focus. SelectedRow indexes the filtered view
// and is -1 when nothing is selected.
type FocusState struct {
	SelectedRow int    `json:"selected_row"`
	ActiveField Field  `json:"active_field"`
	Editing     bool   `json:"editing"`
	Buffer      string `json:"buffer,omitempty"`
}

func NoFocus() FocusState {
	return FocusState{SelectedRow: -1, ActiveField: FieldDescription}
}
