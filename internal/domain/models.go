package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultUom = "Nos"

var hundred = decimal.NewFromInt(100)

type WarehouseAllocation struct {
	Location  string          `json:"location"`
	Allocated decimal.Decimal `json:"allocated"`
}

type CartLine struct {
	ID                   string                     `json:"id"`
	ItemCode             string                     `json:"item_code"`
	ItemName             string                     `json:"item_name"`
	ItemDescription      string                     `json:"item_description"`
	Quantity             decimal.Decimal            `json:"quantity"`
	Uom                  string                     `json:"uom"`
	UomRates             map[string]decimal.Decimal `json:"uom_rates,omitempty"`
	DiscountPercentage   decimal.Decimal            `json:"discount_percentage"`
	StandardRate         decimal.Decimal            `json:"standard_rate"`
	WarehouseAllocations []WarehouseAllocation      `json:"warehouse_allocations,omitempty"`
}

// Label is the text shown in the Description column.
func (l CartLine) Label() string {
	if l.ItemDescription != "" {
		return l.ItemDescription
	}
	return l.ItemName
}

// Amount is quantity x rate less the line discount.
func (l CartLine) Amount() decimal.Decimal {
	gross := l.Quantity.Mul(l.StandardRate)
	if l.DiscountPercentage.IsZero() {
		return gross
	}
	return gross.Sub(gross.Mul(l.DiscountPercentage).Div(hundred))
}

func (l CartLine) AllocatedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, alloc := range l.WarehouseAllocations {
		total = total.Add(alloc.Allocated)
	}
	return total
}

// Clone returns a deep copy so callers never share maps or slices with the store.
func (l CartLine) Clone() CartLine {
	out := l
	if l.UomRates != nil {
		out.UomRates = make(map[string]decimal.Decimal, len(l.UomRates))
		for uom, rate := range l.UomRates {
			out.UomRates[uom] = rate
		}
	}
	if l.WarehouseAllocations != nil {
		out.WarehouseAllocations = append([]WarehouseAllocation(nil), l.WarehouseAllocations...)
	}
	return out
}

// LinePatch carries a partial update; nil fields are left untouched. A non-nil
// WarehouseAllocations pointing at an empty slice clears the split.
type LinePatch struct {
	ItemDescription      *string                    `json:"item_description,omitempty"`
	Quantity             *decimal.Decimal           `json:"quantity,omitempty"`
	Uom                  *string                    `json:"uom,omitempty"`
	StandardRate         *decimal.Decimal           `json:"standard_rate,omitempty"`
	DiscountPercentage   *decimal.Decimal           `json:"discount_percentage,omitempty"`
	UomRates             map[string]decimal.Decimal `json:"uom_rates,omitempty"`
	WarehouseAllocations *[]WarehouseAllocation     `json:"warehouse_allocations,omitempty"`
	Provisional          bool                       `json:"provisional,omitempty"`
}

func (p LinePatch) IsEmpty() bool {
	return p.ItemDescription == nil && p.Quantity == nil && p.Uom == nil && p.StandardRate == nil &&
		p.DiscountPercentage == nil && p.UomRates == nil && p.WarehouseAllocations == nil
}

// Merge overlays other on top of p.
func (p LinePatch) Merge(other LinePatch) LinePatch {
	out := p
	if other.ItemDescription != nil {
		out.ItemDescription = other.ItemDescription
	}
	if other.Quantity != nil {
		out.Quantity = other.Quantity
	}
	if other.Uom != nil {
		out.Uom = other.Uom
	}
	if other.StandardRate != nil {
		out.StandardRate = other.StandardRate
	}
	if other.DiscountPercentage != nil {
		out.DiscountPercentage = other.DiscountPercentage
	}
	if other.UomRates != nil {
		merged := make(map[string]decimal.Decimal, len(p.UomRates)+len(other.UomRates))
		for k, v := range p.UomRates {
			merged[k] = v
		}
		for k, v := range other.UomRates {
			merged[k] = v
		}
		out.UomRates = merged
	}
	if other.WarehouseAllocations != nil {
		out.WarehouseAllocations = other.WarehouseAllocations
	}
	out.Provisional = p.Provisional && other.Provisional
	return out
}

// RestorePatch rebuilds every editable field of a line, used to roll back
// live updates to a snapshot.
func RestorePatch(line CartLine) LinePatch {
	desc := line.ItemDescription
	qty := line.Quantity
	uom := line.Uom
	rate := line.StandardRate
	discount := line.DiscountPercentage
	allocs := append([]WarehouseAllocation{}, line.WarehouseAllocations...)
	return LinePatch{
		ItemDescription:      &desc,
		Quantity:             &qty,
		Uom:                  &uom,
		StandardRate:         &rate,
		DiscountPercentage:   &discount,
		WarehouseAllocations: &allocs,
	}
}

// UomDetail is one unit the item can be sold in. Qty is the conversion factor
// to the item's stock unit; a bound <= 0 means unset.
type UomDetail struct {
	Uom      string          `json:"uom"`
	Rate     decimal.Decimal `json:"rate"`
	Qty      decimal.Decimal `json:"qty"`
	MinPrice decimal.Decimal `json:"min_price"`
	MaxPrice decimal.Decimal `json:"max_price"`
}

type UomQty struct {
	Uom string          `json:"uom"`
	Qty decimal.Decimal `json:"qty"`
}

type LocationStock struct {
	Location   string   `json:"location"`
	Quantities []UomQty `json:"quantities"`
}

type AllocationCandidate struct {
	Location  string          `json:"location"`
	Available decimal.Decimal `json:"available"`
	Allocated decimal.Decimal `json:"allocated"`
	Default   bool            `json:"default"`
}

type AllocationRequest struct {
	ID              string                `json:"id"`
	Row             int                   `json:"row"`
	LineID          string                `json:"line_id"`
	ItemCode        string                `json:"item_code"`
	Uom             string                `json:"uom"`
	RequiredQty     decimal.Decimal       `json:"required_qty"`
	DefaultLocation string                `json:"default_location"`
	Trigger         Field                 `json:"trigger"`
	Candidates      []AllocationCandidate `json:"candidates"`
	CreatedAt       time.Time             `json:"created_at"`
}

// Proposed returns the candidates' current allocations as a split.
func (r AllocationRequest) Proposed() []WarehouseAllocation {
	out := make([]WarehouseAllocation, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if c.Allocated.IsPositive() {
			out = append(out, WarehouseAllocation{Location: c.Location, Allocated: c.Allocated})
		}
	}
	return out
}

type NoticeKind string

const (
	NoticeInfo    NoticeKind = "info"
	NoticeWarning NoticeKind = "warning"
)

const (
	NoticePriceClamped      = "price_clamped"
	NoticeUnknownUom        = "unknown_uom"
	NoticeOracleUnavailable = "oracle_unavailable"
	NoticeStaleResponse     = "stale_response"
)

type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Code    string     `json:"code"`
	Row     int        `json:"row"`
	Message string     `json:"message"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

// UserAccount is an internal persistence model for terminal credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type UomListResponse struct {
	ItemCode string      `json:"item_code"`
	Uoms     []UomDetail `json:"uoms"`
}

type StockResponse struct {
	ItemCode  string          `json:"item_code"`
	Locations []LocationStock `json:"locations"`
}

type DefaultLocationResponse struct {
	Location string `json:"location"`
}

// Apply returns a copy of l with the patch overlaid.
func (l CartLine) Apply(p LinePatch) CartLine {
	out := l.Clone()
	if p.ItemDescription != nil {
		out.ItemDescription = *p.ItemDescription
	}
	if p.Quantity != nil {
		out.Quantity = *p.Quantity
	}
	if p.Uom != nil {
		out.Uom = *p.Uom
	}
	if p.StandardRate != nil {
		out.StandardRate = *p.StandardRate
	}
	if p.DiscountPercentage != nil {
		out.DiscountPercentage = *p.DiscountPercentage
	}
	if p.UomRates != nil {
		if out.UomRates == nil {
			out.UomRates = make(map[string]decimal.Decimal, len(p.UomRates))
		}
		for uom, rate := range p.UomRates {
			out.UomRates[uom] = rate
		}
	}
	if p.WarehouseAllocations != nil {
		if len(*p.WarehouseAllocations) == 0 {
			out.WarehouseAllocations = nil
		} else {
			out.WarehouseAllocations = append([]WarehouseAllocation(nil), (*p.WarehouseAllocations)...)
		}
	}
	return out
}
