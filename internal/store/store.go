package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"centropos/backend/internal/domain"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidLine    = errors.New("invalid cart line")
	ErrRowOutOfRange  = errors.New("row out of range")
	ErrUnknownItem    = errors.New("unknown item")
	ErrNoDefaultStore = errors.New("default location not configured")

	// ErrOracleUnavailable means the inventory oracle could not answer and
	// nothing is known about the item.
	ErrOracleUnavailable = errors.New("inventory oracle unavailable")
	// ErrStale accompanies last-known data returned while the oracle is down.
	ErrStale = errors.New("inventory data is stale")
)

// CartStore holds the ordered lines of the active sale. Every mutation is
// addressed by position so duplicate item codes never collide.
type CartStore interface {
	Lines(ctx context.Context) ([]domain.CartLine, error)
	Line(ctx context.Context, index int) (*domain.CartLine, error)
	AddLine(ctx context.Context, line domain.CartLine) (*domain.CartLine, error)
	UpdateLine(ctx context.Context, index int, patch domain.LinePatch) (*domain.CartLine, error)
	RemoveLine(ctx context.Context, index int) error
}

// InventoryOracle answers unit, price bound and stock questions for items.
type InventoryOracle interface {
	LookupUomDetails(ctx context.Context, itemCode string) ([]domain.UomDetail, error)
	LookupStockByLocation(ctx context.Context, itemCode string) ([]domain.LocationStock, error)
	DefaultLocation(ctx context.Context) (string, error)
}

// Catalog is the writable side of an oracle backend, used by seed imports.
type Catalog interface {
	InventoryOracle
	UpsertUomDetails(ctx context.Context, itemCode string, uoms []domain.UomDetail) error
	SetStock(ctx context.Context, itemCode string, location string, uom string, qty decimal.Decimal) error
	SetDefaultLocation(ctx context.Context, location string) error
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
