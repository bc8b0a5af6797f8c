package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
	"centropos/backend/internal/xid"
)

var hundred = decimal.NewFromInt(100)

// CartLines is the in-memory line store of the active sale.
type CartLines struct {
	mu    sync.RWMutex
	lines []domain.CartLine
}

func NewCartLines(lines ...domain.CartLine) *CartLines {
	c := &CartLines{lines: make([]domain.CartLine, 0, len(lines))}
	for _, line := range lines {
		_, _ = c.AddLine(context.Background(), line)
	}
	return c
}

func (c *CartLines) Lines(_ context.Context) ([]domain.CartLine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.CartLine, len(c.lines))
	for i, line := range c.lines {
		out[i] = line.Clone()
	}
	return out, nil
}

func (c *CartLines) Line(_ context.Context, index int) (*domain.CartLine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if index < 0 || index >= len(c.lines) {
		return nil, store.ErrRowOutOfRange
	}
	line := c.lines[index].Clone()
	return &line, nil
}

func (c *CartLines) AddLine(_ context.Context, line domain.CartLine) (*domain.CartLine, error) {
	line.ItemCode = strings.TrimSpace(line.ItemCode)
	if line.ItemCode == "" {
		return nil, store.ErrInvalidLine
	}
	if line.ID == "" {
		line.ID = xid.New("line")
	}
	if strings.TrimSpace(line.Uom) == "" {
		line.Uom = domain.DefaultUom
	}
	if err := validateLine(line); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := line.Clone()
	c.lines = append(c.lines, stored)
	created := stored.Clone()
	return &created, nil
}

func (c *CartLines) UpdateLine(_ context.Context, index int, patch domain.LinePatch) (*domain.CartLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.lines) {
		return nil, store.ErrRowOutOfRange
	}
	updated := c.lines[index].Apply(patch)
	if err := validateLine(updated); err != nil {
		return nil, err
	}
	c.lines[index] = updated
	out := updated.Clone()
	return &out, nil
}

func (c *CartLines) RemoveLine(_ context.Context, index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.lines) {
		return store.ErrRowOutOfRange
	}
	c.lines = slices.Delete(c.lines, index, index+1)
	return nil
}

func validateLine(line domain.CartLine) error {
	if line.Quantity.IsNegative() || line.StandardRate.IsNegative() {
		return fmt.Errorf("%w: negative quantity or rate", store.ErrInvalidLine)
	}
	if line.DiscountPercentage.IsNegative() || line.DiscountPercentage.GreaterThan(hundred) {
		return fmt.Errorf("%w: discount %s outside 0-100", store.ErrInvalidLine, line.DiscountPercentage)
	}
	if strings.TrimSpace(line.Uom) == "" {
		return fmt.Errorf("%w: empty uom", store.ErrInvalidLine)
	}
	if len(line.WarehouseAllocations) == 0 {
		return nil
	}
	for _, alloc := range line.WarehouseAllocations {
		if alloc.Location == "" || alloc.Allocated.IsNegative() {
			return fmt.Errorf("%w: bad allocation %q", store.ErrInvalidLine, alloc.Location)
		}
	}
	if !line.AllocatedTotal().Equal(line.Quantity) {
		return fmt.Errorf("%w: allocations sum %s does not match quantity %s", store.ErrInvalidLine, line.AllocatedTotal(), line.Quantity)
	}
	return nil
}

type itemStock map[string]map[string]decimal.Decimal // location -> uom -> qty

// Inventory is an in-memory inventory oracle. It also implements
// store.Catalog so seed workbooks can load into it.
type Inventory struct {
	mu              sync.RWMutex
	uoms            map[string][]domain.UomDetail
	stock           map[string]itemStock
	locationOrder   []string
	defaultLocation string
	users           map[string]domain.UserAccount
}

func NewInventory(defaultLocation string) *Inventory {
	inv := &Inventory{
		uoms:            make(map[string][]domain.UomDetail),
		stock:           make(map[string]itemStock),
		defaultLocation: defaultLocation,
		users:           make(map[string]domain.UserAccount),
	}
	if defaultLocation != "" {
		inv.locationOrder = append(inv.locationOrder, defaultLocation)
	}
	return inv
}

// seedUsers builds the initial terminal accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_TERMINAL_PASSWORD;
// hardcoded dev defaults are used with a warning when unset.
func seedUsers(logger *zap.Logger) (map[string]domain.UserAccount, error) {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	terminalPwd := envOr("SEED_TERMINAL_PASSWORD", "terminal123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_TERMINAL_PASSWORD") == "" {
		logger.Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_TERMINAL_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, "admin"},
		{"terminal", terminalPwd, "terminal"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash seed password for %s: %w", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// NewSeeded returns a demo catalog with two stock locations and the dev
// terminal accounts. A nil logger is allowed.
func NewSeeded(logger *zap.Logger) (*Inventory, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	users, err := seedUsers(logger.Named("memory"))
	if err != nil {
		return nil, err
	}
	inv := NewInventory("Stores - CP")
	inv.users = users
	ctx := context.Background()

	seed := []struct {
		code string
		uoms []domain.UomDetail
	}{
		{"SKU-AIR-600", []domain.UomDetail{
			{Uom: "Nos", Rate: dec("4000"), Qty: dec("1"), MinPrice: dec("3500"), MaxPrice: dec("5000")},
			{Uom: "Box", Rate: dec("45000"), Qty: dec("12"), MinPrice: dec("42000"), MaxPrice: dec("55000")},
		}},
		{"SKU-MIE-01", []domain.UomDetail{
			{Uom: "Nos", Rate: dec("3500"), Qty: dec("1"), MinPrice: dec("3000")},
			{Uom: "Dus", Rate: dec("110000"), Qty: dec("40"), MinPrice: dec("100000"), MaxPrice: dec("120000")},
		}},
		{"SKU-KOPI-01", []domain.UomDetail{
			{Uom: "Nos", Rate: dec("2600"), Qty: dec("1")},
			{Uom: "Renteng", Rate: dec("25000"), Qty: dec("10")},
			{Uom: "Box", Rate: dec("240000"), Qty: dec("100")},
		}},
	}
	for _, item := range seed {
		_ = inv.UpsertUomDetails(ctx, item.code, item.uoms)
	}

	_ = inv.SetStock(ctx, "SKU-AIR-600", "Stores - CP", "Nos", dec("24"))
	_ = inv.SetStock(ctx, "SKU-AIR-600", "Gudang Belakang - CP", "Nos", dec("120"))
	_ = inv.SetStock(ctx, "SKU-AIR-600", "Gudang Belakang - CP", "Box", dec("10"))
	_ = inv.SetStock(ctx, "SKU-MIE-01", "Stores - CP", "Nos", dec("6"))
	_ = inv.SetStock(ctx, "SKU-MIE-01", "Gudang Belakang - CP", "Nos", dec("80"))
	_ = inv.SetStock(ctx, "SKU-KOPI-01", "Stores - CP", "Nos", dec("300"))

	return inv, nil
}

func (i *Inventory) LookupUomDetails(_ context.Context, itemCode string) ([]domain.UomDetail, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	uoms, ok := i.uoms[normalizeCode(itemCode)]
	if !ok {
		return nil, store.ErrUnknownItem
	}
	return append([]domain.UomDetail(nil), uoms...), nil
}

func (i *Inventory) LookupStockByLocation(_ context.Context, itemCode string) ([]domain.LocationStock, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	code := normalizeCode(itemCode)
	if _, ok := i.uoms[code]; !ok {
		return nil, store.ErrUnknownItem
	}
	byLocation := i.stock[code]
	result := make([]domain.LocationStock, 0, len(i.locationOrder))
	for _, location := range i.locationOrder {
		qtys, ok := byLocation[location]
		if !ok {
			continue
		}
		entry := domain.LocationStock{Location: location}
		for _, detail := range i.uoms[code] {
			if qty, ok := qtys[detail.Uom]; ok {
				entry.Quantities = append(entry.Quantities, domain.UomQty{Uom: detail.Uom, Qty: qty})
			}
		}
		result = append(result, entry)
	}
	return result, nil
}

func (i *Inventory) DefaultLocation(_ context.Context) (string, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if i.defaultLocation == "" {
		return "", store.ErrNoDefaultStore
	}
	return i.defaultLocation, nil
}

func (i *Inventory) UpsertUomDetails(_ context.Context, itemCode string, uoms []domain.UomDetail) error {
	code := normalizeCode(itemCode)
	if code == "" || len(uoms) == 0 {
		return store.ErrInvalidLine
	}
	for _, detail := range uoms {
		if strings.TrimSpace(detail.Uom) == "" || detail.Rate.IsNegative() {
			return store.ErrInvalidLine
		}
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.uoms[code] = append([]domain.UomDetail(nil), uoms...)
	return nil
}

func (i *Inventory) SetStock(_ context.Context, itemCode string, location string, uom string, qty decimal.Decimal) error {
	code := normalizeCode(itemCode)
	location = strings.TrimSpace(location)
	if code == "" || location == "" || strings.TrimSpace(uom) == "" || qty.IsNegative() {
		return store.ErrInvalidLine
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.uoms[code]; !ok {
		return fmt.Errorf("%w: %s", store.ErrUnknownItem, code)
	}
	if !slices.Contains(i.locationOrder, location) {
		i.locationOrder = append(i.locationOrder, location)
	}
	byLocation, ok := i.stock[code]
	if !ok {
		byLocation = make(itemStock)
		i.stock[code] = byLocation
	}
	if byLocation[location] == nil {
		byLocation[location] = make(map[string]decimal.Decimal)
	}
	byLocation[location][uom] = qty
	return nil
}

func (i *Inventory) SetDefaultLocation(_ context.Context, location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return store.ErrNoDefaultStore
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	i.defaultLocation = location
	if !slices.Contains(i.locationOrder, location) {
		i.locationOrder = slices.Insert(i.locationOrder, 0, location)
	}
	return nil
}

func (i *Inventory) CreateUser(_ context.Context, user domain.UserAccount) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.users[user.Username]; exists {
		return store.ErrInvalidLine
	}
	i.users[user.Username] = user
	return nil
}

func (i *Inventory) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make([]domain.UserAccount, 0, len(i.users))
	for _, user := range i.users {
		out = append(out, user)
	}
	slices.SortFunc(out, func(a, b domain.UserAccount) int { return strings.Compare(a.Username, b.Username) })
	return out, nil
}

func (i *Inventory) UpdateUserPassword(_ context.Context, username string, password string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	user, ok := i.users[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	i.users[username] = user
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
