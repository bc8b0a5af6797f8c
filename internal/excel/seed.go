package excel

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

const (
	SheetUoms     = "uoms"
	SheetStock    = "stock"
	SheetSettings = "settings"
)

var headerAliases = map[string]string{
	"item code":         "item_code",
	"item":              "item_code",
	"sku":               "item_code",
	"uom":               "uom",
	"unit":              "uom",
	"rate":              "rate",
	"price":             "rate",
	"conversion factor": "factor",
	"factor":            "factor",
	"qty per uom":       "factor",
	"min price":         "min_price",
	"minimum price":     "min_price",
	"max price":         "max_price",
	"maximum price":     "max_price",
	"location":          "location",
	"warehouse":         "location",
	"qty":               "qty",
	"quantity":          "qty",
	"actual qty":        "qty",
	"key":               "key",
	"setting":           "key",
	"value":             "value",
}

type StockRow struct {
	ItemCode string
	Location string
	Uom      string
	Qty      decimal.Decimal
}

// Seed is the content of a seed workbook. Items keep the order of their first
// row so unit order is preserved.
type Seed struct {
	Items           []string
	Uoms            map[string][]domain.UomDetail
	Stock           []StockRow
	DefaultLocation string
}

// ParseSeed reads a workbook with a required "uoms" sheet and optional
// "stock" and "settings" sheets.
func ParseSeed(reader io.Reader) (*Seed, error) {
	file, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := map[string]string{}
	for _, name := range file.GetSheetList() {
		sheets[strings.ToLower(strings.TrimSpace(name))] = name
	}

	seed := &Seed{Uoms: map[string][]domain.UomDetail{}}
	name, ok := sheets[SheetUoms]
	if !ok {
		return nil, fmt.Errorf("missing required sheet: %s", SheetUoms)
	}
	if err := seed.readUoms(file, name); err != nil {
		return nil, err
	}
	if name, ok := sheets[SheetStock]; ok {
		if err := seed.readStock(file, name); err != nil {
			return nil, err
		}
	}
	if name, ok := sheets[SheetSettings]; ok {
		if err := seed.readSettings(file, name); err != nil {
			return nil, err
		}
	}
	if len(seed.Items) == 0 {
		return nil, fmt.Errorf("sheet %s has no valid data rows", SheetUoms)
	}
	return seed, nil
}

func (s *Seed) readUoms(file *excelize.File, sheet string) error {
	rows, colMap, err := sheetRows(file, sheet, "item_code", "uom", "rate")
	if err != nil {
		return err
	}
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		code := strings.ToUpper(strings.TrimSpace(readCell(cells, colMap, "item_code")))
		uom := strings.TrimSpace(readCell(cells, colMap, "uom"))
		if code == "" || uom == "" {
			continue
		}
		rate, err := parseDecimal(readCell(cells, colMap, "rate"), decimal.Zero, false)
		if err != nil {
			return fmt.Errorf("%s row %d invalid rate: %w", sheet, index+1, err)
		}
		factor, err := parseDecimal(readCell(cells, colMap, "factor"), decimal.NewFromInt(1), true)
		if err != nil {
			return fmt.Errorf("%s row %d invalid factor: %w", sheet, index+1, err)
		}
		if !factor.IsPositive() {
			return fmt.Errorf("%s row %d invalid factor: must be positive", sheet, index+1)
		}
		minPrice, err := parseDecimal(readCell(cells, colMap, "min_price"), decimal.Zero, true)
		if err != nil {
			return fmt.Errorf("%s row %d invalid min_price: %w", sheet, index+1, err)
		}
		maxPrice, err := parseDecimal(readCell(cells, colMap, "max_price"), decimal.Zero, true)
		if err != nil {
			return fmt.Errorf("%s row %d invalid max_price: %w", sheet, index+1, err)
		}

		if _, seen := s.Uoms[code]; !seen {
			s.Items = append(s.Items, code)
		}
		s.Uoms[code] = append(s.Uoms[code], domain.UomDetail{
			Uom:      uom,
			Rate:     rate,
			Qty:      factor,
			MinPrice: minPrice,
			MaxPrice: maxPrice,
		})
	}
	return nil
}

func (s *Seed) readStock(file *excelize.File, sheet string) error {
	rows, colMap, err := sheetRows(file, sheet, "item_code", "location", "uom", "qty")
	if err != nil {
		return err
	}
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		code := strings.ToUpper(strings.TrimSpace(readCell(cells, colMap, "item_code")))
		location := strings.TrimSpace(readCell(cells, colMap, "location"))
		if code == "" || location == "" {
			continue
		}
		qty, err := parseDecimal(readCell(cells, colMap, "qty"), decimal.Zero, false)
		if err != nil {
			return fmt.Errorf("%s row %d invalid qty: %w", sheet, index+1, err)
		}
		if qty.IsNegative() {
			return fmt.Errorf("%s row %d invalid qty: must not be negative", sheet, index+1)
		}
		s.Stock = append(s.Stock, StockRow{
			ItemCode: code,
			Location: location,
			Uom:      strings.TrimSpace(readCell(cells, colMap, "uom")),
			Qty:      qty,
		})
	}
	return nil
}

func (s *Seed) readSettings(file *excelize.File, sheet string) error {
	rows, colMap, err := sheetRows(file, sheet, "key", "value")
	if err != nil {
		return err
	}
	for index := 1; index < len(rows); index++ {
		key := normalizeHeader(readCell(rows[index], colMap, "key"))
		value := strings.TrimSpace(readCell(rows[index], colMap, "value"))
		if key == "default location" && value != "" {
			s.DefaultLocation = value
		}
	}
	return nil
}

// Apply writes the seed into catalog. The default location is set first so
// stock listings put it at the front.
func (s *Seed) Apply(ctx context.Context, catalog store.Catalog) error {
	if s.DefaultLocation != "" {
		if err := catalog.SetDefaultLocation(ctx, s.DefaultLocation); err != nil {
			return fmt.Errorf("set default location: %w", err)
		}
	}
	for _, code := range s.Items {
		if err := catalog.UpsertUomDetails(ctx, code, s.Uoms[code]); err != nil {
			return fmt.Errorf("upsert uoms for %s: %w", code, err)
		}
	}
	for _, row := range s.Stock {
		if err := catalog.SetStock(ctx, row.ItemCode, row.Location, row.Uom, row.Qty); err != nil {
			return fmt.Errorf("set stock for %s at %s: %w", row.ItemCode, row.Location, err)
		}
	}
	return nil
}

func sheetRows(file *excelize.File, sheet string, required ...string) ([][]string, map[string]int, error) {
	rows, err := file.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("sheet %s is empty", sheet)
	}
	colMap := mapColumns(rows[0])
	for _, col := range required {
		if _, ok := colMap[col]; !ok {
			return nil, nil, fmt.Errorf("sheet %s missing required column: %s", sheet, col)
		}
	}
	return rows, colMap, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		canonical, ok := headerAliases[normalizeHeader(col)]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	return strings.Join(strings.Fields(value), " ")
}

func readCell(row []string, colMap map[string]int, col string) string {
	idx, ok := colMap[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseDecimal(raw string, fallback decimal.Decimal, optional bool) (decimal.Decimal, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if value == "" {
		if optional {
			return fallback, nil
		}
		return decimal.Zero, fmt.Errorf("value is empty")
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	return parsed, nil
}
