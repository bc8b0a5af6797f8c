package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

// Store is the Postgres-backed inventory oracle.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) LookupUomDetails(ctx context.Context, itemCode string) ([]domain.UomDetail, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT uom, rate, conversion, min_price, max_price
		FROM item_uoms
		WHERE item_code = $1
		ORDER BY position, uom
	`, normalizeCode(itemCode))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uoms := make([]domain.UomDetail, 0, 4)
	for rows.Next() {
		var d domain.UomDetail
		if err := rows.Scan(&d.Uom, &d.Rate, &d.Qty, &d.MinPrice, &d.MaxPrice); err != nil {
			return nil, err
		}
		uoms = append(uoms, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(uoms) == 0 {
		return nil, store.ErrUnknownItem
	}
	return uoms, nil
}

func (s *Store) LookupStockByLocation(ctx context.Context, itemCode string) ([]domain.LocationStock, error) {
	code := normalizeCode(itemCode)
	var known bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM item_uoms WHERE item_code = $1)`, code,
	).Scan(&known); err != nil {
		return nil, err
	}
	if !known {
		return nil, store.ErrUnknownItem
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ls.location, ls.uom, ls.qty
		FROM location_stock ls
		JOIN stock_locations l ON l.name = ls.location
		LEFT JOIN item_uoms u ON u.item_code = ls.item_code AND u.uom = ls.uom
		WHERE ls.item_code = $1
		ORDER BY l.is_default DESC, l.position, COALESCE(u.position, 0), ls.uom
	`, code)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.LocationStock, 0, 4)
	index := map[string]int{}
	for rows.Next() {
		var location string
		var entry domain.UomQty
		if err := rows.Scan(&location, &entry.Uom, &entry.Qty); err != nil {
			return nil, err
		}
		pos, ok := index[location]
		if !ok {
			pos = len(result)
			index[location] = pos
			result = append(result, domain.LocationStock{Location: location})
		}
		result[pos].Quantities = append(result[pos].Quantities, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) DefaultLocation(ctx context.Context) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM stock_locations WHERE is_default LIMIT 1`).Scan(&name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", store.ErrNoDefaultStore
		}
		return "", err
	}
	return name, nil
}

func (s *Store) UpsertUomDetails(ctx context.Context, itemCode string, uoms []domain.UomDetail) error {
	code := normalizeCode(itemCode)
	if code == "" || len(uoms) == 0 {
		return store.ErrInvalidLine
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for pos, d := range uoms {
		if strings.TrimSpace(d.Uom) == "" || d.Rate.IsNegative() {
			return store.ErrInvalidLine
		}
		conversion := d.Qty
		if !conversion.IsPositive() {
			conversion = decimal.NewFromInt(1)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO item_uoms (item_code, uom, position, rate, conversion, min_price, max_price, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,now())
			ON CONFLICT (item_code, uom)
			DO UPDATE SET position = EXCLUDED.position, rate = EXCLUDED.rate, conversion = EXCLUDED.conversion,
				min_price = EXCLUDED.min_price, max_price = EXCLUDED.max_price, updated_at = now()
		`, code, d.Uom, pos, d.Rate, conversion, d.MinPrice, d.MaxPrice); err != nil {
			return fmt.Errorf("upsert uom %s/%s: %w", code, d.Uom, err)
		}
	}
	return tx.Commit()
}

func (s *Store) SetStock(ctx context.Context, itemCode string, location string, uom string, qty decimal.Decimal) error {
	code := normalizeCode(itemCode)
	location = strings.TrimSpace(location)
	if code == "" || location == "" || strings.TrimSpace(uom) == "" || qty.IsNegative() {
		return store.ErrInvalidLine
	}

	if err := s.ensureLocation(ctx, location); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO location_stock (item_code, location, uom, qty, updated_at)
		VALUES ($1,$2,$3,$4,now())
		ON CONFLICT (item_code, location, uom)
		DO UPDATE SET qty = EXCLUDED.qty, updated_at = now()
	`, code, location, uom, qty)
	return err
}

func (s *Store) SetDefaultLocation(ctx context.Context, location string) error {
	location = strings.TrimSpace(location)
	if location == "" {
		return store.ErrNoDefaultStore
	}
	if err := s.ensureLocation(ctx, location); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `UPDATE stock_locations SET is_default = false WHERE is_default AND name <> $1`, location); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE stock_locations SET is_default = true WHERE name = $1`, location); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) ensureLocation(ctx context.Context, location string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_locations (name) VALUES ($1)
		ON CONFLICT (name) DO NOTHING
	`, location)
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidLine
	}
	if user.Role == "" {
		user.Role = "terminal"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidLine
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidLine
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
