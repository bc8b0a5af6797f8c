package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"centropos/backend/internal/cache"
	"centropos/backend/internal/domain"
	"centropos/backend/internal/store"
)

const defaultLocationKey = "default-location"

type Options struct {
	Timeout   time.Duration
	TTL       time.Duration
	Uoms      cache.Cache[[]domain.UomDetail]
	Stock     cache.Cache[[]domain.LocationStock]
	Locations cache.Cache[string]
	Logger    *zap.Logger
}

// Resolver wraps an InventoryOracle with a per-call timeout, a shared
// read-through cache and an in-process last-known fallback.
//
// When the oracle fails and a last-known answer exists, that answer is
// returned together with store.ErrStale. When nothing is known the error is
// store.ErrOracleUnavailable. store.ErrUnknownItem is passed through.
type Resolver struct {
	oracle  store.InventoryOracle
	timeout time.Duration
	ttl     time.Duration
	logger  *zap.Logger

	uoms      cache.Cache[[]domain.UomDetail]
	stock     cache.Cache[[]domain.LocationStock]
	locations cache.Cache[string]

	mu          sync.RWMutex
	lastUoms    map[string][]domain.UomDetail
	lastStock   map[string][]domain.LocationStock
	lastDefault map[string]string
}

func NewResolver(oracle store.InventoryOracle, opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 1500 * time.Millisecond
	}
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Second
	}
	if opts.Uoms == nil {
		opts.Uoms = cache.Noop[[]domain.UomDetail]{}
	}
	if opts.Stock == nil {
		opts.Stock = cache.Noop[[]domain.LocationStock]{}
	}
	if opts.Locations == nil {
		opts.Locations = cache.Noop[string]{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Resolver{
		oracle:      oracle,
		timeout:     opts.Timeout,
		ttl:         opts.TTL,
		logger:      opts.Logger.Named("inventory"),
		uoms:        opts.Uoms,
		stock:       opts.Stock,
		locations:   opts.Locations,
		lastUoms:    make(map[string][]domain.UomDetail),
		lastStock:   make(map[string][]domain.LocationStock),
		lastDefault: make(map[string]string),
	}
}

func (r *Resolver) LookupUomDetails(ctx context.Context, itemCode string) ([]domain.UomDetail, error) {
	key := "uoms:" + cacheCode(itemCode)
	return lookup(ctx, r, r.uoms, r.lastUoms, key, func(ctx context.Context) ([]domain.UomDetail, error) {
		return r.oracle.LookupUomDetails(ctx, itemCode)
	})
}

func (r *Resolver) LookupStockByLocation(ctx context.Context, itemCode string) ([]domain.LocationStock, error) {
	key := "stock:" + cacheCode(itemCode)
	return lookup(ctx, r, r.stock, r.lastStock, key, func(ctx context.Context) ([]domain.LocationStock, error) {
		return r.oracle.LookupStockByLocation(ctx, itemCode)
	})
}

func (r *Resolver) DefaultLocation(ctx context.Context) (string, error) {
	return lookup(ctx, r, r.locations, r.lastDefault, defaultLocationKey, r.oracle.DefaultLocation)
}

// Forget drops cached answers for an item, e.g. after a stock change.
func (r *Resolver) Forget(itemCode string) {
	code := cacheCode(itemCode)
	r.mu.Lock()
	delete(r.lastUoms, "uoms:"+code)
	delete(r.lastStock, "stock:"+code)
	r.mu.Unlock()
}

func lookup[T any](
	ctx context.Context,
	r *Resolver,
	shared cache.Cache[T],
	last map[string]T,
	key string,
	fetch func(context.Context) (T, error),
) (T, error) {
	if cached, ok, err := shared.Get(ctx, key); err == nil && ok {
		return *cached, nil
	} else if err != nil {
		r.logger.Debug("shared cache read failed", zap.String("key", key), zap.Error(err))
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	value, err := fetch(callCtx)
	if err == nil {
		r.mu.Lock()
		last[key] = value
		r.mu.Unlock()
		if setErr := shared.Set(ctx, key, &value, r.ttl); setErr != nil {
			r.logger.Debug("shared cache write failed", zap.String("key", key), zap.Error(setErr))
		}
		return value, nil
	}
	if errors.Is(err, store.ErrUnknownItem) || errors.Is(err, store.ErrNoDefaultStore) {
		return value, err
	}
	// An upstream resolver already fell back; keep its answer but do not
	// share it.
	if errors.Is(err, store.ErrStale) {
		r.mu.RLock()
		_, ok := last[key]
		r.mu.RUnlock()
		if !ok {
			r.mu.Lock()
			last[key] = value
			r.mu.Unlock()
		}
		return value, err
	}

	r.logger.Warn("inventory oracle call failed", zap.String("key", key), zap.Error(err))
	r.mu.RLock()
	known, ok := last[key]
	r.mu.RUnlock()
	if ok {
		return known, fmt.Errorf("%w: %v", store.ErrStale, err)
	}
	var zero T
	return zero, fmt.Errorf("%w: %v", store.ErrOracleUnavailable, err)
}

func cacheCode(itemCode string) string {
	return strings.ToUpper(strings.TrimSpace(itemCode))
}
