package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"product-catalog/internal/products"
	"product-catalog/internal/products/search"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix  = "products:"
	cacheGenSuffix  = ":gen"
	cacheGenTTLMult = 2
)

// Store is the storage contract CachedRepository decorates.
type Store interface {
	Save(ctx context.Context, p products.Product) (products.Product, error)
	Fetch(ctx context.Context, id int64) (products.Product, bool, error)
	FetchAll(ctx context.Context) ([]products.Product, error)
	FetchMatching(ctx context.Context, f search.Filter) ([]products.Product, error)
	Update(ctx context.Context, p products.Product) error
	Delete(ctx context.Context, id int64) error
	Health() error
}

// CachedRepository keeps single products in Redis (cache-aside). Listing and
// filtering always read the underlying store so they see one consistent
// snapshot. Redis failures are logged and the store answers instead.
//
// Every product key has a generation counter that writes bump. A miss only
// fills the cache if the generation it saw before reading the store is still
// current, so a read racing an update or delete never caches the old row.
type CachedRepository struct {
	store  Store
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
	group  singleflight.Group
}

func NewCached(store Store, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	return &CachedRepository{
		store:  store,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func cacheKey(id int64) string {
	return cacheKeyPrefix + strconv.FormatInt(id, 10)
}

func genKey(id int64) string {
	return cacheKey(id) + cacheGenSuffix
}

var errStaleFill = errors.New("cache generation changed during fill")

type fetchResult struct {
	product products.Product
	found   bool
}

func (r *CachedRepository) Fetch(ctx context.Context, id int64) (products.Product, bool, error) {
	key := cacheKey(id)

	data, err := r.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p products.Product
		if err := json.Unmarshal(data, &p); err == nil {
			return p, true, nil
		}
		r.logger.Warn("drop undecodable cache entry", "key", key)
		r.invalidate(ctx, id)
	case !errors.Is(err, redis.Nil):
		r.logger.Warn("cache get failed", "key", key, "error", err)
	}

	ch := r.group.DoChan(key, func() (any, error) {
		return r.load(context.WithoutCancel(ctx), id)
	})
	select {
	case <-ctx.Done():
		return products.Product{}, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return products.Product{}, false, res.Err
		}
		fr := res.Val.(fetchResult)
		return fr.product, fr.found, nil
	}
}

// load reads id from the store and caches it unless a write bumped the
// generation in the meantime. It runs once per key for concurrent misses.
func (r *CachedRepository) load(ctx context.Context, id int64) (fetchResult, error) {
	gen, genErr := r.generation(ctx, id)

	p, found, err := r.store.Fetch(ctx, id)
	if err != nil {
		return fetchResult{}, err
	}
	if !found {
		return fetchResult{}, nil
	}

	if genErr != nil {
		r.logger.Warn("cache generation read failed", "product_id", id, "error", genErr)
		return fetchResult{product: p, found: true}, nil
	}
	if err := r.fill(ctx, id, gen, p); err != nil {
		if errors.Is(err, errStaleFill) {
			r.logger.Debug("skip stale cache fill", "product_id", id)
		} else {
			r.logger.Warn("cache set failed", "key", cacheKey(id), "error", err)
		}
	}
	return fetchResult{product: p, found: true}, nil
}

func (r *CachedRepository) generation(ctx context.Context, id int64) (int64, error) {
	gen, err := r.client.Get(ctx, genKey(id)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill stores p under its key if the generation still equals gen. The check
// and the SET run in one WATCH/MULTI transaction.
func (r *CachedRepository) fill(ctx context.Context, id, gen int64, p products.Product) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey(id)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, cacheKey(id), payload, r.ttl)
			return nil
		})
		return err
	}, genKey(id))
	if errors.Is(err, redis.TxFailedErr) {
		return errStaleFill
	}
	return err
}

func (r *CachedRepository) Save(ctx context.Context, p products.Product) (products.Product, error) {
	return r.store.Save(ctx, p)
}

func (r *CachedRepository) FetchAll(ctx context.Context) ([]products.Product, error) {
	return r.store.FetchAll(ctx)
}

func (r *CachedRepository) FetchMatching(ctx context.Context, f search.Filter) ([]products.Product, error) {
	return r.store.FetchMatching(ctx, f)
}

func (r *CachedRepository) Update(ctx context.Context, p products.Product) error {
	if err := r.store.Update(ctx, p); err != nil {
		return err
	}
	r.invalidate(ctx, p.ID)
	return nil
}

func (r *CachedRepository) Delete(ctx context.Context, id int64) error {
	err := r.store.Delete(ctx, id)
	r.invalidate(ctx, id)
	return err
}

// Health reports the store only: a Redis outage degrades reads to the store
// but does not make the service unhealthy.
func (r *CachedRepository) Health() error {
	return r.store.Health()
}

// invalidate bumps the generation before dropping the entry so in-flight
// fills that read the store earlier are refused.
func (r *CachedRepository) invalidate(ctx context.Context, id int64) {
	ctx = context.WithoutCancel(ctx)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(id))
		pipe.Expire(ctx, genKey(id), cacheGenTTLMult*r.ttl)
		pipe.Del(ctx, cacheKey(id))
		return nil
	})
	if err != nil {
		r.logger.Warn("cache invalidate failed", "product_id", id, "error", err)
	}
}
