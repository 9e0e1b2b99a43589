// Package priceCache keeps the latest known price per ticker for a limited
// time and resolves missing prices from an upstream source.
//
// Entries are never evicted: an entry older than the TTL is simply treated
// as absent by readers until a newer fetch supersedes it. Fetches for the
// same ticker that overlap in time are coalesced into one upstream call.
package priceCache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nthewara88agent/stock-tracker/internal/metrics"
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/utils"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 15 * time.Minute

type PriceFetcher interface {
	FetchLatest(ctx context.Context, ticker string) (decimal.Decimal, error)
}

type Option func(*PriceCache)

// WithClock replaces the real clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *PriceCache) {
		c.clock = clock
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *PriceCache) {
		c.ttl = ttl
	}
}

// WithMaxParallelFetches bounds the number of upstream fetches one Resolve
// or Refresh call keeps in flight. Zero or less means unbounded.
func WithMaxParallelFetches(n int) Option {
	return func(c *PriceCache) {
		c.maxParallel = n
	}
}

type PriceCache struct {
	fetcher     PriceFetcher
	clock       clockwork.Clock
	ttl         time.Duration
	maxParallel int

	entries  sync.Map // canonical ticker -> model.PriceEntry
	inflight singleflight.Group
}

func New(fetcher PriceFetcher, opts ...Option) *PriceCache {
	c := &PriceCache{
		fetcher: fetcher,
		clock:   clockwork.NewRealClock(),
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *PriceCache) TTL() time.Duration {
	return c.ttl
}

// GetCached returns the cached price for ticker if it is still fresh.
func (c *PriceCache) GetCached(ticker string) (decimal.Decimal, bool) {
	entry, ok := c.getEntry(model.NormalizeTicker(ticker))
	if !ok || !entry.ValidAt(c.clock.Now(), c.ttl) {
		return decimal.Decimal{}, false
	}
	return entry.Price, true
}

// SetPrice stores price for ticker as fetched now, replacing any entry.
func (c *PriceCache) SetPrice(ticker string, price decimal.Decimal) {
	c.store(model.NormalizeTicker(ticker), model.PriceEntry{Price: price, FetchedAt: c.clock.Now()})
}

// Load adopts entries persisted elsewhere, keeping their fetch time. An entry
// only replaces what is cached when it is newer. Returns the number adopted.
func (c *PriceCache) Load(entries map[string]model.PriceEntry) int {
	loaded := 0
	for ticker, entry := range entries {
		ticker = model.NormalizeTicker(ticker)
		if cur, ok := c.getEntry(ticker); ok && !entry.FetchedAt.After(cur.FetchedAt) {
			continue
		}
		c.store(ticker, entry)
		loaded++
	}
	return loaded
}

// Len returns the number of tickers in the cache, stale ones included.
func (c *PriceCache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Resolve returns the price of every ticker it can: fresh cache entries are
// served as is, the rest is fetched concurrently. Tickers whose fetch fails
// are left out of the result.
func (c *PriceCache) Resolve(ctx context.Context, tickers []string) map[string]decimal.Decimal {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PriceCache.Resolve"

	distinct := model.CanonicalTickers(tickers)
	res := make(map[string]decimal.Decimal, len(distinct))
	toFetch := make([]string, 0, len(distinct))

	for _, ticker := range distinct {
		if price, ok := c.GetCached(ticker); ok {
			res[ticker] = price
			continue
		}
		toFetch = append(toFetch, ticker)
	}

	metrics.PriceCacheHits.Add(float64(len(res)))
	metrics.PriceCacheMisses.Add(float64(len(toFetch)))

	if len(toFetch) == 0 {
		return res
	}

	slog.Debug("fetching missing prices", slog.String("rqID", rqID), slog.String("op", op), slog.Any("tickers", toFetch))

	fetched, errs := c.fetchAll(ctx, toFetch)
	for ticker, entry := range fetched {
		res[ticker] = entry.Price
	}

	for ticker, err := range errs {
		slog.Warn("price unavailable", slog.String("rqID", rqID), slog.String("op", op), slog.String("ticker", ticker), slog.String("err", err.Error()))
	}

	return res
}

// Refresh fetches every ticker regardless of cache state and stores the
// successes. It returns the fresh entries and, when some fetches failed, an
// error describing them. A context already done stops it before fetching.
func (c *PriceCache) Refresh(ctx context.Context, tickers []string) (map[string]model.PriceEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	distinct := model.CanonicalTickers(tickers)
	if len(distinct) == 0 {
		return map[string]model.PriceEntry{}, nil
	}

	fetched, errs := c.fetchAll(ctx, distinct)
	if len(errs) == 0 {
		return fetched, nil
	}

	joined := make([]error, 0, len(errs))
	for ticker, err := range errs {
		joined = append(joined, fmt.Errorf("%s: %w", ticker, err))
	}
	return fetched, fmt.Errorf("refreshed %d of %d tickers: %w", len(fetched), len(distinct), errors.Join(joined...))
}

// fetchAll fans out one fetch per ticker and waits for all of them.
func (c *PriceCache) fetchAll(ctx context.Context, tickers []string) (map[string]model.PriceEntry, map[string]error) {
	var (
		mu      sync.Mutex
		fetched = make(map[string]model.PriceEntry, len(tickers))
		errs    = make(map[string]error)
	)

	var g errgroup.Group
	if c.maxParallel > 0 {
		g.SetLimit(c.maxParallel)
	}

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			entry, err := c.fetch(ctx, ticker)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs[ticker] = err
			} else {
				fetched[ticker] = entry
			}
			// failures stay per ticker, the group never cancels siblings
			return nil
		})
	}
	_ = g.Wait()

	metrics.CachedTickers.Set(float64(c.Len()))

	return fetched, errs
}

// fetch gets one ticker upstream, sharing the call with any concurrent fetch
// of the same ticker. The shared call does not inherit ctx cancellation, but
// the caller stops waiting once ctx is done.
func (c *PriceCache) fetch(ctx context.Context, ticker string) (model.PriceEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.PriceEntry{}, err
	}

	fetchCtx := context.WithoutCancel(ctx)

	ch := c.inflight.DoChan(ticker, func() (any, error) {
		start := time.Now()
		price, err := c.fetcher.FetchLatest(fetchCtx, ticker)
		metrics.PriceFetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.PriceFetches.WithLabelValues(metrics.ResultFailure).Inc()
			return nil, err
		}
		metrics.PriceFetches.WithLabelValues(metrics.ResultSuccess).Inc()

		entry := model.PriceEntry{Price: price, FetchedAt: c.clock.Now()}
		c.store(ticker, entry)
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return model.PriceEntry{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return model.PriceEntry{}, r.Err
		}
		return r.Val.(model.PriceEntry), nil
	}
}

func (c *PriceCache) getEntry(ticker string) (model.PriceEntry, bool) {
	v, ok := c.entries.Load(ticker)
	if !ok {
		return model.PriceEntry{}, false
	}
	return v.(model.PriceEntry), true
}

func (c *PriceCache) store(ticker string, entry model.PriceEntry) {
	c.entries.Store(ticker, entry)
}
