package portfolioService

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nthewara88agent/stock-tracker/data/repository"
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu       sync.Mutex
	users    map[int64]int64 // chatID -> userID
	holdings map[int64][]model.Holding
	nextID   int64
	txCalls  int
	err      error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: map[int64]int64{}, holdings: map[int64][]model.Holding{}}
}

func (r *fakeRepo) WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error {
	r.mu.Lock()
	r.txCalls++
	r.mu.Unlock()
	return tFunc(ctx)
}

func (r *fakeRepo) InsertUser(_ context.Context, chatID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[chatID]; ok {
		return 0, repository.ErrAlreadyExists
	}
	r.users[chatID] = int64(len(r.users) + 1)
	return r.users[chatID], nil
}

func (r *fakeRepo) GetUserID(_ context.Context, chatID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.users[chatID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return id, nil
}

func (r *fakeRepo) InsertHolding(_ context.Context, userID int64, holding model.Holding) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	holding.ID = r.nextID
	holding.UserID = userID
	r.holdings[userID] = append(r.holdings[userID], holding)
	return holding.ID, nil
}

func (r *fakeRepo) DeleteHolding(_ context.Context, userID, holdingID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.holdings[userID] {
		if h.ID == holdingID {
			r.holdings[userID] = append(r.holdings[userID][:i], r.holdings[userID][i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *fakeRepo) GetHoldings(_ context.Context, userID int64) ([]model.Holding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.Holding(nil), r.holdings[userID]...), nil
}

func (r *fakeRepo) GetDistinctTickers(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	var all []model.Holding
	for _, hs := range r.holdings {
		all = append(all, hs...)
	}
	return model.DistinctTickers(all), nil
}

type fakePriceCache struct {
	prices     map[string]decimal.Decimal
	refreshErr error
	resolved   [][]string
	loaded     map[string]model.PriceEntry
	now        time.Time

	// cancels the refresh context once prices are fetched
	cancelMidway context.CancelFunc
}

func (c *fakePriceCache) Resolve(_ context.Context, tickers []string) map[string]decimal.Decimal {
	c.resolved = append(c.resolved, tickers)
	res := map[string]decimal.Decimal{}
	for _, t := range tickers {
		if p, ok := c.prices[t]; ok {
			res[t] = p
		}
	}
	return res
}

func (c *fakePriceCache) Refresh(ctx context.Context, tickers []string) (map[string]model.PriceEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := map[string]model.PriceEntry{}
	for _, t := range tickers {
		if p, ok := c.prices[t]; ok {
			res[t] = model.PriceEntry{Price: p, FetchedAt: c.now}
		}
	}
	if c.cancelMidway != nil {
		c.cancelMidway()
		return res, ctx.Err()
	}
	return res, c.refreshErr
}

func (c *fakePriceCache) Load(entries map[string]model.PriceEntry) int {
	c.loaded = entries
	return len(entries)
}

type fakeSnapshot struct {
	stored map[string]model.PriceEntry
	err    error
}

func (s *fakeSnapshot) SetPrices(ctx context.Context, entries map[string]model.PriceEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.stored = entries
	return s.err
}

func (s *fakeSnapshot) GetPrices(_ context.Context, tickers []string) (map[string]model.PriceEntry, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := map[string]model.PriceEntry{}
	for _, t := range tickers {
		if e, ok := s.stored[t]; ok {
			res[t] = e
		}
	}
	return res, nil
}

type fakeGenerator struct {
	report model.PortfolioReport
}

func (g *fakeGenerator) Generate(_ context.Context, report model.PortfolioReport) ([]byte, string, error) {
	g.report = report
	return []byte("xlsx"), ".xlsx", nil
}

type fakeStorage struct {
	filename string
	content  []byte
	deleted  bool
}

func (s *fakeStorage) UploadFile(_ context.Context, reader io.Reader, filename string) (string, error) {
	s.filename = filename
	s.content, _ = io.ReadAll(reader)
	return "https://drive.example/" + filename, nil
}

func (s *fakeStorage) DeleteOldFiles(_ context.Context) error {
	s.deleted = true
	return nil
}

type testEnv struct {
	srv      *PortfolioService
	repo     *fakeRepo
	cache    *fakePriceCache
	snapshot *fakeSnapshot
	gen      *fakeGenerator
	storage  *fakeStorage
	clock    *clockwork.FakeClock
}

const chatID = int64(1001)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := clockwork.NewFakeClockAt(time.Date(2025, time.July, 1, 9, 0, 0, 0, time.UTC))
	env := &testEnv{
		repo:     newFakeRepo(),
		cache:    &fakePriceCache{prices: map[string]decimal.Decimal{}, now: clock.Now()},
		snapshot: &fakeSnapshot{stored: map[string]model.PriceEntry{}},
		gen:      &fakeGenerator{},
		storage:  &fakeStorage{},
		clock:    clock,
	}
	env.srv = New(env.repo, env.cache, env.snapshot, env.gen, env.storage, clock)
	return env
}

func (e *testEnv) addHolding(t *testing.T, ticker, qty, price, brokerage string, daysAgo int) model.Holding {
	t.Helper()

	h, err := e.srv.AddHolding(context.Background(), chatID, model.Holding{
		Ticker:    ticker,
		Quantity:  decimal.RequireFromString(qty),
		BuyPrice:  decimal.RequireFromString(price),
		Brokerage: decimal.RequireFromString(brokerage),
		BuyDate:   e.clock.Now().AddDate(0, 0, -daysAgo),
	})
	require.NoError(t, err)
	return h
}

func TestRegUser_Idempotent(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	assert.Len(t, env.repo.users, 1)
}

func TestAddHolding(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))

	h := env.addHolding(t, " cba", "10", "40", "9.95", 10)

	assert.Equal(t, int64(1), h.ID)
	assert.Equal(t, "CBA", h.Ticker)
	assert.Equal(t, 1, env.repo.txCalls)

	holdings, err := env.srv.GetHoldings(context.Background(), chatID)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	assert.Equal(t, "CBA", holdings[0].Ticker)
}

func TestAddHolding_UserNotRegistered(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.srv.AddHolding(context.Background(), chatID, model.Holding{
		Ticker:   "CBA",
		Quantity: decimal.NewFromInt(1),
		BuyPrice: decimal.NewFromInt(1),
		BuyDate:  env.clock.Now(),
	})

	assert.ErrorIs(t, err, service.ErrUserNotRegistered)
}

func TestAddHolding_Invalid(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))

	valid := model.Holding{
		Ticker:    "CBA",
		Quantity:  decimal.NewFromInt(1),
		BuyPrice:  decimal.NewFromInt(1),
		Brokerage: decimal.Zero,
		BuyDate:   env.clock.Now(),
	}

	tests := []struct {
		name   string
		mutate func(h *model.Holding)
	}{
		{name: "empty ticker", mutate: func(h *model.Holding) { h.Ticker = "  " }},
		{name: "zero quantity", mutate: func(h *model.Holding) { h.Quantity = decimal.Zero }},
		{name: "negative price", mutate: func(h *model.Holding) { h.BuyPrice = decimal.NewFromInt(-1) }},
		{name: "negative brokerage", mutate: func(h *model.Holding) { h.Brokerage = decimal.NewFromInt(-1) }},
		{name: "no date", mutate: func(h *model.Holding) { h.BuyDate = time.Time{} }},
		{name: "ancient date", mutate: func(h *model.Holding) { h.BuyDate = time.Date(1700, time.January, 1, 0, 0, 0, 0, time.UTC) }},
		{name: "future date", mutate: func(h *model.Holding) { h.BuyDate = env.clock.Now().Add(48 * time.Hour) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := valid
			tt.mutate(&h)

			_, err := env.srv.AddHolding(context.Background(), chatID, h)
			assert.ErrorIs(t, err, service.ErrInvalidHolding)
		})
	}
	assert.Equal(t, 0, env.repo.txCalls)
}

func TestRemoveHolding(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	h := env.addHolding(t, "CBA", "10", "40", "0", 10)

	require.NoError(t, env.srv.RemoveHolding(context.Background(), chatID, h.ID))

	err := env.srv.RemoveHolding(context.Background(), chatID, h.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestGetPortfolioSummary(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	env.addHolding(t, "CBA", "10", "40", "9.95", 100)
	env.addHolding(t, "XYZ", "10", "20", "0", 100)
	env.cache.prices["CBA"] = decimal.NewFromInt(50)

	summary, err := env.srv.GetPortfolioSummary(context.Background(), chatID)

	require.NoError(t, err)
	require.Len(t, env.cache.resolved, 1)
	assert.Equal(t, []string{"CBA", "XYZ"}, env.cache.resolved[0])

	require.Len(t, summary.Holdings, 2)
	assert.True(t, summary.Holdings[0].PnL.Equal(decimal.RequireFromString("90.05")))
	assert.False(t, summary.Holdings[1].PriceKnown)
	assert.True(t, summary.Holdings[1].CurrentPrice.Equal(decimal.NewFromInt(20)))
	assert.True(t, summary.TotalValue.Equal(decimal.NewFromInt(700)))
}

func TestGetCgtReport(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	env.addHolding(t, "BHP", "10", "50", "0", 400)
	env.cache.prices["BHP"] = decimal.NewFromInt(70)

	report, err := env.srv.GetCgtReport(context.Background(), chatID)

	require.NoError(t, err)
	require.Len(t, report.Holdings, 1)
	assert.Equal(t, 400, report.Holdings[0].DaysHeld)
	assert.True(t, report.Holdings[0].EligibleForDiscount)
	assert.True(t, report.DiscountedGain.Equal(decimal.NewFromInt(100)))
}

func TestGetCgtReport_UserNotRegistered(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.srv.GetCgtReport(context.Background(), chatID)

	assert.ErrorIs(t, err, service.ErrUserNotRegistered)
}

func TestExportReport(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	env.addHolding(t, "CBA", "10", "40", "0", 10)
	env.cache.prices["CBA"] = decimal.NewFromInt(50)

	link, err := env.srv.ExportReport(context.Background(), chatID)

	require.NoError(t, err)
	assert.Equal(t, "portfolio_1001_20250701_090000.xlsx", env.storage.filename)
	assert.Equal(t, "https://drive.example/portfolio_1001_20250701_090000.xlsx", link)
	assert.Equal(t, []byte("xlsx"), env.storage.content)
	assert.Equal(t, env.clock.Now(), env.gen.report.GeneratedAt)
	assert.Len(t, env.gen.report.Valuation.Holdings, 1)
	assert.Len(t, env.gen.report.Cgt.Holdings, 1)
}

func TestExportReport_EmptyPortfolio(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))

	_, err := env.srv.ExportReport(context.Background(), chatID)

	assert.ErrorIs(t, err, service.ErrEmptyPortfolio)
	assert.Empty(t, env.storage.filename)
}

func TestRefreshPrices(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	env.addHolding(t, "CBA", "10", "40", "0", 10)
	env.addHolding(t, "BHP", "10", "40", "0", 10)
	env.cache.prices["CBA"] = decimal.NewFromInt(50)
	env.cache.refreshErr = errors.New("BHP: upstream down")

	err := env.srv.RefreshPrices(context.Background())

	require.NoError(t, err, "partial failures are only logged")
	assert.Len(t, env.snapshot.stored, 1)
	assert.Contains(t, env.snapshot.stored, "CBA")
}

func TestRefreshPrices_Cancelled(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	env.addHolding(t, "CBA", "10", "40", "0", 10)
	env.cache.prices["CBA"] = decimal.NewFromInt(50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, env.srv.RefreshPrices(ctx))
	assert.Empty(t, env.snapshot.stored)
}

func TestRefreshPrices_CancelledMidBatchStillPersists(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	env.addHolding(t, "CBA", "10", "40", "0", 10)
	env.cache.prices["CBA"] = decimal.NewFromInt(50)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	env.cache.cancelMidway = cancel

	require.NoError(t, env.srv.RefreshPrices(ctx))
	assert.Len(t, env.snapshot.stored, 1)
	assert.Contains(t, env.snapshot.stored, "CBA")
}

func TestRefreshPrices_RepoError(t *testing.T) {
	env := newTestEnv(t)
	env.repo.err = errors.New("db down")

	assert.Error(t, env.srv.RefreshPrices(context.Background()))
}

func TestWarmPriceCache(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.srv.RegUser(context.Background(), chatID))
	env.addHolding(t, "CBA", "10", "40", "0", 10)
	env.snapshot.stored["CBA"] = model.PriceEntry{Price: decimal.NewFromInt(50), FetchedAt: env.clock.Now()}
	env.snapshot.stored["OLD"] = model.PriceEntry{Price: decimal.NewFromInt(1), FetchedAt: env.clock.Now()}

	require.NoError(t, env.srv.WarmPriceCache(context.Background()))

	assert.Len(t, env.cache.loaded, 1)
	assert.Contains(t, env.cache.loaded, "CBA")
}

func TestDeleteOldReports(t *testing.T) {
	env := newTestEnv(t)

	require.NoError(t, env.srv.DeleteOldReports(context.Background()))
	assert.True(t, env.storage.deleted)
}
