package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nthewara88agent/stock-tracker/config"
	"github.com/nthewara88agent/stock-tracker/internal/model"
	"github.com/nthewara88agent/stock-tracker/utils"
	"github.com/redis/go-redis/v9"
)

const priceKeyPrefix = "price:"

// RedisCache persists price entries so a restarted process can start warm.
type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func priceKey(ticker string) string {
	return priceKeyPrefix + model.NormalizeTicker(ticker)
}

func (r *RedisCache) SetPrices(ctx context.Context, entries map[string]model.PriceEntry) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("start SetPrices", slog.String("rqID", rqID), slog.Int("count", len(entries)))

	if len(entries) == 0 {
		return nil
	}

	pipe := r.redis.Pipeline()
	for ticker, entry := range entries {
		entryJson, err := json.Marshal(entry)
		if err != nil {
			slog.Error(
				"can't marshall price entry in SetPrices",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.String("ticker", ticker),
			)
			return errors.New("can't marshall price entry")
		}

		pipe.Set(ctx, priceKey(ticker), entryJson, r.cfg.Cache.PriceTTL)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		slog.Error("failed on pipe.Exec", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetPrices completed", slog.String("rqID", rqID))

	return nil
}

// GetPrices returns the persisted entries for tickers. Missing and
// undecodable keys are skipped.
func (r *RedisCache) GetPrices(ctx context.Context, tickers []string) (map[string]model.PriceEntry, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	slog.Debug("GetPrices start", slog.String("rqID", rqID), slog.Int("count", len(tickers)))

	res := make(map[string]model.PriceEntry, len(tickers))
	if len(tickers) == 0 {
		return res, nil
	}

	keys := make([]string, 0, len(tickers))
	for _, ticker := range tickers {
		keys = append(keys, priceKey(ticker))
	}

	values, err := r.redis.MGet(ctx, keys...).Result()
	if err != nil {
		slog.Error("failed on redis.MGet", slog.String("rqID", rqID), slog.String("err", err.Error()))
		return nil, err
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		entry := model.PriceEntry{}
		err = json.Unmarshal([]byte(raw), &entry)
		if err != nil {
			slog.Error(
				"can't unmarshall price entry in GetPrices",
				slog.String("rqID", rqID),
				slog.String("err", err.Error()),
				slog.String("key", keys[i]),
			)
			continue
		}

		res[model.NormalizeTicker(tickers[i])] = entry
	}

	slog.Debug("GetPrices finished", slog.String("rqID", rqID), slog.Int("found", len(res)))

	return res, nil
}
