package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SERVICE_NAME", "market-service")

	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "9095", cfg.MetricsPort)
	assert.Equal(t, []string{"ETHUSDT"}, cfg.Market.Symbols)
	assert.Equal(t, 360, cfg.Market.WindowSec)
	assert.Equal(t, 180, cfg.Market.LockSec)
	assert.Equal(t, "0.5", cfg.Market.TickSizePct)
	assert.Equal(t, 3000, cfg.Market.GridMaxAge)
	assert.Equal(t, 60, cfg.Settlement.DedupSize)
	assert.Equal(t, 250, cfg.Feed.IntervalMs)
	assert.Equal(t, "2000", cfg.Feed.StartPrices["ETHUSDT"])
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SERVICE_NAME", "price-feed-simulator")
	t.Setenv("MARKET_SYMBOLS", "ethusdt, btcusdt,,")
	t.Setenv("GRID_LOCK_SEC", "90")
	t.Setenv("BET_MAX_AMOUNT", "not-a-number")
	t.Setenv("FEED_START_PRICES", "ethusdt=1800.5, broken, =3")
	t.Setenv("FEED_VOLATILITY", "0.01")

	cfg := Load()

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, []string{"ETHUSDT", "BTCUSDT"}, cfg.Market.Symbols)
	assert.Equal(t, 90, cfg.Market.LockSec)
	assert.Equal(t, int64(1_000_000_000), cfg.Market.BetMaxAmount)
	assert.Equal(t, map[string]string{"ETHUSDT": "1800.5"}, cfg.Feed.StartPrices)
	assert.Equal(t, 0.01, cfg.Feed.Volatility)
}
