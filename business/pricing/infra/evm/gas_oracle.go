package evm

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/cache"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/circuitbreaker"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration // how long to cache gas prices
	MaxGasPrice *big.Int      // maximum acceptable gas price (safety)
	DefaultGas  uint64        // default gas limit when estimation fails
}

// DefaultGasOracleConfig returns sensible defaults.
func DefaultGasOracleConfig() GasOracleConfig {
	maxGas := new(big.Int)
	maxGas.SetString("500000000000", 10) // 500 gwei max

	return GasOracleConfig{
		CacheTTL:    12 * time.Second, // ~1 block
		MaxGasPrice: maxGas,
		DefaultGas:  400000,
	}
}

// Ensure GasOracle implements the port.
var _ app.GasOracle = (*GasOracle)(nil)

// gasOracleMetrics holds OTEL metric instruments.
type gasOracleMetrics struct {
	gasPriceFetches metric.Int64Counter
	gasPriceGwei    metric.Float64Gauge
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// GasOracle reports gas conditions per network using go-ethereum.
type GasOracle struct {
	config  GasOracleConfig
	clients ClientProvider
	logger  logger.LoggerInterface

	priceCache *cache.Cache[string, *domain.GasPrice]

	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker[*big.Int]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a new gas oracle instance.
func NewGasOracle(cfg GasOracleConfig, clients ClientProvider, log logger.LoggerInterface) (*GasOracle, error) {
	g := &GasOracle{
		config:     cfg,
		clients:    clients,
		logger:     log,
		priceCache: cache.New[string, *domain.GasPrice](5 * time.Minute),
		breakers:   make(map[string]*circuitbreaker.CircuitBreaker[*big.Int]),
		tracer:     otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return g, nil
}

// breaker returns the network's circuit breaker, creating it on first use.
// Breakers are keyed per network so one flapping RPC endpoint never blocks
// gas price fetches on the other chains.
func (g *GasOracle) breaker(network string) *circuitbreaker.CircuitBreaker[*big.Int] {
	g.mu.Lock()
	defer g.mu.Unlock()

	cb, ok := g.breakers[network]
	if !ok {
		cb = circuitbreaker.New[*big.Int](circuitbreaker.DefaultConfig("gas-oracle-" + network))
		g.breakers[network] = cb
	}
	return cb
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.gasPriceFetches, err = meter.Int64Counter(
		"gas_price_fetches_total",
		metric.WithDescription("Total gas price fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.gasPriceGwei, err = meter.Float64Gauge(
		"gas_price_gwei",
		metric.WithDescription("Current gas price in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheHits, err = meter.Int64Counter(
		"gas_cache_hits_total",
		metric.WithDescription("Gas price cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	g.metrics.cacheMisses, err = meter.Int64Counter(
		"gas_cache_misses_total",
		metric.WithDescription("Gas price cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// GasPrice retrieves the current gas price for a network with caching.
func (g *GasOracle) GasPrice(ctx context.Context, network string) (*domain.GasPrice, error) {
	ctx, span := g.tracer.Start(ctx, "gas.get_price",
		trace.WithAttributes(attribute.String("network", network)),
	)
	defer span.End()

	if price, found := g.priceCache.Get(ctx, network); found {
		g.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return price, nil
	}

	g.metrics.cacheMisses.Add(ctx, 1)
	g.metrics.gasPriceFetches.Add(ctx, 1)

	client := g.clients(network)

	wei, err := g.breaker(network).Execute(func() (*big.Int, error) {
		return client.SuggestGasPrice(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.New(apperror.CodeChainRPCError,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to get gas price on %s", network)))
	}

	// Safety check
	if g.config.MaxGasPrice != nil && wei.Cmp(g.config.MaxGasPrice) > 0 {
		span.AddEvent("gas_price_exceeded_max",
			trace.WithAttributes(attribute.String("wei", wei.String())))
		g.logger.Warn(ctx, "gas price exceeds max", "network", network, "wei", wei.String())
		wei = g.config.MaxGasPrice
	}

	price := domain.NewGasPrice(wei)

	g.priceCache.Set(ctx, network, price, g.config.CacheTTL)

	g.metrics.gasPriceGwei.Record(ctx, price.Gwei,
		metric.WithAttributes(attribute.String("network", network)))

	span.SetAttributes(attribute.Float64("gwei", price.Gwei))
	span.SetStatus(codes.Ok, "fetched")

	return price, nil
}

// EstimateGas estimates the gas needed for a call on a network.
func (g *GasOracle) EstimateGas(ctx context.Context, network string, to string, data []byte) (uint64, error) {
	ctx, span := g.tracer.Start(ctx, "gas.estimate",
		trace.WithAttributes(
			attribute.String("network", network),
			attribute.String("to", to),
			attribute.Int("data_len", len(data)),
		),
	)
	defer span.End()

	toAddr := common.HexToAddress(to)
	msg := ethereum.CallMsg{
		To:   &toAddr,
		Data: data,
	}

	gas, err := g.clients(network).EstimateGas(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		return 0, apperror.New(apperror.CodeGasEstimationFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to estimate gas for %s on %s", to, network)))
	}

	// Add safety margin (10%)
	gas = gas + (gas / 10)

	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	span.SetStatus(codes.Ok, "estimated")

	return gas, nil
}

// DefaultGas returns the fallback gas limit.
func (g *GasOracle) DefaultGas() uint64 {
	return g.config.DefaultGas
}

// Close releases the price cache janitor.
func (g *GasOracle) Close() error {
	g.priceCache.Close()
	return nil
}
