// Package evm implements the pricing ports against UniswapV2-style routers
// over JSON-RPC.
package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/domain"
	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/circuitbreaker"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/ratelimit"
)

const (
	tracerName = "pricing-evm"
	meterName  = "pricing-evm"
)

// ClientProvider returns the RPC client for a network.
type ClientProvider func(network string) *ethclient.Client

// Ensure Quoter implements QuoteSource.
var _ app.QuoteSource = (*Quoter)(nil)

// quoterMetrics holds OTEL metric instruments.
type quoterMetrics struct {
	quotesTotal  metric.Int64Counter
	quoteLatency metric.Float64Histogram
	quoteErrors  metric.Int64Counter
}

// venueGuard bundles the per-venue failure isolation primitives. Each venue
// gets its own breaker and limiter so one unhealthy router cannot starve or
// trip the others.
type venueGuard struct {
	cb      *circuitbreaker.CircuitBreaker[[]byte]
	limiter *ratelimit.Limiter
}

// Quoter fetches effective prices from router contracts via getAmountsOut.
type Quoter struct {
	clients   ClientProvider
	routerABI abi.ABI
	logger    logger.LoggerInterface

	mu     sync.Mutex
	guards map[string]*venueGuard

	tracer  trace.Tracer
	metrics *quoterMetrics
}

// NewQuoter creates a router-backed quote source.
func NewQuoter(clients ClientProvider, log logger.LoggerInterface) (*Quoter, error) {
	parsedABI, err := abi.JSON(strings.NewReader(Router02ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse router ABI: %w", err)
	}

	q := &Quoter{
		clients:   clients,
		routerABI: parsedABI,
		logger:    log,
		guards:    make(map[string]*venueGuard),
		tracer:    otel.Tracer(tracerName),
	}

	if err := q.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return q, nil
}

func (q *Quoter) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	q.metrics = &quoterMetrics{}

	q.metrics.quotesTotal, err = meter.Int64Counter(
		"venue_quotes_total",
		metric.WithDescription("Total venue quote requests"),
	)
	if err != nil {
		return err
	}

	q.metrics.quoteLatency, err = meter.Float64Histogram(
		"venue_quote_latency_ms",
		metric.WithDescription("Venue quote latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	q.metrics.quoteErrors, err = meter.Int64Counter(
		"venue_quote_errors_total",
		metric.WithDescription("Total venue quote errors"),
	)
	if err != nil {
		return err
	}

	return nil
}

// guard returns the breaker and limiter for a venue, creating them on first
// use.
func (q *Quoter) guard(venue *marketDomain.Venue) *venueGuard {
	q.mu.Lock()
	defer q.mu.Unlock()

	if g, ok := q.guards[venue.ID]; ok {
		return g
	}

	rpm := venue.QuoteRateLimit
	if rpm <= 0 {
		rpm = 120
	}
	g := &venueGuard{
		cb:      circuitbreaker.New[[]byte](circuitbreaker.DefaultConfig("quoter-" + venue.ID)),
		limiter: ratelimit.New(rpm),
	}
	q.guards[venue.ID] = g
	return g
}

// Quote calls getAmountsOut on the venue router for the path base -> quote.
func (q *Quoter) Quote(ctx context.Context, venue *marketDomain.Venue, base, quote *marketDomain.Token, amountIn decimal.Decimal) (*domain.Quote, error) {
	ctx, span := q.tracer.Start(ctx, "pricing.quote",
		trace.WithAttributes(
			attribute.String("venue", venue.ID),
			attribute.String("pair", base.Symbol+"-"+quote.Symbol),
			attribute.String("amount_in", amountIn.String()),
		),
	)
	defer span.End()

	start := time.Now()
	q.metrics.quotesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue.ID)))

	if !venue.IsAvailable() {
		q.metrics.quoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue.ID)))
		span.SetStatus(codes.Error, "venue unavailable")
		return nil, apperror.New(apperror.CodeVenueUnavailable,
			apperror.WithContext(fmt.Sprintf("venue %s is not available", venue.ID)))
	}

	rawIn := base.ToRaw(amountIn)
	callData, err := q.routerABI.Pack("getAmountsOut", rawIn, []common.Address{base.Address, quote.Address})
	if err != nil {
		return nil, fmt.Errorf("failed to encode call: %w", err)
	}

	g := q.guard(venue)
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, apperror.New(apperror.CodeRateLimitExceeded,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("rate limit wait aborted for venue %s", venue.ID)))
	}

	router := venue.RouterAddress
	result, err := g.cb.Execute(func() ([]byte, error) {
		return q.clients(venue.Network).CallContract(ctx, ethereum.CallMsg{
			To:   &router,
			Data: callData,
		}, nil)
	})

	latency := float64(time.Since(start).Milliseconds())
	q.metrics.quoteLatency.Record(ctx, latency, metric.WithAttributes(attribute.String("venue", venue.ID)))

	if err != nil {
		q.metrics.quoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue.ID)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "router call failed")
		if apperror.IsCode(err, apperror.CodeCircuitOpen) {
			return nil, err
		}
		return nil, apperror.New(apperror.CodeVenueQuoteFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("getAmountsOut failed on venue %s", venue.ID)))
	}

	outputs, err := q.routerABI.Unpack("getAmountsOut", result)
	if err != nil {
		q.metrics.quoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue.ID)))
		span.SetStatus(codes.Error, "decode failed")
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("failed to decode amounts from venue %s", venue.ID)))
	}

	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		q.metrics.quoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue.ID)))
		span.SetStatus(codes.Error, "unexpected amounts shape")
		return nil, apperror.New(apperror.CodeInvalidQuote,
			apperror.WithContext(fmt.Sprintf("unexpected amounts output from venue %s", venue.ID)))
	}

	amountOut := quote.FromRaw(amounts[len(amounts)-1])
	if !amountOut.IsPositive() {
		q.metrics.quoteErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("venue", venue.ID)))
		span.SetStatus(codes.Error, "zero output")
		return nil, apperror.New(apperror.CodeInsufficientLiquidity,
			apperror.WithContext(fmt.Sprintf("venue %s returned zero output", venue.ID)))
	}

	qt := domain.NewQuote(venue.ID, venue.Network, base.Symbol, quote.Symbol, amountIn, amountOut)

	span.SetAttributes(
		attribute.String("amount_out", amountOut.String()),
		attribute.String("price", qt.Price.String()),
	)
	span.SetStatus(codes.Ok, "quote received")

	q.logger.Debug(ctx, "venue quote",
		"venue", venue.ID,
		"pair", base.Symbol+"-"+quote.Symbol,
		"amount_in", amountIn.String(),
		"amount_out", amountOut.String(),
	)

	return qt, nil
}
