// Package app contains the opportunity detection workers.
package app

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	executionApp "github.com/cryptoking82/evm-arbitrage-bot/business/execution/app"
	marketApp "github.com/cryptoking82/evm-arbitrage-bot/business/market/app"
	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	notifyApp "github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	opportunityApp "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/app"
	opportunityDomain "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	pricingApp "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/app"
	pricingDomain "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

const (
	tracerName = "detector"
	meterName  = "detector"

	// Gas units assumed for a two-leg arbitrage call when estimating the
	// fee shown on a detected opportunity. The coordinator re-estimates
	// before submitting.
	assumedSwapGas = 350000
)

// detectorMetrics holds OTEL metric instruments.
type detectorMetrics struct {
	cyclesTotal     metric.Int64Counter
	quoteFailures   metric.Int64Counter
	detectedTotal   metric.Int64Counter
	profitPctFound  metric.Float64Histogram
}

// Detector runs one logical worker per watched route, pulling quotes from
// both venues and creating opportunities for qualifying differentials.
// Detection never blocks on execution: its only shared write path is
// Store.Create.
type Detector struct {
	cfg       config.DetectionConfig
	registry  marketApp.Registry
	quotes    pricingApp.QuoteSource
	gas       pricingApp.GasOracle
	store     opportunityApp.Store
	cooldowns executionApp.Cooldowns
	notifier  *notifyApp.Notifier
	logger    logger.LoggerInterface

	minProfitPct decimal.Decimal

	tracer  trace.Tracer
	metrics *detectorMetrics
}

// NewDetector creates a detector over the configured routes.
func NewDetector(
	cfg config.DetectionConfig,
	registry marketApp.Registry,
	quotes pricingApp.QuoteSource,
	gas pricingApp.GasOracle,
	store opportunityApp.Store,
	cooldowns executionApp.Cooldowns,
	notifier *notifyApp.Notifier,
	log logger.LoggerInterface,
) (*Detector, error) {
	d := &Detector{
		cfg:          cfg,
		registry:     registry,
		quotes:       quotes,
		gas:          gas,
		store:        store,
		cooldowns:    cooldowns,
		notifier:     notifier,
		logger:       log.With("component", "detector"),
		minProfitPct: cfg.MinProfitBpsDecimal().Div(decimal.NewFromInt(100)),
		tracer:       otel.Tracer(tracerName),
	}

	if err := d.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return d, nil
}

func (d *Detector) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	d.metrics = &detectorMetrics{}

	d.metrics.cyclesTotal, err = meter.Int64Counter(
		"detection_cycles_total",
		metric.WithDescription("Total detection cycles run"),
	)
	if err != nil {
		return err
	}

	d.metrics.quoteFailures, err = meter.Int64Counter(
		"detection_quote_failures_total",
		metric.WithDescription("Quote fetch failures during detection"),
	)
	if err != nil {
		return err
	}

	d.metrics.detectedTotal, err = meter.Int64Counter(
		"opportunities_detected_total",
		metric.WithDescription("Opportunities created by the detector"),
	)
	if err != nil {
		return err
	}

	d.metrics.profitPctFound, err = meter.Float64Histogram(
		"detected_profit_pct",
		metric.WithDescription("Profit percentage of detected opportunities"),
		metric.WithUnit("%"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Run starts one worker per route and blocks until ctx is cancelled. Route
// workers are independent; a failing venue never stalls sibling tuples.
func (d *Detector) Run(ctx context.Context) error {
	routes := d.registry.Routes()
	if len(routes) == 0 {
		d.logger.Warn(ctx, "no routes configured, detector idle")
		<-ctx.Done()
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, route := range routes {
		route := route
		g.Go(func() error {
			d.runRoute(gctx, route)
			return nil
		})
	}
	return g.Wait()
}

// runRoute loops one detection tuple until cancellation. Start is staggered
// by a random fraction of the interval so tuples do not hit venues in
// lockstep.
func (d *Detector) runRoute(ctx context.Context, route marketDomain.Route) {
	stagger := time.Duration(rand.Int63n(int64(d.cfg.Interval)))
	select {
	case <-ctx.Done():
		return
	case <-time.After(stagger):
	}

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		d.cycle(ctx, route)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cycle performs one detection pass for the route. All failures are absorbed
// and logged; a quote failure skips the tuple for this cycle only.
func (d *Detector) cycle(ctx context.Context, route marketDomain.Route) {
	key := route.Key.String()

	ctx, span := d.tracer.Start(ctx, "detector.cycle",
		trace.WithAttributes(attribute.String("route", key)),
	)
	defer span.End()

	d.metrics.cyclesTotal.Add(ctx, 1)

	// Re-read the descriptors each cycle so health reports and blacklist
	// changes take effect; the configured route only pins the tuple.
	route, ok := d.resolveRoute(route)
	if !ok {
		span.AddEvent("route_unresolved")
		return
	}

	if !route.VenueA.IsAvailable() || !route.VenueB.IsAvailable() {
		span.AddEvent("venue_unavailable")
		return
	}
	if !route.Base.IsTradable() || !route.Quote.IsTradable() {
		span.AddEvent("token_blacklisted")
		return
	}
	if !route.VenueA.WithinBounds(route.AmountIn) || !route.VenueB.WithinBounds(route.AmountIn) {
		span.AddEvent("amount_out_of_bounds")
		return
	}

	if d.cooldowns != nil {
		active, err := d.cooldowns.Active(ctx, key)
		if err != nil {
			d.logger.Warn(ctx, "cooldown check failed", "route", key, "error", err)
		} else if active {
			span.AddEvent("key_in_cooldown")
			return
		}
	}

	quoteA, quoteB, ok := d.fetchQuotes(ctx, route)
	if !ok {
		span.SetStatus(codes.Error, "quote fetch failed")
		return
	}

	ev, ok := pricingDomain.EvaluateRoundTrip(
		route.VenueA.ID, route.VenueB.ID,
		quoteA.Price, quoteB.Price,
		route.VenueA.FeeFraction(), route.VenueB.FeeFraction(),
		route.AmountIn,
	)
	if !ok {
		span.AddEvent("unusable_prices")
		return
	}

	span.SetAttributes(attribute.String("profit_pct", ev.ProfitPct.String()))

	if ev.ProfitPct.LessThan(d.minProfitPct) {
		span.SetStatus(codes.Ok, "below threshold")
		return
	}

	opp := opportunityDomain.NewOpportunity(
		route.Key,
		route.Base.Address, route.Quote.Address,
		quoteA.Price, quoteB.Price,
		route.AmountIn,
		ev.EstimatedProfit, ev.ProfitPct,
		d.estimateGasFee(ctx, route.Key.Network),
		d.cfg.ExpiryHorizon,
	)
	opp.Metadata["buy_venue"] = ev.BuyVenueID
	opp.Metadata["sell_venue"] = ev.SellVenueID

	if err := d.store.Create(ctx, opp); err != nil {
		if apperror.IsCode(err, apperror.CodeDuplicateActiveKey) {
			span.AddEvent("active_key_exists")
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		d.logger.Error(ctx, "failed to create opportunity", "route", key, "error", err)
		return
	}

	d.metrics.detectedTotal.Add(ctx, 1)
	pctFloat, _ := ev.ProfitPct.Float64()
	d.metrics.profitPctFound.Record(ctx, pctFloat)
	span.SetStatus(codes.Ok, "opportunity created")

	d.logger.Info(ctx, "opportunity detected",
		"route", key,
		"id", opp.ID,
		"profit_pct", ev.ProfitPct.StringFixed(4),
		"estimated_profit", ev.EstimatedProfit.StringFixed(6),
	)

	d.notifier.Publish(ctx, notifyApp.Event{
		Type:          notifyApp.EventOpportunityDetected,
		OpportunityID: opp.ID,
		DetectionKey:  key,
		Network:       route.Key.Network,
		ProfitPct:     ev.ProfitPct,
		Profit:        ev.EstimatedProfit,
		Timestamp:     time.Now().UTC(),
	})
}

// resolveRoute swaps the route's startup descriptors for fresh registry
// copies. A tuple whose venue or token has been removed resolves false and
// is skipped until configuration changes.
func (d *Detector) resolveRoute(route marketDomain.Route) (marketDomain.Route, bool) {
	venueA, okA := d.registry.Venue(route.Key.VenueA)
	venueB, okB := d.registry.Venue(route.Key.VenueB)
	base, okBase := d.registry.TokenBySymbol(route.Key.Network, route.Key.Base)
	quote, okQuote := d.registry.TokenBySymbol(route.Key.Network, route.Key.Quote)
	if !okA || !okB || !okBase || !okQuote {
		return route, false
	}

	route.VenueA, route.VenueB = venueA, venueB
	route.Base, route.Quote = base, quote
	return route, true
}

// fetchQuotes pulls both venue quotes concurrently under the per-venue
// timeout, reporting health back per venue. A failure on one venue marks it
// unhealthy for the registry but only skips this tuple's cycle.
func (d *Detector) fetchQuotes(ctx context.Context, route marketDomain.Route) (*pricingDomain.Quote, *pricingDomain.Quote, bool) {
	type result struct {
		quote *pricingDomain.Quote
		err   error
	}

	fetch := func(venue *marketDomain.Venue) result {
		qctx := ctx
		if d.cfg.QuoteTimeout > 0 {
			var cancel context.CancelFunc
			qctx, cancel = context.WithTimeout(ctx, d.cfg.QuoteTimeout)
			defer cancel()
		}
		q, err := d.quotes.Quote(qctx, venue, route.Base, route.Quote, route.AmountIn)
		return result{quote: q, err: err}
	}

	var resA, resB result
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { resA = fetch(route.VenueA); return nil })
	g.Go(func() error { resB = fetch(route.VenueB); return nil })
	_ = g.Wait()

	for _, r := range []struct {
		venue *marketDomain.Venue
		res   result
	}{{route.VenueA, resA}, {route.VenueB, resB}} {
		if r.res.err != nil {
			d.metrics.quoteFailures.Add(ctx, 1,
				metric.WithAttributes(attribute.String("venue", r.venue.ID)))
			d.registry.ReportHealth(ctx, r.venue.ID, false)
			d.logger.Debug(ctx, "quote fetch failed",
				"venue", r.venue.ID,
				"route", route.Key.String(),
				"error", r.res.err,
			)
		} else {
			d.registry.ReportHealth(ctx, r.venue.ID, true)
		}
	}

	if resA.err != nil || resB.err != nil {
		return nil, nil, false
	}
	return resA.quote, resB.quote, true
}

// estimateGasFee projects the native-token fee of an execution at current
// gas prices. Failures degrade to zero; the coordinator gates on live gas
// price again before submitting.
func (d *Detector) estimateGasFee(ctx context.Context, network string) decimal.Decimal {
	price, err := d.gas.GasPrice(ctx, network)
	if err != nil {
		d.logger.Debug(ctx, "gas price unavailable", "network", network, "error", err)
		return decimal.Zero
	}
	feeWei := new(big.Int).Mul(price.Wei, big.NewInt(assumedSwapGas))
	return decimal.NewFromBigInt(feeWei, -18)
}
