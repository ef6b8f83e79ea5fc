package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
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
	coordinatorTracer = "coordinator"
	coordinatorMeter  = "coordinator"
)

// coordinatorMetrics holds OTEL metric instruments.
type coordinatorMetrics struct {
	claimsTotal       metric.Int64Counter
	claimsLost        metric.Int64Counter
	expiredTotal      metric.Int64Counter
	executionsStarted metric.Int64Counter
	executionsFailed  metric.Int64Counter
	submissionsTotal  metric.Int64Counter
}

// CoordinatorDeps bundles the ports the coordinator drives.
type CoordinatorDeps struct {
	Config    config.ExecutionConfig
	Detection config.DetectionConfig
	Registry  marketApp.Registry
	Pricing   *pricingApp.PricingService
	Store     opportunityApp.Store
	TxStore   TxStore
	Contract  ContractClient
	Cooldowns Cooldowns
	Notifier  *notifyApp.Notifier
	Logger    logger.LoggerInterface

	// ExecutorAddress signs submissions; Contracts maps network to the
	// deployed execution contract. Both feed the transaction record only.
	ExecutorAddress common.Address
	Contracts       map[string]common.Address
}

// Coordinator claims detected opportunities, re-validates them against live
// market state, and drives qualifying ones through submission. Claiming is a
// compare-and-swap transition, so with many workers exactly one wins each
// opportunity and the rest move on.
type Coordinator struct {
	cfg       config.ExecutionConfig
	registry  marketApp.Registry
	pricing   *pricingApp.PricingService
	store     opportunityApp.Store
	txs       TxStore
	contract  ContractClient
	cooldowns Cooldowns
	notifier  *notifyApp.Notifier
	logger    logger.LoggerInterface

	executorFrom common.Address
	contracts    map[string]common.Address

	minProfitPct decimal.Decimal
	tolerance    decimal.Decimal // multiplier in [0,1] applied to thresholds

	tracer  trace.Tracer
	metrics *coordinatorMetrics
}

// NewCoordinator creates a coordinator over the given ports.
func NewCoordinator(deps CoordinatorDeps) (*Coordinator, error) {
	tolBps := deps.Config.StalenessToleranceBpsDecimal()
	tolerance := decimal.NewFromInt(1).Sub(tolBps.Div(decimal.NewFromInt(10000)))
	if tolerance.IsNegative() {
		tolerance = decimal.Zero
	}

	c := &Coordinator{
		cfg:          deps.Config,
		registry:     deps.Registry,
		pricing:      deps.Pricing,
		store:        deps.Store,
		txs:          deps.TxStore,
		contract:     deps.Contract,
		cooldowns:    deps.Cooldowns,
		notifier:     deps.Notifier,
		logger:       deps.Logger.With("component", "coordinator"),
		executorFrom: deps.ExecutorAddress,
		contracts:    deps.Contracts,
		minProfitPct: deps.Detection.MinProfitBpsDecimal().Div(decimal.NewFromInt(100)),
		tolerance:    tolerance,
		tracer:       otel.Tracer(coordinatorTracer),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return c, nil
}

func (c *Coordinator) initMetrics() error {
	meter := otel.Meter(coordinatorMeter)
	var err error

	c.metrics = &coordinatorMetrics{}

	c.metrics.claimsTotal, err = meter.Int64Counter(
		"coordinator_claims_total",
		metric.WithDescription("Opportunities claimed for analysis"),
	)
	if err != nil {
		return err
	}

	c.metrics.claimsLost, err = meter.Int64Counter(
		"coordinator_claims_lost_total",
		metric.WithDescription("Claim attempts that lost the CAS race"),
	)
	if err != nil {
		return err
	}

	c.metrics.expiredTotal, err = meter.Int64Counter(
		"coordinator_expired_total",
		metric.WithDescription("Opportunities expired during analysis"),
	)
	if err != nil {
		return err
	}

	c.metrics.executionsStarted, err = meter.Int64Counter(
		"coordinator_executions_started_total",
		metric.WithDescription("Opportunities that passed analysis"),
	)
	if err != nil {
		return err
	}

	c.metrics.executionsFailed, err = meter.Int64Counter(
		"coordinator_executions_failed_total",
		metric.WithDescription("Executions that failed before settlement"),
	)
	if err != nil {
		return err
	}

	c.metrics.submissionsTotal, err = meter.Int64Counter(
		"coordinator_submissions_total",
		metric.WithDescription("Transactions broadcast"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Run polls for eligible opportunities and fans them out to a fixed worker
// pool. Blocks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	workers := c.cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	candidates := make(chan *opportunityDomain.Opportunity, workers)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(candidates)
		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()

		for {
			c.poll(gctx, candidates, workers)
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for opp := range candidates {
				c.process(gctx, opp)
			}
			return nil
		})
	}

	return g.Wait()
}

// poll lists eligible opportunities and offers them to the workers without
// blocking. An opportunity listed twice is harmless: the second claim loses
// the CAS and is dropped.
func (c *Coordinator) poll(ctx context.Context, candidates chan<- *opportunityDomain.Opportunity, limit int) {
	opps, err := c.store.ListEligible(ctx, time.Now().UTC(), limit*2)
	if err != nil {
		c.logger.Error(ctx, "failed to list eligible opportunities", "error", err)
		return
	}
	for _, opp := range opps {
		select {
		case <-ctx.Done():
			return
		case candidates <- opp:
		default:
			return // workers saturated, next tick retries
		}
	}
}

// process drives one opportunity from claim to submission or resolution.
func (c *Coordinator) process(ctx context.Context, opp *opportunityDomain.Opportunity) {
	key := opp.Key.String()

	ctx, span := c.tracer.Start(ctx, "coordinator.process",
		trace.WithAttributes(
			attribute.String("opportunity_id", opp.ID),
			attribute.String("route", key),
		),
	)
	defer span.End()

	claimed, err := c.store.Transition(ctx, opp.ID, opportunityDomain.StatusDetected, opportunityDomain.StatusAnalyzing, nil)
	if err != nil {
		if apperror.IsCode(err, apperror.CodeInvalidTransition) {
			c.metrics.claimsLost.Add(ctx, 1)
			span.AddEvent("claim_lost")
			return
		}
		span.RecordError(err)
		c.logger.Error(ctx, "claim failed", "id", opp.ID, "error", err)
		return
	}
	opp = claimed
	c.metrics.claimsTotal.Add(ctx, 1)

	if opp.IsExpired(time.Now().UTC()) {
		c.expire(ctx, opp, "expiry horizon passed")
		return
	}

	route, err := c.resolveRoute(opp)
	if err != nil {
		c.expire(ctx, opp, err.Error())
		return
	}

	contractCfg, err := c.contract.Config(ctx, route.Key.Network)
	if err != nil {
		c.expire(ctx, opp, fmt.Sprintf("contract config unavailable: %v", err))
		return
	}

	if reason, ok := c.gasAcceptable(ctx, route.Key.Network, contractCfg); !ok {
		c.expire(ctx, opp, reason)
		return
	}

	ev, ok := c.requote(ctx, route)
	if !ok {
		c.expire(ctx, opp, "re-quote failed")
		return
	}

	// Stale quotes expire rather than fail: the market moved, nothing broke.
	requiredPct := c.minProfitPct.Mul(c.tolerance)
	if ev.ProfitPct.LessThan(requiredPct) {
		c.expire(ctx, opp, fmt.Sprintf("refreshed profit %s%% below required %s%%",
			ev.ProfitPct.StringFixed(4), requiredPct.StringFixed(4)))
		return
	}

	params, perr := c.buildParams(route, ev, contractCfg)
	if perr != nil {
		c.expire(ctx, opp, perr.Error())
		return
	}

	if c.cfg.DryRun {
		c.dryRun(ctx, opp, route, params)
		return
	}

	if _, err := c.store.Transition(ctx, opp.ID, opportunityDomain.StatusAnalyzing, opportunityDomain.StatusExecuting, nil); err != nil {
		span.RecordError(err)
		c.logger.Error(ctx, "failed to enter executing", "id", opp.ID, "error", err)
		return
	}
	c.metrics.executionsStarted.Add(ctx, 1)
	c.notifier.Publish(ctx, notifyApp.Event{
		Type:          notifyApp.EventExecutionStarted,
		OpportunityID: opp.ID,
		DetectionKey:  key,
		Network:       route.Key.Network,
		ProfitPct:     ev.ProfitPct,
		Timestamp:     time.Now().UTC(),
	})

	pctx, err := c.contract.Preflight(ctx, route.Key.Network, params)
	if err != nil {
		c.fail(ctx, opp, err)
		return
	}
	if err := domain.ValidatePlan(params, *contractCfg, *pctx); err != nil {
		c.fail(ctx, opp, err)
		return
	}

	sim, err := c.contract.Simulate(ctx, route.Key.Network, params)
	if err != nil {
		c.fail(ctx, opp, err)
		return
	}
	if !sim.Profitable {
		c.fail(ctx, opp, apperror.New(apperror.CodeProfitBelowMinimum,
			apperror.WithContext(fmt.Sprintf("simulation projects profit %s below expectation", sim.Profit))))
		return
	}

	c.submit(ctx, opp, route, params)
}

// resolveRoute rebuilds the route from reference data, re-checking venue
// availability and token tradability at claim time.
func (c *Coordinator) resolveRoute(opp *opportunityDomain.Opportunity) (marketDomain.Route, error) {
	venueA, okA := c.registry.Venue(opp.Key.VenueA)
	venueB, okB := c.registry.Venue(opp.Key.VenueB)
	if !okA || !okB {
		return marketDomain.Route{}, fmt.Errorf("venue %s or %s no longer registered", opp.Key.VenueA, opp.Key.VenueB)
	}
	if !venueA.IsAvailable() || !venueB.IsAvailable() {
		return marketDomain.Route{}, fmt.Errorf("venue %s or %s unavailable", venueA.ID, venueB.ID)
	}

	base, okBase := c.registry.TokenBySymbol(opp.Key.Network, opp.Key.Base)
	quote, okQuote := c.registry.TokenBySymbol(opp.Key.Network, opp.Key.Quote)
	if !okBase || !okQuote {
		return marketDomain.Route{}, fmt.Errorf("token %s or %s no longer registered on %s", opp.Key.Base, opp.Key.Quote, opp.Key.Network)
	}
	if !base.IsTradable() || !quote.IsTradable() {
		return marketDomain.Route{}, fmt.Errorf("token %s or %s blacklisted", base.Symbol, quote.Symbol)
	}

	return marketDomain.Route{
		Key:      opp.Key,
		Base:     base,
		Quote:    quote,
		VenueA:   venueA,
		VenueB:   venueB,
		AmountIn: opp.AmountIn,
	}, nil
}

// gasAcceptable checks the live gas price against both the configured and
// the contract's ceiling.
func (c *Coordinator) gasAcceptable(ctx context.Context, network string, contractCfg *domain.ContractConfig) (string, bool) {
	price, err := c.pricing.GasOracle().GasPrice(ctx, network)
	if err != nil {
		return fmt.Sprintf("gas price unavailable: %v", err), false
	}

	ceiling := c.cfg.GasCeilingWei()
	if contractCfg.GasCeilingWei != nil && contractCfg.GasCeilingWei.Sign() > 0 &&
		contractCfg.GasCeilingWei.Cmp(ceiling) < 0 {
		ceiling = contractCfg.GasCeilingWei
	}

	if ceiling.Sign() > 0 && price.Wei.Cmp(ceiling) > 0 {
		return fmt.Sprintf("gas price %s wei above ceiling %s", price.Wei, ceiling), false
	}
	return "", true
}

// requote refreshes both legs and re-evaluates the round trip.
func (c *Coordinator) requote(ctx context.Context, route marketDomain.Route) (pricingDomain.Evaluation, bool) {
	quoteA, quoteB, err := c.pricing.QuotePair(ctx, route)
	if err != nil {
		c.logger.Debug(ctx, "re-quote failed", "route", route.Key.String(), "error", err)
		return pricingDomain.Evaluation{}, false
	}
	return pricingDomain.EvaluateRoundTrip(
		route.VenueA.ID, route.VenueB.ID,
		quoteA.Price, quoteB.Price,
		route.VenueA.FeeFraction(), route.VenueB.FeeFraction(),
		route.AmountIn,
	)
}

// buildParams assembles the contract call arguments. The first router is
// always the buy side.
func (c *Coordinator) buildParams(route marketDomain.Route, ev pricingDomain.Evaluation, contractCfg *domain.ContractConfig) (domain.ExecutionParams, error) {
	buyRouter, sellRouter := route.VenueA.RouterAddress, route.VenueB.RouterAddress
	if ev.BuyVenueID == route.VenueB.ID {
		buyRouter, sellRouter = route.VenueB.RouterAddress, route.VenueA.RouterAddress
	}

	rawIn := route.Base.ToRaw(route.AmountIn)
	if rawIn.Sign() <= 0 {
		return domain.ExecutionParams{}, fmt.Errorf("amount %s truncates to zero raw units", route.AmountIn)
	}

	// Tolerate tolerance-bounded slippage between re-quote and inclusion,
	// but never accept less than the contract's floor.
	minProfit := route.Base.ToRaw(ev.EstimatedProfit.Mul(c.tolerance))
	if floor := contractCfg.MinProfitFloor; floor.IsPositive() {
		if decimal.NewFromBigInt(minProfit, 0).LessThan(floor) {
			minProfit = floor.BigInt()
		}
	}
	if minProfit.Sign() < 0 {
		minProfit = big.NewInt(0)
	}

	return domain.ExecutionParams{
		TokenA:            route.Base.Address,
		TokenB:            route.Quote.Address,
		VenueARouter:      buyRouter,
		VenueBRouter:      sellRouter,
		AmountIn:          rawIn,
		MinProfitExpected: minProfit,
		Deadline:          time.Now().UTC().Add(c.cfg.DeadlineWindow),
	}, nil
}

// dryRun simulates without spending anything, then resolves the opportunity.
func (c *Coordinator) dryRun(ctx context.Context, opp *opportunityDomain.Opportunity, route marketDomain.Route, params domain.ExecutionParams) {
	sim, err := c.contract.Simulate(ctx, route.Key.Network, params)
	if err != nil {
		c.logger.Warn(ctx, "dry-run simulation failed", "id", opp.ID, "error", err)
		c.expire(ctx, opp, fmt.Sprintf("dry run: simulation failed: %v", err))
		return
	}
	c.logger.Info(ctx, "dry-run simulation",
		"id", opp.ID,
		"route", opp.Key.String(),
		"projected_profit", sim.Profit.String(),
		"profitable", sim.Profitable,
	)
	c.expire(ctx, opp, fmt.Sprintf("dry run: projected profit %s, profitable=%t", sim.Profit, sim.Profitable))
}

// submit signs and broadcasts the call, recording the Pending transaction
// between the two so a crash mid-broadcast is recoverable.
func (c *Coordinator) submit(ctx context.Context, opp *opportunityDomain.Opportunity, route marketDomain.Route, params domain.ExecutionParams) {
	var record *domain.Transaction

	hash, err := c.contract.Execute(ctx, route.Key.Network, params, func(hash string) error {
		record = domain.NewTransaction(
			hash, route.Key.Network, opp.ID,
			c.executorFrom, c.contracts[route.Key.Network],
			route.Base.Address, route.Quote.Address,
			opp.AmountIn, 0,
		)
		return c.txs.Create(ctx, record)
	})
	if err != nil {
		if record != nil && hash != "" {
			// Signed and recorded but never broadcast.
			record.Status = domain.TxCancelled
			now := time.Now().UTC()
			record.ConfirmedAt = &now
			if uerr := c.txs.Update(ctx, record); uerr != nil {
				c.logger.Error(ctx, "failed to cancel unbroadcast transaction", "id", record.ID, "error", uerr)
			}
		}
		c.fail(ctx, opp, err)
		return
	}

	c.metrics.submissionsTotal.Add(ctx, 1)
	c.logger.Info(ctx, "execution submitted",
		"id", opp.ID,
		"route", opp.Key.String(),
		"tx_hash", hash,
	)
	// The settlement tracker resolves the opportunity from here.
}

// expire resolves an analyzing opportunity whose market conditions moved.
func (c *Coordinator) expire(ctx context.Context, opp *opportunityDomain.Opportunity, reason string) {
	c.metrics.expiredTotal.Add(ctx, 1)

	_, err := c.store.Transition(ctx, opp.ID, opportunityDomain.StatusAnalyzing, opportunityDomain.StatusExpired,
		&opportunityApp.TransitionFields{ErrorMessage: reason})
	if err != nil {
		c.logger.Error(ctx, "failed to expire opportunity", "id", opp.ID, "error", err)
		return
	}

	c.logger.Info(ctx, "opportunity expired", "id", opp.ID, "route", opp.Key.String(), "reason", reason)
	c.notifier.Publish(ctx, notifyApp.Event{
		Type:          notifyApp.EventOpportunityExpired,
		OpportunityID: opp.ID,
		DetectionKey:  opp.Key.String(),
		Network:       opp.Key.Network,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
	})
}

// fail resolves an executing opportunity whose submission could not proceed
// and opens the route's cool-down window.
func (c *Coordinator) fail(ctx context.Context, opp *opportunityDomain.Opportunity, cause error) {
	c.metrics.executionsFailed.Add(ctx, 1)
	key := opp.Key.String()

	_, err := c.store.Transition(ctx, opp.ID, opportunityDomain.StatusExecuting, opportunityDomain.StatusFailed,
		&opportunityApp.TransitionFields{ErrorMessage: cause.Error()})
	if err != nil {
		c.logger.Error(ctx, "failed to fail opportunity", "id", opp.ID, "error", err)
	}

	if c.cooldowns != nil && c.cfg.Cooldown > 0 {
		if err := c.cooldowns.Set(ctx, key, c.cfg.Cooldown); err != nil {
			c.logger.Warn(ctx, "failed to set cooldown", "route", key, "error", err)
		}
	}

	c.logger.Warn(ctx, "execution failed", "id", opp.ID, "route", key, "error", cause)
	c.notifier.Publish(ctx, notifyApp.Event{
		Type:          notifyApp.EventExecutionFailed,
		OpportunityID: opp.ID,
		DetectionKey:  key,
		Network:       opp.Key.Network,
		Reason:        cause.Error(),
		Timestamp:     time.Now().UTC(),
	})
}
