package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	marketApp "github.com/cryptoking82/evm-arbitrage-bot/business/market/app"
	notifyApp "github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	opportunityApp "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/app"
	opportunityDomain "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

const (
	settlementTracer = "settlement"
	settlementMeter  = "settlement"
)

// settlementMetrics holds OTEL metric instruments.
type settlementMetrics struct {
	confirmedTotal    metric.Int64Counter
	revertedTotal     metric.Int64Counter
	stuckTotal        metric.Int64Counter
	settlementLatency metric.Float64Histogram
	realizedProfit    metric.Float64Histogram
}

// SettlementDeps bundles the ports the settlement tracker drives.
type SettlementDeps struct {
	Config    config.ExecutionConfig
	TxStore   TxStore
	Contract  ContractClient
	Store     opportunityApp.Store
	Registry  marketApp.Registry
	Cooldowns Cooldowns
	Notifier  *notifyApp.Notifier
	Logger    logger.LoggerInterface
}

// Settlement polls pending transactions until each confirms, reverts, or
// exceeds the confirmation timeout. It works purely from the transaction
// store, so crashed-and-restarted instances resume tracking automatically.
type Settlement struct {
	cfg       config.ExecutionConfig
	txs       TxStore
	contract  ContractClient
	store     opportunityApp.Store
	registry  marketApp.Registry
	cooldowns Cooldowns
	notifier  *notifyApp.Notifier
	logger    logger.LoggerInterface

	tracer  trace.Tracer
	metrics *settlementMetrics
}

// NewSettlement creates a settlement tracker.
func NewSettlement(deps SettlementDeps) (*Settlement, error) {
	s := &Settlement{
		cfg:       deps.Config,
		txs:       deps.TxStore,
		contract:  deps.Contract,
		store:     deps.Store,
		registry:  deps.Registry,
		cooldowns: deps.Cooldowns,
		notifier:  deps.Notifier,
		logger:    deps.Logger.With("component", "settlement"),
		tracer:    otel.Tracer(settlementTracer),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return s, nil
}

func (s *Settlement) initMetrics() error {
	meter := otel.Meter(settlementMeter)
	var err error

	s.metrics = &settlementMetrics{}

	s.metrics.confirmedTotal, err = meter.Int64Counter(
		"settlements_confirmed_total",
		metric.WithDescription("Transactions confirmed successfully"),
	)
	if err != nil {
		return err
	}

	s.metrics.revertedTotal, err = meter.Int64Counter(
		"settlements_reverted_total",
		metric.WithDescription("Transactions that reverted on-chain"),
	)
	if err != nil {
		return err
	}

	s.metrics.stuckTotal, err = meter.Int64Counter(
		"settlements_stuck_total",
		metric.WithDescription("Transactions unconfirmed past the timeout"),
	)
	if err != nil {
		return err
	}

	s.metrics.settlementLatency, err = meter.Float64Histogram(
		"settlement_latency_seconds",
		metric.WithDescription("Time from submission to settlement"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	s.metrics.realizedProfit, err = meter.Float64Histogram(
		"realized_profit",
		metric.WithDescription("Realized profit per confirmed execution, base token units"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Run polls until ctx is cancelled.
func (s *Settlement) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.ConfirmPollInterval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// sweep checks every pending transaction once.
func (s *Settlement) sweep(ctx context.Context) {
	pending, err := s.txs.ListPending(ctx)
	if err != nil {
		s.logger.Error(ctx, "failed to list pending transactions", "error", err)
		return
	}
	for _, tx := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.check(ctx, tx)
	}
}

// check resolves one pending transaction if a receipt is available.
func (s *Settlement) check(ctx context.Context, tx *domain.Transaction) {
	ctx, span := s.tracer.Start(ctx, "settlement.check",
		trace.WithAttributes(
			attribute.String("tx_hash", tx.Hash),
			attribute.String("network", tx.Network),
		),
	)
	defer span.End()

	result, err := s.contract.Receipt(ctx, tx.Network, tx.Hash)
	if apperror.IsCode(err, apperror.CodeReceiptNotFound) {
		if s.cfg.ConfirmTimeout > 0 && time.Since(tx.SubmittedAt) > s.cfg.ConfirmTimeout {
			s.escalateStuck(ctx, tx)
		}
		return
	}
	if err != nil {
		span.RecordError(err)
		s.logger.Warn(ctx, "receipt fetch failed", "tx_hash", tx.Hash, "error", err)
		return
	}

	if result.Reverted {
		s.settleReverted(ctx, tx, result)
		return
	}
	s.settleConfirmed(ctx, tx, result)
}

// escalateStuck gives up on a transaction unconfirmed past the timeout. The
// record and its opportunity resolve as failed; the deadline embedded in the
// call guarantees a late inclusion reverts instead of executing stale.
func (s *Settlement) escalateStuck(ctx context.Context, tx *domain.Transaction) {
	s.metrics.stuckTotal.Add(ctx, 1)
	reason := fmt.Sprintf("unconfirmed after %s", s.cfg.ConfirmTimeout)

	now := time.Now().UTC()
	tx.Status = domain.TxFailed
	tx.ConfirmedAt = &now
	if err := s.txs.Update(ctx, tx); err != nil {
		s.logger.Error(ctx, "failed to mark stuck transaction", "id", tx.ID, "error", err)
		return
	}

	s.resolveOpportunity(ctx, tx, opportunityDomain.StatusFailed,
		&opportunityApp.TransitionFields{ErrorMessage: reason})
	s.openCooldown(ctx, tx)

	s.logger.Error(ctx, "settlement stuck", "tx_hash", tx.Hash, "network", tx.Network, "reason", reason)
	s.notify(ctx, tx, notifyApp.Event{
		Type:   notifyApp.EventSettlementStuck,
		TxHash: tx.Hash,
		Reason: reason,
	})
}

// settleReverted resolves a transaction the chain rejected. On-chain nothing
// moved; off-chain the opportunity fails and the route cools down.
func (s *Settlement) settleReverted(ctx context.Context, tx *domain.Transaction, result *domain.ExecutionResult) {
	s.metrics.revertedTotal.Add(ctx, 1)

	now := time.Now().UTC()
	gasFee := gasFeeNative(result)

	tx.Status = domain.TxFailed
	tx.GasUsed = &result.GasUsed
	tx.BlockNumber = &result.BlockNumber
	tx.ConfirmedAt = &now
	if result.GasPriceWei != nil {
		v := decimal.NewFromBigInt(result.GasPriceWei, 0)
		tx.GasPriceWei = &v
	}
	tx.GasFee = &gasFee
	if err := s.txs.Update(ctx, tx); err != nil {
		s.logger.Error(ctx, "failed to mark reverted transaction", "id", tx.ID, "error", err)
		return
	}

	s.resolveOpportunity(ctx, tx, opportunityDomain.StatusFailed,
		&opportunityApp.TransitionFields{
			ActualGasFee: &gasFee,
			ErrorMessage: result.RevertReason,
		})
	s.openCooldown(ctx, tx)

	s.logger.Warn(ctx, "execution reverted",
		"tx_hash", tx.Hash,
		"network", tx.Network,
		"reason", result.RevertReason,
		"gas_fee", gasFee.StringFixed(8),
	)
	s.notify(ctx, tx, notifyApp.Event{
		Type:   notifyApp.EventExecutionFailed,
		TxHash: tx.Hash,
		Reason: result.RevertReason,
	})
}

// settleConfirmed records the realized outcome. The emitted event is the
// source of truth for profit; nothing is recomputed from quotes.
func (s *Settlement) settleConfirmed(ctx context.Context, tx *domain.Transaction, result *domain.ExecutionResult) {
	s.metrics.confirmedTotal.Add(ctx, 1)

	now := time.Now().UTC()
	gasFee := gasFeeNative(result)
	profit, amountOut := s.realizedAmounts(ctx, tx, result)

	pct := decimal.Zero
	if tx.AmountIn.IsPositive() {
		pct = profit.Div(tx.AmountIn).Mul(decimal.NewFromInt(100))
	}

	tx.Status = domain.TxConfirmed
	tx.AmountOut = &amountOut
	tx.GasUsed = &result.GasUsed
	tx.BlockNumber = &result.BlockNumber
	tx.ConfirmedAt = &now
	if result.GasPriceWei != nil {
		v := decimal.NewFromBigInt(result.GasPriceWei, 0)
		tx.GasPriceWei = &v
	}
	tx.GasFee = &gasFee
	tx.RealizedProfit = &profit
	tx.RealizedPct = &pct
	if err := s.txs.Update(ctx, tx); err != nil {
		s.logger.Error(ctx, "failed to mark confirmed transaction", "id", tx.ID, "error", err)
		return
	}

	s.resolveOpportunity(ctx, tx, opportunityDomain.StatusCompleted,
		&opportunityApp.TransitionFields{
			ActualProfit: &profit,
			ActualGasFee: &gasFee,
		})

	latency := now.Sub(tx.SubmittedAt).Seconds()
	s.metrics.settlementLatency.Record(ctx, latency)
	profitFloat, _ := profit.Float64()
	s.metrics.realizedProfit.Record(ctx, profitFloat)

	s.logger.Info(ctx, "execution confirmed",
		"tx_hash", tx.Hash,
		"network", tx.Network,
		"block", result.BlockNumber,
		"realized_profit", profit.StringFixed(6),
		"gas_fee", gasFee.StringFixed(8),
	)
	s.notify(ctx, tx, notifyApp.Event{
		Type:      notifyApp.EventExecutionCompleted,
		TxHash:    tx.Hash,
		Profit:    profit,
		ProfitPct: pct,
	})
}

// realizedAmounts converts the raw event amounts to human base token units.
func (s *Settlement) realizedAmounts(ctx context.Context, tx *domain.Transaction, result *domain.ExecutionResult) (profit, amountOut decimal.Decimal) {
	base, ok := s.registry.Token(tx.Network, tx.TokenIn)
	if !ok {
		s.logger.Warn(ctx, "base token not registered, recording raw amounts",
			"network", tx.Network, "token", tx.TokenIn.Hex())
		if result.Profit != nil {
			profit = decimal.NewFromBigInt(result.Profit, 0)
		}
		if result.AmountOut != nil {
			amountOut = decimal.NewFromBigInt(result.AmountOut, 0)
		}
		return profit, amountOut
	}

	if result.Profit != nil {
		profit = base.FromRaw(result.Profit)
	} else {
		s.logger.Warn(ctx, "confirmed receipt without execution event", "tx_hash", tx.Hash)
	}
	if result.AmountOut != nil {
		amountOut = base.FromRaw(result.AmountOut)
	}
	return profit, amountOut
}

// resolveOpportunity moves the opportunity out of Executing with the
// settlement outcome.
func (s *Settlement) resolveOpportunity(ctx context.Context, tx *domain.Transaction, to opportunityDomain.Status, fields *opportunityApp.TransitionFields) {
	_, err := s.store.Transition(ctx, tx.OpportunityID, opportunityDomain.StatusExecuting, to, fields)
	if err != nil {
		s.logger.Error(ctx, "failed to resolve opportunity",
			"opportunity_id", tx.OpportunityID, "to", string(to), "error", err)
	}
}

// openCooldown pauses detection on the failed route.
func (s *Settlement) openCooldown(ctx context.Context, tx *domain.Transaction) {
	if s.cooldowns == nil || s.cfg.Cooldown <= 0 {
		return
	}
	opp, err := s.store.Get(ctx, tx.OpportunityID)
	if err != nil {
		s.logger.Warn(ctx, "failed to load opportunity for cooldown", "id", tx.OpportunityID, "error", err)
		return
	}
	if err := s.cooldowns.Set(ctx, opp.Key.String(), s.cfg.Cooldown); err != nil {
		s.logger.Warn(ctx, "failed to set cooldown", "route", opp.Key.String(), "error", err)
	}
}

// notify fills the route fields from the opportunity and publishes.
func (s *Settlement) notify(ctx context.Context, tx *domain.Transaction, event notifyApp.Event) {
	event.OpportunityID = tx.OpportunityID
	event.Network = tx.Network
	event.Timestamp = time.Now().UTC()
	if opp, err := s.store.Get(ctx, tx.OpportunityID); err == nil {
		event.DetectionKey = opp.Key.String()
	}
	s.notifier.Publish(ctx, event)
}

// gasFeeNative converts gasUsed x gasPrice to native token human units.
func gasFeeNative(result *domain.ExecutionResult) decimal.Decimal {
	if result.GasPriceWei == nil || result.GasUsed == 0 {
		return decimal.Zero
	}
	feeWei := new(big.Int).Mul(result.GasPriceWei, new(big.Int).SetUint64(result.GasUsed))
	return decimal.NewFromBigInt(feeWei, -18)
}
