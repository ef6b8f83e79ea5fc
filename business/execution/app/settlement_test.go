package app

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	notifyApp "github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	opportunityDomain "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

func newSettlementFixture(t *testing.T, mutate func(*config.ExecutionConfig)) (*fixture, *Settlement) {
	t.Helper()

	f := newFixture(t, mutate)

	execCfg := testExecutionConfig()
	if mutate != nil {
		mutate(&execCfg)
	}

	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	settle, err := NewSettlement(SettlementDeps{
		Config:    execCfg,
		TxStore:   f.txs,
		Contract:  f.contract,
		Store:     f.store,
		Registry:  f.registry,
		Cooldowns: f.cooldowns,
		Notifier:  notifyApp.NewNotifier([]notifyApp.Sender{f.sender}, nil, log),
		Logger:    log,
	})
	if err != nil {
		t.Fatalf("failed to create settlement tracker: %v", err)
	}
	return f, settle
}

// submitPendingTx stages an opportunity in Executing with one pending
// transaction awaiting settlement.
func submitPendingTx(t *testing.T, f *fixture, submittedAt time.Time) (*opportunityDomain.Opportunity, *domain.Transaction) {
	t.Helper()
	ctx := context.Background()

	opp := f.detectOpportunity(t)
	mustStep := func(from, to opportunityDomain.Status) {
		if _, err := f.store.Transition(ctx, opp.ID, from, to, nil); err != nil {
			t.Fatalf("setup transition %s -> %s failed: %v", from, to, err)
		}
	}
	mustStep(opportunityDomain.StatusDetected, opportunityDomain.StatusAnalyzing)
	mustStep(opportunityDomain.StatusAnalyzing, opportunityDomain.StatusExecuting)

	tx := domain.NewTransaction("0xdeadbeef", "testnet", opp.ID,
		testExecutor, testContract, testTokenA, testTokenB,
		decimal.NewFromInt(1), 0)
	tx.SubmittedAt = submittedAt
	if err := f.txs.Create(ctx, tx); err != nil {
		t.Fatalf("failed to create pending transaction: %v", err)
	}
	return opp, tx
}

func TestSettlementConfirmsFromEvent(t *testing.T) {
	f, settle := newSettlementFixture(t, nil)
	opp, tx := submitPendingTx(t, f, time.Now().UTC())

	// 0.05 WETH profit, 1.05 WETH recovered, in raw 18-decimal units.
	f.contract.receipts["0xdeadbeef"] = &domain.ExecutionResult{
		TxHash:      "0xdeadbeef",
		BlockNumber: 123,
		AmountIn:    big.NewInt(1e18),
		AmountOut:   big.NewInt(1.05e18),
		Profit:      big.NewInt(5e16),
		GasUsed:     250000,
		GasPriceWei: big.NewInt(50e9),
	}

	settle.sweep(context.Background())

	settled, err := f.txs.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if settled.Status != domain.TxConfirmed {
		t.Fatalf("expected confirmed transaction, got %s", settled.Status)
	}
	if settled.RealizedProfit == nil || !settled.RealizedProfit.Equal(decimal.NewFromFloat(0.05)) {
		t.Fatalf("expected realized profit 0.05, got %v", settled.RealizedProfit)
	}
	wantFee := decimal.NewFromFloat(0.0125) // 250000 * 50 gwei
	if settled.GasFee == nil || !settled.GasFee.Equal(wantFee) {
		t.Fatalf("expected gas fee %s, got %v", wantFee, settled.GasFee)
	}
	if settled.BlockNumber == nil || *settled.BlockNumber != 123 {
		t.Fatalf("expected block 123, got %v", settled.BlockNumber)
	}

	final, err := f.store.Get(context.Background(), opp.ID)
	if err != nil {
		t.Fatalf("failed to get opportunity: %v", err)
	}
	if final.Status != opportunityDomain.StatusCompleted {
		t.Fatalf("expected completed opportunity, got %s", final.Status)
	}
	if final.ActualProfit == nil || !final.ActualProfit.Equal(decimal.NewFromFloat(0.05)) {
		t.Fatalf("expected actual profit 0.05, got %v", final.ActualProfit)
	}

	if got := f.sender.byType(notifyApp.EventExecutionCompleted); len(got) != 1 {
		t.Fatalf("expected one execution_completed event, got %d", len(got))
	}
	if active, _ := f.cooldowns.Active(context.Background(), opp.Key.String()); active {
		t.Fatal("expected no cooldown after a successful settlement")
	}
}

func TestSettlementRevertFailsAndCoolsDown(t *testing.T) {
	f, settle := newSettlementFixture(t, nil)
	opp, tx := submitPendingTx(t, f, time.Now().UTC())

	f.contract.receipts["0xdeadbeef"] = &domain.ExecutionResult{
		TxHash:       "0xdeadbeef",
		BlockNumber:  124,
		GasUsed:      180000,
		GasPriceWei:  big.NewInt(50e9),
		Reverted:     true,
		RevertReason: "Profit below expectation",
	}

	settle.sweep(context.Background())

	settled, err := f.txs.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if settled.Status != domain.TxFailed {
		t.Fatalf("expected failed transaction, got %s", settled.Status)
	}

	final, err := f.store.Get(context.Background(), opp.ID)
	if err != nil {
		t.Fatalf("failed to get opportunity: %v", err)
	}
	if final.Status != opportunityDomain.StatusFailed {
		t.Fatalf("expected failed opportunity, got %s", final.Status)
	}
	if final.ErrorMessage != "Profit below expectation" {
		t.Fatalf("expected revert reason recorded, got %q", final.ErrorMessage)
	}
	// Gas was spent even though nothing moved.
	if final.ActualGasFee == nil || !final.ActualGasFee.IsPositive() {
		t.Fatalf("expected positive actual gas fee, got %v", final.ActualGasFee)
	}

	if active, _ := f.cooldowns.Active(context.Background(), opp.Key.String()); !active {
		t.Fatal("expected cooldown after revert")
	}
	if got := f.sender.byType(notifyApp.EventExecutionFailed); len(got) != 1 {
		t.Fatalf("expected one execution_failed event, got %d", len(got))
	}
}

func TestSettlementWaitsWithinTimeout(t *testing.T) {
	f, settle := newSettlementFixture(t, nil)
	opp, tx := submitPendingTx(t, f, time.Now().UTC())

	// No receipt yet and the timeout is far away: nothing changes.
	settle.sweep(context.Background())

	settled, err := f.txs.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if settled.Status != domain.TxPending {
		t.Fatalf("expected transaction still pending, got %s", settled.Status)
	}
	if got := f.status(t, opp.ID); got != opportunityDomain.StatusExecuting {
		t.Fatalf("expected opportunity still executing, got %s", got)
	}
}

func TestSettlementEscalatesStuckTransaction(t *testing.T) {
	f, settle := newSettlementFixture(t, nil)
	opp, tx := submitPendingTx(t, f, time.Now().UTC().Add(-10*time.Minute))

	settle.sweep(context.Background())

	settled, err := f.txs.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if settled.Status != domain.TxFailed {
		t.Fatalf("expected failed transaction, got %s", settled.Status)
	}

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusFailed {
		t.Fatalf("expected failed opportunity, got %s", got)
	}
	if got := f.sender.byType(notifyApp.EventSettlementStuck); len(got) != 1 {
		t.Fatalf("expected one settlement_stuck event, got %d", len(got))
	}
	if active, _ := f.cooldowns.Active(context.Background(), opp.Key.String()); !active {
		t.Fatal("expected cooldown after stuck escalation")
	}
}

func TestSettlementResumesPendingOnRestart(t *testing.T) {
	f, _ := newSettlementFixture(t, nil)
	_, tx := submitPendingTx(t, f, time.Now().UTC())

	// A fresh tracker over the same store picks the record up.
	_, settle := newSettlementFixture(t, nil)
	settle.txs = f.txs
	settle.store = f.store
	settle.contract = f.contract

	f.contract.receipts["0xdeadbeef"] = &domain.ExecutionResult{
		TxHash:      "0xdeadbeef",
		BlockNumber: 125,
		Profit:      big.NewInt(1e16),
		AmountOut:   big.NewInt(1.01e18),
		GasUsed:     200000,
		GasPriceWei: big.NewInt(40e9),
	}

	settle.sweep(context.Background())

	settled, err := f.txs.Get(context.Background(), tx.ID)
	if err != nil {
		t.Fatalf("failed to get transaction: %v", err)
	}
	if settled.Status != domain.TxConfirmed {
		t.Fatalf("expected confirmed transaction after resume, got %s", settled.Status)
	}
}
