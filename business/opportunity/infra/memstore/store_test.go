package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

func newTestOpportunity(t *testing.T, venueA string, profitPct string) *domain.Opportunity {
	t.Helper()
	return domain.NewOpportunity(
		marketDomain.DetectionKey{
			Network: "ethereum",
			Base:    "WETH",
			Quote:   "USDC",
			VenueA:  venueA,
			VenueB:  "sushiswap",
		},
		common.HexToAddress("0x1"),
		common.HexToAddress("0x2"),
		decimal.RequireFromString("100"),
		decimal.RequireFromString("105"),
		decimal.RequireFromString("1000"),
		decimal.RequireFromString("43.7"),
		decimal.RequireFromString(profitPct),
		decimal.RequireFromString("0.01"),
		30*time.Second,
	)
}

func TestCreateRejectsDuplicateActiveKey(t *testing.T) {
	ctx := context.Background()
	store := New()

	first := newTestOpportunity(t, "uniswap", "2")
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := newTestOpportunity(t, "uniswap", "3")
	err := store.Create(ctx, second)
	if !apperror.IsCode(err, apperror.CodeDuplicateActiveKey) {
		t.Fatalf("expected DUPLICATE_ACTIVE_KEY, got %v", err)
	}

	// A different key is unaffected.
	other := newTestOpportunity(t, "pancakeswap", "2")
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("create other key: %v", err)
	}
}

func TestCreateAllowsNewSnapshotAfterTerminal(t *testing.T) {
	ctx := context.Background()
	store := New()

	first := newTestOpportunity(t, "uniswap", "2")
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Transition(ctx, first.ID, domain.StatusDetected, domain.StatusExpired, nil); err != nil {
		t.Fatalf("expire: %v", err)
	}

	second := newTestOpportunity(t, "uniswap", "2")
	if err := store.Create(ctx, second); err != nil {
		t.Fatalf("expected new snapshot after terminal state, got %v", err)
	}
}

func TestTransitionRejectsIllegalEdgeAndLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	store := New()

	opp := newTestOpportunity(t, "uniswap", "2")
	if err := store.Create(ctx, opp); err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err := store.Transition(ctx, opp.ID, domain.StatusDetected, domain.StatusCompleted, nil)
	if !apperror.IsCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION, got %v", err)
	}

	got, err := store.Get(ctx, opp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.StatusDetected {
		t.Fatalf("rejection must leave state unchanged, got %s", got.Status)
	}

	// Rejection is idempotent.
	_, err = store.Transition(ctx, opp.ID, domain.StatusDetected, domain.StatusCompleted, nil)
	if !apperror.IsCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION on retry, got %v", err)
	}
}

func TestTransitionUnknownID(t *testing.T) {
	store := New()
	_, err := store.Transition(context.Background(), "missing", domain.StatusDetected, domain.StatusAnalyzing, nil)
	if !apperror.IsCode(err, apperror.CodeOpportunityNotFound) {
		t.Fatalf("expected OPPORTUNITY_NOT_FOUND, got %v", err)
	}
}

func TestClaimRaceExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	store := New()

	opp := newTestOpportunity(t, "uniswap", "2")
	if err := store.Create(ctx, opp); err != nil {
		t.Fatalf("create: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	losses := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Transition(ctx, opp.ID, domain.StatusDetected, domain.StatusAnalyzing, nil)
			if err == nil {
				wins <- struct{}{}
			} else {
				losses <- err
			}
		}()
	}
	wg.Wait()
	close(wins)
	close(losses)

	if got := len(wins); got != 1 {
		t.Fatalf("expected exactly one claim winner, got %d", got)
	}
	for err := range losses {
		if !apperror.IsCode(err, apperror.CodeInvalidTransition) {
			t.Fatalf("loser must receive INVALID_TRANSITION, got %v", err)
		}
	}
}

func TestTransitionRecordsActualsOnce(t *testing.T) {
	ctx := context.Background()
	store := New()

	opp := newTestOpportunity(t, "uniswap", "2")
	if err := store.Create(ctx, opp); err != nil {
		t.Fatalf("create: %v", err)
	}
	mustTransition(t, store, opp.ID, domain.StatusDetected, domain.StatusAnalyzing)
	mustTransition(t, store, opp.ID, domain.StatusAnalyzing, domain.StatusExecuting)

	profit := decimal.RequireFromString("41.2")
	gas := decimal.RequireFromString("0.008")
	got, err := store.Transition(ctx, opp.ID, domain.StatusExecuting, domain.StatusCompleted, &app.TransitionFields{
		ActualProfit: &profit,
		ActualGasFee: &gas,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got.ActualProfit == nil || !got.ActualProfit.Equal(profit) {
		t.Fatalf("actual profit not recorded: %v", got.ActualProfit)
	}
	if got.ActualGasFee == nil || !got.ActualGasFee.Equal(gas) {
		t.Fatalf("actual gas fee not recorded: %v", got.ActualGasFee)
	}
	if got.CompletedAt == nil {
		t.Fatal("completed_at not set")
	}

	// Terminal records never mutate again.
	_, err = store.Transition(ctx, opp.ID, domain.StatusCompleted, domain.StatusFailed, nil)
	if !apperror.IsCode(err, apperror.CodeInvalidTransition) {
		t.Fatalf("expected INVALID_TRANSITION from terminal, got %v", err)
	}
}

func TestListEligibleOrderingAndExpiry(t *testing.T) {
	ctx := context.Background()
	store := New()

	low := newTestOpportunity(t, "v1", "1.5")
	highOld := newTestOpportunity(t, "v2", "3")
	highNew := newTestOpportunity(t, "v3", "3")
	highNew.DetectedAt = highOld.DetectedAt.Add(time.Second)
	expired := newTestOpportunity(t, "v4", "9")
	expired.ExpiresAt = time.Now().Add(-time.Second)

	for _, opp := range []*domain.Opportunity{low, highOld, highNew, expired} {
		if err := store.Create(ctx, opp); err != nil {
			t.Fatalf("create %s: %v", opp.Key.VenueA, err)
		}
	}

	// A claimed opportunity leaves the eligible set.
	claimed := newTestOpportunity(t, "v5", "8")
	if err := store.Create(ctx, claimed); err != nil {
		t.Fatalf("create claimed: %v", err)
	}
	mustTransition(t, store, claimed.ID, domain.StatusDetected, domain.StatusAnalyzing)

	got, err := store.ListEligible(ctx, time.Now(), 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 eligible, got %d", len(got))
	}
	if got[0].ID != highOld.ID {
		t.Errorf("expected first-detected tie winner first, got %s", got[0].Key.VenueA)
	}
	if got[1].ID != highNew.ID {
		t.Errorf("expected later tie loser second, got %s", got[1].Key.VenueA)
	}
	if got[2].ID != low.ID {
		t.Errorf("expected lowest profit last, got %s", got[2].Key.VenueA)
	}
	for _, opp := range got {
		if opp.ID == expired.ID {
			t.Error("expired opportunity must be excluded before any transition")
		}
	}
}

func TestListEligibleLimit(t *testing.T) {
	ctx := context.Background()
	store := New()

	for i, pct := range []string{"1", "2", "3"} {
		opp := newTestOpportunity(t, string(rune('a'+i)), pct)
		if err := store.Create(ctx, opp); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := store.ListEligible(ctx, time.Now(), 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2, got %d", len(got))
	}
	if !got[0].ProfitPct.Equal(decimal.RequireFromString("3")) {
		t.Errorf("expected best first, got %s", got[0].ProfitPct)
	}
}

func mustTransition(t *testing.T, store *Store, id string, from, to domain.Status) {
	t.Helper()
	if _, err := store.Transition(context.Background(), id, from, to, nil); err != nil {
		t.Fatalf("transition %s -> %s: %v", from, to, err)
	}
}
