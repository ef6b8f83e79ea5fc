package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/business/market/infra/staticreg"
	notifyApp "github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	opportunityDomain "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	oppMemstore "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/infra/memstore"
	pricingDomain "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

type fakeQuoteSource struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal // venue id -> quote per base
	errs   map[string]error
	calls  int
}

func (f *fakeQuoteSource) Quote(ctx context.Context, venue *marketDomain.Venue, base, quote *marketDomain.Token, amountIn decimal.Decimal) (*pricingDomain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[venue.ID]; err != nil {
		return nil, err
	}
	price := f.prices[venue.ID]
	return pricingDomain.NewQuote(venue.ID, venue.Network, base.Symbol, quote.Symbol, amountIn, amountIn.Mul(price)), nil
}

func (f *fakeQuoteSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeQuoteSource) setPrice(venueID string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[venueID] = price
}

type fakeGasOracle struct{}

func (f *fakeGasOracle) GasPrice(ctx context.Context, network string) (*pricingDomain.GasPrice, error) {
	return pricingDomain.NewGasPrice(big.NewInt(50_000_000_000)), nil
}

func (f *fakeGasOracle) EstimateGas(ctx context.Context, network string, to string, data []byte) (uint64, error) {
	return 350000, nil
}

type fakeCooldowns struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (f *fakeCooldowns) Set(ctx context.Context, key string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys[key] = true
	return nil
}

func (f *fakeCooldowns) Active(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

type recordingSender struct {
	mu     sync.Mutex
	events []notifyApp.Event
}

func (r *recordingSender) Send(ctx context.Context, event notifyApp.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSender) Name() string { return "recording" }

func (r *recordingSender) byType(t notifyApp.EventType) []notifyApp.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notifyApp.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func registryConfig() *config.Config {
	return &config.Config{
		Networks: []config.NetworkConfig{{
			Name:    "testnet",
			ChainID: 1,
			RPCURL:  "http://localhost:8545",
		}},
		Venues: []config.VenueConfig{
			{ID: "uni", Network: "testnet", RouterAddress: "0x00000000000000000000000000000000000000a1"},
			{ID: "sushi", Network: "testnet", RouterAddress: "0x00000000000000000000000000000000000000b1"},
		},
		Tokens: []config.TokenConfig{
			{Symbol: "WETH", Network: "testnet", Address: "0x0000000000000000000000000000000000000001", Decimals: 18},
			{Symbol: "USDC", Network: "testnet", Address: "0x0000000000000000000000000000000000000002", Decimals: 6},
		},
		Routes: []config.RouteConfig{
			{Network: "testnet", Base: "WETH", Quote: "USDC", VenueA: "uni", VenueB: "sushi", AmountIn: 1},
		},
	}
}

type detectorFixture struct {
	detector  *Detector
	registry  *staticreg.Registry
	quotes    *fakeQuoteSource
	store     *oppMemstore.Store
	cooldowns *fakeCooldowns
	sender    *recordingSender
	route     marketDomain.Route
}

func newDetectorFixture(t *testing.T) *detectorFixture {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)

	registry, err := staticreg.New(registryConfig(), log)
	if err != nil {
		t.Fatalf("staticreg.New: %v", err)
	}
	routes := registry.Routes()
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}

	quotes := &fakeQuoteSource{
		prices: map[string]decimal.Decimal{
			"uni":   decimal.NewFromInt(100),
			"sushi": decimal.NewFromInt(102),
		},
		errs: make(map[string]error),
	}
	store := oppMemstore.New()
	cooldowns := &fakeCooldowns{keys: make(map[string]bool)}
	sender := &recordingSender{}
	notifier := notifyApp.NewNotifier([]notifyApp.Sender{sender}, nil, log)

	det, err := NewDetector(
		config.DetectionConfig{
			Interval:      time.Second,
			QuoteTimeout:  time.Second,
			MinProfitBps:  100, // 1%
			ExpiryHorizon: 30 * time.Second,
		},
		registry, quotes, &fakeGasOracle{}, store, cooldowns, notifier, log,
	)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	return &detectorFixture{
		detector:  det,
		registry:  registry,
		quotes:    quotes,
		store:     store,
		cooldowns: cooldowns,
		sender:    sender,
		route:     routes[0],
	}
}

func (f *detectorFixture) detected(t *testing.T) []*opportunityDomain.Opportunity {
	t.Helper()
	opps, err := f.store.ListEligible(context.Background(), time.Now().UTC(), 0)
	if err != nil {
		t.Fatalf("ListEligible: %v", err)
	}
	return opps
}

func TestDetectorCreatesOpportunityAboveThreshold(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	// 100 vs 102 with zero venue fees is a 2% round trip over the 1%
	// threshold.
	f.detector.cycle(ctx, f.route)

	opps := f.detected(t)
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	opp := opps[0]
	if opp.Status != opportunityDomain.StatusDetected {
		t.Fatalf("status = %s, want detected", opp.Status)
	}
	if !opp.ProfitPct.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("profit pct = %s, want 2", opp.ProfitPct)
	}
	if opp.Metadata["buy_venue"] != "uni" {
		t.Fatalf("buy venue = %s, want uni (the cheaper side)", opp.Metadata["buy_venue"])
	}
	if got := f.sender.byType(notifyApp.EventOpportunityDetected); len(got) != 1 {
		t.Fatalf("expected 1 detection event, got %d", len(got))
	}
}

func TestDetectorSkipsBelowThreshold(t *testing.T) {
	f := newDetectorFixture(t)
	f.quotes.setPrice("sushi", decimal.RequireFromString("100.5"))

	f.detector.cycle(context.Background(), f.route)

	if opps := f.detected(t); len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
}

func TestDetectorSkipsKeyInCooldown(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	if err := f.cooldowns.Set(ctx, f.route.Key.String(), time.Minute); err != nil {
		t.Fatalf("cooldown set: %v", err)
	}
	f.detector.cycle(ctx, f.route)

	if calls := f.quotes.callCount(); calls != 0 {
		t.Fatalf("expected no quote calls during cooldown, got %d", calls)
	}
	if opps := f.detected(t); len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
}

func TestDetectorSeesHealthChangesAfterStartup(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	f.detector.cycle(ctx, f.route)
	if opps := f.detected(t); len(opps) != 1 {
		t.Fatalf("expected initial detection, got %d opportunities", len(opps))
	}
	callsAfterFirst := f.quotes.callCount()

	// The route value predates the health flip; the next cycle must still
	// observe it.
	f.registry.ReportHealth(ctx, "sushi", false)
	f.detector.cycle(ctx, f.route)

	if calls := f.quotes.callCount(); calls != callsAfterFirst {
		t.Fatalf("unhealthy venue was quoted: %d calls after flip, had %d", calls, callsAfterFirst)
	}

	f.registry.ReportHealth(ctx, "sushi", true)
	f.detector.cycle(ctx, f.route)
	if calls := f.quotes.callCount(); calls == callsAfterFirst {
		t.Fatal("recovered venue was not quoted again")
	}
}

func TestDetectorToleratesDuplicateActiveKey(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()

	f.detector.cycle(ctx, f.route)
	f.detector.cycle(ctx, f.route)

	if opps := f.detected(t); len(opps) != 1 {
		t.Fatalf("expected a single active opportunity, got %d", len(opps))
	}
	if got := f.sender.byType(notifyApp.EventOpportunityDetected); len(got) != 1 {
		t.Fatalf("expected 1 detection event, got %d", len(got))
	}
}

func TestDetectorQuoteFailureSkipsCycleAndReportsHealth(t *testing.T) {
	f := newDetectorFixture(t)
	ctx := context.Background()
	f.quotes.errs["sushi"] = errors.New("connection reset")

	f.detector.cycle(ctx, f.route)

	if opps := f.detected(t); len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
	sushi, ok := f.registry.Venue("sushi")
	if !ok {
		t.Fatal("sushi venue missing")
	}
	if sushi.Healthy {
		t.Fatal("failing venue still marked healthy")
	}
	uni, ok := f.registry.Venue("uni")
	if !ok {
		t.Fatal("uni venue missing")
	}
	if !uni.Healthy {
		t.Fatal("healthy venue was marked unhealthy")
	}
}

func TestDetectorSkipsAmountOutOfBounds(t *testing.T) {
	f := newDetectorFixture(t)
	route := f.route
	route.AmountIn = decimal.RequireFromString("0.001")

	cfg := registryConfig()
	cfg.Venues[0].MinTradeAmount = 0.01
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	registry, err := staticreg.New(cfg, log)
	if err != nil {
		t.Fatalf("staticreg.New: %v", err)
	}
	f.detector.registry = registry

	f.detector.cycle(context.Background(), route)

	if calls := f.quotes.callCount(); calls != 0 {
		t.Fatalf("expected no quote calls below min trade amount, got %d", calls)
	}
	if opps := f.detected(t); len(opps) != 0 {
		t.Fatalf("expected no opportunities, got %d", len(opps))
	}
}
