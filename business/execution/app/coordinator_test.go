package app

import (
	"context"
	"io"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	notifyApp "github.com/cryptoking82/evm-arbitrage-bot/business/notify/app"
	oppMemstore "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/infra/memstore"
	opportunityDomain "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	pricingApp "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/app"
	pricingDomain "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

var (
	testTokenA   = common.HexToAddress("0x000000000000000000000000000000000000000a")
	testTokenB   = common.HexToAddress("0x000000000000000000000000000000000000000b")
	testRouterA  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	testRouterB  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	testContract = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	testExecutor = common.HexToAddress("0x00000000000000000000000000000000000000e1")
)

// --- fakes ---

type fakeRegistry struct {
	venues map[string]*marketDomain.Venue
	tokens map[string]*marketDomain.Token
}

func newFakeRegistry() *fakeRegistry {
	venue := func(id string, router common.Address) *marketDomain.Venue {
		return &marketDomain.Venue{
			ID:            id,
			Name:          id,
			Network:       "testnet",
			RouterAddress: router,
			FeeBps:        decimal.NewFromInt(30),
			Active:        true,
			Healthy:       true,
		}
	}
	return &fakeRegistry{
		venues: map[string]*marketDomain.Venue{
			"uni":   venue("uni", testRouterA),
			"sushi": venue("sushi", testRouterB),
		},
		tokens: map[string]*marketDomain.Token{
			"testnet/WETH": {Symbol: "WETH", Network: "testnet", Address: testTokenA, Decimals: 18},
			"testnet/USDC": {Symbol: "USDC", Network: "testnet", Address: testTokenB, Decimals: 6},
		},
	}
}

func (r *fakeRegistry) Venue(id string) (*marketDomain.Venue, bool) {
	v, ok := r.venues[id]
	return v, ok
}

func (r *fakeRegistry) Token(network string, addr common.Address) (*marketDomain.Token, bool) {
	for _, t := range r.tokens {
		if t.Network == network && t.Address == addr {
			return t, true
		}
	}
	return nil, false
}

func (r *fakeRegistry) TokenBySymbol(network, symbol string) (*marketDomain.Token, bool) {
	t, ok := r.tokens[network+"/"+symbol]
	return t, ok
}

func (r *fakeRegistry) Routes() []marketDomain.Route { return nil }

func (r *fakeRegistry) ReportHealth(ctx context.Context, venueID string, healthy bool) {}

type fakeQuoteSource struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
}

func (s *fakeQuoteSource) setPrice(venueID string, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[venueID] = price
}

func (s *fakeQuoteSource) Quote(ctx context.Context, venue *marketDomain.Venue, base, quote *marketDomain.Token, amountIn decimal.Decimal) (*pricingDomain.Quote, error) {
	s.mu.Lock()
	price, ok := s.prices[venue.ID]
	s.mu.Unlock()
	if !ok {
		return nil, apperror.New(apperror.CodeVenueQuoteFailed)
	}
	return pricingDomain.NewQuote(venue.ID, venue.Network, base.Symbol, quote.Symbol, amountIn, amountIn.Mul(price)), nil
}

type fakeGasOracle struct {
	priceWei *big.Int
}

func (o *fakeGasOracle) GasPrice(ctx context.Context, network string) (*pricingDomain.GasPrice, error) {
	return pricingDomain.NewGasPrice(new(big.Int).Set(o.priceWei)), nil
}

func (o *fakeGasOracle) EstimateGas(ctx context.Context, network, to string, data []byte) (uint64, error) {
	return 300000, nil
}

type fakeTxStore struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction
}

func newFakeTxStore() *fakeTxStore {
	return &fakeTxStore{txs: make(map[string]*domain.Transaction)}
}

func (s *fakeTxStore) Create(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.txs {
		if existing.Network == tx.Network && existing.Hash == tx.Hash {
			return apperror.New(apperror.CodeDuplicateTransaction)
		}
	}
	s.txs[tx.ID] = tx.Clone()
	return nil
}

func (s *fakeTxStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return nil, apperror.New(apperror.CodeTransactionNotFound)
	}
	return tx.Clone(), nil
}

func (s *fakeTxStore) Update(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.txs[tx.ID]
	if !ok {
		return apperror.New(apperror.CodeTransactionNotFound)
	}
	if current.Status.Terminal() {
		return apperror.New(apperror.CodeInvalidState)
	}
	s.txs[tx.ID] = tx.Clone()
	return nil
}

func (s *fakeTxStore) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range s.txs {
		if tx.Status == domain.TxPending {
			out = append(out, tx.Clone())
		}
	}
	return out, nil
}

func (s *fakeTxStore) all() []*domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range s.txs {
		out = append(out, tx.Clone())
	}
	return out
}

type fakeContract struct {
	mu sync.Mutex

	cfg  *domain.ContractConfig
	pctx *domain.PlanContext
	sim  *domain.SimulationResult

	execHash       string
	broadcastFails bool
	simCalls       int

	receipts   map[string]*domain.ExecutionResult
	receiptErr error
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		cfg: &domain.ContractConfig{
			MinProfitFloor: decimal.Zero,
			FeePct:         decimal.NewFromInt(5),
			GasCeilingWei:  new(big.Int).Mul(big.NewInt(200), big.NewInt(1e9)),
			FetchedAt:      time.Now(),
		},
		pctx: &domain.PlanContext{
			ExecutorAuthorized: true,
			Blacklisted:        map[common.Address]bool{},
			ContractBalance:    new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
			GasPriceWei:        big.NewInt(50e9),
		},
		sim:      &domain.SimulationResult{Profit: big.NewInt(1e15), Profitable: true},
		execHash: "0xdeadbeef",
		receipts: make(map[string]*domain.ExecutionResult),
	}
}

func (c *fakeContract) Simulate(ctx context.Context, network string, params domain.ExecutionParams) (*domain.SimulationResult, error) {
	c.mu.Lock()
	c.simCalls++
	c.mu.Unlock()
	return c.sim, nil
}

func (c *fakeContract) Preflight(ctx context.Context, network string, params domain.ExecutionParams) (*domain.PlanContext, error) {
	return c.pctx, nil
}

func (c *fakeContract) Execute(ctx context.Context, network string, params domain.ExecutionParams, onSigned func(hash string) error) (string, error) {
	if onSigned != nil {
		if err := onSigned(c.execHash); err != nil {
			return "", err
		}
	}
	if c.broadcastFails {
		return c.execHash, apperror.New(apperror.CodeSubmissionRejected,
			apperror.WithContext("broadcast failed"))
	}
	return c.execHash, nil
}

func (c *fakeContract) Config(ctx context.Context, network string) (*domain.ContractConfig, error) {
	return c.cfg, nil
}

func (c *fakeContract) Receipt(ctx context.Context, network, hash string) (*domain.ExecutionResult, error) {
	if c.receiptErr != nil {
		return nil, c.receiptErr
	}
	result, ok := c.receipts[hash]
	if !ok {
		return nil, apperror.New(apperror.CodeReceiptNotFound)
	}
	return result, nil
}

type fakeCooldowns struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeCooldowns() *fakeCooldowns {
	return &fakeCooldowns{keys: make(map[string]bool)}
}

func (c *fakeCooldowns) Set(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[key] = true
	return nil
}

func (c *fakeCooldowns) Active(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.keys[key], nil
}

type recordingSender struct {
	mu     sync.Mutex
	events []notifyApp.Event
}

func (s *recordingSender) Send(ctx context.Context, event notifyApp.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSender) Name() string { return "recorder" }

func (s *recordingSender) byType(t notifyApp.EventType) []notifyApp.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notifyApp.Event
	for _, e := range s.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// --- fixture ---

type fixture struct {
	store     *oppMemstore.Store
	txs       *fakeTxStore
	contract  *fakeContract
	cooldowns *fakeCooldowns
	quotes    *fakeQuoteSource
	gas       *fakeGasOracle
	registry  *fakeRegistry
	sender    *recordingSender
	coord     *Coordinator
}

func testExecutionConfig() config.ExecutionConfig {
	return config.ExecutionConfig{
		Workers:             2,
		PollInterval:        10 * time.Millisecond,
		GasCeilingGwei:      150,
		Cooldown:            time.Minute,
		DeadlineWindow:      30 * time.Second,
		ConfirmTimeout:      5 * time.Minute,
		ConfirmPollInterval: 10 * time.Millisecond,
	}
}

func newFixture(t *testing.T, mutate func(*config.ExecutionConfig)) *fixture {
	t.Helper()

	execCfg := testExecutionConfig()
	if mutate != nil {
		mutate(&execCfg)
	}

	f := &fixture{
		store:     oppMemstore.New(),
		txs:       newFakeTxStore(),
		contract:  newFakeContract(),
		cooldowns: newFakeCooldowns(),
		quotes:    &fakeQuoteSource{prices: map[string]decimal.Decimal{}},
		gas:       &fakeGasOracle{priceWei: big.NewInt(50e9)},
		registry:  newFakeRegistry(),
		sender:    &recordingSender{},
	}

	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	notifier := notifyApp.NewNotifier([]notifyApp.Sender{f.sender}, nil, log)

	coord, err := NewCoordinator(CoordinatorDeps{
		Config:          execCfg,
		Detection:       config.DetectionConfig{MinProfitBps: 100, ExpiryHorizon: 30 * time.Second},
		Registry:        f.registry,
		Pricing:         pricingApp.NewPricingService(f.quotes, f.gas),
		Store:           f.store,
		TxStore:         f.txs,
		Contract:        f.contract,
		Cooldowns:       f.cooldowns,
		Notifier:        notifier,
		Logger:          log,
		ExecutorAddress: testExecutor,
		Contracts:       map[string]common.Address{"testnet": testContract},
	})
	if err != nil {
		t.Fatalf("failed to create coordinator: %v", err)
	}
	f.coord = coord
	return f
}

func (f *fixture) detectOpportunity(t *testing.T) *opportunityDomain.Opportunity {
	t.Helper()

	key := marketDomain.DetectionKey{
		Network: "testnet", Base: "WETH", Quote: "USDC",
		VenueA: "uni", VenueB: "sushi",
	}
	opp := opportunityDomain.NewOpportunity(
		key, testTokenA, testTokenB,
		decimal.NewFromInt(100), decimal.NewFromInt(105),
		decimal.NewFromInt(1),
		decimal.NewFromFloat(0.04), decimal.NewFromFloat(4.0),
		decimal.NewFromFloat(0.01),
		30*time.Second,
	)
	if err := f.store.Create(context.Background(), opp); err != nil {
		t.Fatalf("failed to create opportunity: %v", err)
	}
	return opp
}

func (f *fixture) status(t *testing.T, id string) opportunityDomain.Status {
	t.Helper()
	opp, err := f.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("failed to get opportunity: %v", err)
	}
	return opp.Status
}

// --- tests ---

func TestCoordinatorSubmitsProfitableOpportunity(t *testing.T) {
	f := newFixture(t, nil)
	opp := f.detectOpportunity(t)

	// Wide spread: buy at 100, sell at 105, comfortably over 1% after fees.
	f.quotes.setPrice("uni", decimal.NewFromInt(100))
	f.quotes.setPrice("sushi", decimal.NewFromInt(105))

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusExecuting {
		t.Fatalf("expected opportunity executing, got %s", got)
	}

	pending, _ := f.txs.ListPending(context.Background())
	if len(pending) != 1 {
		t.Fatalf("expected one pending transaction, got %d", len(pending))
	}
	tx := pending[0]
	if tx.Hash != "0xdeadbeef" || tx.OpportunityID != opp.ID {
		t.Fatalf("unexpected transaction record: %+v", tx)
	}
	if tx.From != testExecutor || tx.To != testContract {
		t.Fatalf("expected from %s to %s, got from %s to %s", testExecutor, testContract, tx.From, tx.To)
	}

	if got := f.sender.byType(notifyApp.EventExecutionStarted); len(got) != 1 {
		t.Fatalf("expected one execution_started event, got %d", len(got))
	}
}

func TestCoordinatorExpiresStaleQuote(t *testing.T) {
	f := newFixture(t, nil)
	opp := f.detectOpportunity(t)

	// Spread collapsed since detection: refresh shows no profit.
	f.quotes.setPrice("uni", decimal.NewFromInt(100))
	f.quotes.setPrice("sushi", decimal.NewFromInt(100))

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusExpired {
		t.Fatalf("expected opportunity expired, got %s", got)
	}
	if all := f.txs.all(); len(all) != 0 {
		t.Fatalf("expected no transaction records, got %d", len(all))
	}
	if got := f.sender.byType(notifyApp.EventOpportunityExpired); len(got) != 1 {
		t.Fatalf("expected one opportunity_expired event, got %d", len(got))
	}
	// A stale quote is not a failure: the route stays out of cool-down.
	if active, _ := f.cooldowns.Active(context.Background(), opp.Key.String()); active {
		t.Fatal("expected no cooldown after staleness expiry")
	}
}

func TestCoordinatorExpiresOnGasCeiling(t *testing.T) {
	f := newFixture(t, nil)
	opp := f.detectOpportunity(t)

	f.quotes.setPrice("uni", decimal.NewFromInt(100))
	f.quotes.setPrice("sushi", decimal.NewFromInt(105))
	f.gas.priceWei = new(big.Int).Mul(big.NewInt(151), big.NewInt(1e9)) // above 150 gwei ceiling

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusExpired {
		t.Fatalf("expected opportunity expired, got %s", got)
	}
	if all := f.txs.all(); len(all) != 0 {
		t.Fatalf("expected no transaction records, got %d", len(all))
	}
}

func TestCoordinatorFailsOnPausedContract(t *testing.T) {
	f := newFixture(t, nil)
	opp := f.detectOpportunity(t)

	f.quotes.setPrice("uni", decimal.NewFromInt(100))
	f.quotes.setPrice("sushi", decimal.NewFromInt(105))
	f.contract.cfg.Paused = true

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusFailed {
		t.Fatalf("expected opportunity failed, got %s", got)
	}
	if active, _ := f.cooldowns.Active(context.Background(), opp.Key.String()); !active {
		t.Fatal("expected cooldown after execution failure")
	}
	if got := f.sender.byType(notifyApp.EventExecutionFailed); len(got) != 1 {
		t.Fatalf("expected one execution_failed event, got %d", len(got))
	}
	if all := f.txs.all(); len(all) != 0 {
		t.Fatalf("expected no transaction records, got %d", len(all))
	}
}

func TestCoordinatorCancelsRecordOnBroadcastFailure(t *testing.T) {
	f := newFixture(t, nil)
	opp := f.detectOpportunity(t)

	f.quotes.setPrice("uni", decimal.NewFromInt(100))
	f.quotes.setPrice("sushi", decimal.NewFromInt(105))
	f.contract.broadcastFails = true

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusFailed {
		t.Fatalf("expected opportunity failed, got %s", got)
	}
	all := f.txs.all()
	if len(all) != 1 {
		t.Fatalf("expected one transaction record, got %d", len(all))
	}
	if all[0].Status != domain.TxCancelled {
		t.Fatalf("expected cancelled record, got %s", all[0].Status)
	}
	if active, _ := f.cooldowns.Active(context.Background(), opp.Key.String()); !active {
		t.Fatal("expected cooldown after broadcast failure")
	}
}

func TestCoordinatorDryRunSimulatesWithoutSubmitting(t *testing.T) {
	f := newFixture(t, func(c *config.ExecutionConfig) { c.DryRun = true })
	opp := f.detectOpportunity(t)

	f.quotes.setPrice("uni", decimal.NewFromInt(100))
	f.quotes.setPrice("sushi", decimal.NewFromInt(105))

	f.coord.process(context.Background(), opp)

	if f.contract.simCalls != 1 {
		t.Fatalf("expected one simulation, got %d", f.contract.simCalls)
	}
	if all := f.txs.all(); len(all) != 0 {
		t.Fatalf("expected no transaction records in dry run, got %d", len(all))
	}
	final, err := f.store.Get(context.Background(), opp.ID)
	if err != nil {
		t.Fatalf("failed to get opportunity: %v", err)
	}
	if final.Status != opportunityDomain.StatusExpired {
		t.Fatalf("expected opportunity expired, got %s", final.Status)
	}
	if !strings.Contains(final.ErrorMessage, "dry run") {
		t.Fatalf("expected dry run reason, got %q", final.ErrorMessage)
	}
}

func TestCoordinatorLosesClaimRaceSilently(t *testing.T) {
	f := newFixture(t, nil)
	opp := f.detectOpportunity(t)

	// Another worker already claimed it.
	if _, err := f.store.Transition(context.Background(), opp.ID,
		opportunityDomain.StatusDetected, opportunityDomain.StatusAnalyzing, nil); err != nil {
		t.Fatalf("setup transition failed: %v", err)
	}

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusAnalyzing {
		t.Fatalf("expected opportunity untouched in analyzing, got %s", got)
	}
	if len(f.sender.events) != 0 {
		t.Fatalf("expected no events from a lost claim, got %d", len(f.sender.events))
	}
}

func TestCoordinatorRespectsTolerance(t *testing.T) {
	// 5000 bps tolerance halves the required refresh threshold.
	f := newFixture(t, func(c *config.ExecutionConfig) { c.StalenessToleranceBps = 5000 })
	opp := f.detectOpportunity(t)

	// Roughly 0.7% refreshed profit: below the 1% threshold but above the
	// tolerance-adjusted 0.5%.
	f.quotes.setPrice("uni", decimal.NewFromInt(10000))
	f.quotes.setPrice("sushi", decimal.NewFromInt(10131))

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusExecuting {
		t.Fatalf("expected opportunity executing under tolerance, got %s", got)
	}
}

func TestCoordinatorSimulationUnprofitableFails(t *testing.T) {
	f := newFixture(t, nil)
	opp := f.detectOpportunity(t)

	f.quotes.setPrice("uni", decimal.NewFromInt(100))
	f.quotes.setPrice("sushi", decimal.NewFromInt(105))
	f.contract.sim = &domain.SimulationResult{Profit: big.NewInt(0), Profitable: false}

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusFailed {
		t.Fatalf("expected opportunity failed, got %s", got)
	}
	if all := f.txs.all(); len(all) != 0 {
		t.Fatalf("expected no transaction records, got %d", len(all))
	}
}

func TestCoordinatorExpiresPastHorizon(t *testing.T) {
	f := newFixture(t, nil)

	key := marketDomain.DetectionKey{
		Network: "testnet", Base: "WETH", Quote: "USDC",
		VenueA: "uni", VenueB: "sushi",
	}
	opp := opportunityDomain.NewOpportunity(
		key, testTokenA, testTokenB,
		decimal.NewFromInt(100), decimal.NewFromInt(105),
		decimal.NewFromInt(1),
		decimal.NewFromFloat(0.04), decimal.NewFromFloat(4.0),
		decimal.Zero,
		time.Nanosecond,
	)
	if err := f.store.Create(context.Background(), opp); err != nil {
		t.Fatalf("failed to create opportunity: %v", err)
	}
	time.Sleep(time.Millisecond)

	f.coord.process(context.Background(), opp)

	if got := f.status(t, opp.ID); got != opportunityDomain.StatusExpired {
		t.Fatalf("expected opportunity expired, got %s", got)
	}
}
