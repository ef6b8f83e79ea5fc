// Package staticreg implements the market Registry from static configuration.
// Descriptors are read-mostly; only health flags mutate at runtime.
package staticreg

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/business/market/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
)

// Ensure Registry implements the port.
var _ app.Registry = (*Registry)(nil)

// Registry holds venue/token descriptors built from config.
type Registry struct {
	mu      sync.RWMutex
	venues  map[string]*domain.Venue
	tokens  map[string]*domain.Token // network/address (lowercased)
	symbols map[string]*domain.Token // network/symbol
	routes  []domain.Route
	logger  logger.LoggerInterface
}

// New builds a Registry from configuration. All venues start active and
// healthy; blacklist flags come from token config.
func New(cfg *config.Config, log logger.LoggerInterface) (*Registry, error) {
	r := &Registry{
		venues:  make(map[string]*domain.Venue),
		tokens:  make(map[string]*domain.Token),
		symbols: make(map[string]*domain.Token),
		logger:  log,
	}

	chainIDs := make(map[string]uint64, len(cfg.Networks))
	for _, n := range cfg.Networks {
		chainIDs[n.Name] = n.ChainID
	}

	for _, vc := range cfg.Venues {
		r.venues[vc.ID] = &domain.Venue{
			ID:             vc.ID,
			Name:           vc.Name,
			Network:        vc.Network,
			ChainID:        chainIDs[vc.Network],
			RouterAddress:  vc.RouterAddressHex(),
			FactoryAddress: common.HexToAddress(vc.FactoryAddress),
			FeeBps:         vc.FeeBpsDecimal(),
			MinTradeAmount: decimal.NewFromFloat(vc.MinTradeAmount),
			MaxTradeAmount: decimal.NewFromFloat(vc.MaxTradeAmount),
			QuoteRateLimit: vc.QuoteRateLimit,
			Active:         true,
			Healthy:        true,
		}
	}

	for _, tc := range cfg.Tokens {
		tok := &domain.Token{
			Symbol:      tc.Symbol,
			Network:     tc.Network,
			Address:     tc.AddressHex(),
			Decimals:    tc.Decimals,
			Blacklisted: tc.Blacklisted,
		}
		r.tokens[tokenKey(tc.Network, tok.Address)] = tok
		r.symbols[tc.Network+"/"+tc.Symbol] = tok
	}

	for i, rc := range cfg.Routes {
		base, ok := r.symbols[rc.Network+"/"+rc.Base]
		if !ok {
			return nil, fmt.Errorf("route %d: unknown base token %s", i, rc.Base)
		}
		quote, ok := r.symbols[rc.Network+"/"+rc.Quote]
		if !ok {
			return nil, fmt.Errorf("route %d: unknown quote token %s", i, rc.Quote)
		}
		venueA, venueB := r.venues[rc.VenueA], r.venues[rc.VenueB]
		if venueA == nil || venueB == nil {
			return nil, fmt.Errorf("route %d: unknown venue %s or %s", i, rc.VenueA, rc.VenueB)
		}

		r.routes = append(r.routes, domain.Route{
			Key: domain.DetectionKey{
				Network: rc.Network,
				Base:    rc.Base,
				Quote:   rc.Quote,
				VenueA:  rc.VenueA,
				VenueB:  rc.VenueB,
			},
			Base:     base,
			Quote:    quote,
			VenueA:   venueA,
			VenueB:   venueB,
			AmountIn: decimal.NewFromFloat(rc.AmountIn),
		})
	}

	return r, nil
}

func tokenKey(network string, addr common.Address) string {
	return network + "/" + strings.ToLower(addr.Hex())
}

// Venue returns a copy of the venue descriptor.
func (r *Registry) Venue(id string) (*domain.Venue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.venues[id]
	if !ok {
		return nil, false
	}
	cp := *v
	return &cp, true
}

// Token returns a copy of the token descriptor by address.
func (r *Registry) Token(network string, addr common.Address) (*domain.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tokens[tokenKey(network, addr)]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// TokenBySymbol returns a copy of the token descriptor by symbol.
func (r *Registry) TokenBySymbol(network, symbol string) (*domain.Token, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.symbols[network+"/"+symbol]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

// Routes returns the configured detection tuples with fresh descriptor
// copies so one cycle's snapshot is never mutated under a caller.
func (r *Registry) Routes() []domain.Route {
	r.mu.RLock()
	defer r.mu.RUnlock()

	routes := make([]domain.Route, len(r.routes))
	for i, rt := range r.routes {
		routes[i] = rt
		baseCp, quoteCp := *rt.Base, *rt.Quote
		venueACp, venueBCp := *rt.VenueA, *rt.VenueB
		routes[i].Base, routes[i].Quote = &baseCp, &quoteCp
		routes[i].VenueA, routes[i].VenueB = &venueACp, &venueBCp
	}
	return routes
}

// ReportHealth flips the venue health flag.
func (r *Registry) ReportHealth(ctx context.Context, venueID string, healthy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.venues[venueID]
	if !ok || v.Healthy == healthy {
		return
	}
	v.Healthy = healthy

	r.logger.Info(ctx, "venue health changed", "venue", venueID, "healthy", healthy)
}
