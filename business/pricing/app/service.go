package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/domain"
)

// PricingService coordinates quote fetching across venues.
type PricingService struct {
	source QuoteSource
	gas    GasOracle
}

// NewPricingService creates a new PricingService with the given providers.
func NewPricingService(source QuoteSource, gas GasOracle) *PricingService {
	return &PricingService{
		source: source,
		gas:    gas,
	}
}

// QuoteSource returns the underlying venue quote source.
func (s *PricingService) QuoteSource() QuoteSource {
	return s.source
}

// GasOracle returns the underlying gas oracle.
func (s *PricingService) GasOracle() GasOracle {
	return s.gas
}

// QuotePair fetches both legs of a route concurrently. Both quotes are for
// the same input size so the effective prices are directly comparable.
func (s *PricingService) QuotePair(ctx context.Context, route marketDomain.Route) (*domain.Quote, *domain.Quote, error) {
	var quoteA, quoteB *domain.Quote

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.source.Quote(gctx, route.VenueA, route.Base, route.Quote, route.AmountIn)
		if err != nil {
			return err
		}
		quoteA = q
		return nil
	})
	g.Go(func() error {
		q, err := s.source.Quote(gctx, route.VenueB, route.Base, route.Quote, route.AmountIn)
		if err != nil {
			return err
		}
		quoteB = q
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return quoteA, quoteB, nil
}
