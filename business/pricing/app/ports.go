// Package app contains application services and port definitions for the pricing context.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/domain"
)

// QuoteSource fetches effective prices from venue routers.
type QuoteSource interface {
	// Quote returns the venue's output for selling amountIn of base into
	// quote. amountIn is in human base units.
	Quote(ctx context.Context, venue *marketDomain.Venue, base, quote *marketDomain.Token, amountIn decimal.Decimal) (*domain.Quote, error)
}

// GasOracle reports current gas conditions per network.
type GasOracle interface {
	// GasPrice returns the suggested gas price for the network, cached for
	// roughly one block.
	GasPrice(ctx context.Context, network string) (*domain.GasPrice, error)

	// EstimateGas estimates gas for a call against the given contract.
	EstimateGas(ctx context.Context, network string, to string, data []byte) (uint64, error)
}
