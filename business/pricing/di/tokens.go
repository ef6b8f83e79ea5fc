// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	PricingService = di.NewToken[*app.PricingService]("pricing.PricingService")
	QuoteSource    = di.NewToken[app.QuoteSource]("pricing.QuoteSource")
	GasOracle      = di.NewToken[app.GasOracle]("pricing.GasOracle")
)

// Helper functions for type-safe access
func GetPricingService(c di.ServiceRegistry) *app.PricingService {
	return di.GetToken(c, PricingService)
}

func GetQuoteSource(c di.ServiceRegistry) app.QuoteSource {
	return di.GetToken(c, QuoteSource)
}

func GetGasOracle(c di.ServiceRegistry) app.GasOracle {
	return di.GetToken(c, GasOracle)
}
