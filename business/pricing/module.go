// Package pricing implements the pricing bounded context for venue quotes
// and gas conditions.
package pricing

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/app"
	pricingDI "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/di"
	"github.com/cryptoking82/evm-arbitrage-bot/business/pricing/infra/evm"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/monolith"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register QuoteSource (router-backed) - used by the detector and the
	// execution coordinator's staleness re-quote
	di.RegisterToken(c, pricingDI.QuoteSource, func(sr di.ServiceRegistry) app.QuoteSource {
		log := sr.Get("logger").(logger.LoggerInterface)
		clients := sr.Get("ethClients").(func(string) *ethclient.Client)

		quoter, err := evm.NewQuoter(evm.ClientProvider(clients), log)
		if err != nil {
			panic("failed to create venue quoter: " + err.Error())
		}
		return quoter
	})

	// Register GasOracle (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.GasOracle, func(sr di.ServiceRegistry) app.GasOracle {
		log := sr.Get("logger").(logger.LoggerInterface)
		clients := sr.Get("ethClients").(func(string) *ethclient.Client)

		oracle, err := evm.NewGasOracle(evm.DefaultGasOracleConfig(), evm.ClientProvider(clients), log)
		if err != nil {
			panic("failed to create gas oracle: " + err.Error())
		}
		return oracle
	})

	// Register PricingService (public - exposed to other modules)
	di.RegisterToken(c, pricingDI.PricingService, func(sr di.ServiceRegistry) *app.PricingService {
		source := pricingDI.GetQuoteSource(sr)
		gas := pricingDI.GetGasOracle(sr)
		return app.NewPricingService(source, gas)
	})

	return nil
}

// Startup initializes the pricing module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	// Force construction so wiring errors surface at startup
	pricingDI.GetPricingService(mono.Services())

	mono.Logger().Info(ctx, "pricing module started")
	return nil
}
