// Package detector implements the opportunity detection bounded context.
package detector

import (
	"context"

	"github.com/cryptoking82/evm-arbitrage-bot/business/detector/app"
	detectorDI "github.com/cryptoking82/evm-arbitrage-bot/business/detector/di"
	executionDI "github.com/cryptoking82/evm-arbitrage-bot/business/execution/di"
	marketDI "github.com/cryptoking82/evm-arbitrage-bot/business/market/di"
	notifyDI "github.com/cryptoking82/evm-arbitrage-bot/business/notify/di"
	opportunityDI "github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/di"
	pricingDI "github.com/cryptoking82/evm-arbitrage-bot/business/pricing/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/config"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/logger"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/monolith"
)

// Module implements the detector bounded context.
type Module struct{}

// RegisterServices registers the detector with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, detectorDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		det, err := app.NewDetector(
			cfg.Detection,
			marketDI.GetRegistry(sr),
			pricingDI.GetQuoteSource(sr),
			pricingDI.GetGasOracle(sr),
			opportunityDI.GetStore(sr),
			executionDI.GetCooldowns(sr),
			notifyDI.GetNotifier(sr),
			log,
		)
		if err != nil {
			panic("failed to create detector: " + err.Error())
		}
		return det
	})

	return nil
}

// Startup launches the detection workers in the background.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	det := detectorDI.GetDetector(mono.Services())
	log := mono.Logger()

	go func() {
		if err := det.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(ctx, "detector stopped unexpectedly", "error", err)
		}
	}()

	log.Info(ctx, "detector module started",
		"routes", len(mono.Config().Routes),
		"interval", mono.Config().Detection.Interval.String(),
	)
	return nil
}
