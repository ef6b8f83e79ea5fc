// Package di contains dependency injection tokens for the detector context.
package di

import (
	"github.com/cryptoking82/evm-arbitrage-bot/business/detector/app"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Detector = di.NewToken[*app.Detector]("detector.Detector")
)

// GetDetector resolves the detector.
func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}
