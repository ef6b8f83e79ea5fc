// Package app contains the registry port for the market context.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
)

// Registry provides read-only snapshot access to venue and token reference
// data. Descriptors returned are copies; callers treat them as a snapshot
// valid for one detection or execution cycle and never cache them across
// cycles.
type Registry interface {
	// Venue returns the venue descriptor by id.
	Venue(id string) (*domain.Venue, bool)

	// Token returns the token descriptor by network and address.
	Token(network string, addr common.Address) (*domain.Token, bool)

	// TokenBySymbol returns the token descriptor by network and symbol.
	TokenBySymbol(network, symbol string) (*domain.Token, bool)

	// Routes returns the configured detection tuples.
	Routes() []domain.Route

	// ReportHealth records a venue health observation. Health flags are the
	// only descriptor fields the engine writes back.
	ReportHealth(ctx context.Context, venueID string, healthy bool)
}
