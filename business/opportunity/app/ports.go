// Package app contains the store port for the opportunity context.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
)

// TransitionFields carries the optional record updates applied atomically
// with a transition. Actual profit and gas are written exactly once, on the
// edge into Completed or on failure capture.
type TransitionFields struct {
	ActualProfit *decimal.Decimal
	ActualGasFee *decimal.Decimal
	ErrorMessage string
}

// Store holds the canonical state of every detected opportunity and is the
// single serialization point for lifecycle transitions.
type Store interface {
	// Create persists a new opportunity in Detected state. Fails with
	// DUPLICATE_ACTIVE_KEY when another non-terminal opportunity exists for
	// the same detection key.
	Create(ctx context.Context, opp *domain.Opportunity) error

	// Get returns a snapshot of the opportunity by id. Fails with
	// OPPORTUNITY_NOT_FOUND for unknown ids.
	Get(ctx context.Context, id string) (*domain.Opportunity, error)

	// Transition atomically moves id from one status to another. It is a
	// compare-and-swap on (id, from): when the current status does not
	// match from, or the edge is not legal, it fails with
	// INVALID_TRANSITION and leaves the record unchanged. The losing side
	// of a claim race treats that as "someone else claimed this". Returns
	// the updated snapshot on success.
	Transition(ctx context.Context, id string, from, to domain.Status, fields *TransitionFields) (*domain.Opportunity, error)

	// ListEligible returns opportunities in Detected state whose expiry has
	// not passed at now, ordered by profit percentage descending with ties
	// broken by earliest detection time. limit <= 0 means no limit.
	ListEligible(ctx context.Context, now time.Time, limit int) ([]*domain.Opportunity, error)
}
