// Package domain contains the reference data types for the market context.
package domain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Venue describes one DEX instance on one network. Reference data owned by
// the administrative collaborator; the engine reads it and reports health.
type Venue struct {
	ID             string
	Name           string
	Network        string
	ChainID        uint64
	RouterAddress  common.Address
	FactoryAddress common.Address
	FeeBps         decimal.Decimal
	MinTradeAmount decimal.Decimal
	MaxTradeAmount decimal.Decimal
	QuoteRateLimit int // requests per minute, 0 = provider default

	Active      bool
	Healthy     bool
	Blacklisted bool
}

// IsAvailable reports whether the venue may be traded against.
func (v *Venue) IsAvailable() bool {
	return v.Active && v.Healthy && !v.Blacklisted
}

// FeeFraction returns the venue fee as a fraction (30 bps -> 0.003).
func (v *Venue) FeeFraction() decimal.Decimal {
	return v.FeeBps.Div(decimal.NewFromInt(10000))
}

// WithinBounds reports whether amount satisfies the venue's min/max trade
// amount limits. A zero max means unbounded.
func (v *Venue) WithinBounds(amount decimal.Decimal) bool {
	if amount.LessThan(v.MinTradeAmount) {
		return false
	}
	if v.MaxTradeAmount.IsPositive() && amount.GreaterThan(v.MaxTradeAmount) {
		return false
	}
	return true
}
