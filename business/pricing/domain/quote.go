// Package domain contains the core domain types for the pricing context.
package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one venue price observation for a fixed input size. Price is the
// effective rate (quote token out per base token in) with venue fees already
// reflected by the router output; protocol fees are applied again downstream
// only when comparing venues.
type Quote struct {
	VenueID     string
	Network     string
	BaseSymbol  string
	QuoteSymbol string
	AmountIn    decimal.Decimal // base token, human units
	AmountOut   decimal.Decimal // quote token, human units
	Price       decimal.Decimal // AmountOut / AmountIn
	FetchedAt   time.Time
}

// NewQuote creates a Quote, deriving the effective price.
func NewQuote(venueID, network, base, quote string, amountIn, amountOut decimal.Decimal) *Quote {
	price := decimal.Zero
	if amountIn.IsPositive() {
		price = amountOut.Div(amountIn)
	}
	return &Quote{
		VenueID:     venueID,
		Network:     network,
		BaseSymbol:  base,
		QuoteSymbol: quote,
		AmountIn:    amountIn,
		AmountOut:   amountOut,
		Price:       price,
		FetchedAt:   time.Now(),
	}
}

// Age returns how long ago the quote was fetched.
func (q *Quote) Age() time.Duration {
	return time.Since(q.FetchedAt)
}

// GasPrice represents gas price information.
type GasPrice struct {
	Wei       *big.Int
	Gwei      float64
	Timestamp time.Time
}

// NewGasPrice creates a GasPrice from wei.
func NewGasPrice(wei *big.Int) *GasPrice {
	gwei := new(big.Float).SetInt(wei)
	gwei.Quo(gwei, big.NewFloat(1e9))
	gweiFloat, _ := gwei.Float64()

	return &GasPrice{
		Wei:       wei,
		Gwei:      gweiFloat,
		Timestamp: time.Now(),
	}
}

// Exceeds reports whether the price is above ceiling. A nil ceiling never
// trips.
func (g *GasPrice) Exceeds(ceiling *big.Int) bool {
	if ceiling == nil || ceiling.Sign() == 0 {
		return false
	}
	return g.Wei.Cmp(ceiling) > 0
}
