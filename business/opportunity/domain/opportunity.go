package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
)

// Opportunity is one detected price discrepancy instance. The detection key
// is not unique across time; each record is a fresh snapshot. Estimated
// fields are immutable once set at detection; actual fields are written
// exactly once at settlement.
type Opportunity struct {
	ID  string
	Key marketDomain.DetectionKey

	TokenA common.Address // base token
	TokenB common.Address // quote token

	PriceA          decimal.Decimal // effective price on venue A
	PriceB          decimal.Decimal // effective price on venue B
	AmountIn        decimal.Decimal // base token, human units
	EstimatedProfit decimal.Decimal // base token, human units
	ProfitPct       decimal.Decimal // percentage, e.g. 1.5 = 1.5%
	EstimatedGasFee decimal.Decimal // native token, human units

	ActualProfit *decimal.Decimal
	ActualGasFee *decimal.Decimal

	Metadata     map[string]string
	ErrorMessage string

	Status      Status
	DetectedAt  time.Time
	ExecutedAt  *time.Time
	CompletedAt *time.Time
	ExpiresAt   time.Time
}

// NewOpportunity creates an Opportunity in Detected state with a fresh id.
func NewOpportunity(
	key marketDomain.DetectionKey,
	tokenA, tokenB common.Address,
	priceA, priceB, amountIn, estimatedProfit, profitPct, estimatedGasFee decimal.Decimal,
	expiryHorizon time.Duration,
) *Opportunity {
	now := time.Now().UTC()
	return &Opportunity{
		ID:              uuid.NewString(),
		Key:             key,
		TokenA:          tokenA,
		TokenB:          tokenB,
		PriceA:          priceA,
		PriceB:          priceB,
		AmountIn:        amountIn,
		EstimatedProfit: estimatedProfit,
		ProfitPct:       profitPct,
		EstimatedGasFee: estimatedGasFee,
		Metadata:        make(map[string]string),
		Status:          StatusDetected,
		DetectedAt:      now,
		ExpiresAt:       now.Add(expiryHorizon),
	}
}

// IsExpired reports whether the expiry horizon has passed.
func (o *Opportunity) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

// Clone returns a deep copy. Stores hand out clones so callers never share
// mutable state with the canonical record.
func (o *Opportunity) Clone() *Opportunity {
	cp := *o
	if o.ActualProfit != nil {
		v := *o.ActualProfit
		cp.ActualProfit = &v
	}
	if o.ActualGasFee != nil {
		v := *o.ActualGasFee
		cp.ActualGasFee = &v
	}
	if o.ExecutedAt != nil {
		t := *o.ExecutedAt
		cp.ExecutedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	if o.Metadata != nil {
		cp.Metadata = make(map[string]string, len(o.Metadata))
		for k, v := range o.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
