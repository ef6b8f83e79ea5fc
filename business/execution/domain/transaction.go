// Package domain contains the execution types: transactions, the on-chain
// protocol parameters, and the pure guard functions mirroring the contract.
package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxStatus is the lifecycle state of an on-chain submission.
type TxStatus string

const (
	TxPending   TxStatus = "pending"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
	TxCancelled TxStatus = "cancelled"
)

// Terminal reports whether the status admits no further updates.
func (s TxStatus) Terminal() bool {
	return s == TxConfirmed || s == TxFailed || s == TxCancelled
}

// Transaction is one on-chain submission tied to exactly one opportunity.
// Re-submission after failure creates a new record, never a mutation of the
// old one.
type Transaction struct {
	ID            string
	Hash          string
	Network       string
	OpportunityID string
	Status        TxStatus

	From     common.Address
	To       common.Address
	TokenIn  common.Address
	TokenOut common.Address

	AmountIn  decimal.Decimal
	AmountOut *decimal.Decimal

	GasUsed     *uint64
	GasPriceWei *decimal.Decimal
	GasFee      *decimal.Decimal

	RealizedProfit *decimal.Decimal
	RealizedPct    *decimal.Decimal

	RetryCount  int
	BlockNumber *uint64

	SubmittedAt time.Time
	ConfirmedAt *time.Time
}

// Clone returns a deep copy so callers can never mutate stored state.
func (t *Transaction) Clone() *Transaction {
	cp := *t
	cp.AmountOut = cloneDecimal(t.AmountOut)
	cp.GasPriceWei = cloneDecimal(t.GasPriceWei)
	cp.GasFee = cloneDecimal(t.GasFee)
	cp.RealizedProfit = cloneDecimal(t.RealizedProfit)
	cp.RealizedPct = cloneDecimal(t.RealizedPct)
	if t.GasUsed != nil {
		v := *t.GasUsed
		cp.GasUsed = &v
	}
	if t.BlockNumber != nil {
		v := *t.BlockNumber
		cp.BlockNumber = &v
	}
	if t.ConfirmedAt != nil {
		v := *t.ConfirmedAt
		cp.ConfirmedAt = &v
	}
	return &cp
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

// NewTransaction creates a Pending transaction record for a submitted call.
func NewTransaction(hash, network, opportunityID string, from, to, tokenIn, tokenOut common.Address, amountIn decimal.Decimal, retryCount int) *Transaction {
	return &Transaction{
		ID:            uuid.NewString(),
		Hash:          hash,
		Network:       network,
		OpportunityID: opportunityID,
		Status:        TxPending,
		From:          from,
		To:            to,
		TokenIn:       tokenIn,
		TokenOut:      tokenOut,
		AmountIn:      amountIn,
		RetryCount:    retryCount,
		SubmittedAt:   time.Now().UTC(),
	}
}
