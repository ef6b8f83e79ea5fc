package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Token describes one tradable ERC20 token on one network.
type Token struct {
	Symbol      string
	Network     string
	Address     common.Address
	Decimals    uint8
	Blacklisted bool
}

// IsTradable reports whether the token may be traded.
func (t *Token) IsTradable() bool {
	return !t.Blacklisted
}

// ToRaw converts a human amount to the token's smallest unit.
func (t *Token) ToRaw(amount decimal.Decimal) *big.Int {
	return amount.Mul(decimal.New(1, int32(t.Decimals))).BigInt()
}

// FromRaw converts a raw smallest-unit value to a human amount.
func (t *Token) FromRaw(raw *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -int32(t.Decimals))
}
