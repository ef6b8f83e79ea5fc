// Package postgres persists transaction records in the transactions table.
// Terminal records are immutable; the UPDATE is conditional on the row still
// being pending.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/ethereum/go-ethereum/common"
)

// Ensure TxStore implements the port.
var _ app.TxStore = (*TxStore)(nil)

// TxStore persists transactions in PostgreSQL.
type TxStore struct {
	pool *pgxpool.Pool
}

// NewTxStore creates a postgres-backed transaction store.
func NewTxStore(pool *pgxpool.Pool) *TxStore {
	return &TxStore{pool: pool}
}

const insertTransaction = `
INSERT INTO transactions (
	id, hash, network, opportunity_id, status,
	from_address, to_address, token_in, token_out,
	amount_in, retry_count, submitted_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (s *TxStore) Create(ctx context.Context, tx *domain.Transaction) error {
	_, err := s.pool.Exec(ctx, insertTransaction,
		tx.ID,
		tx.Hash,
		tx.Network,
		tx.OpportunityID,
		string(tx.Status),
		tx.From.Hex(),
		tx.To.Hex(),
		tx.TokenIn.Hex(),
		tx.TokenOut.Hex(),
		tx.AmountIn.String(),
		tx.RetryCount,
		tx.SubmittedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperror.New(apperror.CodeDuplicateTransaction,
			apperror.WithContext(fmt.Sprintf("transaction %s already recorded on %s", tx.Hash, tx.Network)))
	}
	if err != nil {
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("insert transaction"))
	}
	return nil
}

const selectTransaction = `
SELECT id, hash, network, opportunity_id, status,
	from_address, to_address, token_in, token_out,
	amount_in::text, amount_out::text, gas_used, gas_price_wei::text,
	gas_fee::text, realized_profit::text, realized_pct::text,
	retry_count, block_number, submitted_at, confirmed_at
FROM transactions`

func (s *TxStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	row := s.pool.QueryRow(ctx, selectTransaction+" WHERE id = $1", id)
	tx, err := scanTransaction(row)
	if err == pgx.ErrNoRows {
		return nil, apperror.New(apperror.CodeTransactionNotFound,
			apperror.WithContext(fmt.Sprintf("transaction %s not found", id)))
	}
	if err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("select transaction"))
	}
	return tx, nil
}

const updateTransaction = `
UPDATE transactions SET
	status = $2,
	amount_out = $3,
	gas_used = $4,
	gas_price_wei = $5,
	gas_fee = $6,
	realized_profit = $7,
	realized_pct = $8,
	block_number = $9,
	confirmed_at = $10
WHERE id = $1 AND status = 'pending'`

func (s *TxStore) Update(ctx context.Context, tx *domain.Transaction) error {
	tag, err := s.pool.Exec(ctx, updateTransaction,
		tx.ID,
		string(tx.Status),
		decimalText(tx.AmountOut),
		tx.GasUsed,
		decimalText(tx.GasPriceWei),
		decimalText(tx.GasFee),
		decimalText(tx.RealizedProfit),
		decimalText(tx.RealizedPct),
		tx.BlockNumber,
		tx.ConfirmedAt,
	)
	if err != nil {
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("update transaction"))
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, tx.ID); apperror.IsCode(getErr, apperror.CodeTransactionNotFound) {
			return getErr
		}
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("transaction %s already settled", tx.ID)))
	}
	return nil
}

const selectPending = selectTransaction + `
WHERE status = 'pending'
ORDER BY submitted_at ASC`

func (s *TxStore) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	rows, err := s.pool.Query(ctx, selectPending)
	if err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("list pending transactions"))
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, apperror.New(apperror.CodeExternalServiceError,
				apperror.WithCause(err),
				apperror.WithContext("scan pending transaction"))
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("iterate pending transactions"))
	}
	return out, nil
}

func decimalText(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	v := d.String()
	return &v
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var (
		tx             domain.Transaction
		status         string
		from           string
		to             string
		tokenIn        string
		tokenOut       string
		amountIn       string
		amountOut      *string
		gasPriceWei    *string
		gasFee         *string
		realizedProfit *string
		realizedPct    *string
	)

	err := row.Scan(
		&tx.ID, &tx.Hash, &tx.Network, &tx.OpportunityID, &status,
		&from, &to, &tokenIn, &tokenOut,
		&amountIn, &amountOut, &tx.GasUsed, &gasPriceWei,
		&gasFee, &realizedProfit, &realizedPct,
		&tx.RetryCount, &tx.BlockNumber, &tx.SubmittedAt, &tx.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.Status = domain.TxStatus(status)
	tx.From = common.HexToAddress(from)
	tx.To = common.HexToAddress(to)
	tx.TokenIn = common.HexToAddress(tokenIn)
	tx.TokenOut = common.HexToAddress(tokenOut)

	if tx.AmountIn, err = decimal.NewFromString(amountIn); err != nil {
		return nil, err
	}
	for _, pair := range []struct {
		src *string
		dst **decimal.Decimal
	}{
		{amountOut, &tx.AmountOut},
		{gasPriceWei, &tx.GasPriceWei},
		{gasFee, &tx.GasFee},
		{realizedProfit, &tx.RealizedProfit},
		{realizedPct, &tx.RealizedPct},
	} {
		if pair.src == nil {
			continue
		}
		v, err := decimal.NewFromString(*pair.src)
		if err != nil {
			return nil, err
		}
		*pair.dst = &v
	}

	return &tx, nil
}
