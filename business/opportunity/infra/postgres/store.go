// Package postgres implements the opportunity store on PostgreSQL. The
// transition compare-and-swap is a conditional UPDATE keyed on expected
// prior status, so unrelated opportunities never contend.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	marketDomain "github.com/cryptoking82/evm-arbitrage-bot/business/market/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
	"github.com/ethereum/go-ethereum/common"
)

// Ensure Store implements the port.
var _ app.Store = (*Store)(nil)

// Store persists opportunities in the opportunities table.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a postgres-backed opportunity store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const insertOpportunity = `
INSERT INTO opportunities (
	id, network, detection_key, token_a, token_b, venue_a, venue_b,
	price_a, price_b, amount_in, estimated_profit, profit_pct, estimated_gas,
	metadata, status, detected_at, expires_at
)
SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
WHERE NOT EXISTS (
	SELECT 1 FROM opportunities
	WHERE detection_key = $3 AND status IN ('detected', 'analyzing', 'executing')
)`

func (s *Store) Create(ctx context.Context, opp *domain.Opportunity) error {
	tag, err := s.pool.Exec(ctx, insertOpportunity,
		opp.ID,
		opp.Key.Network,
		opp.Key.String(),
		opp.TokenA.Hex(),
		opp.TokenB.Hex(),
		opp.Key.VenueA,
		opp.Key.VenueB,
		opp.PriceA.String(),
		opp.PriceB.String(),
		opp.AmountIn.String(),
		opp.EstimatedProfit.String(),
		opp.ProfitPct.String(),
		opp.EstimatedGasFee.String(),
		opp.Metadata,
		string(opp.Status),
		opp.DetectedAt,
		opp.ExpiresAt,
	)
	if err != nil {
		return apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("insert opportunity"))
	}
	if tag.RowsAffected() == 0 {
		return apperror.New(apperror.CodeDuplicateActiveKey,
			apperror.WithContext(fmt.Sprintf("active opportunity already holds key %s", opp.Key.String())))
	}
	return nil
}

const selectOpportunity = `
SELECT id, network, detection_key, token_a, token_b, venue_a, venue_b,
	price_a::text, price_b::text, amount_in::text, estimated_profit::text,
	profit_pct::text, estimated_gas::text, actual_profit::text,
	actual_gas_fee::text, COALESCE(metadata, '{}'::jsonb), COALESCE(error, ''), status,
	detected_at, executed_at, completed_at, expires_at
FROM opportunities`

func (s *Store) Get(ctx context.Context, id string) (*domain.Opportunity, error) {
	row := s.pool.QueryRow(ctx, selectOpportunity+" WHERE id = $1", id)
	opp, err := scanOpportunity(row)
	if err == pgx.ErrNoRows {
		return nil, apperror.New(apperror.CodeOpportunityNotFound,
			apperror.WithContext(fmt.Sprintf("opportunity %s not found", id)))
	}
	if err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("select opportunity"))
	}
	return opp, nil
}

const updateTransition = `
UPDATE opportunities SET
	status = $3,
	actual_profit = COALESCE($4, actual_profit),
	actual_gas_fee = COALESCE($5, actual_gas_fee),
	error = CASE WHEN $6 <> '' THEN $6 ELSE error END,
	executed_at = CASE WHEN $3 = 'executing' THEN $7 ELSE executed_at END,
	completed_at = CASE WHEN $3 IN ('completed', 'failed', 'expired') THEN $7 ELSE completed_at END
WHERE id = $1 AND status = $2`

func (s *Store) Transition(ctx context.Context, id string, from, to domain.Status, fields *app.TransitionFields) (*domain.Opportunity, error) {
	if !domain.CanTransition(from, to) {
		return nil, apperror.New(apperror.CodeInvalidTransition,
			apperror.WithContext(fmt.Sprintf("opportunity %s: %s -> %s is not a legal edge", id, from, to)))
	}

	var actualProfit, actualGasFee *string
	errorMessage := ""
	if fields != nil {
		if fields.ActualProfit != nil {
			v := fields.ActualProfit.String()
			actualProfit = &v
		}
		if fields.ActualGasFee != nil {
			v := fields.ActualGasFee.String()
			actualGasFee = &v
		}
		errorMessage = fields.ErrorMessage
	}

	tag, err := s.pool.Exec(ctx, updateTransition,
		id, string(from), string(to),
		actualProfit, actualGasFee, errorMessage,
		time.Now().UTC(),
	)
	if err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("transition opportunity"))
	}
	if tag.RowsAffected() == 0 {
		// Distinguish unknown id from a lost CAS race.
		if _, getErr := s.Get(ctx, id); apperror.IsCode(getErr, apperror.CodeOpportunityNotFound) {
			return nil, getErr
		}
		return nil, apperror.New(apperror.CodeInvalidTransition,
			apperror.WithContext(fmt.Sprintf("opportunity %s: %s -> %s rejected, state changed concurrently", id, from, to)))
	}

	return s.Get(ctx, id)
}

const selectEligible = selectOpportunity + `
WHERE status = 'detected' AND expires_at > $1
ORDER BY profit_pct DESC, detected_at ASC`

func (s *Store) ListEligible(ctx context.Context, now time.Time, limit int) ([]*domain.Opportunity, error) {
	query := selectEligible
	args := []any{now}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("list eligible opportunities"))
	}
	defer rows.Close()

	var out []*domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, apperror.New(apperror.CodeExternalServiceError,
				apperror.WithCause(err),
				apperror.WithContext("scan eligible opportunity"))
		}
		out = append(out, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithCause(err),
			apperror.WithContext("iterate eligible opportunities"))
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOpportunity(row rowScanner) (*domain.Opportunity, error) {
	var (
		opp          domain.Opportunity
		network      string
		detectionKey string
		tokenA       string
		tokenB       string
		venueA       string
		venueB       string
		priceA       string
		priceB       string
		amountIn     string
		estProfit    string
		profitPct    string
		estGas       string
		actualProfit *string
		actualGasFee *string
		status       string
	)

	err := row.Scan(
		&opp.ID, &network, &detectionKey, &tokenA, &tokenB,
		&venueA, &venueB,
		&priceA, &priceB, &amountIn, &estProfit, &profitPct, &estGas,
		&actualProfit, &actualGasFee,
		&opp.Metadata, &opp.ErrorMessage, &status,
		&opp.DetectedAt, &opp.ExecutedAt, &opp.CompletedAt, &opp.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	opp.Key = marketDomain.ParseDetectionKey(detectionKey)
	opp.Key.Network = network
	opp.Key.VenueA = venueA
	opp.Key.VenueB = venueB
	opp.TokenA = common.HexToAddress(tokenA)
	opp.TokenB = common.HexToAddress(tokenB)
	opp.Status = domain.Status(status)

	if opp.PriceA, err = decimal.NewFromString(priceA); err != nil {
		return nil, err
	}
	if opp.PriceB, err = decimal.NewFromString(priceB); err != nil {
		return nil, err
	}
	if opp.AmountIn, err = decimal.NewFromString(amountIn); err != nil {
		return nil, err
	}
	if opp.EstimatedProfit, err = decimal.NewFromString(estProfit); err != nil {
		return nil, err
	}
	if opp.ProfitPct, err = decimal.NewFromString(profitPct); err != nil {
		return nil, err
	}
	if opp.EstimatedGasFee, err = decimal.NewFromString(estGas); err != nil {
		return nil, err
	}
	if actualProfit != nil {
		v, err := decimal.NewFromString(*actualProfit)
		if err != nil {
			return nil, err
		}
		opp.ActualProfit = &v
	}
	if actualGasFee != nil {
		v, err := decimal.NewFromString(*actualGasFee)
		if err != nil {
			return nil, err
		}
		opp.ActualGasFee = &v
	}

	return &opp, nil
}
