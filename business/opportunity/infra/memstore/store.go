// Package memstore implements the opportunity store in process memory.
// Used for dry runs and tests; the postgres store is the durable variant.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/opportunity/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

// Ensure Store implements the port.
var _ app.Store = (*Store)(nil)

// Store keeps opportunities in a map guarded by a single mutex. Transitions
// are compare-and-swap under the lock, so racing claimers serialize here and
// exactly one wins.
type Store struct {
	mu   sync.Mutex
	byID map[string]*domain.Opportunity
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{byID: make(map[string]*domain.Opportunity)}
}

func (s *Store) Create(_ context.Context, opp *domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[opp.ID]; ok {
		return apperror.New(apperror.CodeInvalidInput,
			apperror.WithContext(fmt.Sprintf("opportunity %s already exists", opp.ID)))
	}

	key := opp.Key.String()
	for _, existing := range s.byID {
		if existing.Status.Active() && existing.Key.String() == key {
			return apperror.New(apperror.CodeDuplicateActiveKey,
				apperror.WithContext(fmt.Sprintf("active opportunity %s already holds key %s", existing.ID, key)))
		}
	}

	s.byID[opp.ID] = opp.Clone()
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opp, ok := s.byID[id]
	if !ok {
		return nil, apperror.New(apperror.CodeOpportunityNotFound,
			apperror.WithContext(fmt.Sprintf("opportunity %s not found", id)))
	}
	return opp.Clone(), nil
}

func (s *Store) Transition(_ context.Context, id string, from, to domain.Status, fields *app.TransitionFields) (*domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opp, ok := s.byID[id]
	if !ok {
		return nil, apperror.New(apperror.CodeOpportunityNotFound,
			apperror.WithContext(fmt.Sprintf("opportunity %s not found", id)))
	}

	if opp.Status != from || !domain.CanTransition(from, to) {
		return nil, apperror.New(apperror.CodeInvalidTransition,
			apperror.WithContext(fmt.Sprintf("opportunity %s: %s -> %s rejected, current %s", id, from, to, opp.Status)))
	}

	now := time.Now().UTC()
	opp.Status = to
	if to == domain.StatusExecuting {
		opp.ExecutedAt = &now
	}
	if to.Terminal() {
		opp.CompletedAt = &now
	}
	if fields != nil {
		if fields.ActualProfit != nil {
			v := *fields.ActualProfit
			opp.ActualProfit = &v
		}
		if fields.ActualGasFee != nil {
			v := *fields.ActualGasFee
			opp.ActualGasFee = &v
		}
		if fields.ErrorMessage != "" {
			opp.ErrorMessage = fields.ErrorMessage
		}
	}

	return opp.Clone(), nil
}

func (s *Store) ListEligible(_ context.Context, now time.Time, limit int) ([]*domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var eligible []*domain.Opportunity
	for _, opp := range s.byID {
		if opp.Status == domain.StatusDetected && !opp.IsExpired(now) {
			eligible = append(eligible, opp.Clone())
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if !eligible[i].ProfitPct.Equal(eligible[j].ProfitPct) {
			return eligible[i].ProfitPct.GreaterThan(eligible[j].ProfitPct)
		}
		return eligible[i].DetectedAt.Before(eligible[j].DetectedAt)
	})

	if limit > 0 && len(eligible) > limit {
		eligible = eligible[:limit]
	}
	return eligible, nil
}
