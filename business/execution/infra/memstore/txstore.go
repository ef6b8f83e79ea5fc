// Package memstore provides the in-memory transaction store used by the
// default storage driver and by tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/app"
	"github.com/cryptoking82/evm-arbitrage-bot/business/execution/domain"
	"github.com/cryptoking82/evm-arbitrage-bot/internal/apperror"
)

var _ app.TxStore = (*TxStore)(nil)

// TxStore keeps transaction records in a mutex-guarded map.
type TxStore struct {
	mu     sync.Mutex
	byID   map[string]*domain.Transaction
	byHash map[string]string // network/hash -> id
}

// NewTxStore creates an empty store.
func NewTxStore() *TxStore {
	return &TxStore{
		byID:   make(map[string]*domain.Transaction),
		byHash: make(map[string]string),
	}
}

func hashKey(network, hash string) string {
	return network + "/" + hash
}

// Create persists a new transaction record.
func (s *TxStore) Create(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := hashKey(tx.Network, tx.Hash)
	if _, exists := s.byHash[key]; exists {
		return apperror.New(apperror.CodeDuplicateTransaction,
			apperror.WithContext(fmt.Sprintf("transaction %s already recorded on %s", tx.Hash, tx.Network)))
	}

	s.byID[tx.ID] = tx.Clone()
	s.byHash[key] = tx.ID
	return nil
}

// Get returns a snapshot by id.
func (s *TxStore) Get(ctx context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.byID[id]
	if !ok {
		return nil, apperror.New(apperror.CodeTransactionNotFound,
			apperror.WithContext(fmt.Sprintf("transaction %s not found", id)))
	}
	return tx.Clone(), nil
}

// Update applies settlement results. Terminal records never change.
func (s *TxStore) Update(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[tx.ID]
	if !ok {
		return apperror.New(apperror.CodeTransactionNotFound,
			apperror.WithContext(fmt.Sprintf("transaction %s not found", tx.ID)))
	}
	if current.Status.Terminal() {
		return apperror.New(apperror.CodeInvalidState,
			apperror.WithContext(fmt.Sprintf("transaction %s is already %s", tx.ID, current.Status)))
	}

	s.byID[tx.ID] = tx.Clone()
	return nil
}

// ListPending returns unsettled transactions oldest first.
func (s *TxStore) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []*domain.Transaction
	for _, tx := range s.byID {
		if tx.Status == domain.TxPending {
			pending = append(pending, tx.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].SubmittedAt.Before(pending[j].SubmittedAt)
	})
	return pending, nil
}
