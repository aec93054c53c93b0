package main

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is a mutex-guarded in-memory Store. It backs handler tests
// and serves as the dev-mode fallback when DATABASE_URL is unset.
type memoryStore struct {
	mu            sync.Mutex
	users         map[string]*User // keyed by external id
	transactions  map[string][]Transaction
	ledgers       map[string]*SavingsState
	subscriptions map[string][]PushSubscription
	feedback      []feedbackEntry
}

type feedbackEntry struct {
	ExternalID *string
	Kind       string
	Message    string
	CreatedAt  time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:         make(map[string]*User),
		transactions:  make(map[string][]Transaction),
		ledgers:       make(map[string]*SavingsState),
		subscriptions: make(map[string][]PushSubscription),
	}
}

func (s *memoryStore) Ping(ctx context.Context) error {
	return nil
}

func (s *memoryStore) SyncUser(ctx context.Context, externalID string, email *string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[externalID]; ok {
		copied := *u
		return &copied, nil
	}

	u := &User{
		ID:           uuid.NewString(),
		ExternalID:   externalID,
		Email:        email,
		BaselineCost: 0,
		CreatedAt:    time.Now(),
	}
	s.users[externalID] = u
	s.ledgers[externalID] = &SavingsState{VirtualBalance: 0, BatchThreshold: defaultBatchThreshold}
	copied := *u
	return &copied, nil
}

func (s *memoryStore) GetUser(ctx context.Context, externalID string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[externalID]
	if !ok {
		return nil, ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *memoryStore) UpdateBaseline(ctx context.Context, externalID string, baselineCost float64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[externalID]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.BaselineCost = baselineCost
	copied := *u
	return &copied, nil
}

func (s *memoryStore) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *memoryStore) GetSavings(ctx context.Context, externalID string) (SavingsState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ledger, ok := s.ledgers[externalID]; ok {
		return *ledger, nil
	}
	return SavingsState{VirtualBalance: 0, BatchThreshold: defaultBatchThreshold}, nil
}

func (s *memoryStore) AddToSavings(ctx context.Context, externalID string, amount float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[externalID]; !ok {
		return 0, ErrUserNotFound
	}
	ledger, ok := s.ledgers[externalID]
	if !ok {
		return 0, ErrNotFound
	}
	ledger.VirtualBalance += amount
	return ledger.VirtualBalance, nil
}

func (s *memoryStore) ListTransactions(ctx context.Context, externalID string, limit int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[externalID]; !ok {
		return nil, ErrUserNotFound
	}

	all := s.transactions[externalID]
	txs := make([]Transaction, len(all))
	copy(txs, all)
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func (s *memoryStore) ListTransactionsSince(ctx context.Context, externalID string, since time.Time) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[externalID]; !ok {
		return nil, ErrUserNotFound
	}

	txs := make([]Transaction, 0)
	for _, t := range s.transactions[externalID] {
		if !t.Timestamp.Before(since) {
			txs = append(txs, t)
		}
	}
	sort.Slice(txs, func(i, j int) bool {
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})
	return txs, nil
}

func (s *memoryStore) CreateTransaction(ctx context.Context, externalID string, in TransactionInput) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[externalID]
	if !ok {
		return nil, ErrUserNotFound
	}

	t := Transaction{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		Kind:      in.Kind,
		Category:  in.Category,
		Amount:    in.Amount,
		Note:      in.Note,
		Status:    "completed",
		Timestamp: time.Now(),
	}
	s.transactions[externalID] = append(s.transactions[externalID], t)
	return &t, nil
}

func (s *memoryStore) UpdateTransaction(ctx context.Context, externalID, transactionID string, patch TransactionPatch) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[externalID]; !ok {
		return nil, ErrUserNotFound
	}

	txs := s.transactions[externalID]
	for i := range txs {
		if txs[i].ID != transactionID {
			continue
		}
		if patch.Kind != nil {
			txs[i].Kind = *patch.Kind
		}
		if patch.Category != nil {
			txs[i].Category = *patch.Category
		}
		if patch.Amount != nil {
			txs[i].Amount = *patch.Amount
		}
		if patch.Note != nil {
			txs[i].Note = patch.Note
		}
		copied := txs[i]
		return &copied, nil
	}
	return nil, ErrNotFound
}

func (s *memoryStore) DeleteTransaction(ctx context.Context, externalID, transactionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[externalID]; !ok {
		return ErrUserNotFound
	}

	txs := s.transactions[externalID]
	for i := range txs {
		if txs[i].ID == transactionID {
			s.transactions[externalID] = append(txs[:i], txs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *memoryStore) SavePushSubscription(ctx context.Context, externalID string, sub PushSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[externalID]; !ok {
		return ErrUserNotFound
	}

	subs := s.subscriptions[externalID]
	for i := range subs {
		if subs[i].Endpoint == sub.Endpoint {
			subs[i] = sub
			return nil
		}
	}
	s.subscriptions[externalID] = append(subs, sub)
	return nil
}

func (s *memoryStore) ListPushSubscriptions(ctx context.Context, externalID string) ([]PushSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[externalID]; !ok {
		return nil, ErrUserNotFound
	}
	subs := make([]PushSubscription, len(s.subscriptions[externalID]))
	copy(subs, s.subscriptions[externalID])
	return subs, nil
}

func (s *memoryStore) CreateFeedback(ctx context.Context, externalID *string, kind, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.feedback = append(s.feedback, feedbackEntry{
		ExternalID: externalID,
		Kind:       kind,
		Message:    strings.TrimSpace(message),
		CreatedAt:  time.Now(),
	})
	return nil
}

// setTransactionTime rewrites a stored transaction's timestamp. Tests use
// it to build histories at fixed points in time.
func (s *memoryStore) setTransactionTime(externalID, transactionID string, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := s.transactions[externalID]
	for i := range txs {
		if txs[i].ID == transactionID {
			txs[i].Timestamp = ts
			return
		}
	}
}
