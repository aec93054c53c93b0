package main

import (
	"context"
	"errors"
	"time"
)

// Store errors shared by both implementations.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrNotFound     = errors.New("not found")
)

// defaultBatchThreshold is the savings goal target assigned to new ledgers.
const defaultBatchThreshold = 1000

// TransactionInput carries the caller-supplied fields for a new transaction.
type TransactionInput struct {
	Kind     string  `json:"kind"`
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Note     *string `json:"note"`
}

// TransactionPatch updates a subset of transaction fields; nil means
// leave unchanged.
type TransactionPatch struct {
	Kind     *string  `json:"kind"`
	Category *string  `json:"category"`
	Amount   *float64 `json:"amount"`
	Note     *string  `json:"note"`
}

// Store is the data-access boundary. All methods are keyed by the opaque
// external user identifier; implementations resolve it to an internal row.
type Store interface {
	Ping(ctx context.Context) error

	// Users and savings ledger.
	SyncUser(ctx context.Context, externalID string, email *string) (*User, error)
	GetUser(ctx context.Context, externalID string) (*User, error)
	UpdateBaseline(ctx context.Context, externalID string, baselineCost float64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GetSavings(ctx context.Context, externalID string) (SavingsState, error)
	// AddToSavings must be a single atomic increment so concurrent
	// deposits for the same user cannot lose updates.
	AddToSavings(ctx context.Context, externalID string, amount float64) (float64, error)

	// Transactions. ListTransactionsSince has no row cap; totals over a
	// window must see every row in it.
	ListTransactions(ctx context.Context, externalID string, limit int) ([]Transaction, error)
	ListTransactionsSince(ctx context.Context, externalID string, since time.Time) ([]Transaction, error)
	CreateTransaction(ctx context.Context, externalID string, in TransactionInput) (*Transaction, error)
	UpdateTransaction(ctx context.Context, externalID, transactionID string, patch TransactionPatch) (*Transaction, error)
	DeleteTransaction(ctx context.Context, externalID, transactionID string) error

	// Push subscriptions and feedback.
	SavePushSubscription(ctx context.Context, externalID string, sub PushSubscription) error
	ListPushSubscriptions(ctx context.Context, externalID string) ([]PushSubscription, error)
	CreateFeedback(ctx context.Context, externalID *string, kind, message string) error
}
