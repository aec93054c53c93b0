package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// normalizeDatabaseURL rewrites postgresql:// to postgres:// and ensures
// sslmode is set, for compatibility with URLs handed out by managed hosts.
func normalizeDatabaseURL(databaseURL string) string {
	if len(databaseURL) > 11 && databaseURL[:11] == "postgresql:" {
		databaseURL = "postgres" + databaseURL[10:]
	}
	if !strings.Contains(databaseURL, "sslmode=") {
		separator := "?"
		if strings.Contains(databaseURL, "?") {
			separator = "&"
		}
		databaseURL = databaseURL + separator + "sslmode=disable"
	}
	return databaseURL
}

// openDatabase connects to Postgres, waiting for the database to come up.
func openDatabase(databaseURL string, log zerolog.Logger) (*sql.DB, error) {
	config, err := pgx.ParseConfig(normalizeDatabaseURL(databaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	maxRetries := 60
	retryDelay := 2 * time.Second

	var db *sql.DB
	for i := 0; i < maxRetries; i++ {
		db = stdlib.OpenDB(*config)
		if err := db.Ping(); err != nil {
			db.Close()
			if i < maxRetries-1 {
				log.Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries).
					Msgf("database not ready, retrying in %v", retryDelay)
				time.Sleep(retryDelay)
				continue
			}
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
		}
		log.Info().Msg("database connection established")
		break
	}
	return db, nil
}

// postgresStore implements Store on top of Postgres.
type postgresStore struct {
	db *sql.DB
}

func newPostgresStore(db *sql.DB) *postgresStore {
	return &postgresStore{db: db}
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const userColumns = "id, external_id, email, financial_score, baseline_cost, created_at"

func scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.FinancialScore, &u.BaselineCost, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// resolveUserID maps the external identity to the internal user id.
func (s *postgresStore) resolveUserID(ctx context.Context, externalID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE external_id = $1", externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolving user: %w", err)
	}
	return id, nil
}

// SyncUser returns the existing user for the external id or creates one,
// along with its savings ledger row.
func (s *postgresStore) SyncUser(ctx context.Context, externalID string, email *string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE external_id = $1", externalID))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	u, err = scanUser(s.db.QueryRowContext(ctx,
		"INSERT INTO users (external_id, email) VALUES ($1, $2) RETURNING "+userColumns,
		externalID, email))
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO savings_ledger (user_id) VALUES ($1)", u.ID); err != nil {
		return nil, fmt.Errorf("creating savings ledger: %w", err)
	}
	return u, nil
}

func (s *postgresStore) GetUser(ctx context.Context, externalID string) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE external_id = $1", externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return u, nil
}

func (s *postgresStore) UpdateBaseline(ctx context.Context, externalID string, baselineCost float64) (*User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"UPDATE users SET baseline_cost = $1 WHERE external_id = $2 RETURNING "+userColumns,
		baselineCost, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating baseline: %w", err)
	}
	return u, nil
}

func (s *postgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.ExternalID, &u.Email, &u.FinancialScore, &u.BaselineCost, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetSavings returns the ledger snapshot, falling back to the defaults
// (zero balance, 1000 threshold) when the user or ledger row is missing.
func (s *postgresStore) GetSavings(ctx context.Context, externalID string) (SavingsState, error) {
	state := SavingsState{VirtualBalance: 0, BatchThreshold: defaultBatchThreshold}

	userID, err := s.resolveUserID(ctx, externalID)
	if errors.Is(err, ErrUserNotFound) {
		return state, nil
	}
	if err != nil {
		return state, err
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT virtual_balance, batch_threshold FROM savings_ledger WHERE user_id = $1",
		userID).Scan(&state.VirtualBalance, &state.BatchThreshold)
	if errors.Is(err, sql.ErrNoRows) {
		return SavingsState{VirtualBalance: 0, BatchThreshold: defaultBatchThreshold}, nil
	}
	if err != nil {
		return state, fmt.Errorf("loading savings ledger: %w", err)
	}
	return state, nil
}

// AddToSavings increments the virtual balance in a single UPDATE so
// concurrent deposits never read-modify-write each other away.
func (s *postgresStore) AddToSavings(ctx context.Context, externalID string, amount float64) (float64, error) {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return 0, err
	}

	var balance float64
	err = s.db.QueryRowContext(ctx,
		"UPDATE savings_ledger SET virtual_balance = virtual_balance + $1 WHERE user_id = $2 RETURNING virtual_balance",
		amount, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("updating savings ledger: %w", err)
	}
	return balance, nil
}

const transactionColumns = "id, user_id, kind, category, amount, note, status, timestamp"

func (s *postgresStore) ListTransactions(ctx context.Context, externalID string, limit int) ([]Transaction, error) {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 ORDER BY timestamp DESC LIMIT $2",
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	// ensure empty array ([]) instead of null when no rows
	txs := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Category, &t.Amount, &t.Note, &t.Status, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func (s *postgresStore) ListTransactionsSince(ctx context.Context, externalID string, since time.Time) ([]Transaction, error) {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 AND timestamp >= $2 ORDER BY timestamp DESC",
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("listing transactions since: %w", err)
	}
	defer rows.Close()

	txs := make([]Transaction, 0)
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Category, &t.Amount, &t.Note, &t.Status, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func scanTransaction(row *sql.Row) (*Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Kind, &t.Category, &t.Amount, &t.Note, &t.Status, &t.Timestamp)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *postgresStore) CreateTransaction(ctx context.Context, externalID string, in TransactionInput) (*Transaction, error) {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`INSERT INTO transactions (user_id, kind, category, amount, note, status)
		 VALUES ($1, $2, $3, $4, $5, 'completed')
		 RETURNING `+transactionColumns,
		userID, in.Kind, in.Category, in.Amount, in.Note))
	if err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	return t, nil
}

func (s *postgresStore) UpdateTransaction(ctx context.Context, externalID, transactionID string, patch TransactionPatch) (*Transaction, error) {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	existing, err := scanTransaction(s.db.QueryRowContext(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 AND id = $2",
		userID, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading transaction: %w", err)
	}

	kind := existing.Kind
	if patch.Kind != nil {
		kind = *patch.Kind
	}
	category := existing.Category
	if patch.Category != nil {
		category = *patch.Category
	}
	amount := existing.Amount
	if patch.Amount != nil {
		amount = *patch.Amount
	}
	note := existing.Note
	if patch.Note != nil {
		note = patch.Note
	}

	t, err := scanTransaction(s.db.QueryRowContext(ctx,
		`UPDATE transactions SET kind = $1, category = $2, amount = $3, note = $4
		 WHERE user_id = $5 AND id = $6
		 RETURNING `+transactionColumns,
		kind, category, amount, note, userID, transactionID))
	if err != nil {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}
	return t, nil
}

func (s *postgresStore) DeleteTransaction(ctx context.Context, externalID, transactionID string) error {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM transactions WHERE user_id = $1 AND id = $2", userID, transactionID)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) SavePushSubscription(ctx context.Context, externalID string, sub PushSubscription) error {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (user_id, endpoint, p256dh, auth)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (endpoint) DO UPDATE SET p256dh = EXCLUDED.p256dh, auth = EXCLUDED.auth`,
		userID, sub.Endpoint, sub.P256dh, sub.Auth)
	if err != nil {
		return fmt.Errorf("saving push subscription: %w", err)
	}
	return nil
}

func (s *postgresStore) ListPushSubscriptions(ctx context.Context, externalID string) ([]PushSubscription, error) {
	userID, err := s.resolveUserID(ctx, externalID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT endpoint, p256dh, auth FROM push_subscriptions WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("listing push subscriptions: %w", err)
	}
	defer rows.Close()

	subs := make([]PushSubscription, 0)
	for rows.Next() {
		var sub PushSubscription
		if err := rows.Scan(&sub.Endpoint, &sub.P256dh, &sub.Auth); err != nil {
			return nil, fmt.Errorf("scanning push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func (s *postgresStore) CreateFeedback(ctx context.Context, externalID *string, kind, message string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO feedback (external_id, kind, message) VALUES ($1, $2, $3)",
		externalID, kind, strings.TrimSpace(message))
	if err != nil {
		return fmt.Errorf("creating feedback: %w", err)
	}
	return nil
}
