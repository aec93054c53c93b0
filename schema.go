package main

import (
	"database/sql"
	"fmt"
)

const schemaSQL = `
	CREATE EXTENSION IF NOT EXISTS pgcrypto;

	CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		external_id VARCHAR(255) NOT NULL,
		email VARCHAR(255),
		financial_score INTEGER NOT NULL DEFAULT 0,
		baseline_cost DECIMAL(12,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		kind VARCHAR(20) NOT NULL,
		category VARCHAR(100) NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		note TEXT,
		status VARCHAR(20) NOT NULL DEFAULT 'completed',
		timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS savings_ledger (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		virtual_balance DECIMAL(12,2) NOT NULL DEFAULT 0,
		batch_threshold DECIMAL(12,2) NOT NULL DEFAULT 1000,
		transfer_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS push_subscriptions (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		endpoint TEXT NOT NULL,
		p256dh TEXT NOT NULL,
		auth TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS feedback (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		external_id VARCHAR(255),
		kind VARCHAR(20) NOT NULL,
		message TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Remove duplicates before enforcing uniqueness
	DO $$
	BEGIN
		IF EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = 'users'
		) THEN
			WITH d AS (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY external_id ORDER BY created_at) rn
				FROM users
			)
			DELETE FROM users WHERE id IN (SELECT id FROM d WHERE rn > 1);
		END IF;
	END $$;

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_external_id ON users(external_id);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_push_subscriptions_endpoint ON push_subscriptions(endpoint);
	CREATE INDEX IF NOT EXISTS idx_transactions_user_timestamp ON transactions(user_id, timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_savings_ledger_user ON savings_ledger(user_id);
`

func ensureSchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Seed a demo user with a month of transactions and a savings ledger for
// presentations. Idempotent: only runs when the demo user is absent.
func seedDemoData(db *sql.DB) error {
	var cnt int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users WHERE external_id = 'demo-user'`).Scan(&cnt); err != nil {
		return fmt.Errorf("checking demo user: %w", err)
	}
	if cnt > 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var userID string
	err = tx.QueryRow(`
		INSERT INTO users (external_id, email, baseline_cost)
		VALUES ('demo-user', 'demo@example.com', 120.00)
		RETURNING id
	`).Scan(&userID)
	if err != nil {
		return fmt.Errorf("seeding demo user: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO savings_ledger (user_id, virtual_balance, batch_threshold)
		VALUES ($1, 750.00, 1000.00)
	`, userID); err != nil {
		return fmt.Errorf("seeding demo ledger: %w", err)
	}

	const demoTx = `
	INSERT INTO transactions (user_id, kind, category, amount, note, timestamp) VALUES
	($1, 'income',  'Salary',        3200.00, 'Monthly payroll',      CURRENT_TIMESTAMP - INTERVAL '28 days'),
	($1, 'income',  'Freelance',     850.00,  'Landing page project', CURRENT_TIMESTAMP - INTERVAL '25 days'),
	($1, 'expense', 'Rent',          1500.00, NULL,                   CURRENT_TIMESTAMP - INTERVAL '24 days'),
	($1, 'expense', 'Utilities',     120.45,  'Electricity',          CURRENT_TIMESTAMP - INTERVAL '22 days'),
	($1, 'expense', 'Groceries',     96.72,   NULL,                   CURRENT_TIMESTAMP - INTERVAL '20 days'),
	($1, 'expense', 'Transport',     45.00,   'Weekly pass',          CURRENT_TIMESTAMP - INTERVAL '19 days'),
	($1, 'expense', 'Entertainment', 28.50,   'Movie night',          CURRENT_TIMESTAMP - INTERVAL '16 days'),
	($1, 'expense', 'Groceries',     64.11,   NULL,                   CURRENT_TIMESTAMP - INTERVAL '14 days'),
	($1, 'income',  'Freelance',     600.00,  'Dashboard charts',     CURRENT_TIMESTAMP - INTERVAL '13 days'),
	($1, 'expense', 'Utilities',     60.00,   'Internet',             CURRENT_TIMESTAMP - INTERVAL '11 days'),
	($1, 'expense', 'Entertainment', 140.00,  'Concert tickets',      CURRENT_TIMESTAMP - INTERVAL '8 days'),
	($1, 'expense', 'Groceries',     132.39,  NULL,                   CURRENT_TIMESTAMP - INTERVAL '6 days'),
	($1, 'expense', 'Transport',     22.30,   'Rideshare',            CURRENT_TIMESTAMP - INTERVAL '4 days'),
	($1, 'expense', 'Entertainment', 54.80,   'Dinner out',           CURRENT_TIMESTAMP - INTERVAL '1 days')
	`
	if _, err := tx.Exec(demoTx, userID); err != nil {
		return fmt.Errorf("seeding demo transactions: %w", err)
	}

	return tx.Commit()
}
