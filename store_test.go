package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAddToSavingsConcurrent(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	_, err := store.SyncUser(ctx, "user-1", nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.AddToSavings(ctx, "user-1", 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := store.GetSavings(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, state.VirtualBalance)
}

func TestMemoryStoreListTransactions(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	_, err := store.SyncUser(ctx, "user-1", nil)
	require.NoError(t, err)

	base := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		tx, err := store.CreateTransaction(ctx, "user-1", TransactionInput{
			Kind:     KindExpense,
			Category: "General",
			Amount:   float64(i + 1),
		})
		require.NoError(t, err)
		store.setTransactionTime("user-1", tx.ID, base.AddDate(0, 0, i))
	}

	t.Run("newest first", func(t *testing.T) {
		txs, err := store.ListTransactions(ctx, "user-1", 100)
		require.NoError(t, err)
		require.Len(t, txs, 5)
		assert.Equal(t, 5.0, txs[0].Amount)
		assert.Equal(t, 1.0, txs[4].Amount)
	})

	t.Run("limit applies after ordering", func(t *testing.T) {
		txs, err := store.ListTransactions(ctx, "user-1", 2)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		assert.Equal(t, 5.0, txs[0].Amount)
		assert.Equal(t, 4.0, txs[1].Amount)
	})

	t.Run("since returns every row in the window", func(t *testing.T) {
		txs, err := store.ListTransactionsSince(ctx, "user-1", base.AddDate(0, 0, 2))
		require.NoError(t, err)
		require.Len(t, txs, 3)
		assert.Equal(t, 5.0, txs[0].Amount)
		assert.Equal(t, 3.0, txs[2].Amount)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := store.ListTransactions(ctx, "ghost", 10)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
