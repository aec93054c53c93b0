package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expense(amount float64, ts time.Time) Transaction {
	return Transaction{Kind: KindExpense, Category: "Groceries", Amount: amount, Timestamp: ts}
}

func income(amount float64, ts time.Time) Transaction {
	return Transaction{Kind: KindIncome, Category: "Salary", Amount: amount, Timestamp: ts}
}

func TestCalculateBalance(t *testing.T) {
	now := time.Now()

	t.Run("empty input is all zeros", func(t *testing.T) {
		b := CalculateBalance(nil)
		assert.Equal(t, Balance{}, b)
	})

	t.Run("sums income and expense separately", func(t *testing.T) {
		b := CalculateBalance([]Transaction{
			income(1000, now),
			expense(250, now),
			expense(150, now),
			income(200, now),
		})
		assert.Equal(t, 1200.0, b.Income)
		assert.Equal(t, 400.0, b.Expense)
		assert.Equal(t, 800.0, b.Total)
	})

	t.Run("additive over disjoint sets", func(t *testing.T) {
		a := []Transaction{income(500, now), expense(120, now)}
		b := []Transaction{expense(60, now), income(40, now)}

		separate := CalculateBalance(a)
		other := CalculateBalance(b)
		union := CalculateBalance(append(append([]Transaction{}, a...), b...))

		assert.Equal(t, union.Income, separate.Income+other.Income)
		assert.Equal(t, union.Expense, separate.Expense+other.Expense)
		assert.Equal(t, union.Total, separate.Total+other.Total)
	})
}

func TestCalculateBurnRate(t *testing.T) {
	now := time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

	t.Run("averages recent expenses over the window", func(t *testing.T) {
		txs := []Transaction{
			expense(70, now.AddDate(0, 0, -1)),
			expense(70, now.AddDate(0, 0, -3)),
			income(500, now.AddDate(0, 0, -2)), // ignored
			expense(100, now.AddDate(0, 0, -10)), // outside window
		}
		assert.InDelta(t, 20.0, CalculateBurnRate(txs, 7, now), 1e-9)
	})

	t.Run("cutoff is wall clock, not calendar day", func(t *testing.T) {
		// 7 days ago at exactly the cutoff instant is included; one
		// second earlier is not.
		cutoff := now.AddDate(0, 0, -7)
		included := []Transaction{expense(70, cutoff)}
		excluded := []Transaction{expense(70, cutoff.Add(-time.Second))}

		assert.InDelta(t, 10.0, CalculateBurnRate(included, 7, now), 1e-9)
		assert.Zero(t, CalculateBurnRate(excluded, 7, now))
	})

	t.Run("zero or negative window returns zero", func(t *testing.T) {
		txs := []Transaction{expense(70, now)}
		assert.Zero(t, CalculateBurnRate(txs, 0, now))
		assert.Zero(t, CalculateBurnRate(txs, -3, now))
	})
}

func TestWeekOverWeekSpending(t *testing.T) {
	// Wednesday; the week started on Sunday 2025-03-09.
	now := time.Date(2025, 3, 12, 12, 0, 0, 0, time.UTC)
	startThisWeek := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)

	txs := []Transaction{
		expense(50, now.Add(-time.Hour)),                    // this week
		expense(30, startThisWeek),                          // boundary: this week
		expense(20, startThisWeek.Add(-time.Second)),        // last week
		expense(40, startThisWeek.AddDate(0, 0, -3)),        // last week
		expense(15, startThisWeek.AddDate(0, 0, -8)),        // before last week
		income(1000, now.Add(-time.Minute)),                 // ignored
	}

	w := WeekOverWeekSpending(txs, now)
	assert.InDelta(t, 80.0, w.ThisWeek, 1e-9)
	assert.InDelta(t, 60.0, w.LastWeek, 1e-9)
}

func TestDailyExpenseTrend(t *testing.T) {
	now := time.Date(2025, 3, 15, 18, 30, 0, 0, time.UTC)

	t.Run("buckets by calendar day ascending with zero fill", func(t *testing.T) {
		txs := []Transaction{
			expense(10, time.Date(2025, 3, 15, 1, 0, 0, 0, time.UTC)),
			expense(5, time.Date(2025, 3, 15, 23, 0, 0, 0, time.UTC)), // future same day still buckets
			expense(20, time.Date(2025, 3, 13, 8, 0, 0, 0, time.UTC)),
			expense(99, time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)), // outside range
			income(500, time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)),
		}

		trend := DailyExpenseTrend(txs, 3, now)
		require.Len(t, trend, 3)

		assert.Equal(t, time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC), trend[0].Date)
		assert.InDelta(t, 20.0, trend[0].Amount, 1e-9)
		assert.Zero(t, trend[1].Amount)
		assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), trend[2].Date)
		assert.InDelta(t, 15.0, trend[2].Amount, 1e-9)
	})

	t.Run("fresh slice every call", func(t *testing.T) {
		txs := []Transaction{expense(10, now)}
		first := DailyExpenseTrend(txs, 7, now)
		second := DailyExpenseTrend(txs, 7, now)
		assert.Equal(t, first, second)

		first[0].Amount = 999
		assert.NotEqual(t, first[0].Amount, second[0].Amount)
	})

	t.Run("non-positive days is empty", func(t *testing.T) {
		assert.Empty(t, DailyExpenseTrend([]Transaction{expense(10, now)}, 0, now))
	})
}

func TestProjectedEndOfMonthBalance(t *testing.T) {
	assert.InDelta(t, 700.0, ProjectedEndOfMonthBalance(1000, 20, 15), 1e-9)
	assert.InDelta(t, 1000.0, ProjectedEndOfMonthBalance(1000, 20, 0), 1e-9)
	assert.InDelta(t, -200.0, ProjectedEndOfMonthBalance(100, 30, 10), 1e-9)
}

func TestComputeFinancialScoreBreakdown(t *testing.T) {
	t.Run("under budget with savings and activity", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(80, 100, 1000, 5)

		// 50 + 20 (ratio 0.8) + 2 (floor(1000/500)) + 5 = 77
		assert.Equal(t, 77, b.Score)
		require.Len(t, b.Factors, 4)
		assert.Equal(t, "budget_adherence", b.Factors[0].ID)
		assert.Equal(t, "Spending under budget", b.Factors[0].Label)
		assert.Equal(t, 20, b.Factors[0].Impact)
		assert.Contains(t, b.Factors[0].Description, "80%")
		assert.Equal(t, "savings_consistency", b.Factors[1].ID)
		assert.Equal(t, 2, b.Factors[1].Impact)
		assert.Equal(t, "recent_activity", b.Factors[2].ID)
		assert.Equal(t, 5, b.Factors[2].Impact)
		assert.Equal(t, "spending_distribution", b.Factors[3].ID)
		assert.Zero(t, b.Factors[3].Impact)
	})

	t.Run("well over budget with nothing else", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(150, 100, 0, 0)
		assert.Equal(t, 30, b.Score)
		assert.Equal(t, -20, b.Factors[0].Impact)
		assert.Equal(t, "Spending well over budget", b.Factors[0].Label)
	})

	t.Run("no baseline omits the budget factor", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(80, 0, 1000, 5)
		require.Len(t, b.Factors, 3)
		for _, f := range b.Factors {
			assert.NotEqual(t, "budget_adherence", f.ID)
		}
	})

	t.Run("ratio boundaries", func(t *testing.T) {
		cases := []struct {
			burnRate float64
			impact   int
			label    string
		}{
			{80, 20, "Spending under budget"},
			{80.01, 10, "Spending on track"},
			{100, 10, "Spending on track"},
			{100.01, -10, "Spending over budget"},
			{120, -10, "Spending over budget"},
			{120.01, -20, "Spending well over budget"},
		}
		for _, tc := range cases {
			b := ComputeFinancialScoreBreakdown(tc.burnRate, 100, 0, 0)
			assert.Equal(t, tc.impact, b.Factors[0].Impact, "burn rate %v", tc.burnRate)
			assert.Equal(t, tc.label, b.Factors[0].Label, "burn rate %v", tc.burnRate)
		}
	})

	t.Run("savings impact caps at 15", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(0, 0, 50000, 0)
		assert.Equal(t, 15, b.Factors[0].Impact)
	})

	t.Run("negative savings treated as zero impact", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(0, 0, -500, 0)
		assert.Zero(t, b.Factors[0].Impact)
	})

	t.Run("score clamped to 0..100", func(t *testing.T) {
		for _, burnRate := range []float64{0, 50, 80, 100, 120, 500, 10000} {
			for _, baseline := range []float64{0, 50, 100, 1000} {
				for _, savings := range []float64{-100, 0, 200, 10000, 1e9} {
					for _, count := range []int{0, 3, 500} {
						score := ComputeFinancialScore(burnRate, baseline, savings, count)
						assert.GreaterOrEqual(t, score, 0)
						assert.LessOrEqual(t, score, 100)
					}
				}
			}
		}
	})

	t.Run("recommendation when over budget and below 80", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(150, 100, 0, 0)
		// ceil(150 - 80) = 70
		assert.Equal(t, "Reduce daily spending by about 70 to get back on track.", b.Recommendation)
	})

	t.Run("recommendation when on track", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(50, 100, 5000, 5)
		require.GreaterOrEqual(t, b.Score, 80)
		assert.Equal(t, "Keep it up! You're on track.", b.Recommendation)
	})

	t.Run("no recommendation otherwise", func(t *testing.T) {
		b := ComputeFinancialScoreBreakdown(80, 100, 0, 0)
		require.Less(t, b.Score, 80)
		assert.Empty(t, b.Recommendation)
	})

	t.Run("deterministic for identical inputs", func(t *testing.T) {
		first := ComputeFinancialScoreBreakdown(95, 100, 1234, 4)
		second := ComputeFinancialScoreBreakdown(95, 100, 1234, 4)
		assert.Equal(t, first, second)
	})
}

func TestAllocateSavings(t *testing.T) {
	cases := []struct {
		income, expense, percent, want float64
	}{
		{1000, 400, 10, 60},
		{1000, 1200, 10, 0},
		{1000, 1000, 10, 0},
		{999, 0, 10, 99},
		{1000, 400, 25, 150},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%.0f-%.0f@%.0f%%", tc.income, tc.expense, tc.percent), func(t *testing.T) {
			assert.Equal(t, tc.want, AllocateSavings(tc.income, tc.expense, tc.percent))
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "1,000", formatAmount(1000))
	assert.Equal(t, "500", formatAmount(500))
	assert.Equal(t, "12,346", formatAmount(12345.6))
}
