package main

import (
	"fmt"
	"math"
	"sort"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Defaults for the scoring pipeline.
const (
	burnRateWindowDays       = 7
	defaultAllocationPercent = 10
)

const dayKeyFormat = "2006-01-02"

var amountPrinter = message.NewPrinter(language.English)

// formatAmount renders an amount with thousands grouping and no decimals,
// matching how amounts appear in user-facing messages.
func formatAmount(v float64) string {
	return amountPrinter.Sprintf("%.0f", v)
}

// CalculateBalance sums a transaction set into income, expense and net totals.
func CalculateBalance(txs []Transaction) Balance {
	var b Balance
	for _, t := range txs {
		if t.Kind == KindIncome {
			b.Income += t.Amount
		} else {
			b.Expense += t.Amount
		}
	}
	b.Total = b.Income - b.Expense
	return b
}

// CalculateBurnRate returns the average daily expense over the trailing
// window ending at now. The cutoff is wall-clock based rather than
// calendar-day aligned, so partial days are included; this matches the
// trend math only approximately and is kept for compatibility.
func CalculateBurnRate(txs []Transaction, days int, now time.Time) float64 {
	if days <= 0 {
		return 0
	}
	cutoff := now.AddDate(0, 0, -days)
	var total float64
	for _, t := range txs {
		if t.Kind == KindExpense && !t.Timestamp.Before(cutoff) {
			total += t.Amount
		}
	}
	return total / float64(days)
}

// WeekOverWeekSpending sums expenses for the week containing now and the
// week before it. Weeks start on Sunday in now's location.
func WeekOverWeekSpending(txs []Transaction, now time.Time) WeeklySpending {
	y, m, d := now.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	startThisWeek := midnight.AddDate(0, 0, -int(now.Weekday()))
	startLastWeek := startThisWeek.AddDate(0, 0, -7)

	var w WeeklySpending
	for _, t := range txs {
		if t.Kind != KindExpense {
			continue
		}
		switch {
		case !t.Timestamp.Before(startThisWeek) && t.Timestamp.Before(now):
			w.ThisWeek += t.Amount
		case !t.Timestamp.Before(startLastWeek) && t.Timestamp.Before(startThisWeek):
			w.LastWeek += t.Amount
		}
	}
	return w
}

// DailyExpenseTrend buckets expense amounts into the last days calendar
// days, keyed by local date. Every day in the range is present so charts
// render gaps as zeros; buckets are sorted ascending by date.
func DailyExpenseTrend(txs []Transaction, days int, now time.Time) []DailyAmount {
	if days <= 0 {
		return []DailyAmount{}
	}

	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	buckets := make(map[string]*DailyAmount, days)
	for i := days - 1; i >= 0; i-- {
		day := today.AddDate(0, 0, -i)
		buckets[day.Format(dayKeyFormat)] = &DailyAmount{Date: day}
	}

	for _, t := range txs {
		if t.Kind != KindExpense {
			continue
		}
		key := t.Timestamp.In(now.Location()).Format(dayKeyFormat)
		if b, ok := buckets[key]; ok {
			b.Amount += t.Amount
		}
	}

	trend := make([]DailyAmount, 0, len(buckets))
	for _, b := range buckets {
		trend = append(trend, *b)
	}
	sort.Slice(trend, func(i, j int) bool {
		return trend[i].Date.Before(trend[j].Date)
	})
	return trend
}

// ProjectedEndOfMonthBalance linearly extrapolates the current balance at
// the current burn rate. Future income is not modeled.
func ProjectedEndOfMonthBalance(currentBalance, burnRate float64, daysRemaining int) float64 {
	return currentBalance - burnRate*float64(daysRemaining)
}

// ComputeFinancialScoreBreakdown derives the 0-100 financial health score
// together with the ordered factor list consumers render as-is. The factor
// order is fixed: budget adherence (only when a baseline is set), savings
// consistency, recent activity, spending distribution.
func ComputeFinancialScoreBreakdown(burnRate, baselineCost, savingsBalance float64, recentTransactionCount int) ScoreBreakdown {
	score := 50
	factors := make([]ScoreFactor, 0, 4)

	if baselineCost > 0 {
		ratio := burnRate / baselineCost
		var impact int
		var label string
		switch {
		case ratio <= 0.8:
			impact, label = 20, "Spending under budget"
		case ratio <= 1.0:
			impact, label = 10, "Spending on track"
		case ratio <= 1.2:
			impact, label = -10, "Spending over budget"
		default:
			impact, label = -20, "Spending well over budget"
		}
		factors = append(factors, ScoreFactor{
			ID:          "budget_adherence",
			Label:       label,
			Impact:      impact,
			Description: fmt.Sprintf("Daily burn is %.0f%% of baseline", ratio*100),
		})
		score += impact
	}

	var savingsImpact int
	if savingsBalance > 0 {
		savingsImpact = int(math.Min(15, math.Floor(savingsBalance/500)))
	}
	savingsDesc := "No savings yet. Even a small amount helps."
	if savingsBalance > 0 {
		savingsDesc = fmt.Sprintf("Virtual balance of %s", formatAmount(savingsBalance))
	}
	factors = append(factors, ScoreFactor{
		ID:          "savings_consistency",
		Label:       "Savings consistency",
		Impact:      savingsImpact,
		Description: savingsDesc,
	})
	score += savingsImpact

	var activityImpact int
	activityDesc := "Log at least 3 transactions a week to keep your score fresh."
	if recentTransactionCount >= 3 {
		activityImpact = 5
		activityDesc = fmt.Sprintf("%d transactions logged this week", recentTransactionCount)
	}
	factors = append(factors, ScoreFactor{
		ID:          "recent_activity",
		Label:       "Recent activity",
		Impact:      activityImpact,
		Description: activityDesc,
	})
	score += activityImpact

	factors = append(factors, ScoreFactor{
		ID:          "spending_distribution",
		Label:       "Spending distribution",
		Impact:      0,
		Description: "See the category breakdown for where your money goes.",
	})

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	var recommendation string
	if baselineCost > 0 && burnRate > baselineCost && score < 80 {
		cut := math.Ceil(burnRate - baselineCost*0.8)
		recommendation = fmt.Sprintf("Reduce daily spending by about %s to get back on track.", formatAmount(cut))
	} else if score >= 80 {
		recommendation = "Keep it up! You're on track."
	}

	return ScoreBreakdown{Score: score, Factors: factors, Recommendation: recommendation}
}

// ComputeFinancialScore is ComputeFinancialScoreBreakdown without the
// factor list, for callers that only need the number.
func ComputeFinancialScore(burnRate, baselineCost, savingsBalance float64, recentTransactionCount int) int {
	return ComputeFinancialScoreBreakdown(burnRate, baselineCost, savingsBalance, recentTransactionCount).Score
}

// AllocateSavings suggests a daily savings amount as a floored percentage
// of net income. It is a suggestion only; the actual transfer is a
// separate ledger write.
func AllocateSavings(income, expense, allocationPercent float64) float64 {
	net := income - expense
	if net <= 0 {
		return 0
	}
	return math.Floor(net * allocationPercent / 100)
}
