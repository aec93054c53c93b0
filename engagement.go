package main

import (
	"fmt"
	"math/rand"
	"time"
)

// Savings thresholds checked in ascending order; only the first crossing
// is reported even when a single deposit jumps several at once.
var savingsMilestones = []float64{500, 1000, 2500, 5000, 10000}

// streakLookbackDays caps the backward walk when counting a streak.
const streakLookbackDays = 31

// CalculateUsageStreak counts consecutive calendar days with at least one
// transaction, walking backward from the most recent active day. If the
// user has been inactive for a while the streak still counts from their
// last active day, not from today.
func CalculateUsageStreak(timestamps []time.Time) int {
	days := make(map[string]struct{}, len(timestamps))
	var mostRecent time.Time
	for _, ts := range timestamps {
		local := ts.Local()
		days[local.Format(dayKeyFormat)] = struct{}{}
		dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.Local)
		if dayStart.After(mostRecent) {
			mostRecent = dayStart
		}
	}
	if len(days) == 0 {
		return 0
	}

	streak := 0
	check := mostRecent
	for i := 0; i < streakLookbackDays; i++ {
		if _, ok := days[check.Format(dayKeyFormat)]; !ok {
			break
		}
		streak++
		check = check.AddDate(0, 0, -1)
	}
	return streak
}

// DetectSavingsMilestone returns the first threshold crossed between two
// balance snapshots, or nil if none was crossed. The caller supplies the
// previous balance; no history is kept here.
func DetectSavingsMilestone(currentBalance, previousBalance float64) *SavingsMilestone {
	for _, threshold := range savingsMilestones {
		if previousBalance < threshold && currentBalance >= threshold {
			return &SavingsMilestone{
				Milestone: threshold,
				Message:   fmt.Sprintf("You reached %s in savings!", formatAmount(threshold)),
			}
		}
	}
	return nil
}

// ReinforcementMessage picks one eligible encouragement at random. Each
// condition is checked independently, so several can contribute
// candidates; rng may be seeded for deterministic output. A nil rng falls
// back to the shared source.
func ReinforcementMessage(score int, burnVsBaseline, savingsGrowth float64, streakDays int, rng *rand.Rand) string {
	var candidates []string

	if score >= 80 {
		candidates = append(candidates, "You're doing great with your finances!")
	}
	if score >= 70 && score < 80 {
		candidates = append(candidates, "Nice progress. Keep it up!")
	}
	if burnVsBaseline > 0 && burnVsBaseline <= 0.8 {
		candidates = append(candidates, "Your spending is under control.")
	}
	if savingsGrowth > 0 {
		candidates = append(candidates, "Your savings are growing.")
	}
	if streakDays >= 3 {
		candidates = append(candidates, fmt.Sprintf("%d days in a row, strong habit!", streakDays))
	}
	if streakDays >= 7 {
		candidates = append(candidates, "A full week of check-ins. Well done!")
	}

	if len(candidates) == 0 {
		return "Every small step counts. You've got this."
	}
	if rng == nil {
		return candidates[rand.Intn(len(candidates))]
	}
	return candidates[rng.Intn(len(candidates))]
}

// LevelFromScore maps a financial score to a level between 1 and 10.
func LevelFromScore(score int) int {
	if score <= 0 {
		return 1
	}
	level := score/10 + 1
	if level > 10 {
		return 10
	}
	return level
}

// HasNoSpendDayRecently reports whether any of the last 7 calendar days
// (today included) has no expense transaction. Days with no activity at
// all count as no-spend days.
func HasNoSpendDayRecently(txs []Transaction, now time.Time) bool {
	expenseDays := make(map[string]struct{})
	for _, t := range txs {
		if t.Kind == KindExpense {
			expenseDays[t.Timestamp.In(now.Location()).Format(dayKeyFormat)] = struct{}{}
		}
	}
	for i := 0; i < 7; i++ {
		key := now.AddDate(0, 0, -i).Format(dayKeyFormat)
		if _, ok := expenseDays[key]; !ok {
			return true
		}
	}
	return false
}

// EarnedBadges evaluates the fixed badge set against the current signals.
func EarnedBadges(streakDays int, savingsGoalReached, noSpendDay bool) []Badge {
	return []Badge{
		{ID: "streak", Label: "7-day streak", Earned: streakDays >= 7},
		{ID: "savings", Label: "First savings goal", Earned: savingsGoalReached},
		{ID: "nospend", Label: "No-spend day", Earned: noSpendDay},
	}
}
