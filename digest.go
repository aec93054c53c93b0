package main

import (
	"context"
	"fmt"
	"time"
)

// overspendFactor flags a day whose spending exceeds the baseline by 20%.
const overspendFactor = 1.2

// digestResult records the outcome of one user's daily summary.
type digestResult struct {
	ExternalID string `json:"external_id"`
	Message    string `json:"message"`
	Sent       int    `json:"sent"`
}

// composeDailySummary builds the daily nudge from the day's totals. Pure,
// so it is testable without a push transport.
func composeDailySummary(income, expense, baselineCost float64) string {
	if baselineCost > 0 && expense > baselineCost*overspendFactor {
		return "Your spending today is higher than usual. Consider reviewing."
	}
	return fmt.Sprintf("Today: +%s income, -%s spent. Keep it up!",
		formatAmount(income), formatAmount(expense))
}

// runDailyDigest walks every user, summarizes their last 24 hours and
// pushes the message to their subscriptions. Per-user failures are logged
// and skipped so one bad row never stalls the run.
func (s *server) runDailyDigest(ctx context.Context) ([]digestResult, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing users for digest: %w", err)
	}

	cutoff := s.now().Add(-24 * time.Hour)
	results := make([]digestResult, 0, len(users))

	for _, u := range users {
		recent, err := s.store.ListTransactionsSince(ctx, u.ExternalID, cutoff)
		if err != nil {
			s.log.Warn().Err(err).Str("user", u.ExternalID).Msg("digest: listing transactions")
			continue
		}

		totals := CalculateBalance(recent)
		message := composeDailySummary(totals.Income, totals.Expense, u.BaselineCost)
		sent := s.sendPushToUser(ctx, u.ExternalID, pushPayload{
			Title: "Daily summary",
			Body:  message,
		})

		results = append(results, digestResult{
			ExternalID: u.ExternalID,
			Message:    message,
			Sent:       sent,
		})
	}

	s.log.Info().Int("users", len(results)).Msg("daily digest complete")
	return results, nil
}
