package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type dashboardRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Email  *string `json:"email" binding:"omitempty,email"`
}

// getDashboard serves the single-call dashboard payload: synced user,
// recent transactions and the savings snapshot. Cached briefly; every
// write invalidates it.
func (s *server) getDashboard(c *gin.Context) {
	var req dashboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()

	var cached DashboardResponse
	if cacheGet(ctx, s.cache, dashboardCacheKey(req.UserID), &cached) {
		c.JSON(http.StatusOK, cached)
		return
	}

	u, err := s.store.SyncUser(ctx, req.UserID, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sync user"})
		return
	}

	txs, err := s.store.ListTransactions(ctx, req.UserID, transactionListLimit)
	if err != nil {
		// A failed history read degrades to an empty dashboard rather
		// than an error.
		s.log.Warn().Err(err).Str("user", req.UserID).Msg("listing transactions for dashboard")
		txs = []Transaction{}
	}

	savings, err := s.store.GetSavings(ctx, req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := DashboardResponse{User: u, Transactions: txs, Savings: savings}
	cacheSet(ctx, s.cache, dashboardCacheKey(req.UserID), resp, 60*time.Second)
	c.JSON(http.StatusOK, resp)
}

// getInsights runs the full scoring pipeline over the current snapshot:
// balance, burn rate, score breakdown, projections, weekly comparison,
// daily trend and engagement signals. Recomputed per request; nothing here
// persists. previousBalance, when supplied, is the caller's last observed
// savings balance and drives milestone detection; when absent there is no
// prior snapshot to compare against, so no milestone can fire.
func (s *server) getInsights(c *gin.Context) {
	externalID, ok := requireUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	user, err := s.store.GetUser(ctx, externalID)
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	txs, err := s.store.ListTransactions(ctx, externalID, transactionListLimit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	savings, err := s.store.GetSavings(ctx, externalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var previousBalance *float64
	if raw := c.Query("previousBalance"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			previousBalance = &v
		}
	}

	c.JSON(http.StatusOK, s.buildInsights(user, txs, savings, previousBalance))
}

// buildInsights is the pure composition step behind the insights endpoint.
// A nil previousBalance means no prior snapshot exists; milestone detection
// is skipped and savings growth counts as zero.
func (s *server) buildInsights(user *User, txs []Transaction, savings SavingsState, previousBalance *float64) InsightsResponse {
	now := s.now()

	balance := CalculateBalance(txs)
	burnRate := CalculateBurnRate(txs, burnRateWindowDays, now)

	weekAgo := now.AddDate(0, 0, -7)
	recentCount := 0
	timestamps := make([]time.Time, 0, len(txs))
	for _, t := range txs {
		timestamps = append(timestamps, t.Timestamp)
		if !t.Timestamp.Before(weekAgo) {
			recentCount++
		}
	}

	breakdown := ComputeFinancialScoreBreakdown(burnRate, user.BaselineCost, savings.VirtualBalance, recentCount)

	lastDay := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location())
	daysRemaining := lastDay.Day() - now.Day()
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	streak := CalculateUsageStreak(timestamps)
	noSpend := HasNoSpendDayRecently(txs, now)
	goalReached := savings.BatchThreshold > 0 && savings.VirtualBalance >= savings.BatchThreshold

	var milestone *SavingsMilestone
	savingsGrowth := 0.0
	if previousBalance != nil {
		milestone = DetectSavingsMilestone(savings.VirtualBalance, *previousBalance)
		savingsGrowth = savings.VirtualBalance - *previousBalance
	}

	message := ""
	if milestone != nil {
		message = milestone.Message
	} else {
		ratio := 0.0
		if user.BaselineCost > 0 {
			ratio = burnRate / user.BaselineCost
		}
		message = ReinforcementMessage(breakdown.Score, ratio, savingsGrowth, streak, s.rng)
	}

	return InsightsResponse{
		Balance:             balance,
		BurnRate:            burnRate,
		Score:               breakdown,
		ProjectedEndOfMonth: ProjectedEndOfMonthBalance(balance.Total, burnRate, daysRemaining),
		WeekOverWeek:        WeekOverWeekSpending(txs, now),
		DailyTrend:          DailyExpenseTrend(txs, 7, now),
		Savings:             savings,
		SuggestedSavings:    AllocateSavings(balance.Income, balance.Expense, defaultAllocationPercent),
		Engagement: EngagementSignal{
			StreakDays: streak,
			Level:      LevelFromScore(breakdown.Score),
			Badges:     EarnedBadges(streak, goalReached, noSpend),
			Milestone:  milestone,
			Message:    message,
		},
	}
}
