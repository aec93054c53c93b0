package main

import "time"

// Transaction kinds. Amounts are always positive; the kind carries the sign.
const (
	KindIncome  = "income"
	KindExpense = "expense"
)

// Transaction represents a single logged income or expense entry.
type Transaction struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Kind      string    `json:"kind"`
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Note      *string   `json:"note"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// User represents an application user keyed by the opaque identifier
// issued by the external identity provider.
type User struct {
	ID             string    `json:"id"`
	ExternalID     string    `json:"external_id"`
	Email          *string   `json:"email"`
	FinancialScore int       `json:"financial_score"`
	BaselineCost   float64   `json:"baseline_cost"`
	CreatedAt      time.Time `json:"created_at"`
}

// SavingsState is a snapshot of a user's savings ledger.
type SavingsState struct {
	VirtualBalance float64 `json:"virtual_balance"`
	BatchThreshold float64 `json:"batch_threshold"`
}

// Balance holds aggregate totals over a transaction set.
type Balance struct {
	Total   float64 `json:"total"`
	Income  float64 `json:"income"`
	Expense float64 `json:"expense"`
}

// WeeklySpending compares expense totals for the current and previous week.
type WeeklySpending struct {
	ThisWeek float64 `json:"this_week"`
	LastWeek float64 `json:"last_week"`
}

// DailyAmount is one calendar-day bucket of expense spending.
type DailyAmount struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// ScoreFactor is one explainable contribution to the financial score.
type ScoreFactor struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Impact      int    `json:"impact"`
	Description string `json:"description"`
}

// ScoreBreakdown is the financial score plus the factors behind it.
type ScoreBreakdown struct {
	Score          int           `json:"score"`
	Factors        []ScoreFactor `json:"factors"`
	Recommendation string        `json:"recommendation,omitempty"`
}

// SavingsMilestone marks a savings threshold crossed between two snapshots.
type SavingsMilestone struct {
	Milestone float64 `json:"milestone"`
	Message   string  `json:"message"`
}

// Badge is a named achievement shown on the dashboard.
type Badge struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Earned bool   `json:"earned"`
}

// EngagementSignal bundles the behavioral signals derived from a user's
// transaction history and score.
type EngagementSignal struct {
	StreakDays int               `json:"streak_days"`
	Level      int               `json:"level"`
	Badges     []Badge           `json:"badges"`
	Milestone  *SavingsMilestone `json:"milestone,omitempty"`
	Message    string            `json:"message"`
}

// PushSubscription is a stored web-push subscription for one browser.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// InsightsResponse is the full scoring and projection pipeline output
// composed for the insights view.
type InsightsResponse struct {
	Balance             Balance          `json:"balance"`
	BurnRate            float64          `json:"burn_rate"`
	Score               ScoreBreakdown   `json:"score"`
	ProjectedEndOfMonth float64          `json:"projected_end_of_month"`
	WeekOverWeek        WeeklySpending   `json:"week_over_week"`
	DailyTrend          []DailyAmount    `json:"daily_trend"`
	Savings             SavingsState     `json:"savings"`
	SuggestedSavings    float64          `json:"suggested_savings"`
	Engagement          EngagementSignal `json:"engagement"`
}

// DashboardResponse is the single-call payload backing the dashboard view.
type DashboardResponse struct {
	User         *User         `json:"user"`
	Transactions []Transaction `json:"transactions"`
	Savings      SavingsState  `json:"savings"`
}
