package main

import (
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// transactionListLimit caps how much history feeds the scoring pipeline.
const transactionListLimit = 100

// server wires the handlers to their collaborators. Everything is
// constructor-injected; there are no package-level singletons.
type server struct {
	store   Store
	cache   *redis.Client
	push    *pushSender
	limiter *rateLimiter
	log     zerolog.Logger
	rng     *rand.Rand
	now     func() time.Time
}

func newServer(store Store, cache *redis.Client, push *pushSender, log zerolog.Logger) *server {
	return &server{
		store:   store,
		cache:   cache,
		push:    push,
		limiter: newRateLimiter(cache),
		log:     log,
		rng:     newConcurrentRand(time.Now().UnixNano()),
		now:     time.Now,
	}
}

// lockedSource serializes access to a rand source. rand.Rand is not safe
// for concurrent use, and the rng is shared by every in-flight request.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

func newConcurrentRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed).(rand.Source64)})
}

// registerRoutes mounts the API under the rate-limit middleware.
func (s *server) registerRoutes(r *gin.Engine) {
	r.GET("/health", s.healthCheck)

	api := r.Group("/api", s.limiter.middleware("api"))
	{
		api.GET("/transactions", s.getTransactions)
		api.POST("/transactions", s.addTransaction)
		api.PUT("/transactions/:id", s.updateTransaction)
		api.DELETE("/transactions/:id", s.deleteTransaction)

		api.POST("/users/sync", s.syncUser)
		api.GET("/users/savings", s.getSavings)
		api.POST("/users/savings", s.addToSavings)
		api.PUT("/users/baseline", s.updateBaseline)

		api.POST("/dashboard", s.getDashboard)
		api.GET("/insights", s.getInsights)

		api.POST("/push/subscribe", s.subscribePush)
		api.GET("/push/vapid-public-key", s.getVapidPublicKey)
		api.POST("/push/send", s.sendPush)

		api.POST("/feedback", s.createFeedback)
	}
}

func transactionCacheKey(externalID string) string {
	return fmt.Sprintf("transactions:%s", externalID)
}

func dashboardCacheKey(externalID string) string {
	return fmt.Sprintf("dashboard:%s", externalID)
}

// invalidateUserCaches drops cached views after any write for the user.
func (s *server) invalidateUserCaches(c *gin.Context, externalID string) {
	cacheDel(c.Request.Context(), s.cache,
		transactionCacheKey(externalID), dashboardCacheKey(externalID))
}

// requireUserID pulls the opaque external user id from the query string.
// Identity verification happens upstream; the id is treated as opaque.
func requireUserID(c *gin.Context) (string, bool) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
		return "", false
	}
	return userID, true
}

// healthCheck reports store reachability.
func (s *server) healthCheck(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "finance-coach",
	})
}

// getTransactions returns the user's latest transactions, newest first,
// with optional Redis caching.
func (s *server) getTransactions(c *gin.Context) {
	externalID, ok := requireUserID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var cached []Transaction
	if cacheGet(ctx, s.cache, transactionCacheKey(externalID), &cached) {
		c.JSON(http.StatusOK, gin.H{"transactions": cached})
		return
	}

	txs, err := s.store.ListTransactions(ctx, externalID, transactionListLimit)
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	cacheSet(ctx, s.cache, transactionCacheKey(externalID), txs, 60*time.Second)
	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}

type addTransactionRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Kind   string  `json:"kind" binding:"required,oneof=income expense"`
	Amount float64 `json:"amount" binding:"required,gt=0"`

	Category string  `json:"category" binding:"required"`
	Note     *string `json:"note"`
}

// addTransaction creates a transaction. Amount and kind are validated at
// this boundary; the scoring core assumes well-formed input.
func (s *server) addTransaction(c *gin.Context) {
	var req addTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := s.store.CreateTransaction(c.Request.Context(), req.UserID, TransactionInput{
		Kind:     req.Kind,
		Category: req.Category,
		Amount:   req.Amount,
		Note:     req.Note,
	})
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.invalidateUserCaches(c, req.UserID)
	c.JSON(http.StatusCreated, gin.H{"transaction": t})
}

type updateTransactionRequest struct {
	UserID   string   `json:"userId" binding:"required"`
	Kind     *string  `json:"kind" binding:"omitempty,oneof=income expense"`
	Category *string  `json:"category"`
	Amount   *float64 `json:"amount" binding:"omitempty,gt=0"`
	Note     *string  `json:"note"`
}

// updateTransaction applies a partial update to one of the user's
// transactions.
func (s *server) updateTransaction(c *gin.Context) {
	var req updateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, err := s.store.UpdateTransaction(c.Request.Context(), req.UserID, c.Param("id"), TransactionPatch{
		Kind:     req.Kind,
		Category: req.Category,
		Amount:   req.Amount,
		Note:     req.Note,
	})
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.invalidateUserCaches(c, req.UserID)
	c.JSON(http.StatusOK, gin.H{"transaction": t})
}

// deleteTransaction removes one of the user's transactions.
func (s *server) deleteTransaction(c *gin.Context) {
	externalID, ok := requireUserID(c)
	if !ok {
		return
	}

	err := s.store.DeleteTransaction(c.Request.Context(), externalID, c.Param("id"))
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.invalidateUserCaches(c, externalID)
	c.JSON(http.StatusOK, gin.H{"message": "Transaction deleted"})
}

type syncUserRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Email  *string `json:"email" binding:"omitempty,email"`
}

// syncUser upserts the user record for an external identity and makes
// sure a savings ledger exists.
func (s *server) syncUser(c *gin.Context) {
	var req syncUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.store.SyncUser(c.Request.Context(), req.UserID, req.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// getSavings returns the savings ledger snapshot, with defaults when the
// user has no ledger yet.
func (s *server) getSavings(c *gin.Context) {
	externalID, ok := requireUserID(c)
	if !ok {
		return
	}

	state, err := s.store.GetSavings(c.Request.Context(), externalID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, state)
}

type addToSavingsRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// addToSavings applies the external "add to savings" operation: a single
// atomic increment on the virtual balance.
func (s *server) addToSavings(c *gin.Context) {
	var req addToSavingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	balance, err := s.store.AddToSavings(c.Request.Context(), req.UserID, req.Amount)
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.invalidateUserCaches(c, req.UserID)
	c.JSON(http.StatusOK, gin.H{"virtual_balance": balance})
}

type updateBaselineRequest struct {
	UserID       string  `json:"userId" binding:"required"`
	BaselineCost float64 `json:"baselineCost" binding:"gte=0"`
}

// updateBaseline sets the user's monthly budget figure. Zero means unset.
func (s *server) updateBaseline(c *gin.Context) {
	var req updateBaselineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	u, err := s.store.UpdateBaseline(c.Request.Context(), req.UserID, req.BaselineCost)
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.invalidateUserCaches(c, req.UserID)
	c.JSON(http.StatusOK, gin.H{"user": u})
}

type subscribePushRequest struct {
	UserID       string `json:"userId" binding:"required"`
	Subscription struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys"`
	} `json:"subscription" binding:"required"`
}

// subscribePush stores or refreshes a browser push subscription.
func (s *server) subscribePush(c *gin.Context) {
	var req subscribePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := s.store.SavePushSubscription(c.Request.Context(), req.UserID, PushSubscription{
		Endpoint: req.Subscription.Endpoint,
		P256dh:   req.Subscription.Keys.P256dh,
		Auth:     req.Subscription.Keys.Auth,
	})
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Subscribed"})
}

// getVapidPublicKey exposes the public half of the VAPID key pair so the
// front end can subscribe.
func (s *server) getVapidPublicKey(c *gin.Context) {
	if s.push == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": s.push.vapidPublicKey()})
}

type sendPushRequest struct {
	UserID string `json:"userId" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Body   string `json:"body"`
	URL    string `json:"url"`
}

// sendPush delivers a notification to all of the user's subscriptions.
func (s *server) sendPush(c *gin.Context) {
	var req sendPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if s.push == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push not configured"})
		return
	}

	sent := s.sendPushToUser(c.Request.Context(), req.UserID, pushPayload{
		Title: req.Title,
		Body:  req.Body,
		URL:   req.URL,
	})
	c.JSON(http.StatusOK, gin.H{"sent": sent})
}

type feedbackRequest struct {
	UserID  *string `json:"userId"`
	Kind    string  `json:"kind" binding:"required,oneof=suggestion bug"`
	Message string  `json:"message" binding:"required"`
}

// createFeedback stores a suggestion or bug report, optionally anonymous.
func (s *server) createFeedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.store.CreateFeedback(c.Request.Context(), req.UserID, req.Kind, req.Message); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Feedback received"})
}
