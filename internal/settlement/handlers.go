package settlement

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bazaarhq/settld/internal/fees"
	"github.com/bazaarhq/settld/internal/gateway"
	"github.com/bazaarhq/settld/internal/validation"
)

// Handler provides HTTP endpoints for settlement operations.
type Handler struct {
	service *Service
	sweeper *Sweeper
}

// NewHandler creates a new settlement handler. The sweeper is optional; when
// absent the manual sweep endpoint reports service unavailable.
func NewHandler(service *Service, sweeper *Sweeper) *Handler {
	return &Handler{service: service, sweeper: sweeper}
}

// RegisterRoutes sets up settlement routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/transactions", h.CreateTransaction)
	r.GET("/transactions/:id", h.GetTransaction)
	r.POST("/transactions/:id/transition", h.Transition)
	r.PATCH("/transactions/:id/amount", h.UpdateAmount)
	r.POST("/transactions/:id/dispute", h.InitiateDispute)
	r.POST("/transactions/:id/dispute/evidence", h.SubmitEvidence)
	r.POST("/transactions/:id/dispute/resolve", h.ResolveDispute)
	r.POST("/transactions/:id/refund", h.ProcessRefund)
	r.POST("/transactions/:id/release", h.Release)
	r.GET("/users/:id/transactions", h.ListByParty)
	r.POST("/sweep", h.RunSweep)
}

// CreateTransaction handles POST /v1/transactions
func (h *Handler) CreateTransaction(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	checks := []validation.Check{
		validation.Required("buyerId", req.BuyerID),
		validation.Required("sellerId", req.SellerID),
		validation.Required("listingId", req.ListingID),
		validation.NonNegative("amount", req.Amount),
		validation.NonNegative("finalAmount", req.FinalAmount),
		validation.MaxLen("gatewayOrderId", req.GatewayOrderID, 128),
	}
	if req.Currency != "" {
		checks = append(checks, validation.Currency("currency", req.Currency))
	}
	if errs := validation.Validate(checks...); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	txn, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": txn})
}

// GetTransaction handles GET /v1/transactions/:id
func (h *Handler) GetTransaction(c *gin.Context) {
	txn, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type transitionRequest struct {
	Target Status `json:"target" binding:"required"`
	Actor  string `json:"actor"`
	Note   string `json:"note"`
	// ExpectedVersion, when present, makes the write conditional on the
	// caller's snapshot; a stale snapshot yields 409.
	ExpectedVersion *int64 `json:"expectedVersion"`
}

// Transition handles POST /v1/transactions/:id/transition
func (h *Handler) Transition(c *gin.Context) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	expected := int64(-1)
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}
	txn, err := h.service.Transition(c.Request.Context(), c.Param("id"), req.Target, req.Actor, req.Note, expected)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type updateAmountRequest struct {
	FinalAmount     int64       `json:"finalAmount" binding:"required"`
	PaymentMethod   fees.Method `json:"paymentMethod"`
	ExpectedVersion *int64      `json:"expectedVersion"`
}

// UpdateAmount handles PATCH /v1/transactions/:id/amount
func (h *Handler) UpdateAmount(c *gin.Context) {
	var req updateAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	expected := int64(-1)
	if req.ExpectedVersion != nil {
		expected = *req.ExpectedVersion
	}
	txn, err := h.service.UpdateAmount(c.Request.Context(), c.Param("id"), req.FinalAmount, req.PaymentMethod, expected)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type disputeRequest struct {
	Initiator   string `json:"initiator" binding:"required"`
	Reason      string `json:"reason" binding:"required"`
	Description string `json:"description"`
}

// InitiateDispute handles POST /v1/transactions/:id/dispute
func (h *Handler) InitiateDispute(c *gin.Context) {
	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.MaxLen("reason", req.Reason, 200),
		validation.MaxLen("description", req.Description, 5000),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	txn, err := h.service.InitiateDispute(c.Request.Context(), c.Param("id"), req.Initiator, req.Reason, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type evidenceRequest struct {
	Actor   string `json:"actor" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// SubmitEvidence handles POST /v1/transactions/:id/dispute/evidence
func (h *Handler) SubmitEvidence(c *gin.Context) {
	var req evidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	txn, err := h.service.SubmitEvidence(c.Request.Context(), c.Param("id"), req.Actor, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type resolveRequest struct {
	Resolver     string         `json:"resolver" binding:"required"`
	Outcome      ResolveOutcome `json:"outcome" binding:"required"`
	Note         string         `json:"note"`
	RefundAmount int64          `json:"refundAmount"`
}

// ResolveDispute handles POST /v1/transactions/:id/dispute/resolve
func (h *Handler) ResolveDispute(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	txn, err := h.service.ResolveDispute(c.Request.Context(), c.Param("id"), req.Resolver, req.Outcome, req.Note, req.RefundAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type refundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
	Actor  string `json:"actor"`
}

// ProcessRefund handles POST /v1/transactions/:id/refund
func (h *Handler) ProcessRefund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	txn, err := h.service.ProcessRefund(c.Request.Context(), c.Param("id"), req.Amount, req.Reason, req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

type releaseRequest struct {
	Actor string `json:"actor" binding:"required"`
}

// Release handles POST /v1/transactions/:id/release
func (h *Handler) Release(c *gin.Context) {
	var req releaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	txn, err := h.service.Release(c.Request.Context(), c.Param("id"), req.Actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn})
}

// ListByParty handles GET /v1/users/:id/transactions
func (h *Handler) ListByParty(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
			if limit > 200 {
				limit = 200
			}
		}
	}

	txns, err := h.service.ListByParty(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"count":        len(txns),
	})
}

// RunSweep handles POST /v1/sweep (manual trigger, e.g. from an operator
// console or a cron probe).
func (h *Handler) RunSweep(c *gin.Context) {
	if h.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "sweeper_disabled",
			"message": "No sweeper configured",
		})
		return
	}

	result, err := h.sweeper.RunSweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sweep": result})
}

// respondError maps service errors onto HTTP status codes.
func respondError(c *gin.Context, err error) {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Transaction not found",
		})
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": err.Error(),
		})
	case errors.Is(err, ErrInvalidTransition):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "invalid_transition",
			"message": err.Error(),
		})
	case errors.Is(err, ErrConcurrencyConflict):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "version_conflict",
			"message": "Transaction was modified concurrently, re-read and retry",
		})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gin.H{
			"error":     "gateway_error",
			"message":   gwErr.Message,
			"code":      gwErr.Code,
			"retryable": gwErr.Retryable,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": err.Error(),
		})
	}
}
