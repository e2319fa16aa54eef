package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/expensehub/claimflow/internal/application/service"
	"github.com/expensehub/claimflow/internal/domain/claim"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	coordinator service.WorkflowCoordinator
	health      HealthChecker
	logger      Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(coordinator service.WorkflowCoordinator, health HealthChecker, logger Logger) *Handlers {
	return &Handlers{
		coordinator: coordinator,
		health:      health,
		logger:      logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SubmitClaimRequest is the body of POST /api/claims.
type SubmitClaimRequest struct {
	EmployeeID  string   `json:"employee_id" binding:"required"`
	Department  string   `json:"department"`
	Category    string   `json:"category" binding:"required"`
	Amount      string   `json:"amount" binding:"required"`
	Currency    string   `json:"currency" binding:"required"`
	ExpenseDate string   `json:"expense_date" binding:"required"`
	Description string   `json:"description"`
	Vendor      string   `json:"vendor"`
	Receipts    []string `json:"receipts"`
}

// DecisionRequest is the body of POST /api/claims/:id/decision.
type DecisionRequest struct {
	ActorID   string `json:"actor_id" binding:"required"`
	ActorRole string `json:"actor_role" binding:"required"`
	Decision  string `json:"decision" binding:"required"`
	Comments  string `json:"comments"`
}

// ClaimResponse bundles a claim with its workflow in API responses.
type ClaimResponse struct {
	Claim    *claim.Claim            `json:"claim"`
	Workflow *claim.ApprovalWorkflow `json:"workflow"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	status := h.health.Health()

	code := http.StatusOK
	if !status.Overall {
		code = http.StatusServiceUnavailable
	}

	c.JSON(code, Response{
		Success: status.Overall,
		Data:    status,
	})
}

// SubmitClaim handles POST /api/claims
func (h *Handlers) SubmitClaim(c *gin.Context) {
	var req SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid submit request", "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid amount"})
		return
	}

	expenseDate, err := time.Parse(time.RFC3339, req.ExpenseDate)
	if err != nil {
		if expenseDate, err = time.Parse("2006-01-02", req.ExpenseDate); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid expense_date"})
			return
		}
	}

	submitted, wf, err := h.coordinator.Submit(c.Request.Context(), service.Submission{
		EmployeeID:  req.EmployeeID,
		Department:  req.Department,
		Category:    req.Category,
		Amount:      amount,
		Currency:    req.Currency,
		ExpenseDate: expenseDate,
		Description: req.Description,
		Vendor:      req.Vendor,
		Receipts:    req.Receipts,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    ClaimResponse{Claim: submitted, Workflow: wf},
	})
}

// GetClaim handles GET /api/claims/:id
func (h *Handlers) GetClaim(c *gin.Context) {
	found, wf, err := h.coordinator.GetClaim(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ClaimResponse{Claim: found, Workflow: wf},
	})
}

// DecideClaim handles POST /api/claims/:id/decision
func (h *Handlers) DecideClaim(c *gin.Context) {
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid decision request", "error", err)
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	result, err := h.coordinator.Decide(c.Request.Context(), service.DecideCommand{
		ClaimID:   c.Param("id"),
		ActorID:   req.ActorID,
		ActorRole: claim.Role(req.ActorRole),
		Decision:  claim.Decision(req.Decision),
		Comments:  req.Comments,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ClaimResponse{Claim: result.Claim, Workflow: result.Workflow},
	})
}

// GetClaimHistory handles GET /api/claims/:id/history
func (h *Handlers) GetClaimHistory(c *gin.Context) {
	entries, err := h.coordinator.GetHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// GetPendingClaims handles GET /api/claims/pending
func (h *Handlers) GetPendingClaims(c *gin.Context) {
	actorID := c.Query("actor_id")
	role := claim.Role(c.Query("role"))

	if actorID == "" || !role.IsValid() {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "actor_id and a valid role are required"})
		return
	}

	claims, err := h.coordinator.GetPending(c.Request.Context(), actorID, role)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: claims})
}

// respondError maps the error taxonomy onto HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var code int
	switch {
	case errors.Is(err, claim.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, claim.ErrUnauthorized):
		code = http.StatusForbidden
	case errors.Is(err, claim.ErrAlreadyLocked), errors.Is(err, claim.ErrStoreConflict):
		code = http.StatusConflict
	case errors.Is(err, claim.ErrInvalidTransition):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, claim.ErrValidation):
		code = http.StatusBadRequest
	default:
		h.logger.Error("Request failed", "error", err, "path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal error"})
		return
	}

	c.JSON(code, Response{Success: false, Error: err.Error()})
}
