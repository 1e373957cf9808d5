package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tuitionpay/internal/auth"
	"tuitionpay/internal/settlement"
	studentdomain "tuitionpay/internal/student/domain"
	txrepo "tuitionpay/internal/transaction/repository"
)

// Handler serves the payment endpoints: initiate, verify-otp, history.
type Handler struct {
	svc    *settlement.Service
	txRepo txrepo.Repository
}

// New returns a settlement handler over svc and the transaction repository
// (used only for history).
func New(svc *settlement.Service, txRepo txrepo.Repository) *Handler {
	return &Handler{svc: svc, txRepo: txRepo}
}

// Register mounts the payment routes on r. All routes sit behind auth.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/transactions/initiate", h.initiate)
	r.POST("/transactions/verify-otp", h.verify)
	r.GET("/transactions/history", h.history)
}

type initiateRequest struct {
	StudentID string `json:"studentId" binding:"required"`
	Amount    int64  `json:"amount" binding:"required"`
}

func (h *Handler) initiate(c *gin.Context) {
	payer := auth.PayerFrom(c)
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "studentId and amount are required"})
		return
	}
	res, err := h.svc.Initiate(c.Request.Context(), payer, req.StudentID, req.Amount)
	if err != nil {
		status, msg := mapSettlementError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactionId": res.TransactionID,
		"message":       res.Message,
		"expiresIn":     res.ExpiresIn,
	})
}

type verifyRequest struct {
	TransactionID string `json:"transaction_id" binding:"required"`
	OTPCode       string `json:"otp_code" binding:"required"`
}

func (h *Handler) verify(c *gin.Context) {
	payer := auth.PayerFrom(c)
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_id and otp_code are required"})
		return
	}
	if err := h.svc.Verify(c.Request.Context(), payer, req.TransactionID, req.OTPCode); err != nil {
		status, msg := mapSettlementError(err)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Payment completed",
	})
}

func (h *Handler) history(c *gin.Context) {
	payer := auth.PayerFrom(c)
	skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	ctx := c.Request.Context()
	txs, err := h.txRepo.ListByPayer(ctx, payer.ID, skip, limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}
	total, err := h.txRepo.CountByPayer(ctx, payer.ID)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}

	out := make([]gin.H, 0, len(txs))
	for _, t := range txs {
		entry := gin.H{
			"id":        t.ID,
			"studentId": t.StudentID,
			"amount":    t.Amount,
			"status":    t.Status,
			"createdAt": t.CreatedAt.Format(time.RFC3339),
		}
		if t.CompletedAt != nil {
			entry["completedAt"] = t.CompletedAt.Format(time.RFC3339)
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": out,
		"total":        total,
		"page":         skip/limit + 1,
		"pages":        (total + limit - 1) / limit,
	})
}

// mapSettlementError translates engine sentinels into an HTTP status and a
// client-safe message. Infrastructure detail never leaks to the client.
func mapSettlementError(err error) (int, string) {
	switch {
	case errors.Is(err, studentdomain.ErrInvalidStudentID):
		return http.StatusBadRequest, "student id must be exactly 8 digits"
	case errors.Is(err, settlement.ErrPendingExists):
		return http.StatusConflict, "a pending transaction already exists for this student"
	case errors.Is(err, settlement.ErrInsufficientBalance):
		return http.StatusBadRequest, "insufficient balance"
	case errors.Is(err, settlement.ErrStudentNotFound):
		return http.StatusNotFound, "student not found"
	case errors.Is(err, settlement.ErrAlreadyPaid):
		return http.StatusBadRequest, "tuition has already been paid"
	case errors.Is(err, settlement.ErrAmountMismatch):
		return http.StatusBadRequest, "amount must equal the student's tuition amount"
	case errors.Is(err, settlement.ErrTransactionNotFound):
		return http.StatusNotFound, "transaction not found or expired"
	case errors.Is(err, settlement.ErrLockContended):
		return http.StatusConflict, "another settlement is in progress for this student"
	case errors.Is(err, settlement.ErrAttemptsExceeded):
		return http.StatusBadRequest, "verification attempts exceeded; initiate a new payment"
	case errors.Is(err, settlement.ErrInvalidCode):
		// Keep the remaining-attempts count from the engine.
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	}
}
