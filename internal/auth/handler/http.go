package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tuitionpay/internal/auth"
)

// Handler serves the login endpoint.
type Handler struct {
	svc *auth.Service
}

// New returns an auth handler over svc.
func New(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the auth routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/auth/login", h.login)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid username or password"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": res.AccessToken,
		"token_type":   res.TokenType,
		"expires_at":   res.ExpiresAt,
		"user": gin.H{
			"id":       res.Payer.ID,
			"username": res.Payer.Username,
			"email":    res.Payer.Email,
			"fullName": res.Payer.FullName,
			"balance":  res.Payer.Balance,
		},
	})
}
