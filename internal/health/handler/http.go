package handler

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler serves liveness/readiness probes.
type Handler struct {
	db *sql.DB
}

// New returns a health handler. db may be nil; readiness then only reports liveness.
func New(db *sql.DB) *Handler {
	return &Handler{db: db}
}

// Register mounts the health route on r (unauthenticated).
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/healthz", h.healthz)
}

func (h *Handler) healthz(c *gin.Context) {
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
