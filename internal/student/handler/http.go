package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tuitionpay/internal/student/domain"
	"tuitionpay/internal/student/repository"
)

// Handler serves tuition lookup endpoints.
type Handler struct {
	repo repository.Repository
}

// New returns a student handler over repo.
func New(repo repository.Repository) *Handler {
	return &Handler{repo: repo}
}

// Register mounts the student routes on r. Both routes sit behind auth.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/students", h.list)
	r.GET("/students/:id", h.get)
}

func studentJSON(s *domain.Student) gin.H {
	out := gin.H{
		"studentId":     s.StudentID,
		"fullName":      s.FullName,
		"tuitionAmount": s.TuitionAmount,
		"isPaid":        s.IsPaid,
	}
	if s.LastPaymentAmount != nil {
		out["lastPaymentAmount"] = *s.LastPaymentAmount
	}
	if s.LastPaymentDate != nil {
		out["lastPaymentDate"] = s.LastPaymentDate.Format(time.RFC3339)
	}
	return out
}

func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	if err := domain.ValidateStudentID(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "student id must be exactly 8 digits"})
		return
	}
	s, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	c.JSON(http.StatusOK, studentJSON(s))
}

func (h *Handler) list(c *gin.Context) {
	var paid *bool
	if raw := c.Query("paid"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "paid must be a boolean"})
			return
		}
		paid = &v
	}
	students, err := h.repo.List(c.Request.Context(), paid)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
		return
	}
	out := make([]gin.H, 0, len(students))
	for i := range students {
		out = append(out, studentJSON(&students[i]))
	}
	c.JSON(http.StatusOK, out)
}
