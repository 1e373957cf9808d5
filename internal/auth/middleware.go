package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	payerdomain "tuitionpay/internal/payer/domain"
)

// payerContextKey is the gin context key the middleware stores the payer under.
const payerContextKey = "auth.payer"

// RequireAuth returns gin middleware that resolves the Bearer token and stores
// the payer in the request context. Requests without a valid token get 401.
func RequireAuth(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		payer, err := svc.Resolve(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
			return
		}
		if payer == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(payerContextKey, payer)
		c.Next()
	}
}

// PayerFrom returns the authenticated payer stored by RequireAuth, or nil.
func PayerFrom(c *gin.Context) *payerdomain.Payer {
	v, ok := c.Get(payerContextKey)
	if !ok {
		return nil
	}
	p, _ := v.(*payerdomain.Payer)
	return p
}
