// Package server wires the HTTP routes and shared middleware.
package server

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"tuitionpay/internal/auth"
	authhandler "tuitionpay/internal/auth/handler"
	healthhandler "tuitionpay/internal/health/handler"
	settlementhandler "tuitionpay/internal/settlement/handler"
	studenthandler "tuitionpay/internal/student/handler"
)

// Deps carries everything the router needs.
type Deps struct {
	DB         *sql.DB
	Auth       *auth.Service
	Settlement *settlementhandler.Handler
	Students   *studenthandler.Handler
}

// New builds the gin engine with all routes mounted. Health and login are
// open; everything else requires a bearer token.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), securityHeaders())

	healthhandler.New(d.DB).Register(r)
	authhandler.New(d.Auth).Register(r)

	authed := r.Group("/", auth.RequireAuth(d.Auth))
	d.Students.Register(authed)
	d.Settlement.Register(authed)

	return r
}

// securityHeaders sets the standard browser hardening headers on every response.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		c.Next()
	}
}
