package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
)

// AdminAuth gates the usage endpoints behind the operator password. The
// bcrypt hash comes from the environment; without it the endpoints are
// disabled.
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		hash := cfg.AdminPasswordHash()
		if hash == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin endpoints disabled"})
			return
		}
		password := c.GetHeader("X-Admin-Password")
		if password == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing admin password"})
			return
		}
		if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin password"})
			return
		}
		c.Next()
	}
}

// GET /usage/stats
func UsageStatsHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		total, err := deps.Counter.Total(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read counter"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"total_runs":   total,
			"global_limit": cfg.Limits.GlobalRuns,
			"remaining":    int64(cfg.Limits.GlobalRuns) - total,
		})
	}
}

// POST /usage/reset — start a new run window.
func ResetCounterHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := deps.Counter.Reset(c.Request.Context()); err != nil {
			log.Printf("[Admin] counter reset failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset counter"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"reset": true})
	}
}
