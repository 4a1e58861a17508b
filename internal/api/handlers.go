package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
)

// GET /health
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// GET /config
func configHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Only return non-sensitive config fields
		models := make([]gin.H, len(cfg.LLMs))
		for i, m := range cfg.LLMs {
			models[i] = gin.H{"name": m.Name, "context_size": m.ContextSize}
		}
		c.JSON(http.StatusOK, gin.H{
			"models": models,
			"limits": gin.H{
				"session_questions":   cfg.Limits.SessionQuestions,
				"global_runs":         cfg.Limits.GlobalRuns,
				"max_url_length":      cfg.Limits.MaxURLLength,
				"max_question_length": cfg.Limits.MaxQuestionLength,
			},
		})
	}
}
