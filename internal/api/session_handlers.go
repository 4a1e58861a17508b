package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

// GET /session — snapshot of the visitor's state for the UI.
func GetSessionHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := getSessionFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}

		sessLeft, globalLeft := deps.Gate.Remaining(c.Request.Context(), &st.Questions)
		c.JSON(http.StatusOK, gin.H{
			"source_url":      st.SourceURL,
			"page_title":      st.PageTitle,
			"has_page":        st.HasPage(),
			"questions_asked": st.Questions.QuestionsAsked,
			"history_turns":   len(st.History) / 2,
			"remaining":       gin.H{"session": sessLeft, "global": globalLeft},
		})
	}
}

// DELETE /session — drop the analyzed page and conversation.
func ClearSessionHandler(deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := getSessionFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}
		if err := deps.Sessions.Delete(c.Request.Context(), st.ID); err != nil {
			log.Printf("[Session] delete failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear session"})
			return
		}
		c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
		c.JSON(http.StatusOK, gin.H{"cleared": true})
	}
}

// POST /feedback — append-only rating of a generated result.
func FeedbackHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := getSessionFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}

		var req struct {
			Rating  int    `json:"rating"`
			Comment string `json:"comment"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if req.Rating < 1 || req.Rating > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rating must be between 1 and 5"})
			return
		}

		fb := &usage.Feedback{SourceURL: st.SourceURL, Rating: req.Rating, Comment: req.Comment}
		if err := deps.Usage.AppendFeedback(c.Request.Context(), fb); err != nil {
			log.Printf("[Feedback] append failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save feedback"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"saved": true})
	}
}
