package api

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/scrape"
)

func validateURL(rawURL string, maxLen int) error {
	if rawURL == "" {
		return errors.New("url is required")
	}
	if len(rawURL) > maxLen {
		return fmt.Errorf("url is too long (max %d characters)", maxLen)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("url must include http:// or https://")
	}
	if u.Host == "" {
		return errors.New("url must include a host")
	}
	return nil
}

func resolveModel(cfg *config.Config, name string) (*config.LLMConfig, error) {
	if name == "" {
		if len(cfg.LLMs) == 0 {
			return nil, errors.New("no models configured")
		}
		return &cfg.LLMs[0], nil
	}
	for i := range cfg.LLMs {
		if cfg.LLMs[i].Name == name {
			return &cfg.LLMs[i], nil
		}
	}
	return nil, fmt.Errorf("model %q not available", name)
}

// POST /analyze — scrape a URL and attach the extracted page to the session.
// Analysis itself consumes no quota; only generations do.
func AnalyzeHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := getSessionFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}

		var req struct {
			URL           string `json:"url"`
			Comprehensive bool   `json:"comprehensive"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := validateURL(req.URL, cfg.Limits.MaxURLLength); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		page, err := deps.Scraper.Scrape(c.Request.Context(), req.URL, scrape.Options{Comprehensive: req.Comprehensive})
		if err != nil {
			log.Printf("[Analyze] scrape failed for %s: %v", req.URL, err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "could not analyze page", "detail": err.Error()})
			return
		}

		st.SetPage(page.URL, page.Title, page.Text)
		if err := deps.Sessions.Save(c.Request.Context(), st); err != nil {
			log.Printf("[Analyze] session save failed: %v", err)
		}

		c.JSON(http.StatusOK, gin.H{
			"source_url":       page.URL,
			"title":            page.Title,
			"word_count":       page.WordCount,
			"estimated_tokens": page.EstimatedTokens,
			"headings":         page.Headings,
			"questions_asked":  st.Questions.QuestionsAsked,
		})
	}
}
