package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/llm"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/scrape"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/session"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

// commitAndLog consumes quota and appends the usage record after a
// successful generation. Neither failure is surfaced to the user: the
// generated text already exists and denying it now helps nobody.
func commitAndLog(c *gin.Context, deps Deps, st *session.State, rec *usage.Record) {
	if _, err := deps.Gate.Commit(c.Request.Context(), &st.Questions); err != nil {
		log.Printf("[Gate] failed to persist global counter: %v", err)
	}
	if err := deps.Usage.Append(c.Request.Context(), rec); err != nil {
		log.Printf("[Usage] failed to log usage data: %v", err)
	}
	if err := deps.Sessions.Save(c.Request.Context(), st); err != nil {
		log.Printf("[Usage] session save failed: %v", err)
	}
}

func usageMeta(model string, u llm.Usage) datatypes.JSON {
	raw, err := json.Marshal(gin.H{"model": model, "usage": u})
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// POST /openers — generate a cold-email opening line for the analyzed page.
func OpenerHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := getSessionFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}

		var req struct {
			Purpose string `json:"purpose"`
			Model   string `json:"model"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if len(req.Purpose) > cfg.Limits.MaxQuestionLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("purpose is too long (max %d characters)", cfg.Limits.MaxQuestionLength)})
			return
		}
		if !st.HasPage() {
			c.JSON(http.StatusConflict, gin.H{"error": "analyze a page first"})
			return
		}

		model, err := resolveModel(cfg, req.Model)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		decision := deps.Gate.Admit(c.Request.Context(), &st.Questions)
		if !decision.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "usage limit reached", "reason": decision.Reason})
			return
		}

		pageContext := deps.Chunker.Context(st.PageText, scrape.DefaultContextChars)
		messages := llm.BuildOpenerMessages(st.SourceURL, req.Purpose, pageContext)

		res, err := deps.LLM.ChatCompletion(c.Request.Context(), *model, messages)
		if err != nil {
			log.Printf("[Opener] generation failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed", "detail": err.Error()})
			return
		}

		commitAndLog(c, deps, st, &usage.Record{
			Kind:      "opener",
			SourceURL: st.SourceURL,
			Context:   req.Purpose,
			Generated: res.Text,
			Model:     model.Name,
			Meta:      usageMeta(model.Name, res.Usage),
		})

		sessLeft, globalLeft := deps.Gate.Remaining(c.Request.Context(), &st.Questions)
		c.JSON(http.StatusOK, gin.H{
			"opening_line":    res.Text,
			"model":           model.Name,
			"source_url":      st.SourceURL,
			"remaining":       gin.H{"session": sessLeft, "global": globalLeft},
			"questions_asked": st.Questions.QuestionsAsked,
		})
	}
}

// POST /questions — answer a question about the analyzed page.
func QuestionHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := getSessionFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}

		var req struct {
			Question string `json:"question"`
			Model    string `json:"model"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.Question == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing question"})
			return
		}
		if len(req.Question) > cfg.Limits.MaxQuestionLength {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("question is too long (max %d characters)", cfg.Limits.MaxQuestionLength)})
			return
		}
		if !st.HasPage() {
			c.JSON(http.StatusConflict, gin.H{"error": "analyze a page first"})
			return
		}

		model, err := resolveModel(cfg, req.Model)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		decision := deps.Gate.Admit(c.Request.Context(), &st.Questions)
		if !decision.Allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "usage limit reached", "reason": decision.Reason})
			return
		}

		pageContext := deps.Chunker.Context(st.PageText, scrape.DefaultContextChars)
		messages := llm.BuildAnswerMessages(st.SourceURL, pageContext, st.History, req.Question)

		res, err := deps.LLM.ChatCompletion(c.Request.Context(), *model, messages)
		if err != nil {
			log.Printf("[Question] generation failed: %v", err)
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation failed", "detail": err.Error()})
			return
		}

		st.AppendTurn(req.Question, res.Text)
		commitAndLog(c, deps, st, &usage.Record{
			Kind:      "question",
			SourceURL: st.SourceURL,
			Context:   req.Question,
			Generated: res.Text,
			Model:     model.Name,
			Meta:      usageMeta(model.Name, res.Usage),
		})

		sessLeft, globalLeft := deps.Gate.Remaining(c.Request.Context(), &st.Questions)
		c.JSON(http.StatusOK, gin.H{
			"answer":          res.Text,
			"model":           model.Name,
			"source_url":      st.SourceURL,
			"remaining":       gin.H{"session": sessLeft, "global": globalLeft},
			"questions_asked": st.Questions.QuestionsAsked,
		})
	}
}
