package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/gate"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/llm"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/scrape"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/session"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

// Generator is the LLM collaborator as the handlers see it.
type Generator interface {
	ChatCompletion(ctx context.Context, model config.LLMConfig, messages []llm.Message) (*llm.Result, error)
	ChatCompletionStream(ctx context.Context, model config.LLMConfig, messages []llm.Message, onToken func(token string) error) (*llm.Result, error)
}

// CounterAdmin extends the gate's counter store with the reset operation the
// admin endpoints need.
type CounterAdmin interface {
	gate.CounterStore
	Reset(ctx context.Context) error
}

// Deps bundles the collaborators the handlers use.
type Deps struct {
	Scraper  scrape.Scraper
	Chunker  *scrape.Chunker
	LLM      Generator
	Sessions session.Store
	Gate     *gate.Gate
	Counter  CounterAdmin
	Usage    *usage.Logger
}

func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	r := gin.Default()
	subpath := cfg.Server.Subpath

	group := r.Group(subpath)
	{
		group.GET("/health", healthHandler)
		group.GET("/config", configHandler(cfg))

		withSession := SessionMiddleware(cfg, deps.Sessions)

		group.POST("/analyze", withSession, AnalyzeHandler(cfg, deps))
		group.POST("/openers", withSession, OpenerHandler(cfg, deps))
		group.POST("/questions", withSession, QuestionHandler(cfg, deps))
		group.GET("/ws/questions", withSession, WSQuestionHandler(cfg, deps))

		group.GET("/session", withSession, GetSessionHandler(cfg, deps))
		group.DELETE("/session", withSession, ClearSessionHandler(deps))

		group.POST("/feedback", withSession, FeedbackHandler(cfg, deps))

		group.GET("/usage/stats", AdminAuth(cfg), UsageStatsHandler(cfg, deps))
		group.POST("/usage/reset", AdminAuth(cfg), ResetCounterHandler(deps))
	}
	return r
}
