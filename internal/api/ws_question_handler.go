package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/llm"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/scrape"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

// WebSocket streaming token format
type WSToken struct {
	Event string `json:"event"`
	Token string `json:"token,omitempty"`
	Index int    `json:"index,omitempty"`
}

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket connection wrapper with mutex for thread-safe writes
type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// GET /ws/questions — streaming variant of POST /questions. The client sends
// one JSON payload {"question": ..., "model": ...} and receives token events
// followed by an end event. Gating and quota behave exactly like the
// non-streaming endpoint.
func WSQuestionHandler(cfg *config.Config, deps Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, ok := getSessionFromContext(c)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "no session"})
			return
		}

		rawConn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Println("WebSocket upgrade failed:", err)
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()

		_, msg, err := rawConn.ReadMessage()
		if err != nil {
			return
		}
		var req struct {
			Question string `json:"question"`
			Model    string `json:"model"`
		}
		if err := json.Unmarshal(msg, &req); err != nil || req.Question == "" {
			conn.WriteJSON(gin.H{"event": "error", "error": "missing question"})
			return
		}
		if len(req.Question) > cfg.Limits.MaxQuestionLength {
			conn.WriteJSON(gin.H{"event": "error", "error": "question is too long"})
			return
		}
		if !st.HasPage() {
			conn.WriteJSON(gin.H{"event": "error", "error": "analyze a page first"})
			return
		}

		model, err := resolveModel(cfg, req.Model)
		if err != nil {
			conn.WriteJSON(gin.H{"event": "error", "error": err.Error()})
			return
		}

		decision := deps.Gate.Admit(c.Request.Context(), &st.Questions)
		if !decision.Allowed {
			conn.WriteJSON(gin.H{"event": "denied", "reason": decision.Reason})
			return
		}

		pageContext := deps.Chunker.Context(st.PageText, scrape.DefaultContextChars)
		messages := llm.BuildAnswerMessages(st.SourceURL, pageContext, st.History, req.Question)

		index := 0
		res, err := deps.LLM.ChatCompletionStream(c.Request.Context(), *model, messages,
			func(token string) error {
				err := conn.WriteJSON(WSToken{Event: "token", Token: token, Index: index})
				index++
				return err
			})
		if err != nil {
			log.Printf("[WSQuestion] generation failed: %v", err)
			conn.WriteJSON(gin.H{"event": "error", "error": "generation failed"})
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

		conn.WriteJSON(gin.H{
			"event":           "end",
			"questions_asked": st.Questions.QuestionsAsked,
		})
	}
}
