package api

import (
	"errors"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/session"
)

const sessionCookie = "agent_session"

// SessionMiddleware resolves the visitor's session from the signed cookie,
// creating a fresh one when the cookie is missing, invalid, or points at an
// expired session.
func SessionMiddleware(cfg *config.Config, store session.Store) gin.HandlerFunc {
	ttl := time.Duration(cfg.Session.TTLMinutes) * time.Minute
	return func(c *gin.Context) {
		var st *session.State

		if tokenStr, err := c.Cookie(sessionCookie); err == nil {
			if id, err := session.ParseToken(cfg.Server.SessionSecret, tokenStr); err == nil {
				loaded, err := store.Get(c.Request.Context(), id)
				switch {
				case err == nil:
					st = loaded
				case !errors.Is(err, session.ErrNotFound):
					log.Printf("[Session] store read failed for %s: %v", id, err)
				}
			}
		}

		if st == nil {
			st = session.New()
			if err := store.Save(c.Request.Context(), st); err != nil {
				log.Printf("[Session] store write failed: %v", err)
			}
			token, err := session.GenerateToken(cfg.Server.SessionSecret, st.ID, ttl)
			if err == nil {
				c.SetCookie(sessionCookie, token, int(ttl.Seconds()), "/", "", false, true)
			}
		}

		c.Set("session", st)
		c.Next()
	}
}

func getSessionFromContext(c *gin.Context) (*session.State, bool) {
	v, exists := c.Get("session")
	if !exists {
		return nil, false
	}
	st, ok := v.(*session.State)
	return st, ok
}
