// Package session holds the per-browser state of one visitor: the analyzed
// page, the question counter, and the conversation turns. Sessions are
// anonymous; the id travels in a signed cookie.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/gate"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/llm"
)

var ErrNotFound = errors.New("session not found")

type State struct {
	ID        string        `json:"id"`
	SourceURL string        `json:"source_url"`
	PageTitle string        `json:"page_title"`
	PageText  string        `json:"page_text"`
	Questions gate.Counter  `json:"questions"`
	History   []llm.Message `json:"history"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func New() *State {
	now := time.Now()
	return &State{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
}

// SetPage stores a freshly analyzed page. Switching to a different page
// resets the question counter and drops the conversation; re-analyzing the
// same page keeps both.
func (s *State) SetPage(url, title, text string) {
	if s.Questions.PageURL != url {
		s.History = nil
	}
	s.Questions.ObservePage(url)
	s.SourceURL = url
	s.PageTitle = title
	s.PageText = text
	s.UpdatedAt = time.Now()
}

// AppendTurn records one completed question/answer exchange.
func (s *State) AppendTurn(question, answer string) {
	s.History = append(s.History,
		llm.Message{Role: "user", Content: question},
		llm.Message{Role: "assistant", Content: answer},
	)
	s.UpdatedAt = time.Now()
}

func (s *State) HasPage() bool {
	return s.SourceURL != "" && s.PageText != ""
}

// Store persists session state between requests.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Save(ctx context.Context, st *State) error
	Delete(ctx context.Context, id string) error
}
