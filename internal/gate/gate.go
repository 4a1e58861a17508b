// Package gate decides whether a generation request may proceed. Two
// counters feed the decision: a per-browser-session question counter and a
// deployment-wide run counter kept in durable storage.
package gate

import (
	"context"
	"log"
)

type Reason string

const (
	ReasonSessionLimit Reason = "session_limit_reached"
	ReasonGlobalLimit  Reason = "global_limit_reached"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  Reason `json:"reason,omitempty"`
}

// Counter tracks how many questions one browser session asked about the
// currently analyzed page. It lives only as long as the session.
type Counter struct {
	PageURL        string `json:"page_url"`
	QuestionsAsked int    `json:"questions_asked"`
}

// ObservePage resets the count when the analyzed page changes.
func (c *Counter) ObservePage(url string) {
	if c.PageURL != url {
		c.PageURL = url
		c.QuestionsAsked = 0
	}
}

// CounterStore is the durable global run counter. Total must report zero,
// not an error, when nothing has been persisted yet.
type CounterStore interface {
	Total(ctx context.Context) (int64, error)
	Increment(ctx context.Context) (int64, error)
}

type Limits struct {
	SessionQuestions int
	GlobalRuns       int
}

type Gate struct {
	store  CounterStore
	limits Limits
}

func New(store CounterStore, limits Limits) *Gate {
	return &Gate{store: store, limits: limits}
}

// Admit checks the session limit first (cheap, local), then re-reads the
// global total from the store so the check reflects other sessions. An
// unreadable store counts as zero: the gate fails open for availability
// rather than locking everyone out, and logs the degradation.
func (g *Gate) Admit(ctx context.Context, sess *Counter) Decision {
	if sess.QuestionsAsked >= g.limits.SessionQuestions {
		return Decision{Reason: ReasonSessionLimit}
	}
	total, err := g.store.Total(ctx)
	if err != nil {
		log.Printf("[Gate] WARNING: counter store unreadable, treating total as 0: %v", err)
		total = 0
	}
	if total >= int64(g.limits.GlobalRuns) {
		return Decision{Reason: ReasonGlobalLimit}
	}
	return Decision{Allowed: true}
}

// Commit consumes quota. Callers invoke it only after the scrape and
// generation succeeded; a failed downstream call must leave both counters
// untouched. The store update is read-modify-write with a narrow critical
// section, so the global limit is best-effort across concurrent instances.
func (g *Gate) Commit(ctx context.Context, sess *Counter) (int64, error) {
	sess.QuestionsAsked++
	total, err := g.store.Increment(ctx)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// Remaining reports how many requests are left on each limit, for display.
func (g *Gate) Remaining(ctx context.Context, sess *Counter) (session int, global int64) {
	session = g.limits.SessionQuestions - sess.QuestionsAsked
	if session < 0 {
		session = 0
	}
	total, err := g.store.Total(ctx)
	if err != nil {
		total = 0
	}
	global = int64(g.limits.GlobalRuns) - total
	if global < 0 {
		global = 0
	}
	return session, global
}

func (g *Gate) Limits() Limits {
	return g.limits
}
