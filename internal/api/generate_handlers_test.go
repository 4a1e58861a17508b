package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/gate"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

func TestOpenerRequiresAnalyzedPage(t *testing.T) {
	env := newTestEnv(t)

	w := env.do("POST", "/openers", `{"purpose":"sell widgets"}`, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	if env.counter.total != 0 {
		t.Errorf("rejected request must not consume quota, counter = %d", env.counter.total)
	}
}

func TestOpenerSuccessConsumesQuotaAndLogs(t *testing.T) {
	env := newTestEnv(t)
	env.gen.text = "Saw that Acme cut reporting time in half."

	cookies := env.analyze(t, "https://example.com", nil)
	w := env.do("POST", "/openers", `{"purpose":"introduce our analytics tool"}`, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		OpeningLine    string `json:"opening_line"`
		Model          string `json:"model"`
		QuestionsAsked int    `json:"questions_asked"`
		Remaining      struct {
			Session int `json:"session"`
			Global  int `json:"global"`
		} `json:"remaining"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.OpeningLine != env.gen.text {
		t.Errorf("unexpected opening line: %q", resp.OpeningLine)
	}
	if resp.Model != "fake-model" {
		t.Errorf("unexpected model: %q", resp.Model)
	}
	if resp.QuestionsAsked != 1 || resp.Remaining.Session != 4 || resp.Remaining.Global != 99 {
		t.Errorf("quota not consumed as expected: %+v", resp)
	}
	if env.counter.total != 1 {
		t.Errorf("expected global counter 1, got %d", env.counter.total)
	}

	var rec usage.Record
	if err := env.db.First(&rec).Error; err != nil {
		t.Fatalf("expected a usage record: %v", err)
	}
	if rec.Kind != "opener" || rec.SourceURL != "https://example.com" || rec.Generated != env.gen.text {
		t.Errorf("unexpected usage record: %+v", rec)
	}
}

func TestOpenerGenerationFailureLeavesQuotaUntouched(t *testing.T) {
	env := newTestEnv(t)
	env.gen.err = errFake

	cookies := env.analyze(t, "https://example.com", nil)
	w := env.do("POST", "/openers", `{"purpose":"sell widgets"}`, cookies)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}
	if env.counter.total != 0 {
		t.Errorf("failed generation must not consume quota, counter = %d", env.counter.total)
	}

	// The very next attempt still has the full session allowance.
	env.gen.err = nil
	w = env.do("POST", "/openers", `{"purpose":"sell widgets"}`, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after recovery, got %d", w.Code)
	}
	var resp struct {
		QuestionsAsked int `json:"questions_asked"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.QuestionsAsked != 1 {
		t.Errorf("expected questions_asked 1, got %d", resp.QuestionsAsked)
	}
}

func TestOpenerUnknownModelRejected(t *testing.T) {
	env := newTestEnv(t)

	cookies := env.analyze(t, "https://example.com", nil)
	w := env.do("POST", "/openers", `{"purpose":"x","model":"gpt-nonexistent"}`, cookies)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestQuestionRejectsMissingAndOverlong(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.analyze(t, "https://example.com", nil)

	w := env.do("POST", "/questions", `{}`, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing question: expected 400, got %d", w.Code)
	}

	long := strings.Repeat("a", env.cfg.Limits.MaxQuestionLength+1)
	w = env.do("POST", "/questions", `{"question":"`+long+`"}`, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("overlong question: expected 400, got %d", w.Code)
	}
	if env.counter.total != 0 {
		t.Errorf("rejected requests must not consume quota, counter = %d", env.counter.total)
	}
}

func TestQuestionSessionLimit(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.analyze(t, "https://example.com", nil)

	for i := 0; i < env.cfg.Limits.SessionQuestions; i++ {
		w := env.do("POST", "/questions", fmt.Sprintf(`{"question":"q%d"}`, i), cookies)
		if w.Code != http.StatusOK {
			t.Fatalf("question %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
	}

	w := env.do("POST", "/questions", `{"question":"one too many"}`, cookies)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Reason gate.Reason `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Reason != gate.ReasonSessionLimit {
		t.Errorf("expected reason %q, got %q", gate.ReasonSessionLimit, resp.Reason)
	}
	if env.counter.total != int64(env.cfg.Limits.SessionQuestions) {
		t.Errorf("denied request must not consume quota, counter = %d", env.counter.total)
	}
}

func TestQuestionGlobalLimit(t *testing.T) {
	env := newTestEnv(t)
	env.counter.total = int64(env.cfg.Limits.GlobalRuns)

	cookies := env.analyze(t, "https://example.com", nil)
	w := env.do("POST", "/questions", `{"question":"anything"}`, cookies)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Reason gate.Reason `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Reason != gate.ReasonGlobalLimit {
		t.Errorf("expected reason %q, got %q", gate.ReasonGlobalLimit, resp.Reason)
	}
}

func TestQuestionSessionLimitCheckedBeforeGlobal(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.analyze(t, "https://example.com", nil)

	for i := 0; i < env.cfg.Limits.SessionQuestions; i++ {
		w := env.do("POST", "/questions", fmt.Sprintf(`{"question":"q%d"}`, i), cookies)
		if w.Code != http.StatusOK {
			t.Fatalf("question %d: expected 200, got %d", i, w.Code)
		}
	}
	env.counter.total = int64(env.cfg.Limits.GlobalRuns)

	w := env.do("POST", "/questions", `{"question":"both limits hit"}`, cookies)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	var resp struct {
		Reason gate.Reason `json:"reason"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Reason != gate.ReasonSessionLimit {
		t.Errorf("session limit should win, got %q", resp.Reason)
	}
}

func TestAnalyzingNewPageResetsSessionAllowance(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.analyze(t, "https://example.com", nil)

	for i := 0; i < env.cfg.Limits.SessionQuestions; i++ {
		w := env.do("POST", "/questions", fmt.Sprintf(`{"question":"q%d"}`, i), cookies)
		if w.Code != http.StatusOK {
			t.Fatalf("question %d: expected 200, got %d", i, w.Code)
		}
	}
	w := env.do("POST", "/questions", `{"question":"denied"}`, cookies)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 before switching pages, got %d", w.Code)
	}

	cookies = env.analyze(t, "https://example.org/other", cookies)
	w = env.do("POST", "/questions", `{"question":"fresh page"}`, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 after switching pages, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		QuestionsAsked int `json:"questions_asked"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.QuestionsAsked != 1 {
		t.Errorf("expected questions_asked reset to 1, got %d", resp.QuestionsAsked)
	}
}

func TestQuestionKeepsConversationHistory(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.analyze(t, "https://example.com", nil)

	if w := env.do("POST", "/questions", `{"question":"first"}`, cookies); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := env.do("POST", "/questions", `{"question":"second"}`, cookies); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w := env.do("GET", "/session", "", cookies)
	var resp struct {
		HistoryTurns   int `json:"history_turns"`
		QuestionsAsked int `json:"questions_asked"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.HistoryTurns != 2 || resp.QuestionsAsked != 2 {
		t.Errorf("expected 2 turns and 2 questions, got %+v", resp)
	}
}

func TestCounterReadFailureFailsOpen(t *testing.T) {
	env := newTestEnv(t)
	env.counter.readErr = errFake

	cookies := env.analyze(t, "https://example.com", nil)
	w := env.do("POST", "/questions", `{"question":"still works"}`, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("unreadable counter must not block users, got %d: %s", w.Code, w.Body.String())
	}
}
