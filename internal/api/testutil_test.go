package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/gate"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/llm"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/scrape"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/session"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

type fakeScraper struct {
	page *scrape.Page
	err  error
}

func (f *fakeScraper) Scrape(ctx context.Context, url string, opts scrape.Options) (*scrape.Page, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.page
	p.URL = url
	return &p, nil
}

type fakeGenerator struct {
	text  string
	err   error
	calls int
}

func (f *fakeGenerator) ChatCompletion(ctx context.Context, model config.LLMConfig, messages []llm.Message) (*llm.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Result{Text: f.text}, nil
}

func (f *fakeGenerator) ChatCompletionStream(ctx context.Context, model config.LLMConfig, messages []llm.Message, onToken func(string) error) (*llm.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if onToken != nil {
		for _, tok := range strings.SplitAfter(f.text, " ") {
			if err := onToken(tok); err != nil {
				return nil, err
			}
		}
	}
	return &llm.Result{Text: f.text}, nil
}

type fakeCounter struct {
	total   int64
	readErr error
}

func (f *fakeCounter) Total(ctx context.Context) (int64, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.total, nil
}

func (f *fakeCounter) Increment(ctx context.Context) (int64, error) {
	f.total++
	return f.total, nil
}

func (f *fakeCounter) Reset(ctx context.Context) error {
	f.total = 0
	return nil
}

var errFake = errors.New("fake failure")

type testEnv struct {
	cfg     *config.Config
	deps    Deps
	scraper *fakeScraper
	gen     *fakeGenerator
	counter *fakeCounter
	db      *gorm.DB
	router  *gin.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{}
	cfg.Server.SessionSecret = "test-secret"
	cfg.Limits.SessionQuestions = 5
	cfg.Limits.GlobalRuns = 100
	cfg.Limits.MaxURLLength = 1000
	cfg.Limits.MaxQuestionLength = 500
	cfg.Session.TTLMinutes = 60
	cfg.LLMs = []config.LLMConfig{{Name: "fake-model", URL: "http://fake"}}

	dbConn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := dbConn.AutoMigrate(&usage.Record{}, &usage.Feedback{}, &usage.Counter{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	env := &testEnv{
		cfg: cfg,
		scraper: &fakeScraper{page: &scrape.Page{
			Title:           "Acme",
			Text:            "Acme builds widgets.\n\nThey cut reporting time in half.",
			WordCount:       9,
			EstimatedTokens: 12,
		}},
		gen:     &fakeGenerator{text: "A generated line."},
		counter: &fakeCounter{},
		db:      dbConn,
	}

	dir := t.TempDir()
	env.deps = Deps{
		Scraper:  env.scraper,
		Chunker:  scrape.NewChunker("", 3000, 100),
		LLM:      env.gen,
		Sessions: session.NewMemoryStore(time.Hour),
		Gate: gate.New(env.counter, gate.Limits{
			SessionQuestions: cfg.Limits.SessionQuestions,
			GlobalRuns:       cfg.Limits.GlobalRuns,
		}),
		Counter: env.counter,
		Usage:   usage.NewLogger(dbConn, filepath.Join(dir, "usage_log.csv"), filepath.Join(dir, "feedback.csv")),
	}
	env.router = SetupRouter(cfg, env.deps)
	return env
}

func (e *testEnv) do(method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func sessionCookies(w *httptest.ResponseRecorder) []*http.Cookie {
	var out []*http.Cookie
	for _, ck := range w.Result().Cookies() {
		if ck.Name == sessionCookie && ck.Value != "" {
			out = append(out, ck)
		}
	}
	return out
}

// analyze runs a successful page analysis and returns the session cookie for
// follow-up requests.
func (e *testEnv) analyze(t *testing.T, url string, cookies []*http.Cookie) []*http.Cookie {
	w := e.do("POST", "/analyze", `{"url":"`+url+`"}`, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("analyze failed: %d %s", w.Code, w.Body.String())
	}
	if got := sessionCookies(w); len(got) > 0 {
		return got
	}
	return cookies
}
