package scrape

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"
)

// Page is the extracted content of one analyzed URL.
type Page struct {
	URL             string
	Title           string
	Text            string
	Headings        []string
	WordCount       int
	EstimatedTokens int
}

// Options tunes a single scrape. Comprehensive requests the fuller
// whole-document extraction instead of the readability article, which helps
// on pages where the main content is spread across the layout.
type Options struct {
	Comprehensive bool
}

// Scraper maps a URL to extracted page text.
type Scraper interface {
	Scrape(ctx context.Context, url string, opts Options) (*Page, error)
}

// ReadabilityScraper fetches a URL and extracts the readable text. HTML goes
// through readability with a goquery fallback; PDF responses are extracted
// page by page.
type ReadabilityScraper struct {
	httpClient *http.Client
	userAgent  string
	maxSizeMB  int
}

func NewReadabilityScraper(timeout time.Duration, userAgent string, maxSizeMB int) *ReadabilityScraper {
	return &ReadabilityScraper{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxSizeMB: maxSizeMB,
	}
}

func (s *ReadabilityScraper) Scrape(ctx context.Context, urlString string, opts Options) (*Page, error) {
	parsedURL, err := url.Parse(urlString)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	data, contentType, err := s.fetch(ctx, urlString)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}

	var page *Page
	switch {
	case strings.Contains(contentType, "application/pdf"):
		page, err = s.extractPDF(urlString, parsedURL, data)
	case strings.Contains(contentType, "text/html"), strings.Contains(contentType, "application/xhtml"):
		page, err = s.extractHTML(urlString, parsedURL, data, opts.Comprehensive)
	default:
		return nil, fmt.Errorf("unsupported content type: %s", contentType)
	}
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(page.Text) == "" {
		return nil, fmt.Errorf("no text extracted from %s: page may block scraping", urlString)
	}

	page.WordCount = len(strings.Fields(page.Text))
	page.EstimatedTokens = EstimateTokens(page.Text)
	return page, nil
}

func (s *ReadabilityScraper) fetch(ctx context.Context, urlString string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", urlString, nil)
	if err != nil {
		return nil, "", err
	}

	// Standard browser headers to get past naive 403 blocks
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-GB,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read one byte past the limit so a body exactly at the limit passes.
	maxBytes := int64(s.maxSizeMB * 1024 * 1024)
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(body)) > maxBytes {
		return nil, "", fmt.Errorf("content exceeds size limit of %dMB", s.maxSizeMB)
	}

	return body, resp.Header.Get("Content-Type"), nil
}

func (s *ReadabilityScraper) extractHTML(urlString string, parsedURL *url.URL, data []byte, comprehensive bool) (*Page, error) {
	page := &Page{URL: urlString}

	article, err := readability.FromReader(bytes.NewReader(data), parsedURL)
	if err == nil {
		page.Title = strings.TrimSpace(article.Title)
		page.Text = strings.TrimSpace(article.TextContent)
	}

	doc, docErr := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if docErr != nil {
		if err != nil {
			return nil, fmt.Errorf("failed to parse HTML: %w", docErr)
		}
		return page, nil
	}

	doc.Find("h1, h2, h3, h4").Each(func(i int, sel *goquery.Selection) {
		if h := strings.TrimSpace(sel.Text()); h != "" {
			page.Headings = append(page.Headings, h)
		}
	})
	if page.Title == "" {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	// Readability gives up on sparse or unusual markup; fall back to a
	// plain goquery extraction of the main content. Comprehensive mode runs
	// the fallback unconditionally and keeps whichever extraction found more.
	if page.Text == "" || comprehensive {
		doc.Find("script, style, nav, aside, footer, header, iframe, noscript").Remove()
		sel := doc.Find("body")
		if !comprehensive {
			if article := doc.Find("article").First(); article.Length() > 0 {
				sel = article
			} else if main := doc.Find("main").First(); main.Length() > 0 {
				sel = main
			}
		}
		if full := strings.TrimSpace(extractText(sel)); len(full) > len(page.Text) {
			page.Text = full
		}
	}

	return page, nil
}

func (s *ReadabilityScraper) extractPDF(urlString string, parsedURL *url.URL, data []byte) (*Page, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	var builder strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			log.Printf("[Scrape] failed to extract text from PDF page %d: %v", i, err)
			continue
		}
		builder.WriteString(text)
		builder.WriteString("\n")
	}

	return &Page{
		URL:   urlString,
		Title: "PDF Document: " + parsedURL.Path,
		Text:  builder.String(),
	}, nil
}

// extractText recursively extracts text from a selection, preserving block
// structure as paragraph breaks.
func extractText(sel *goquery.Selection) string {
	var builder strings.Builder

	sel.Contents().Each(func(i int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "#text":
			if text := strings.TrimSpace(s.Text()); text != "" {
				builder.WriteString(text)
				builder.WriteString(" ")
			}
		case "br":
			builder.WriteString("\n")
		case "p", "div", "h1", "h2", "h3", "h4", "h5", "h6", "li", "blockquote":
			if inner := strings.TrimSpace(extractText(s)); inner != "" {
				builder.WriteString(inner)
				builder.WriteString("\n\n")
			}
		default:
			builder.WriteString(extractText(s))
		}
	})

	return builder.String()
}
