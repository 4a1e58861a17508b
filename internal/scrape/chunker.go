package scrape

import (
	"log"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultChunkTokens  = 3000
	DefaultChunkOverlap = 100
	DefaultContextChars = 80000
)

// Chunker splits page text into token-bounded chunks that respect paragraph
// boundaries, splitting oversized paragraphs with overlap. Token counts come
// from tiktoken when the encoding is available, a character estimate
// otherwise.
type Chunker struct {
	enc       *tiktoken.Tiktoken
	maxTokens int
	overlap   int
}

func NewChunker(model string, maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultChunkTokens
	}
	if overlap < 0 || overlap >= maxTokens {
		overlap = DefaultChunkOverlap
	}
	c := &Chunker{maxTokens: maxTokens, overlap: overlap}
	if model != "" {
		enc, err := tiktoken.EncodingForModel(model)
		if err != nil {
			log.Printf("[Scrape] tiktoken encoding unavailable for %q, using character estimate: %v", model, err)
		} else {
			c.enc = enc
		}
	}
	return c
}

func (c *Chunker) CountTokens(text string) int {
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return EstimateTokens(text)
}

// EstimateTokens approximates token count at ~4 characters per token with a
// 10% buffer.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return int(float64(len(text)) / 4.0 * 1.1)
}

func (c *Chunker) Split(text string) []string {
	var (
		chunks        []string
		current       []string
		currentTokens int
	)

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = nil
			currentTokens = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		n := c.CountTokens(para)
		if n > c.maxTokens {
			flush()
			chunks = append(chunks, c.splitOversized(para)...)
			continue
		}

		sep := 0
		if len(current) > 0 {
			sep = 2 // the joining "\n\n"
		}
		if currentTokens+n+sep > c.maxTokens {
			flush()
			current = []string{para}
			currentTokens = n
		} else {
			current = append(current, para)
			currentTokens += n + sep
		}
	}
	flush()

	if len(chunks) == 0 {
		return []string{""}
	}
	return chunks
}

func (c *Chunker) splitOversized(para string) []string {
	var out []string

	if c.enc != nil {
		tokens := c.enc.Encode(para, nil, nil)
		step := c.maxTokens - c.overlap
		for start := 0; start < len(tokens); {
			end := min(start+c.maxTokens, len(tokens))
			out = append(out, c.enc.Decode(tokens[start:end]))
			start += step
			if start >= end {
				break
			}
		}
		return out
	}

	// Character fallback at ~4 chars per token
	size := c.maxTokens * 4
	step := size - c.overlap*4
	runes := []rune(para)
	for start := 0; start < len(runes); {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
		start += step
		if start >= end {
			break
		}
	}
	return out
}

// Context joins the chunks of text with a visible separator and caps the
// result so it fits the model prompt.
func (c *Chunker) Context(text string, maxChars int) string {
	joined := strings.Join(c.Split(text), "\n\n---\n\n")
	if maxChars > 0 && len(joined) > maxChars {
		cut := maxChars
		// Back up so the cap never splits a multi-byte rune.
		for cut > 0 && !utf8.RuneStart(joined[cut]) {
			cut--
		}
		joined = joined[:cut]
	}
	return joined
}
