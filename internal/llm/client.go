package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Result struct {
	Text  string
	Usage Usage
}

// Client calls an OpenAI-compatible chat completions endpoint.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

func (c *Client) newRequest(ctx context.Context, model config.LLMConfig, payload map[string]interface{}) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", model.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if model.APIKeyEnv != "" {
		if key := os.Getenv(model.APIKeyEnv); key != "" {
			req.Header.Set("Authorization", "Bearer "+key)
		}
	}
	return req, nil
}

// ChatCompletion submits a non-streaming request and returns the first
// choice.
func (c *Client) ChatCompletion(ctx context.Context, model config.LLMConfig, messages []Message) (*Result, error) {
	payload := map[string]interface{}{
		"model":    model.Name,
		"messages": messages,
	}
	req, err := c.newRequest(ctx, model, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage Usage `json:"usage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("llm response decode failed: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("llm returned no choices")
	}

	return &Result{
		Text:  strings.TrimSpace(parsed.Choices[0].Message.Content),
		Usage: parsed.Usage,
	}, nil
}

// ChatCompletionStream submits a streaming request and invokes onToken for
// every content delta. The accumulated text is returned when the stream
// ends.
func (c *Client) ChatCompletionStream(ctx context.Context, model config.LLMConfig, messages []Message, onToken func(token string) error) (*Result, error) {
	payload := map[string]interface{}{
		"model":    model.Name,
		"messages": messages,
		"stream":   true,
	}
	req, err := c.newRequest(ctx, model, payload)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm returned status %d", resp.StatusCode)
	}

	var builder strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if token := chunk.Choices[0].Delta.Content; token != "" {
			builder.WriteString(token)
			if onToken != nil {
				if err := onToken(token); err != nil {
					return nil, err
				}
			}
		}
		if chunk.Choices[0].FinishReason != "" {
			break
		}
	}

	return &Result{Text: strings.TrimSpace(builder.String())}, nil
}
