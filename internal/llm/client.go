package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/metrics"
)

var (
	ErrInvalidResponse = errors.New("invalid llm response")
	ErrEmptyResponse   = errors.New("empty llm response")
)

const completionsPath = "/v1/chat/completions"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an OpenAI-compatible chat completions client. Every call is
// attempted once and bounded by the configured timeout.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Provider = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errors.New("llm base url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}, nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

func (c *Client) body(req Request, stream bool) chatRequest {
	return chatRequest{
		Model:       req.Model,
		Messages:    req.messages(),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}
}

func (c *Client) Complete(ctx context.Context, req Request) (out string, err error) {
	log := logger.FromContext(ctx).WithPrefix("llm").WithField("model", req.Model)
	start := time.Now()
	defer func() { metrics.ModelCall(req.Model, "complete", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.post(ctx, c.body(req, false), "application/json")
	if err != nil {
		log.Warn("completion request failed: %v", err)
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	content, err := extractAssistantContent(raw)
	if err != nil {
		log.Warn("failed to decode completion: %v", err)
		return "", err
	}
	log.Debug("completion received in %v (%d chars)", time.Since(start), len(content))
	return content, nil
}

func (c *Client) Stream(ctx context.Context, req Request) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		log := logger.FromContext(ctx).WithPrefix("llm").WithField("model", req.Model)
		start := time.Now()
		var err error
		defer func() { metrics.ModelCall(req.Model, "stream", start, err) }()

		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		resp, err := c.post(ctx, c.body(req, true), "text/event-stream")
		if err != nil {
			log.Warn("stream request failed: %v", err)
			yield("", err)
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var chunk streamChunk
			if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
				log.Debug("skipping malformed stream line: %v", jerr)
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if text := chunk.Choices[0].Delta.Content; text != "" {
				if !yield(text, nil) {
					return
				}
			}
			if chunk.Choices[0].FinishReason != nil {
				return
			}
		}
		if err = scanner.Err(); err != nil {
			log.Warn("stream interrupted: %v", err)
			yield("", fmt.Errorf("read stream: %w", err))
		}
	}
}

func (c *Client) post(ctx context.Context, payload chatRequest, accept string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+completionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("llm request failed, status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
}

func extractAssistantContent(raw []byte) (string, error) {
	var resp struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrInvalidResponse
	}
	switch v := resp.Choices[0].Message.Content.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return "", ErrEmptyResponse
		}
		return strings.TrimSpace(v), nil
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				parts = append(parts, text)
			}
		}
		if len(parts) == 0 {
			return "", ErrEmptyResponse
		}
		return strings.TrimSpace(strings.Join(parts, "\n")), nil
	default:
		return "", ErrInvalidResponse
	}
}
