package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// ClientConfig configures one provider endpoint.
type ClientConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Client calls an OpenAI-compatible /chat/completions endpoint.
type Client struct {
	http *resty.Client
	cfg  ClientConfig
}

// NewClient creates a Client. An empty base URL means the OpenAI API.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(cfg.Timeout)
	if cfg.APIKey != "" {
		c.SetAuthToken(cfg.APIKey)
	}
	return &Client{http: c, cfg: cfg}
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Generate sends req and returns the first choice.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	msgs := req.messages()
	if len(msgs) == 0 {
		return Response{}, fmt.Errorf("llm: request has no messages")
	}
	body := chatRequest{
		Model:     firstNonEmpty(req.Model, c.cfg.Model),
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = c.cfg.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = c.cfg.Temperature
	}
	if temp > 0 {
		body.Temperature = &temp
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	var cr chatResponse
	start := time.Now()
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&body).
		SetResult(&cr).
		ForceContentType("application/json").
		Post("/chat/completions")
	requestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues("transport_error").Inc()
		return Response{}, fmt.Errorf("llm request: %w", err)
	}
	if resp.IsError() {
		requestsTotal.WithLabelValues("http_error").Inc()
		return Response{}, &HTTPError{StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 512)}
	}

	text := ""
	if len(cr.Choices) > 0 {
		text = strings.TrimSpace(cr.Choices[0].Message.Content)
	}
	if text == "" {
		requestsTotal.WithLabelValues("empty").Inc()
		return Response{}, ErrEmptyResponse
	}

	out := Response{Text: text, Model: firstNonEmpty(cr.Model, body.Model), TokensUsed: cr.Usage.TotalTokens}
	if out.TokensUsed == 0 {
		out.TokensUsed = cr.Usage.PromptTokens + cr.Usage.CompletionTokens
	}
	if out.TokensUsed == 0 {
		parts := make([]string, 0, len(msgs)+1)
		for _, m := range msgs {
			parts = append(parts, m.Content)
		}
		out.TokensUsed = EstimateTokens(append(parts, text)...)
		out.Estimated = true
	}
	requestsTotal.WithLabelValues("ok").Inc()
	source := "reported"
	if out.Estimated {
		source = "estimated"
	}
	tokensTotal.WithLabelValues(source).Add(float64(out.TokensUsed))
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
