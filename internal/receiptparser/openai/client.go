// Package openai implements receiptparser.Extractor on top of the
// chat/completions API with image and file inputs.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/buildtrack/buildtrack-backend/internal/apperr"
	"github.com/buildtrack/buildtrack-backend/internal/receiptparser"
)

var ErrMissingAPIKey = errors.New("openai: API key is not configured")

type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "openai").Logger(),
	}
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat map[string]any `json:"response_format"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
	File     *filePart `json:"file,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type filePart struct {
	Filename string `json:"filename"`
	FileData string `json:"file_data"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends the document inline as base64 (an image_url data URL for
// images, a file part for PDFs) and returns the text of the first choice.
func (c *Client) Extract(ctx context.Context, prompt string, doc receiptparser.Document) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, apperr.External("openai", ErrMissingAPIKey)
	}

	rid := uuid.NewString()
	start := time.Now()

	body := chatRequest{
		Model:          c.cfg.Model,
		MaxTokens:      c.cfg.MaxTokens,
		ResponseFormat: map[string]any{"type": "json_object"},
		Messages: []chatMessage{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				documentPart(doc),
			},
		}},
	}

	c.log.Debug().Str("req_id", rid).Str("model", c.cfg.Model).
		Str("content_type", doc.ContentType).Int("bytes", len(doc.Data)).Msg("extract start")

	raw, err := c.post(ctx, strings.TrimRight(c.cfg.BaseURL, "/")+"/chat/completions", body)
	if err != nil {
		c.log.Error().Str("req_id", rid).Err(err).Dur("elapsed", time.Since(start)).Msg("extract http error")
		return nil, apperr.External("openai", err)
	}

	var cc chatResponse
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, apperr.External("openai", fmt.Errorf("decode response: %w", err))
	}
	if len(cc.Choices) == 0 {
		return nil, apperr.External("openai", errors.New("no choices in response"))
	}

	content := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info().Str("req_id", rid).Int("reply_bytes", len(content)).
		Dur("elapsed", time.Since(start)).Msg("extract ok")
	return []byte(content), nil
}

func documentPart(doc receiptparser.Document) contentPart {
	encoded := base64.StdEncoding.EncodeToString(doc.Data)
	ct := doc.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	dataURL := "data:" + ct + ";base64," + encoded

	if ct == "application/pdf" {
		name := doc.FileName
		if name == "" {
			name = "receipt.pdf"
		}
		return contentPart{Type: "file", File: &filePart{Filename: name, FileData: dataURL}}
	}
	return contentPart{Type: "image_url", ImageURL: &imageURL{URL: dataURL}}
}

func (c *Client) post(ctx context.Context, url string, body any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(string(data), 512))
	}
	return data, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
