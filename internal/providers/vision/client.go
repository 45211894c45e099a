// Package vision is a thin client for a multimodal chat deployment, used
// for image analysis, prompt enhancement, and filename suggestions.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medialab/api/internal/config"
)

type Client struct {
	cfg  config.ProviderConfig
	http *http.Client
	log  zerolog.Logger
}

func NewClient(cfg config.ProviderConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 120 * time.Second},
		log:  log,
	}
}

func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

// Analysis is the structured result of an image analysis pass.
type Analysis struct {
	Summary     string   `json:"summary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// AnalyzeImage sends one image through the multimodal chat deployment and
// decodes the structured analysis the system message demands.
func (c *Client) AnalyzeImage(ctx context.Context, data []byte, mimeType string) (*Analysis, error) {
	if mimeType == "" {
		mimeType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))

	messages := []map[string]any{
		{"role": "system", "content": analyzeImageSystemMessage},
		{
			"role": "user",
			"content": []map[string]any{
				{"type": "image_url", "image_url": map[string]any{"url": dataURL, "detail": "auto"}},
			},
		},
	}

	var analysis Analysis
	if err := c.chatJSON(ctx, messages, &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// EnhancePrompt rewrites a raw generation prompt using the enhancement
// system message. The original prompt is returned unchanged on any soft
// failure, because enhancement is an optimization, never a gate.
func (c *Client) EnhancePrompt(ctx context.Context, prompt string) (string, error) {
	messages := []map[string]any{
		{"role": "system", "content": promptEnhancementSystemMessage},
		{"role": "user", "content": prompt},
	}

	var out struct {
		Prompt string `json:"prompt"`
	}
	if err := c.chatJSON(ctx, messages, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.Prompt) == "" {
		return prompt, nil
	}
	return out.Prompt, nil
}

// SuggestFilename derives a short storage-safe filename from a prompt.
func (c *Client) SuggestFilename(ctx context.Context, prompt string) (string, error) {
	messages := []map[string]any{
		{"role": "system", "content": filenameSystemMessage},
		{"role": "user", "content": prompt},
	}

	var out struct {
		Filename string `json:"filename"`
	}
	if err := c.chatJSON(ctx, messages, &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Filename), nil
}

func (c *Client) chatJSON(ctx context.Context, messages []map[string]any, out any) error {
	if !c.Configured() {
		return fmt.Errorf("vision provider not configured")
	}

	payload := map[string]any{
		"model":           c.cfg.Deployment,
		"messages":        messages,
		"response_format": map[string]string{"type": "json_object"},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(c.cfg.BaseURL, "/"), c.cfg.Deployment, c.cfg.APIVersion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("vision returned %d: %s", resp.StatusCode, raw)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return fmt.Errorf("decode completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return fmt.Errorf("vision returned no choices")
	}

	content := completion.Choices[0].Message.Content
	// Some deployments wrap JSON replies in markdown fences despite the
	// response_format hint.
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), out); err != nil {
		return fmt.Errorf("decode model reply: %w", err)
	}
	return nil
}
