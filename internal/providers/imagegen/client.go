// Package imagegen is a thin client for an OpenAI-compatible image
// generation deployment.
package imagegen

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
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

// Configured reports whether the deployment is usable. An unconfigured
// client fails fast instead of dialing nowhere.
func (c *Client) Configured() bool {
	return c.cfg.BaseURL != "" && c.cfg.APIKey != ""
}

type GenerateRequest struct {
	Prompt       string `json:"prompt"`
	N            int    `json:"n,omitempty"`
	Size         string `json:"size,omitempty"`
	Quality      string `json:"quality,omitempty"`
	OutputFormat string `json:"output_format,omitempty"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Generate produces n images and returns their decoded bytes.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) ([][]byte, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("image generation provider not configured")
	}
	if req.N <= 0 {
		req.N = 1
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/images/generations?api-version=%s",
		c.cfg.BaseURL, c.cfg.Deployment, c.cfg.APIVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.cfg.APIKey)

	return c.decodeImages(httpReq)
}

// Edit reworks the given source images according to the prompt. The upstream
// edit endpoint takes multipart form data, not JSON.
func (c *Client) Edit(ctx context.Context, prompt string, images [][]byte, n int) ([][]byte, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("image generation provider not configured")
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no source images")
	}
	if n <= 0 {
		n = 1
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("prompt", prompt); err != nil {
		return nil, err
	}
	if err := form.WriteField("n", fmt.Sprintf("%d", n)); err != nil {
		return nil, err
	}
	for i, img := range images {
		part, err := form.CreateFormFile("image[]", fmt.Sprintf("source-%d.png", i))
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(img); err != nil {
			return nil, err
		}
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/openai/deployments/%s/images/edits?api-version=%s",
		c.cfg.BaseURL, c.cfg.Deployment, c.cfg.APIVersion)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())
	httpReq.Header.Set("api-key", c.cfg.APIKey)

	return c.decodeImages(httpReq)
}

func (c *Client) decodeImages(req *http.Request) ([][]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("image generation returned %d: %s", resp.StatusCode, body)
	}

	var parsed generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	images := make([][]byte, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		raw, err := base64.StdEncoding.DecodeString(item.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("decode image payload: %w", err)
		}
		images = append(images, raw)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("image generation returned no images")
	}
	return images, nil
}
