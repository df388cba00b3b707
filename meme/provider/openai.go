package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/m3rciful/memebot/core/config"
	"github.com/m3rciful/memebot/core/logger"
)

const imagesPath = "/images/generations"

// Error codes the images API uses for prompts refused by moderation.
var rejectionCodes = map[string]struct{}{
	"content_policy_violation":    {},
	"image_generation_user_error": {},
	"moderation_blocked":          {},
}

// OpenAI generates images through the OpenAI images API.
type OpenAI struct {
	baseURL string
	key     string
	model   string
	size    string
	http    *http.Client
}

// NewOpenAI builds an image generation adapter.
func NewOpenAI(cfg config.OpenAIConfig, client *http.Client) *OpenAI {
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAI{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.Key,
		model:   cfg.Model,
		size:    cfg.Size,
		http:    client,
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type generateResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *apiError) rejected() bool {
	if e == nil {
		return false
	}
	_, code := rejectionCodes[e.Code]
	_, typ := rejectionCodes[e.Type]
	return code || typ
}

// Generate returns the URL of one image generated from prompt.
func (p *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "openai.generate"
	payload, err := json.Marshal(generateRequest{Model: p.model, Prompt: prompt, N: 1, Size: p.size})
	if err != nil {
		return "", fmt.Errorf("%s: marshaling request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+imagesPath, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+p.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return "", unavailable(op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", unavailable(op, err)
	}

	var out generateResponse
	decodeErr := json.Unmarshal(body, &out)
	if out.Error.rejected() {
		logger.Info(ctx, logger.CompProvider, "openai.rejected",
			slog.String("code", out.Error.Code),
		)
		return "", fmt.Errorf("%s: %w: %s", op, ErrContentRejected, out.Error.Message)
	}
	if resp.StatusCode >= 400 {
		msg := strings.TrimSpace(string(body))
		if out.Error != nil {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("%s: %w: status %d: %s", op, ErrUnavailable, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return "", unavailable(op, decodeErr)
	}
	if len(out.Data) == 0 || out.Data[0].URL == "" {
		return "", fmt.Errorf("%s: %w: empty response", op, ErrUnavailable)
	}
	return out.Data[0].URL, nil
}
