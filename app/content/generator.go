package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrModelUnavailable signals that the requested model is not served by the
// generation endpoint. Callers retry once against the safe default model.
var ErrModelUnavailable = errors.New("model unavailable")

// Generator produces text from a model given system and user prompts.
type Generator interface {
	Generate(ctx context.Context, model, system, user string) (string, error)
}

// HTTPGenerator talks to an OpenAI-compatible chat completions endpoint.
type HTTPGenerator struct {
	httpClient *http.Client
	url        string
	apiKey     string
}

func NewHTTPGenerator(httpClient *http.Client, url, apiKey string) *HTTPGenerator {
	return &HTTPGenerator{
		httpClient: httpClient,
		url:        url,
		apiKey:     apiKey,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, model, system, user string) (string, error) {
	messages := []chatMessage{}
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	body, err := json.Marshal(chatRequest{Model: model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation call failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if parsed.Error != nil {
		if isModelNotFound(parsed.Error.Code, parsed.Error.Message) {
			return "", fmt.Errorf("%w: %s", ErrModelUnavailable, parsed.Error.Message)
		}
		return "", fmt.Errorf("generation error: %s", parsed.Error.Message)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generation HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("generation returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

func isModelNotFound(code, message string) bool {
	if code == "model_not_found" {
		return true
	}
	msg := strings.ToLower(message)
	return strings.Contains(msg, "model") &&
		(strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist"))
}
