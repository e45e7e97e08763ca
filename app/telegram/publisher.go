package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const publishTimeout = 30 * time.Second

// Publisher delivers posts to Telegram channels through the Bot API.
type Publisher struct {
	httpClient *http.Client
	apiBase    string
}

func NewPublisher(httpClient *http.Client, token string) *Publisher {
	return &Publisher{
		httpClient: httpClient,
		apiBase:    "https://api.telegram.org/bot" + token,
	}
}

// NewPublisherWithBase is used by tests to point the client at a local server.
func NewPublisherWithBase(httpClient *http.Client, apiBase string) *Publisher {
	return &Publisher{httpClient: httpClient, apiBase: apiBase}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type message struct {
	MessageID int64 `json:"message_id"`
}

// Publish sends the text with its media to the destination chat and returns
// the external message id, or an empty id with an error on failure.
func (p *Publisher) Publish(ctx context.Context, chatID, text string, media []string) (string, error) {
	switch {
	case len(media) == 0:
		return p.sendMessage(ctx, chatID, text)
	case len(media) == 1:
		return p.sendPhoto(ctx, chatID, text, media[0])
	default:
		return p.sendMediaGroup(ctx, chatID, text, media)
	}
}

func (p *Publisher) sendMessage(ctx context.Context, chatID, text string) (string, error) {
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("text", text)
	params.Set("parse_mode", "HTML")

	result, err := p.call(ctx, "sendMessage", params)
	if err != nil {
		return "", err
	}

	var msg message
	if err := json.Unmarshal(result, &msg); err != nil {
		return "", fmt.Errorf("failed to decode message: %w", err)
	}
	return strconv.FormatInt(msg.MessageID, 10), nil
}

func (p *Publisher) sendPhoto(ctx context.Context, chatID, text, photoURL string) (string, error) {
	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("photo", photoURL)
	params.Set("caption", text)
	params.Set("parse_mode", "HTML")

	result, err := p.call(ctx, "sendPhoto", params)
	if err != nil {
		// Some feeds reference images Telegram cannot fetch; the text still goes out
		return p.sendMessage(ctx, chatID, text)
	}

	var msg message
	if err := json.Unmarshal(result, &msg); err != nil {
		return "", fmt.Errorf("failed to decode message: %w", err)
	}
	return strconv.FormatInt(msg.MessageID, 10), nil
}

func (p *Publisher) sendMediaGroup(ctx context.Context, chatID, text string, media []string) (string, error) {
	if len(media) > 10 {
		media = media[:10]
	}

	type inputMedia struct {
		Type      string `json:"type"`
		Media     string `json:"media"`
		Caption   string `json:"caption,omitempty"`
		ParseMode string `json:"parse_mode,omitempty"`
	}

	group := make([]inputMedia, 0, len(media))
	for i, m := range media {
		item := inputMedia{Type: "photo", Media: m}
		if i == 0 {
			item.Caption = text
			item.ParseMode = "HTML"
		}
		group = append(group, item)
	}

	encoded, err := json.Marshal(group)
	if err != nil {
		return "", fmt.Errorf("failed to encode media group: %w", err)
	}

	params := url.Values{}
	params.Set("chat_id", chatID)
	params.Set("media", string(encoded))

	result, err := p.call(ctx, "sendMediaGroup", params)
	if err != nil {
		return p.sendPhoto(ctx, chatID, text, media[0])
	}

	var msgs []message
	if err := json.Unmarshal(result, &msgs); err != nil || len(msgs) == 0 {
		return "", fmt.Errorf("failed to decode media group response")
	}
	return strconv.FormatInt(msgs[0].MessageID, 10), nil
}

func (p *Publisher) call(ctx context.Context, method string, params url.Values) (json.RawMessage, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "POST",
		p.apiBase+"/"+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}

	if !parsed.OK {
		return nil, fmt.Errorf("%s rejected: %s", method, parsed.Description)
	}

	return parsed.Result, nil
}
