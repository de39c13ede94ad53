package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/chanrelay/chanrelay/internal/relay_service/domain"
)

// WAHAClient sends text messages through a WAHA gateway instance.
type WAHAClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	session    string
	chatID     string
}

// NewWAHAClient builds the outbound publisher. chatID is the watched channel
// all published messages are addressed to. A nil httpClient gets a default
// with a 10s timeout.
func NewWAHAClient(logger *slog.Logger, baseURL, apiKey, session, chatID string, httpClient *http.Client) *WAHAClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WAHAClient{
		logger:     logger.With("component", "waha_client"),
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		session:    session,
		chatID:     chatID,
	}
}

type sendTextRequest struct {
	Session string `json:"session"`
	ChatID  string `json:"chatId"`
	Text    string `json:"text"`
}

// sendTextResponse carries the gateway-assigned id, which WAHA returns either
// as a plain string or wrapped in a {_serialized} object.
type sendTextResponse struct {
	ID json.RawMessage `json:"id"`
}

// SendText posts the text to the gateway's sendText endpoint and returns the
// gateway-assigned external id.
func (c *WAHAClient) SendText(ctx context.Context, text string) (string, error) {
	reqBody := sendTextRequest{
		Session: c.session,
		ChatID:  c.chatID,
		Text:    text,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sendText request: %w", err)
	}

	url := c.baseURL + "/api/sendText"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create sendText request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	c.logger.DebugContext(ctx, "sending text to gateway", "url", url, "chat_id", c.chatID)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read gateway response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.ErrorContext(ctx, "gateway rejected sendText",
			"status_code", httpResp.StatusCode, "body", string(respBytes))
		return "", fmt.Errorf("gateway returned status %d", httpResp.StatusCode)
	}

	var resp sendTextResponse
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		return "", fmt.Errorf("failed to decode gateway response: %w", err)
	}

	externalID := domain.ResolveID(resp.ID)
	if externalID == "" {
		return "", fmt.Errorf("gateway response carried no message id")
	}

	c.logger.InfoContext(ctx, "gateway accepted message", "external_id", externalID)
	return externalID, nil
}
