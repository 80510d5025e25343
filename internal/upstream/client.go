// Package upstream holds the JSON-over-HTTP plumbing shared by the image, quick storyboard and OCR
// backends.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"storyboard-server/internal/models"

	"go.uber.org/zap"
)

// maxErrorBody bounds how much of an error response is kept as the upstream message.
const maxErrorBody = 4096

// PostJSON sends payload to url and decodes a 2xx JSON response into out.
// Transport failures and non-2xx statuses come back as *models.UpstreamError.
func PostJSON(ctx context.Context, client *http.Client, service, url string, payload, out any, logger *zap.Logger) error {
	log := logger.With(zap.String("service", service), zap.String("url", url))

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", service, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Debug("Sending upstream request", zap.Int("bodyBytes", len(body)))
	resp, err := client.Do(req)
	if err != nil {
		log.Error("Upstream request failed", zap.Error(err))
		return &models.UpstreamError{Service: service, Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := CheckStatus(resp, service); err != nil {
		log.Error("Upstream returned non-2xx status", zap.Int("statusCode", resp.StatusCode), zap.Error(err))
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Error("Failed to decode upstream response", zap.Error(err))
		return &models.UpstreamError{Service: service, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()}
	}
	return nil
}

// CheckStatus turns a non-2xx response into an UpstreamError carrying the service's own message.
func CheckStatus(resp *http.Response, service string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &models.UpstreamError{Service: service, StatusCode: resp.StatusCode, Message: ErrorMessage(raw)}
}

// ErrorMessage extracts "error", "message" or "detail" from a JSON error body, or returns the body as is.
func ErrorMessage(raw []byte) string {
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"error", "message", "detail"} {
			if s, ok := body[key].(string); ok && s != "" {
				return s
			}
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "empty response body"
	}
	return msg
}
