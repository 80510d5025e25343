package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"storyboard-server/internal/models"
	"storyboard-server/internal/upstream"

	"go.uber.org/zap"
)

const (
	ocrServiceName = "ocr"
	// maxOCRLine bounds one NDJSON event; result events carry the whole extracted text.
	maxOCRLine = 64 << 20
)

// Progress is one OCR progress event.
type Progress struct {
	Stage   string        `json:"stage"`
	Elapsed time.Duration `json:"elapsed"`
	Percent float64       `json:"percent"`
	// Done and Error are set on the terminal event published to subscribers.
	Done  bool   `json:"done,omitempty"`
	Error string `json:"error,omitempty"`
}

// ProgressFunc receives progress events in order. It must not block.
type ProgressFunc func(Progress)

// OCRError is a failure reported by the OCR service. Error returns the service's message verbatim.
type OCRError struct {
	StatusCode int
	Message    string
}

func (e *OCRError) Error() string {
	return e.Message
}

// Unwrap classifies OCR failures as upstream errors.
func (e *OCRError) Unwrap() error {
	return models.ErrUpstream
}

// OCRClient extracts text from a document.
type OCRClient interface {
	Extract(ctx context.Context, filename string, content []byte, progress ProgressFunc) (string, error)
}

type ocrEvent struct {
	Type      string  `json:"type"`
	Stage     string  `json:"stage"`
	ElapsedMS int64   `json:"elapsed_ms"`
	Percent   float64 `json:"percent"`
	Text      string  `json:"text"`
	Message   string  `json:"message"`
}

type httpOCRClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPOCRClient creates an OCRClient posting multipart uploads to baseURL/extract and reading
// the NDJSON event stream it answers with.
func NewHTTPOCRClient(baseURL string, timeout time.Duration, logger *zap.Logger) OCRClient {
	return &httpOCRClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("OCRClient"),
	}
}

func (c *httpOCRClient) Extract(ctx context.Context, filename string, content []byte, progress ProgressFunc) (string, error) {
	log := c.logger.With(zap.String("filename", filename), zap.Int("sizeBytes", len(content)))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create multipart body: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/extract", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create OCR request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/x-ndjson")

	log.Info("Sending document to OCR")
	resp, err := c.client.Do(req)
	if err != nil {
		log.Error("OCR request failed", zap.Error(err))
		return "", &OCRError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if err := upstream.CheckStatus(resp, ocrServiceName); err != nil {
		msg := err.Error()
		var ue *models.UpstreamError
		if errors.As(err, &ue) {
			msg = ue.Message
		}
		log.Error("OCR returned non-2xx status", zap.Int("statusCode", resp.StatusCode), zap.String("message", msg))
		return "", &OCRError{StatusCode: resp.StatusCode, Message: msg}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOCRLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev ocrEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Error("Malformed OCR event", zap.ByteString("line", line), zap.Error(err))
			return "", &OCRError{StatusCode: resp.StatusCode, Message: "malformed OCR event: " + err.Error()}
		}
		switch ev.Type {
		case "progress":
			if progress != nil {
				progress(Progress{
					Stage:   ev.Stage,
					Elapsed: time.Duration(ev.ElapsedMS) * time.Millisecond,
					Percent: ev.Percent,
				})
			}
		case "result":
			log.Info("OCR finished", zap.Int("textLength", len(ev.Text)))
			return ev.Text, nil
		case "error":
			log.Warn("OCR reported an error", zap.String("message", ev.Message))
			return "", &OCRError{StatusCode: resp.StatusCode, Message: ev.Message}
		default:
			log.Debug("Ignoring unknown OCR event", zap.String("type", ev.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return "", &OCRError{StatusCode: resp.StatusCode, Message: "reading OCR stream: " + err.Error()}
	}
	return "", &OCRError{StatusCode: resp.StatusCode, Message: "OCR stream ended without a result"}
}
