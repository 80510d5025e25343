package renderer

import (
	"context"
	"net/http"
	"strings"
	"time"

	"storyboard-server/internal/upstream"

	"go.uber.org/zap"
)

const imageServiceName = "image-generation"

// ImageRequest is the body of the image-generation call.
type ImageRequest struct {
	Prompt                string   `json:"prompt"`
	Ratio                 string   `json:"ratio"`
	CharacterDescriptions []string `json:"character_descriptions"`
	ReferenceImages       []string `json:"reference_images"`
}

// ImageResponse carries an encoded image. Fallback marks a substitute image, with Error
// explaining what degraded.
type ImageResponse struct {
	Image    string `json:"image"`
	Fallback bool   `json:"fallback"`
	Error    string `json:"error"`
}

// ImageBackend generates one image per call.
type ImageBackend interface {
	Generate(ctx context.Context, req ImageRequest) (*ImageResponse, error)
}

type httpImageBackend struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPImageBackend creates an ImageBackend posting to baseURL/generate.
func NewHTTPImageBackend(baseURL string, timeout time.Duration, logger *zap.Logger) ImageBackend {
	return &httpImageBackend{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("ImageBackend"),
	}
}

func (b *httpImageBackend) Generate(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	if req.CharacterDescriptions == nil {
		req.CharacterDescriptions = []string{}
	}
	if req.ReferenceImages == nil {
		req.ReferenceImages = []string{}
	}
	var resp ImageResponse
	if err := upstream.PostJSON(ctx, b.client, imageServiceName, b.baseURL+"/generate", req, &resp, b.logger); err != nil {
		return nil, err
	}
	return &resp, nil
}
