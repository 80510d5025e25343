package planner

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"storyboard-server/internal/upstream"

	"go.uber.org/zap"
)

const quickServiceName = "quick-storyboard"

// QuickRequest is the body sent to the fused plan+render endpoint.
type QuickRequest struct {
	Script string `json:"script"`
	Style  string `json:"style"`
	Ratio  string `json:"ratio"`
}

// QuickImage is one rendered frame of a quick storyboard. ShotNumber is the number the backend
// gave the shot, or its 1-based position when the shots carry no distinct numbers.
type QuickImage struct {
	ShotNumber int    `json:"shot_number"`
	Image      string `json:"image"`
	Error      string `json:"error,omitempty"`
}

// QuickResponse keeps shots raw so they go through the same boundary validation as the
// detailed breakdown.
type QuickResponse struct {
	Shots  json.RawMessage `json:"shots"`
	Images []QuickImage    `json:"images"`
}

// QuickClient calls the fused plan+render backend.
type QuickClient interface {
	Storyboard(ctx context.Context, req QuickRequest) (*QuickResponse, error)
}

type httpQuickClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPQuickClient creates a QuickClient posting to baseURL/storyboard.
func NewHTTPQuickClient(baseURL string, timeout time.Duration, logger *zap.Logger) QuickClient {
	return &httpQuickClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("QuickClient"),
	}
}

func (c *httpQuickClient) Storyboard(ctx context.Context, req QuickRequest) (*QuickResponse, error) {
	var resp QuickResponse
	if err := upstream.PostJSON(ctx, c.client, quickServiceName, c.baseURL+"/storyboard", req, &resp, c.logger); err != nil {
		return nil, err
	}
	return &resp, nil
}
