package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"storyboard-server/internal/ingest"
	"storyboard-server/internal/middleware"
	"storyboard-server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ScriptIngester turns pasted text and uploaded documents into script text. *ingest.Service
// implements it.
type ScriptIngester interface {
	FromText(text string) string
	FromFile(ctx context.Context, upload ingest.Upload, progress ingest.ProgressFunc) (string, error)
}

// StoryboardHandler serves the storyboard HTTP API.
type StoryboardHandler struct {
	storyboards    service.StoryboardService
	ingester       ScriptIngester
	hub            *ingest.ProgressHub
	verifier       *middleware.JWTVerifier
	maxUploadBytes int64
	logger         *zap.Logger
}

func NewStoryboardHandler(
	storyboards service.StoryboardService,
	ingester ScriptIngester,
	hub *ingest.ProgressHub,
	verifier *middleware.JWTVerifier,
	maxUploadBytes int64,
	logger *zap.Logger,
) *StoryboardHandler {
	return &StoryboardHandler{
		storyboards:    storyboards,
		ingester:       ingester,
		hub:            hub,
		verifier:       verifier,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.Named("StoryboardHandler"),
	}
}

// RegisterRoutes mounts the API under /api/v1. limiter guards the routes that call a model or the
// OCR service; nil disables it.
func (h *StoryboardHandler) RegisterRoutes(router *gin.Engine, limiter gin.HandlerFunc) {
	if limiter == nil {
		limiter = func(c *gin.Context) { c.Next() }
	}

	api := router.Group("/api/v1")
	api.Use(middleware.CurrentUser(h.verifier))

	ingestGroup := api.Group("/ingest")
	{
		ingestGroup.POST("/text", h.ingestText)
		ingestGroup.POST("/file", limiter, h.ingestFile)
		ingestGroup.GET("/progress/:uploadID", h.ingestProgress)
	}

	storyboards := api.Group("/storyboards")
	{
		storyboards.POST("", limiter, h.createStoryboard)
		storyboards.POST("/quick", limiter, h.createQuickStoryboard)
		storyboards.GET("", h.listStoryboards)
		storyboards.GET("/:id", h.getStoryboard)
		storyboards.DELETE("/:id", h.deleteStoryboard)

		storyboards.PATCH("/:id/script", h.updateScript)
		storyboards.PUT("/:id/characters", h.mergeCharacters)

		storyboards.POST("/:id/shots", h.insertShot)
		storyboards.PATCH("/:id/shots/:n", h.updateShot)
		storyboards.POST("/:id/shots/:n/edit", limiter, h.editShotWithPrompt)
		storyboards.DELETE("/:id/shots/:n", h.deleteShot)

		storyboards.PUT("/:id/frames/:n/style", h.setFrameStyle)
		storyboards.POST("/:id/frames/:n/render", h.renderFrame)
		storyboards.POST("/:id/frames/render-all", h.renderAllFrames)
	}
}

// shotNumber parses the :n path parameter.
func shotNumber(c *gin.Context) (int, bool) {
	n, err := strconv.Atoi(c.Param("n"))
	if err != nil || n < 1 {
		badRequest(c, fmt.Sprintf("Invalid shot number %q", c.Param("n")))
		return 0, false
	}
	return n, true
}

// bindStrict decodes the JSON body into dst, rejecting unknown fields.
func bindStrict(c *gin.Context, dst any) bool {
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(c, "Invalid request data: "+err.Error())
		return false
	}
	return true
}
