package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storyboard-server/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrNoImage is returned when the backend answered without an image or a usable fallback.
var ErrNoImage = errors.New("image backend returned no image")

var (
	framesRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_frames_rendered_total",
			Help: "Frame render attempts by outcome.",
		},
		[]string{"outcome"},
	)
	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "storyboard_frame_render_duration_seconds",
			Help:    "Histogram of image backend call durations.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
)

// RenderRequest is everything needed to render one shot.
type RenderRequest struct {
	Shot        models.Shot
	StylePrompt string
	AspectRatio models.AspectRatio
	// Characters is aligned with Shot.Characters; nil entries are names without a definition.
	Characters []*models.CharacterDefinition
	// PreviousGeneratedAt is the timestamp of the image being replaced, if any.
	PreviousGeneratedAt *time.Time
}

// RenderResult is a successful or degraded render. Fallback results carry the backend's error
// annotation alongside the substitute image.
type RenderResult struct {
	Image       string
	GeneratedAt time.Time
	Fallback    bool
	Error       string
}

// Frame converts the result into the stored frame for shot number.
func (r RenderResult) Frame(number int) models.Frame {
	ts := r.GeneratedAt
	return models.Frame{
		ShotNumber:  number,
		Status:      models.FrameRendered,
		Image:       r.Image,
		GeneratedAt: &ts,
		Error:       r.Error,
		Fallback:    r.Fallback,
	}
}

// Renderer renders one frame per call. It holds no per-project state.
type Renderer struct {
	backend ImageBackend
	catalog StyleLookup
	now     func() time.Time
	logger  *zap.Logger
}

// NewRenderer creates a Renderer. now defaults to time.Now in UTC.
func NewRenderer(backend ImageBackend, catalog StyleLookup, now func() time.Time, logger *zap.Logger) *Renderer {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Renderer{
		backend: backend,
		catalog: catalog,
		now:     now,
		logger:  logger.Named("FrameRenderer"),
	}
}

// RenderShot resolves style and characters for shot number of p and renders it. The returned
// frame keeps the shot's style override.
func (r *Renderer) RenderShot(ctx context.Context, p *models.Project, number int) (models.Frame, error) {
	shot, ok := p.Shot(number)
	if !ok {
		return models.Frame{}, fmt.Errorf("%w: %d", models.ErrShotNotFound, number)
	}
	current := p.FrameFor(number)
	result, err := r.Render(ctx, RenderRequest{
		Shot:                shot,
		StylePrompt:         ResolveStyle(current.StyleOverride, p.Style, p.StyleReference, r.catalog),
		AspectRatio:         p.AspectRatio,
		Characters:          ResolveCharacters(shot.Characters, p.Characters),
		PreviousGeneratedAt: current.GeneratedAt,
	})
	if err != nil {
		return models.Frame{}, err
	}
	frame := result.Frame(number)
	frame.StyleOverride = current.StyleOverride
	return frame, nil
}

// Render makes one image request. A hard failure returns an error; a degraded answer returns a
// fallback result.
func (r *Renderer) Render(ctx context.Context, req RenderRequest) (RenderResult, error) {
	log := r.logger.With(zap.Int("shot", req.Shot.Number), zap.String("ratio", req.AspectRatio.Ratio()))

	imgReq := ImageRequest{
		Prompt: BuildPrompt(req.Shot, req.StylePrompt, r.promptSuffix()),
		Ratio:  req.AspectRatio.Ratio(),
	}
	for _, def := range req.Characters {
		if def == nil {
			continue
		}
		imgReq.CharacterDescriptions = append(imgReq.CharacterDescriptions, describeCharacter(*def))
		if def.ReferenceImage != "" {
			imgReq.ReferenceImages = append(imgReq.ReferenceImages, def.ReferenceImage)
		}
	}

	start := time.Now()
	resp, err := r.backend.Generate(ctx, imgReq)
	renderDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		framesRenderedTotal.WithLabelValues("failed").Inc()
		log.Error("Image generation failed", zap.Error(err))
		return RenderResult{}, err
	}
	if resp == nil || resp.Image == "" {
		framesRenderedTotal.WithLabelValues("failed").Inc()
		msg := ""
		if resp != nil {
			msg = resp.Error
		}
		if msg == "" {
			return RenderResult{}, &models.UpstreamError{Service: imageServiceName, Message: ErrNoImage.Error()}
		}
		return RenderResult{}, &models.UpstreamError{Service: imageServiceName, Message: msg}
	}

	result := RenderResult{Image: resp.Image, GeneratedAt: r.timestamp(req.PreviousGeneratedAt)}
	if resp.Fallback || resp.Error != "" {
		result.Fallback = true
		result.Error = resp.Error
		if result.Error == "" {
			result.Error = "image backend returned a fallback image"
		}
		framesRenderedTotal.WithLabelValues("fallback").Inc()
		log.Warn("Image backend degraded to fallback", zap.String("annotation", result.Error))
		return result, nil
	}
	framesRenderedTotal.WithLabelValues("rendered").Inc()
	log.Debug("Frame rendered")
	return result, nil
}

func (r *Renderer) promptSuffix() string {
	if r.catalog == nil {
		return ""
	}
	return r.catalog.PromptSuffix()
}

// timestamp reads the clock, staying strictly after previous.
func (r *Renderer) timestamp(previous *time.Time) time.Time {
	now := r.now()
	if previous != nil && !now.After(*previous) {
		now = previous.Add(time.Microsecond)
	}
	return now
}

// BuildPrompt assembles the image prompt for a shot.
func BuildPrompt(shot models.Shot, stylePrompt, suffix string) string {
	parts := []string{strings.TrimSpace(shot.Description)}
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			parts = append(parts, label+v)
		}
	}
	add("", shot.CameraAngle)
	add("", shot.VisualElements)
	add("location: ", shot.Location)
	add("lighting: ", shot.Lighting)
	add("mood: ", shot.EmotionalTone)
	add("props: ", shot.KeyProps)
	if len(shot.Characters) > 0 {
		add("featuring ", strings.Join(shot.Characters, ", "))
	}
	add("style: ", stylePrompt)
	add("", suffix)

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ". ")
}

func describeCharacter(def models.CharacterDefinition) string {
	desc := fmt.Sprintf("%s: %s", strings.TrimSpace(def.Name), strings.TrimSpace(def.Description))
	if len(def.Traits) > 0 {
		desc += " (" + strings.Join(def.Traits, ", ") + ")"
	}
	return desc
}
