package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"storyboard-server/internal/ai"
	"storyboard-server/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

const (
	wordsPerShot = 150
	MinShots     = 6
	MaxShots     = 24
)

var planRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "storyboard_plan_requests_total",
		Help: "Shot planner requests by path and outcome.",
	},
	[]string{"path", "outcome"},
)

// TargetShotCount is one shot per 150 words, clamped to [MinShots, MaxShots].
func TargetShotCount(script string) int {
	words := len(strings.Fields(script))
	n := int(math.Round(float64(words) / wordsPerShot))
	if n < MinShots {
		return MinShots
	}
	if n > MaxShots {
		return MaxShots
	}
	return n
}

// PlanRequest is the input of the detailed breakdown.
type PlanRequest struct {
	Script string
	Genre  string
	Tone   string
}

// Validate rejects input errors before any model call.
func (r PlanRequest) Validate() error {
	if strings.TrimSpace(r.Script) == "" {
		return models.ErrEmptyScript
	}
	if strings.TrimSpace(r.Genre) == "" {
		return fmt.Errorf("%w: genre is required", models.ErrInvalidInput)
	}
	if strings.TrimSpace(r.Tone) == "" {
		return fmt.Errorf("%w: tone is required", models.ErrInvalidInput)
	}
	return nil
}

// QuickPlan is the output of the fused plan+render path.
type QuickPlan struct {
	Shots  []models.Shot
	Frames []models.Frame
}

// Planner turns scripts into shot lists. It never retries and never touches project state.
type Planner struct {
	ai     ai.Client
	quick  QuickClient
	logger *zap.Logger
	now    func() time.Time
}

// NewPlanner creates a Planner over a text backend and the quick storyboard backend.
func NewPlanner(aiClient ai.Client, quick QuickClient, logger *zap.Logger) *Planner {
	return &Planner{
		ai:     aiClient,
		quick:  quick,
		logger: logger.Named("ShotPlanner"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PlanDetailed asks the model for exactly TargetShotCount shots with all detailed fields.
func (p *Planner) PlanDetailed(ctx context.Context, userID string, req PlanRequest) ([]models.Shot, error) {
	if err := req.Validate(); err != nil {
		planRequestsTotal.WithLabelValues("detailed", "input_error").Inc()
		return nil, err
	}
	target := TargetShotCount(req.Script)
	log := p.logger.With(zap.String("userID", userID), zap.Int("targetShots", target))
	log.Info("Planning detailed breakdown", zap.String("genre", req.Genre), zap.String("tone", req.Tone))

	raw, usage, err := p.ai.GenerateText(ctx, userID, detailedPrompt(target), detailedUserInput(req), ai.GenerationParams{})
	if err != nil {
		planRequestsTotal.WithLabelValues("detailed", "upstream_error").Inc()
		log.Error("Text generation failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}

	result := ValidatePlan(raw, target)
	if !result.Accepted() {
		planRequestsTotal.WithLabelValues("detailed", "rejected").Inc()
		log.Warn("Model output rejected", zap.String("reason", result.Reason), zap.Int("rawLength", len(raw)))
		return nil, result.Err()
	}
	planRequestsTotal.WithLabelValues("detailed", "accepted").Inc()
	log.Info("Shot plan accepted", zap.Int("shots", len(result.Shots)), zap.Int("totalTokens", usage.TotalTokens))
	return result.Shots, nil
}

// QuickStoryboard plans and renders in one upstream call. Shots without an image stay pending.
func (p *Planner) QuickStoryboard(ctx context.Context, userID, script, style string, aspect models.AspectRatio) (*QuickPlan, error) {
	if strings.TrimSpace(script) == "" {
		planRequestsTotal.WithLabelValues("quick", "input_error").Inc()
		return nil, models.ErrEmptyScript
	}
	log := p.logger.With(zap.String("userID", userID))

	resp, err := p.quick.Storyboard(ctx, QuickRequest{Script: script, Style: style, Ratio: aspect.Ratio()})
	if err != nil {
		planRequestsTotal.WithLabelValues("quick", "upstream_error").Inc()
		log.Error("Quick storyboard call failed", zap.Error(err))
		return nil, err
	}

	plan, err := p.validateQuick(resp)
	if err != nil {
		planRequestsTotal.WithLabelValues("quick", "rejected").Inc()
		log.Warn("Quick storyboard output rejected", zap.Error(err))
		return nil, err
	}
	planRequestsTotal.WithLabelValues("quick", "accepted").Inc()
	log.Info("Quick storyboard accepted", zap.Int("shots", len(plan.Shots)))
	return plan, nil
}

func (p *Planner) validateQuick(resp *QuickResponse) (*QuickPlan, error) {
	if resp == nil || len(resp.Shots) == 0 {
		return nil, fmt.Errorf("%w: quick storyboard returned no shots", models.ErrInvalidPlan)
	}
	result := validatePlan(string(resp.Shots), 0, false)
	if !result.Accepted() {
		return nil, result.Err()
	}

	// images name shots the way the backend numbered them; without usable numbers they are
	// read as 1-based positions
	images := make(map[int]QuickImage, len(resp.Images))
	for _, img := range resp.Images {
		number := img.ShotNumber
		if result.sourceNumbers != nil {
			var ok bool
			if number, ok = result.sourceNumbers[img.ShotNumber]; !ok {
				return nil, fmt.Errorf("%w: image for unknown shot %d", models.ErrInvalidPlan, img.ShotNumber)
			}
		}
		if number < 1 || number > len(result.Shots) {
			return nil, fmt.Errorf("%w: image for unknown shot %d", models.ErrInvalidPlan, img.ShotNumber)
		}
		images[number] = img
	}

	now := p.now()
	frames := models.InitialFrames(result.Shots)
	for i := range frames {
		img, ok := images[frames[i].ShotNumber]
		if !ok || img.Image == "" {
			continue
		}
		ts := now
		frames[i].Status = models.FrameRendered
		frames[i].Image = img.Image
		frames[i].GeneratedAt = &ts
		frames[i].Error = img.Error
		frames[i].Fallback = img.Error != ""
	}
	return &QuickPlan{Shots: result.Shots, Frames: frames}, nil
}

// ReviseShot asks the model for a partial update of shot. Unknown keys, including the shot
// number, are rejected.
func (p *Planner) ReviseShot(ctx context.Context, userID string, shot models.Shot, instruction string) (models.ShotPatch, error) {
	if strings.TrimSpace(instruction) == "" {
		return models.ShotPatch{}, fmt.Errorf("%w: edit instruction is required", models.ErrInvalidInput)
	}
	log := p.logger.With(zap.String("userID", userID), zap.Int("shot", shot.Number))

	raw, _, err := p.ai.GenerateText(ctx, userID, reviseSystemPrompt, reviseUserInput(shot, instruction), ai.GenerationParams{})
	if err != nil {
		planRequestsTotal.WithLabelValues("revise", "upstream_error").Inc()
		log.Error("Text generation failed", zap.Error(err))
		return models.ShotPatch{}, fmt.Errorf("%w: %w", models.ErrUpstream, err)
	}

	patch, err := ParseShotPatch(raw)
	if err != nil {
		planRequestsTotal.WithLabelValues("revise", "rejected").Inc()
		log.Warn("Shot patch rejected", zap.Error(err))
		return models.ShotPatch{}, err
	}
	planRequestsTotal.WithLabelValues("revise", "accepted").Inc()
	return patch, nil
}

// ParseShotPatch decodes model output into a ShotPatch, rejecting unknown fields.
func ParseShotPatch(raw string) (models.ShotPatch, error) {
	body := StripFences(raw)
	if !strings.HasPrefix(body, "{") {
		return models.ShotPatch{}, fmt.Errorf("%w: shot patch must be a JSON object", models.ErrInvalidPlan)
	}
	var patch models.ShotPatch
	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&patch); err != nil {
		return models.ShotPatch{}, fmt.Errorf("%w: %v", models.ErrInvalidPlan, err)
	}
	return patch, nil
}
