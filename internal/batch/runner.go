package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"storyboard-server/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	batchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_batch_runs_total",
			Help: "Generate-all runs by outcome.",
		},
		[]string{"outcome"}, // completed, cancelled, failed
	)
	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "storyboard_batch_duration_seconds",
		Help:    "Duration of generate-all runs.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	})
	shotsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyboard_batch_shots_total",
			Help: "Shots processed by generate-all runs, by terminal state.",
		},
		[]string{"state"},
	)
)

// ErrRunnerClosed is returned once Shutdown has been called.
var ErrRunnerClosed = errors.New("batch runner is shutting down")

// ProjectStore is the part of the project store the runner needs.
type ProjectStore interface {
	GetByID(ctx context.Context, id string) (*models.Project, error)
	MergeFrame(ctx context.Context, id string, frame models.Frame) (*models.Project, error)
	MergeShotFrame(ctx context.Context, id, shotID string, frame models.Frame) (*models.Project, error)
}

// ShotRenderer renders one shot of a project into a frame.
type ShotRenderer interface {
	RenderShot(ctx context.Context, p *models.Project, number int) (models.Frame, error)
}

// FrameHook is called after a frame reaches rendered or errored and has been stored.
type FrameHook func(ctx context.Context, projectID string, frame models.Frame)

// Report summarises a generate-all run. Rendered and Errored carry shot numbers as stored when
// each frame landed; Skipped and Pending carry numbers as of the start of the run.
type Report struct {
	ProjectID string `json:"project_id"`
	Rendered  []int  `json:"rendered"`
	Errored   []int  `json:"errored"`
	Skipped   []int  `json:"skipped"`
	// Pending lists worklist shots left untouched because the run was cancelled.
	Pending   []int `json:"pending,omitempty"`
	Cancelled bool  `json:"cancelled,omitempty"`
}

// Option configures a Runner.
type Option func(*Runner)

// WithItemDelay makes a run pause for d after each shot before asking the pacer for the next.
func WithItemDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.itemDelay = d
		}
	}
}

// Runner renders frames one at a time through a shared Pacer.
type Runner struct {
	store     ProjectStore
	renderer  ShotRenderer
	pacer     Pacer
	itemDelay time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	active  map[string]struct{}
	closed  bool
	closing chan struct{}
	runs    sync.WaitGroup
}

// NewRunner creates a Runner. The pacer should be shared with every other caller of the image
// backend.
func NewRunner(store ProjectStore, renderer ShotRenderer, pacer Pacer, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		store:    store,
		renderer: renderer,
		pacer:    pacer,
		logger:   logger.Named("BatchRunner"),
		active:   make(map[string]struct{}),
		closing:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Worklist returns the shot numbers eligible for a batch run, ascending, and those skipped.
// Pending frames are eligible, and so are generating frames: a run holds its project
// exclusively, so a frame still generating when it starts was left behind by an interrupted
// render. A shot with no frame record counts as pending.
func Worklist(p *models.Project) (pending, skipped []int) {
	pending, skipped = []int{}, []int{}
	for _, s := range p.Shots {
		if eligible(p.FrameFor(s.Number)) {
			pending = append(pending, s.Number)
		} else {
			skipped = append(skipped, s.Number)
		}
	}
	return pending, skipped
}

func eligible(f models.Frame) bool {
	return f.Status == models.FramePending || f.Status == models.FrameGenerating
}

// Running reports whether a batch is in progress for projectID.
func (r *Runner) Running(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[projectID]
	return ok
}

func (r *Runner) acquire(projectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRunnerClosed
	}
	if _, ok := r.active[projectID]; ok {
		return fmt.Errorf("%w: project %s", models.ErrGenerationInProgress, projectID)
	}
	r.active[projectID] = struct{}{}
	r.runs.Add(1)
	return nil
}

func (r *Runner) release(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, projectID)
	r.runs.Done()
}

// Shutdown stops every run after its current shot and waits for the runs to return or ctx to
// end. Shots a run did not reach stay pending. New runs are refused afterwards.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.closing)
	}
	r.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		r.runs.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run renders every eligible shot of the project in ascending order, strictly one at a time.
// A failed shot is recorded as errored and the run moves on. Cancelling ctx stops the run
// between shots, leaving the rest pending.
func (r *Runner) Run(ctx context.Context, projectID string, hook FrameHook) (*Report, error) {
	if err := r.acquire(projectID); err != nil {
		return nil, err
	}
	defer r.release(projectID)
	return r.run(ctx, projectID, hook)
}

// Start claims the project and runs the batch in the background, calling done with the result.
// It fails immediately with ErrGenerationInProgress when a batch already holds the project.
func (r *Runner) Start(ctx context.Context, projectID string, hook FrameHook, done func(*Report, error)) error {
	if err := r.acquire(projectID); err != nil {
		return err
	}
	go func() {
		defer r.release(projectID)
		report, err := r.run(ctx, projectID, hook)
		if done != nil {
			done(report, err)
		}
	}()
	return nil
}

// queued is one worklist entry, held by shot ID so renumbering during the run cannot redirect it.
type queued struct {
	id     string
	number int
}

func numbers(items []queued) []int {
	out := make([]int, len(items))
	for i, q := range items {
		out[i] = q.number
	}
	return out
}

// pause blocks between shots. It returns an error when the run should stop instead.
func (r *Runner) pause(ctx context.Context, d time.Duration) error {
	select {
	case <-r.closing:
		return ErrRunnerClosed
	default:
	}
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closing:
		return ErrRunnerClosed
	case <-timer.C:
		return nil
	}
}

func (r *Runner) run(ctx context.Context, projectID string, hook FrameHook) (*Report, error) {
	log := r.logger.With(zap.String("projectID", projectID))
	start := time.Now()

	p, err := r.store.GetByID(ctx, projectID)
	if err != nil {
		batchRunsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	var queue []queued
	skipped := []int{}
	for _, s := range p.Shots {
		if eligible(p.FrameFor(s.Number)) {
			queue = append(queue, queued{id: s.ID, number: s.Number})
		} else {
			skipped = append(skipped, s.Number)
		}
	}
	report := &Report{ProjectID: projectID, Rendered: []int{}, Errored: []int{}, Skipped: skipped}
	log.Info("Starting batch render", zap.Ints("worklist", numbers(queue)), zap.Ints("skipped", skipped))

	stop := func(rest []queued, err error) (*Report, error) {
		report.Cancelled = true
		report.Pending = numbers(rest)
		log.Warn("Batch stopped before completion", zap.Ints("pending", report.Pending), zap.Error(err))
		batchRunsTotal.WithLabelValues("cancelled").Inc()
		return report, nil
	}

	for i, item := range queue {
		delay := r.itemDelay
		if i == 0 {
			delay = 0
		}
		if err := r.pause(ctx, delay); err != nil {
			return stop(queue[i:], err)
		}
		if err := r.pacer.Wait(ctx); err != nil {
			return stop(queue[i:], err)
		}

		frame, _, err := r.process(ctx, projectID, models.ShotRef{ID: item.id, Number: item.number})
		switch {
		case errors.Is(err, models.ErrOrphanFrame), errors.Is(err, models.ErrShotNotFound):
			log.Info("Shot removed during batch, skipping", zap.Int("shot", item.number))
			report.Skipped = append(report.Skipped, item.number)
			continue
		case err != nil:
			batchRunsTotal.WithLabelValues("failed").Inc()
			log.Error("Batch aborted by store failure", zap.Int("shot", item.number), zap.Error(err))
			return report, err
		}

		if frame.Status == models.FrameErrored {
			report.Errored = append(report.Errored, frame.ShotNumber)
		} else {
			report.Rendered = append(report.Rendered, frame.ShotNumber)
		}
		shotsProcessedTotal.WithLabelValues(string(frame.Status)).Inc()
		if hook != nil {
			hook(ctx, projectID, frame)
		}
	}

	batchRunsTotal.WithLabelValues("completed").Inc()
	batchDuration.Observe(time.Since(start).Seconds())
	log.Info("Batch render completed",
		zap.Ints("rendered", report.Rendered), zap.Ints("errored", report.Errored), zap.Duration("duration", time.Since(start)))
	return report, nil
}

// RenderOne regenerates a single frame regardless of its state, through the same pacer.
// A render failure is stored as an errored frame, which is returned together with the render error.
func (r *Runner) RenderOne(ctx context.Context, projectID string, number int) (models.Frame, error) {
	if err := r.pacer.Wait(ctx); err != nil {
		return models.Frame{}, err
	}
	frame, renderErr, err := r.process(ctx, projectID, models.ShotRef{Number: number})
	if err != nil {
		return models.Frame{}, err
	}
	return frame, renderErr
}

// process moves one shot through generating to rendered or errored. A render failure becomes
// an errored frame and is reported in renderErr; err carries store failures only, and
// ErrShotNotFound when the shot is gone before or during the render.
//
// The shot is tracked by ID, so its result lands on it even if shots were inserted or removed
// meanwhile. The returned frame carries the shot's number at the time the result was stored.
func (r *Runner) process(ctx context.Context, projectID string, ref models.ShotRef) (frame models.Frame, renderErr, err error) {
	log := r.logger.With(zap.String("projectID", projectID), zap.Stringer("shot", ref))

	p, err := r.store.GetByID(ctx, projectID)
	if err != nil {
		return models.Frame{}, nil, err
	}
	idx := ref.Index(p.Shots)
	if idx < 0 {
		return models.Frame{}, nil, fmt.Errorf("%w: %s", models.ErrShotNotFound, ref)
	}
	shot := p.Shots[idx]
	generating := p.FrameFor(shot.Number)
	generating.Status = models.FrameGenerating
	if shot.ID == "" {
		// stored before shots had IDs; the update assigns them
		if p, err = r.store.MergeFrame(ctx, projectID, generating); err != nil {
			return models.Frame{}, nil, err
		}
		if idx = models.ShotIndex(p.Shots, shot.Number); idx < 0 {
			return models.Frame{}, nil, fmt.Errorf("%w: %d", models.ErrShotNotFound, shot.Number)
		}
		shot.ID = p.Shots[idx].ID
	} else if p, err = r.store.MergeShotFrame(ctx, projectID, shot.ID, generating); err != nil {
		return models.Frame{}, nil, err
	}
	number := p.Shots[models.ShotIndexByID(p.Shots, shot.ID)].Number

	frame, renderErr = r.renderer.RenderShot(ctx, p, number)
	if renderErr != nil {
		log.Warn("Frame render failed", zap.Error(renderErr))
		frame = models.Frame{
			Status: models.FrameErrored,
			Error:  renderErr.Error(),
		}
	}

	// the request context may be gone by now; the outcome is still recorded
	stored, err := r.store.MergeShotFrame(context.WithoutCancel(ctx), projectID, shot.ID, frame)
	if err != nil {
		if errors.Is(err, models.ErrShotNotFound) {
			log.Info("Shot removed while rendering, dropping result")
		}
		return models.Frame{}, nil, err
	}
	return stored.FrameFor(stored.Shots[models.ShotIndexByID(stored.Shots, shot.ID)].Number), renderErr, nil
}
