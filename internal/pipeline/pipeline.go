// Package pipeline runs the asynchronous analysis of submitted complaints on
// a pool of workers and periodically requeues complaints it lost track of.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"civicshield/backend/internal/analysis"
	"civicshield/backend/internal/complaint"
	"civicshield/backend/internal/config"
	"civicshield/backend/internal/corpus"
	"civicshield/backend/internal/extract"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/models"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Outcome is how a single run ended.
type Outcome string

const (
	OutcomeReviewing Outcome = "reviewing"
	OutcomeVerified  Outcome = "verified"
	OutcomeRejected  Outcome = "rejected"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
	OutcomePanic     Outcome = "panic"
)

// Engine is the part of the lifecycle engine the pipeline drives.
type Engine interface {
	Load(ctx context.Context, id string) (*models.Complaint, error)
	BeginReview(ctx context.Context, id string) (*models.Complaint, error)
	ApplyAnalysis(ctx context.Context, id string, res complaint.AnalysisResult) (*models.Complaint, error)
}

// Index embeds complaint text and finds similar stored complaints.
type Index interface {
	Embed(ctx context.Context, text string) []float64
	FindSimilar(ctx context.Context, query []float64, excludeID string) ([]corpus.Match, error)
	Save(ctx context.Context, complaintID string, vec []float64) (bool, error)
}

// Analyst produces verdicts and orders. *analysis.Analyzer implements it.
type Analyst interface {
	Analyze(ctx context.Context, req analysis.VerdictRequest) analysis.Verdict
	Order(ctx context.Context, c *models.Complaint, an models.AIAnalysis) models.GovtOrder
}

// Store finds complaints that were never picked up.
type Store interface {
	FindStale(ctx context.Context, statuses []models.Status, before time.Time) ([]models.Complaint, error)
}

// Options tunes the runner. Zero values fall back to defaults.
type Options struct {
	Workers           int
	QueueSize         int
	StaleAfter        time.Duration
	ReconcileInterval time.Duration
	ExtractLimit      int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 2
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 10 * time.Minute
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = 5 * time.Minute
	}
	if o.ExtractLimit <= 0 {
		o.ExtractLimit = config.ExtractedTextLimit
	}
	return o
}

// Deps groups the collaborators of a Runner. Extractor and Metrics are
// optional.
type Deps struct {
	Engine    Engine
	Store     Store
	Index     Index
	Analyst   Analyst
	Extractor extract.Extractor
	Log       *zap.Logger
	Metrics   *metrics.Metrics
}

// pendingStatuses are the statuses the pipeline still owes work for.
var pendingStatuses = []models.Status{models.StatusSubmitted, models.StatusAIReview}

// Runner owns the job queue and its workers.
type Runner struct {
	engine    Engine
	store     Store
	index     Index
	analyst   Analyst
	extractor extract.Extractor
	log       *zap.Logger
	metrics   *metrics.Metrics
	opts      Options
	now       func() time.Time

	queue   chan string
	mu      sync.Mutex
	pending map[string]struct{}
}

// NewRunner creates a Runner. Nothing runs until Start.
func NewRunner(d Deps, opts Options) *Runner {
	opts = opts.withDefaults()
	return &Runner{
		engine:    d.Engine,
		store:     d.Store,
		index:     d.Index,
		analyst:   d.Analyst,
		extractor: d.Extractor,
		log:       logger.OrNop(d.Log).Named("pipeline"),
		metrics:   d.Metrics,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		queue:     make(chan string, opts.QueueSize),
		pending:   make(map[string]struct{}),
	}
}

// Enqueue schedules a complaint for analysis without blocking. It returns
// false when the queue is full; the reconciliation sweep picks the
// complaint up later. A complaint already queued is not queued twice.
func (r *Runner) Enqueue(complaintID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.pending[complaintID]; ok {
		return true
	}
	select {
	case r.queue <- complaintID:
		r.pending[complaintID] = struct{}{}
		return true
	default:
		r.metrics.QueueFull()
		r.log.Warn("analysis queue full", zap.String("complaint_id", complaintID), zap.Int("capacity", cap(r.queue)))
		return false
	}
}

func (r *Runner) done(complaintID string) {
	r.mu.Lock()
	delete(r.pending, complaintID)
	r.mu.Unlock()
}

// Start runs the workers and the reconciliation loop until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.opts.Workers; i++ {
		worker := i
		g.Go(func() error {
			r.work(ctx, worker)
			return nil
		})
	}
	g.Go(func() error {
		r.reconcileLoop(ctx)
		return nil
	})
	r.log.Info("analysis pipeline started", zap.Int("workers", r.opts.Workers), zap.Int("queue", r.opts.QueueSize))
	return g.Wait()
}

func (r *Runner) work(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue:
			r.run(ctx, worker, id)
		}
	}
}

func (r *Runner) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(r.opts.ReconcileInterval)
	defer ticker.Stop()

	r.Reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// run processes one job. A panic or error is contained here: the complaint
// stays where it is and the sweep retries it later.
func (r *Runner) run(ctx context.Context, worker int, id string) {
	defer r.done(id)
	log := r.log.With(zap.String("complaint_id", id), zap.Int("worker", worker))
	defer func() {
		if p := recover(); p != nil {
			r.metrics.PipelineRun(string(OutcomePanic))
			sentry.CurrentHub().Recover(p)
			log.Error("analysis panicked", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()

	// One job may need two steps: submitted to ai_review, then the analysis.
	for {
		outcome, err := r.Process(ctx, id)
		if err != nil {
			r.metrics.PipelineRun(string(OutcomeFailed))
			sentry.CaptureException(err)
			log.Error("analysis failed", zap.Error(err))
			return
		}
		if outcome != OutcomeReviewing {
			r.metrics.PipelineRun(string(outcome))
			log.Info("analysis finished", zap.String("outcome", string(outcome)))
			return
		}
	}
}

// Process advances a complaint by one step. It is idempotent: a submitted
// complaint is moved to ai_review, a complaint in ai_review is analysed
// and anything else is skipped.
func (r *Runner) Process(ctx context.Context, id string) (Outcome, error) {
	c, err := r.engine.Load(ctx, id)
	if err != nil {
		return OutcomeFailed, err
	}

	switch c.Status {
	case models.StatusSubmitted:
		if _, err := r.engine.BeginReview(ctx, id); err != nil {
			if errors.Is(err, complaint.ErrInvalidTransition) {
				return OutcomeSkipped, nil
			}
			return OutcomeFailed, fmt.Errorf("begin review: %w", err)
		}
		return OutcomeReviewing, nil
	case models.StatusAIReview:
		return r.analyse(ctx, c)
	default:
		return OutcomeSkipped, nil
	}
}

func (r *Runner) analyse(ctx context.Context, c *models.Complaint) (Outcome, error) {
	extracted := extract.Summarize(ctx, r.extractor, c.Documents, r.opts.ExtractLimit)
	address := ""
	if c.Location != nil {
		address = c.Location.Address
	}

	text := strings.Join([]string{c.Department, c.Heading, c.Description, address, extracted}, " ")
	vec := r.index.Embed(ctx, text)
	similar, err := r.index.FindSimilar(ctx, vec, c.ComplaintID)
	if err != nil {
		r.log.Warn("similarity search failed, continuing without context",
			zap.String("complaint_id", c.ComplaintID), zap.Error(err))
		similar = nil
	}

	verdict := r.analyst.Analyze(ctx, analysis.VerdictRequest{
		Department:    c.Department,
		Heading:       c.Heading,
		Description:   c.Description,
		Address:       address,
		ExtractedText: extracted,
		Similar:       similar,
	})

	if _, err := r.index.Save(ctx, c.ComplaintID, vec); err != nil {
		r.log.Warn("failed to store embedding", zap.String("complaint_id", c.ComplaintID), zap.Error(err))
	}

	res := complaint.AnalysisResult{Analysis: verdict.ToModel(r.now())}
	if verdict.IsValid {
		res.Order = r.analyst.Order(ctx, c, res.Analysis)
	}
	if _, err := r.engine.ApplyAnalysis(ctx, c.ComplaintID, res); err != nil {
		if errors.Is(err, complaint.ErrInvalidTransition) {
			return OutcomeSkipped, nil
		}
		return OutcomeFailed, fmt.Errorf("apply analysis: %w", err)
	}
	if verdict.IsValid {
		return OutcomeVerified, nil
	}
	return OutcomeRejected, nil
}

// Reconcile requeues complaints stuck in submitted or ai_review for longer
// than StaleAfter and returns how many were queued.
func (r *Runner) Reconcile(ctx context.Context) int {
	stale, err := r.store.FindStale(ctx, pendingStatuses, r.now().Add(-r.opts.StaleAfter))
	if err != nil {
		sentry.CaptureException(err)
		r.log.Error("reconciliation query failed", zap.Error(err))
		return 0
	}
	queued := 0
	for _, c := range stale {
		if r.Enqueue(c.ComplaintID) {
			queued++
		}
	}
	if queued > 0 {
		r.log.Info("requeued stale complaints", zap.Int("count", queued))
	}
	return queued
}
