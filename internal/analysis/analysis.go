// Package analysis decides whether a complaint is genuine and drafts the
// government order for verified complaints. An external generator is
// preferred; a deterministic rule set and template are always available.
package analysis

import (
	"context"
	"errors"
	"strings"
	"time"

	"civicshield/backend/internal/corpus"
	"civicshield/backend/internal/documents"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/metrics"
	"civicshield/backend/internal/models"

	"go.uber.org/zap"
)

// Source tells where a verdict came from.
type Source string

const (
	SourceExternal Source = "external"
	SourceRules    Source = "rules"
)

// Verdict is the outcome of analysing one complaint.
type Verdict struct {
	IsValid     bool
	Score       int
	Verdict     string
	Flags       []string
	Category    string
	Severity    models.Severity
	IsDuplicate bool
	DuplicateOf string
	Source      Source
}

// ToModel converts v into the persisted analysis record.
func (v Verdict) ToModel(analyzedAt time.Time) models.AIAnalysis {
	valid := v.IsValid
	flags := v.Flags
	if flags == nil {
		flags = []string{}
	}
	return models.AIAnalysis{
		IsValid:     &valid,
		Score:       v.Score,
		Verdict:     v.Verdict,
		Flags:       flags,
		Category:    v.Category,
		Severity:    v.Severity,
		Source:      string(v.Source),
		DuplicateOf: v.DuplicateOf,
		AnalyzedAt:  &analyzedAt,
	}
}

// VerdictRequest is everything the verdict generator is told about a complaint.
type VerdictRequest struct {
	Department    string
	Heading       string
	Description   string
	Address       string
	ExtractedText string
	Similar       []corpus.Match
}

// Generator is an external verdict and order author.
type Generator interface {
	Verdict(ctx context.Context, req VerdictRequest) (*Verdict, error)
	Order(ctx context.Context, in documents.OrderInput) (string, error)
}

// Analyzer combines an optional Generator with the local fallbacks.
type Analyzer struct {
	gen     Generator
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewAnalyzer returns an Analyzer. gen may be nil, in which case only the
// local rules and template are used.
func NewAnalyzer(gen Generator, log *zap.Logger, m *metrics.Metrics) *Analyzer {
	return &Analyzer{
		gen:     gen,
		log:     logger.OrNop(log).Named("analysis"),
		metrics: m,
		now:     time.Now,
	}
}

// Analyze returns a verdict for req. It never fails: any problem with the
// external generator degrades to RuleBased.
func (a *Analyzer) Analyze(ctx context.Context, req VerdictRequest) Verdict {
	v := a.external(ctx, req)
	if v == nil {
		rules := RuleBased(req.Department, req.Heading, req.Description)
		v = &rules
	}
	ApplyDuplicate(v)
	a.metrics.Verdict(string(v.Source))
	return *v
}

func (a *Analyzer) external(ctx context.Context, req VerdictRequest) *Verdict {
	if a.gen == nil {
		return nil
	}
	v, err := a.gen.Verdict(ctx, req)
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			a.log.Warn("external verdict unavailable, using rule-based fallback", zap.Error(err))
		}
		return nil
	}
	if v.Category == "" {
		v.Category = req.Department
	}
	v.Source = SourceExternal
	return v
}

// Order drafts the government order for a verified complaint, falling back
// to the offline template.
func (a *Analyzer) Order(ctx context.Context, c *models.Complaint, an models.AIAnalysis) models.GovtOrder {
	now := a.now()
	in := documents.OrderFromComplaint(c, an)
	number := documents.OrderNumber(c.ComplaintID, now)

	content := ""
	if a.gen != nil {
		text, err := a.gen.Order(ctx, in)
		switch {
		case err != nil && !errors.Is(err, ErrDisabled):
			a.log.Warn("external order generation failed, using template",
				zap.String("complaint_id", c.ComplaintID), zap.Error(err))
		case err == nil:
			content = strings.TrimSpace(text)
		}
	}
	if content == "" {
		content = documents.OrderTemplate(in, number, now)
	}
	return models.GovtOrder{
		Content:     content,
		GeneratedAt: &now,
		OrderNumber: number,
	}
}
