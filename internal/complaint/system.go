package complaint

import (
	"context"
	"strings"
	"time"

	"civicshield/backend/internal/authz"
	"civicshield/backend/internal/config"
	"civicshield/backend/internal/documents"
	"civicshield/backend/internal/models"
	"civicshield/backend/internal/storage"

	"go.uber.org/zap"
)

// AnalysisResult is what the pipeline hands back for a complaint under
// review. Order is only used when the analysis is valid.
type AnalysisResult struct {
	Analysis models.AIAnalysis
	Order    models.GovtOrder
}

// BeginReview moves a submitted complaint to ai_review.
func (s *Service) BeginReview(ctx context.Context, id string) (*models.Complaint, error) {
	return s.mutate(ctx, models.SystemActor, authz.ActionView, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		return []change{{step: stepBeginReview, actor: models.PipelineActor, message: s.msg("history.ai_review")}}, nil
	})
}

// ApplyAnalysis stores the verdict of a complaint in ai_review. A valid
// complaint is verified and routed to its department admin in the same
// write; an invalid one is rejected.
func (s *Service) ApplyAnalysis(ctx context.Context, id string, res AnalysisResult) (*models.Complaint, error) {
	return s.mutate(ctx, models.SystemActor, authz.ActionView, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		c.AIAnalysis = res.Analysis
		if c.AIAnalysis.Flags == nil {
			c.AIAnalysis.Flags = []string{}
		}

		if res.Analysis.IsValid == nil || !*res.Analysis.IsValid {
			msg := s.msg("history.ai_rejected", res.Analysis.Verdict, strings.Join(res.Analysis.Flags, ", "))
			return []change{{step: stepAIReject, actor: models.PipelineActor, message: msg}}, nil
		}

		c.GovtOrder = res.Order
		return []change{
			{step: stepVerify, actor: models.PipelineActor, message: s.msg("history.verified", res.Analysis.Score)},
			{step: stepRouteToAdmin, actor: models.SystemActor, message: s.msg("history.sent_to_admin", c.Department)},
		}, nil
	})
}

// MarkEscalated moves a complaint whose authority deadline has passed to
// escalated. It reports false, without writing, when the complaint is no
// longer awaiting the authority or its deadline has not passed yet.
func (s *Service) MarkEscalated(ctx context.Context, id string) (*models.Complaint, bool, error) {
	changed := false
	c, err := s.mutate(ctx, models.SystemActor, authz.ActionEscalate, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		if c.Status != models.StatusSentToAuthority {
			return nil, nil
		}
		if c.EscalationDeadline == nil || c.EscalationDeadline.After(now) {
			return nil, nil
		}
		changed = true
		return []change{{step: stepAutoEscalate, actor: models.SystemActor, message: s.msg("history.escalated")}}, nil
	})
	if err != nil {
		return nil, false, err
	}
	return c, changed, nil
}

// Load returns a complaint without an authorization check. It is meant for
// background jobs and operator tooling.
func (s *Service) Load(ctx context.Context, id string) (*models.Complaint, error) {
	return s.load(ctx, id)
}

// Get returns a complaint the actor may view.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error) {
	c, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, authz.ActionView, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListMine returns the actor's own complaints, newest first.
func (s *Service) ListMine(ctx context.Context, actor models.Actor) ([]models.Complaint, error) {
	if err := s.authorize(ctx, actor, authz.ActionListMine, nil); err != nil {
		return nil, err
	}
	return s.storage.ListComplaints(ctx, storage.ListFilter{OwnerID: actor.ID})
}

// ListForAdmin returns the complaints on the admin dashboard, limited to
// the admin's department when the admin has one.
func (s *Service) ListForAdmin(ctx context.Context, actor models.Actor) ([]models.Complaint, error) {
	if err := s.authorize(ctx, actor, authz.ActionListAdmin, nil); err != nil {
		return nil, err
	}
	return s.storage.ListComplaints(ctx, storage.ListFilter{
		Department: actor.Department,
		Statuses:   parseStatuses(config.AdminVisibleStatuses, s.log),
	})
}

// ListForAuthority returns complaints that were forwarded to an authority.
func (s *Service) ListForAuthority(ctx context.Context, actor models.Actor) ([]models.Complaint, error) {
	if err := s.authorize(ctx, actor, authz.ActionListAuthority, nil); err != nil {
		return nil, err
	}
	return s.storage.ListComplaints(ctx, storage.ListFilter{
		Department: actor.Department,
		Statuses:   parseStatuses(config.AuthorityVisibleStatuses, s.log),
	})
}

// LawsuitProcedure describes how to take an escalated complaint to court.
func (s *Service) LawsuitProcedure() documents.Procedure {
	return documents.LawsuitProcedure()
}

func parseStatuses(names []string, log *zap.Logger) []models.Status {
	out := make([]models.Status, 0, len(names))
	for _, n := range names {
		st, err := models.ParseStatus(n)
		if err != nil {
			log.Error("bad status in configuration", zap.String("status", n), zap.Error(err))
			continue
		}
		out = append(out, st)
	}
	return out
}
