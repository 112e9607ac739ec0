package complaint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"civicshield/backend/internal/authz"
	"civicshield/backend/internal/documents"
	"civicshield/backend/internal/models"
	"civicshield/backend/internal/notify"

	"go.uber.org/zap"
)

// SubmitInput is a new grievance as filed by a citizen.
type SubmitInput struct {
	Department    string
	Heading       string
	Description   string
	Documents     []models.Evidence
	Location      *models.Location
	AgreedToTerms bool
	// IdentityDocument is the submitter's identity number. Only its last
	// four characters survive, as the anonymous id. When empty the actor's
	// AnonID claim is used.
	IdentityDocument string
}

// Admin decisions.
const (
	AdminApprove = "approve"
	AdminReject  = "reject"
)

// AuthorityRespond is the only authority action.
const AuthorityRespond = "respond"

// AdminActionInput is an admin decision on a routed complaint.
type AdminActionInput struct {
	Action          string
	Remarks         string
	TargetAuthority string
}

// LawsuitResult is returned by Escalate.
type LawsuitResult struct {
	Complaint *models.Complaint
	Notice    documents.Notice
	Receipt   notify.Receipt
	Procedure documents.Procedure
}

// Submit validates and stores a new complaint in the submitted state and
// hands it to the analysis pipeline without waiting for it.
func (s *Service) Submit(ctx context.Context, actor models.Actor, in SubmitInput) (*models.Complaint, error) {
	if err := s.authorize(ctx, actor, authz.ActionSubmit, nil); err != nil {
		return nil, err
	}

	in.Department = strings.ToLower(strings.TrimSpace(in.Department))
	in.Heading = strings.TrimSpace(in.Heading)
	in.Description = strings.TrimSpace(in.Description)
	switch {
	case in.Department == "":
		return nil, &ValidationError{Field: "department", Message: "is required"}
	case in.Heading == "":
		return nil, &ValidationError{Field: "heading", Message: "is required"}
	case in.Description == "":
		return nil, &ValidationError{Field: "description", Message: "is required"}
	case !in.AgreedToTerms:
		return nil, &ValidationError{Field: "agreedToTerms", Message: "you must agree to the terms and conditions"}
	}
	if s.directory != nil && !s.directory.HasDepartment(in.Department) {
		return nil, &ValidationError{Field: "department", Message: fmt.Sprintf("unknown department %q", in.Department)}
	}

	identity := in.IdentityDocument
	if strings.TrimSpace(identity) == "" {
		identity = actor.AnonID
	}
	anonID, err := models.AnonymousID(identity)
	if err != nil {
		return nil, &ValidationError{Field: "identityDocument", Message: err.Error()}
	}

	if in.Location != nil && strings.TrimSpace(in.Location.Address) == "" {
		loc := *in.Location
		loc.Address = "Not provided"
		in.Location = &loc
	}

	now := s.now()
	c := &models.Complaint{
		OwnerID:     actor.ID,
		AnonymousID: anonID,
		Department:  in.Department,
		Heading:     in.Heading,
		Description: in.Description,
		Documents:   in.Documents,
		Location:    in.Location,
		Status:      models.StatusSubmitted,
		AIAnalysis:  models.AIAnalysis{Flags: []string{}},
		CreatedAt:   now,
		UpdatedAt:   now,
		History: []models.StatusEntry{{
			Seq:       1,
			Status:    models.StatusSubmitted,
			Message:   s.msg("history.submitted"),
			Actor:     models.SystemActor.HistoryLabel(),
			Timestamp: now,
		}},
	}
	if c.Documents == nil {
		c.Documents = []models.Evidence{}
	}

	if err := s.storage.CreateComplaint(ctx, c); err != nil {
		return nil, fmt.Errorf("create complaint: %w", err)
	}
	s.log.Info("complaint submitted",
		zap.String("complaint_id", c.ComplaintID), zap.String("department", c.Department))
	s.committed(ctx, c, c.History)

	if s.enqueuer == nil || !s.enqueuer.Enqueue(c.ComplaintID) {
		s.log.Warn("analysis not queued, left for reconciliation", zap.String("complaint_id", c.ComplaintID))
	}
	return c, nil
}

// AdminAction approves or rejects a complaint routed to the admin. Approval
// forwards it to the target authority and starts the response deadline.
func (s *Service) AdminAction(ctx context.Context, actor models.Actor, id string, in AdminActionInput) (*models.Complaint, error) {
	action := strings.ToLower(strings.TrimSpace(in.Action))
	remarks := strings.TrimSpace(in.Remarks)
	target := strings.TrimSpace(in.TargetAuthority)

	switch action {
	case AdminApprove:
		if target == "" {
			return nil, &ValidationError{Field: "targetAuthority", Message: "is required to approve"}
		}
	case AdminReject:
	default:
		return nil, &ValidationError{Field: "action", Message: `must be "approve" or "reject"`}
	}

	return s.mutate(ctx, actor, authz.ActionAdminAction, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		if action == AdminReject {
			reason := remarks
			if reason == "" {
				reason = s.msg("history.admin_rejected.default_reason")
			}
			c.AdminRemarks = remarks
			if c.AdminRemarks == "" {
				c.AdminRemarks = s.msg("history.admin_rejected.default_remarks")
			}
			return []change{{step: stepAdminReject, actor: actor, message: s.msg("history.admin_rejected", reason)}}, nil
		}

		deadline := s.deadline(now)
		c.AdminRemarks = remarks
		c.TargetAuthority = target
		c.EscalationDeadline = &deadline

		suffix := ""
		if remarks != "" {
			suffix = s.msg("history.admin_approved.remarks", remarks)
		}
		return []change{
			{step: stepApprove, actor: actor, message: s.msg("history.admin_approved", actorName(actor), suffix)},
			{step: stepForward, actor: actor, message: s.msg("history.sent_to_authority", target, deadline.Format("02/01/2006"))},
		}, nil
	})
}

// RequestUserData records that the admin asked for the submitter's personal
// data. The status does not change.
func (s *Service) RequestUserData(ctx context.Context, actor models.Actor, id string) (*models.Complaint, error) {
	return s.mutate(ctx, actor, authz.ActionRequestUserData, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		c.DataRequestedByAdmin = true
		return []change{{step: stepAnnotateAdmin, actor: actor, message: s.msg("history.data_requested")}}, nil
	})
}

// UpdateConsent records the submitter's answer to a data request. The
// status does not change.
func (s *Service) UpdateConsent(ctx context.Context, actor models.Actor, id string, granted bool) (*models.Complaint, error) {
	return s.mutate(ctx, actor, authz.ActionUpdateConsent, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		c.UserConsentForData = &granted
		key := "history.consent_declined"
		if granted {
			key = "history.consent_granted"
		}
		return []change{{step: stepAnnotateUser, actor: actor, message: s.msg(key)}}, nil
	})
}

// AuthorityAction records the authority's response.
func (s *Service) AuthorityAction(ctx context.Context, actor models.Actor, id, action, remarks string) (*models.Complaint, error) {
	if strings.ToLower(strings.TrimSpace(action)) != AuthorityRespond {
		return nil, &ValidationError{Field: "action", Message: `must be "respond"`}
	}
	remarks = strings.TrimSpace(remarks)

	return s.mutate(ctx, actor, authz.ActionAuthorityAction, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		shown := remarks
		if shown == "" {
			shown = s.msg("history.replied.default")
		}
		c.AuthorityResponse = remarks
		c.EscalationDeadline = nil
		return []change{{step: stepRespond, actor: actor, message: s.msg("history.replied", shown)}}, nil
	})
}

// UserResolve records whether the submitter accepts the authority's reply.
func (s *Service) UserResolve(ctx context.Context, actor models.Actor, id string, accepted bool, feedback string) (*models.Complaint, error) {
	feedback = strings.TrimSpace(feedback)

	return s.mutate(ctx, actor, authz.ActionUserResolve, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		c.UserResolution = models.UserResolution{Resolved: &accepted, Feedback: feedback, ResolvedAt: &now}

		if accepted {
			suffix := ""
			if feedback != "" {
				suffix = s.msg("history.user_resolved.feedback", feedback)
			}
			return []change{{step: stepResolve, actor: actor, message: s.msg("history.user_resolved", suffix)}}, nil
		}
		suffix := ""
		if feedback != "" {
			suffix = s.msg("history.user_not_resolved.reason", feedback)
		}
		return []change{{step: stepNotResolve, actor: actor, message: s.msg("history.user_not_resolved", suffix)}}, nil
	})
}

// Escalate files a lawsuit: it moves the complaint to lawsuit_filed and then
// issues the legal notice to the authority. The notice goes out only once the
// filing is committed. A failed delivery is logged and left recorded as
// undelivered on the complaint; it does not undo the filing.
func (s *Service) Escalate(ctx context.Context, actor models.Actor, id string) (*LawsuitResult, error) {
	var notice documents.Notice
	c, err := s.mutate(ctx, actor, authz.ActionEscalate, id, func(c *models.Complaint, now time.Time) ([]change, error) {
		if !stepFileLawsuit.allowed(c.Status) {
			return nil, &InvalidTransitionError{ComplaintID: c.ComplaintID, Action: string(stepFileLawsuit), From: c.Status}
		}
		notice = documents.LegalNotice(c, now)
		c.Lawsuit = models.Lawsuit{
			Filed:         true,
			FiledAt:       &now,
			Reference:     notice.Reference,
			NoticeContent: notice.Body,
		}
		c.EscalationDeadline = nil
		return []change{{step: stepFileLawsuit, actor: actor, message: s.msg("history.lawsuit_filed")}}, nil
	})
	if err != nil {
		return nil, err
	}

	receipt := s.deliver(ctx, c, notice)
	if receipt.Success {
		if err := s.markDelivered(ctx, c); err != nil {
			s.log.Warn("legal notice sent but delivery flag not saved",
				zap.String("complaint_id", c.ComplaintID), zap.Error(err))
		}
	}
	return &LawsuitResult{Complaint: c, Notice: notice, Receipt: receipt, Procedure: documents.LawsuitProcedure()}, nil
}

// markDelivered flags the notice of a filed lawsuit as delivered without
// adding a history entry.
func (s *Service) markDelivered(ctx context.Context, c *models.Complaint) error {
	unlock := s.locks.Lock(c.ComplaintID)
	defer unlock()

	cur, err := s.load(ctx, c.ComplaintID)
	if err != nil {
		return err
	}
	cur.Lawsuit.NoticeDelivered = true
	if err := s.storage.UpdateComplaint(ctx, cur); err != nil {
		return fmt.Errorf("save complaint %s: %w", c.ComplaintID, err)
	}
	c.Lawsuit.NoticeDelivered = true
	c.Version = cur.Version
	return nil
}

func (s *Service) deliver(ctx context.Context, c *models.Complaint, notice documents.Notice) notify.Receipt {
	if s.notifier == nil {
		s.log.Warn("no notifier configured, legal notice not delivered", zap.String("complaint_id", c.ComplaintID))
		return notify.Receipt{}
	}
	to := fmt.Sprintf("%s Authority", c.Department)
	if c.TargetAuthority != "" {
		to = fmt.Sprintf("%s Authority", c.TargetAuthority)
		if s.directory != nil {
			if email := s.directory.AuthorityEmail(c.Department, c.TargetAuthority); email != "" {
				to = email
			}
		}
	}
	r, err := s.notifier.Send(ctx, notify.Message{To: to, Subject: notice.Subject, Body: notice.Body, Reference: notice.Reference})
	if err != nil {
		s.log.Error("legal notice delivery failed", zap.String("complaint_id", c.ComplaintID), zap.Error(err))
		return notify.Receipt{Channel: r.Channel}
	}
	return r
}

func actorName(a models.Actor) string {
	if a.Name != "" {
		return a.Name
	}
	return string(a.Role)
}
