package handler

import (
	"net/http"
	"strings"

	"civicshield/backend/internal/complaint"
	"civicshield/backend/internal/models"

	"github.com/gin-gonic/gin"
)

type submitRequest struct {
	Department       string            `json:"department"`
	Heading          string            `json:"heading"`
	Description      string            `json:"description"`
	Latitude         float64           `json:"latitude"`
	Longitude        float64           `json:"longitude"`
	Address          string            `json:"address"`
	AgreedToTerms    bool              `json:"agreedToTerms"`
	IdentityDocument string            `json:"identityDocument"`
	Documents        []models.Evidence `json:"documents"`
}

type adminActionRequest struct {
	Action          string `json:"action"`
	Remarks         string `json:"remarks"`
	TargetAuthority string `json:"targetAuthority"`
}

type authorityActionRequest struct {
	Action  string `json:"action"`
	Remarks string `json:"remarks"`
}

type resolveRequest struct {
	Accepted *bool  `json:"accepted"`
	Feedback string `json:"feedback"`
}

type consentRequest struct {
	Consent *bool `json:"consent"`
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": message})
}

// Submit handles POST /api/complaints.
func (h *Handler) Submit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	in := complaint.SubmitInput{
		Department:       req.Department,
		Heading:          req.Heading,
		Description:      req.Description,
		Documents:        req.Documents,
		AgreedToTerms:    req.AgreedToTerms,
		IdentityDocument: req.IdentityDocument,
	}
	if req.Latitude != 0 || req.Longitude != 0 || strings.TrimSpace(req.Address) != "" {
		in.Location = &models.Location{Latitude: req.Latitude, Longitude: req.Longitude, Address: req.Address}
	}

	cmp, err := h.Complaints.Submit(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":     "Complaint submitted successfully",
		"complaintId": cmp.ComplaintID,
		"anonymousId": cmp.AnonymousID,
		"complaint":   cmp,
	})
}

// ListMine handles GET /api/complaints/my.
func (h *Handler) ListMine(c *gin.Context) {
	list, err := h.Complaints.ListMine(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListAdmin handles GET /api/complaints/admin.
func (h *Handler) ListAdmin(c *gin.Context) {
	list, err := h.Complaints.ListForAdmin(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ListAuthority handles GET /api/complaints/authority.
func (h *Handler) ListAuthority(c *gin.Context) {
	list, err := h.Complaints.ListForAuthority(c.Request.Context(), actorFrom(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get handles GET /api/complaints/:id.
func (h *Handler) Get(c *gin.Context) {
	cmp, err := h.Complaints.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, cmp)
}

// AdminAction handles PUT /api/complaints/:id/admin-action.
func (h *Handler) AdminAction(c *gin.Context) {
	var req adminActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	cmp, err := h.Complaints.AdminAction(c.Request.Context(), actorFrom(c), c.Param("id"), complaint.AdminActionInput{
		Action:          req.Action,
		Remarks:         req.Remarks,
		TargetAuthority: req.TargetAuthority,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	verb := "approved"
	if strings.EqualFold(strings.TrimSpace(req.Action), complaint.AdminReject) {
		verb = "rejected"
	}
	c.JSON(http.StatusOK, gin.H{"message": "Complaint " + verb + " successfully", "complaint": cmp})
}

// RequestData handles PUT /api/complaints/:id/request-data.
func (h *Handler) RequestData(c *gin.Context) {
	cmp, err := h.Complaints.RequestUserData(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Data request sent to user", "complaint": cmp})
}

// AuthorityAction handles PUT /api/complaints/:id/authority-action.
func (h *Handler) AuthorityAction(c *gin.Context) {
	var req authorityActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	cmp, err := h.Complaints.AuthorityAction(c.Request.Context(), actorFrom(c), c.Param("id"), req.Action, req.Remarks)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Response sent to user successfully", "complaint": cmp})
}

// UserResolve handles PUT /api/complaints/:id/user-resolve.
func (h *Handler) UserResolve(c *gin.Context) {
	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Accepted == nil {
		badRequest(c, `"accepted" is required`)
		return
	}
	cmp, err := h.Complaints.UserResolve(c.Request.Context(), actorFrom(c), c.Param("id"), *req.Accepted, req.Feedback)
	if err != nil {
		h.writeError(c, err)
		return
	}
	message := "Complaint marked as not resolved"
	if *req.Accepted {
		message = "Complaint marked as resolved"
	}
	c.JSON(http.StatusOK, gin.H{"message": message, "complaint": cmp})
}

// UpdateConsent handles PUT /api/complaints/:id/consent.
func (h *Handler) UpdateConsent(c *gin.Context) {
	var req consentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Consent == nil {
		badRequest(c, `"consent" is required`)
		return
	}
	cmp, err := h.Complaints.UpdateConsent(c.Request.Context(), actorFrom(c), c.Param("id"), *req.Consent)
	if err != nil {
		h.writeError(c, err)
		return
	}
	verb := "declined"
	if *req.Consent {
		verb = "accepted"
	}
	c.JSON(http.StatusOK, gin.H{"message": "Data sharing " + verb, "complaint": cmp})
}

// Escalate handles POST /api/complaints/:id/escalate.
func (h *Handler) Escalate(c *gin.Context) {
	res, err := h.Complaints.Escalate(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "Lawsuit filed successfully",
		"complaint": res.Complaint,
		"lawsuitEmail": gin.H{
			"subject":   res.Notice.Subject,
			"reference": res.Notice.Reference,
			"delivered": res.Receipt.Success,
			"channel":   res.Receipt.Channel,
		},
		"procedure": res.Procedure,
	})
}

// LawsuitInfo handles GET /api/complaints/lawsuit-info.
func (h *Handler) LawsuitInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.Complaints.LawsuitProcedure())
}

// Departments handles GET /api/departments.
func (h *Handler) Departments(c *gin.Context) {
	c.JSON(http.StatusOK, h.Directory.Departments)
}
