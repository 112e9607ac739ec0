// Package handler exposes the complaint lifecycle over HTTP. Handlers only
// translate requests into engine calls and engine errors into status codes.
package handler

import (
	"errors"
	"net/http"

	"civicshield/backend/internal/complaint"
	"civicshield/backend/internal/config"
	"civicshield/backend/internal/logger"
	"civicshield/backend/internal/statushub"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler holds the collaborators of the HTTP layer.
type Handler struct {
	Complaints *complaint.Service
	Hub        *statushub.Hub
	Directory  *config.Directory
	Auth       *Authenticator
	log        *zap.Logger
}

func NewHandler(svc *complaint.Service, hub *statushub.Hub, dir *config.Directory, auth *Authenticator, log *zap.Logger) *Handler {
	if dir == nil {
		dir = config.DefaultDirectory()
	}
	return &Handler{
		Complaints: svc,
		Hub:        hub,
		Directory:  dir,
		Auth:       auth,
		log:        logger.OrNop(log).Named("http"),
	}
}

// writeError maps engine errors to HTTP status codes.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Server error"

	var (
		ve *complaint.ValidationError
		ae *complaint.AuthorizationError
		te *complaint.InvalidTransitionError
		ne *complaint.NotFoundError
	)
	switch {
	case errors.As(err, &ve):
		status, message = http.StatusBadRequest, ve.Error()
	case errors.As(err, &ae):
		status, message = http.StatusForbidden, "Not authorized"
	case errors.As(err, &ne):
		status, message = http.StatusNotFound, "Complaint not found"
	case errors.As(err, &te):
		status, message = http.StatusConflict, te.Error()
	case errors.Is(err, complaint.ErrConflict):
		status, message = http.StatusConflict, "Complaint was modified concurrently, please retry"
	default:
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}
