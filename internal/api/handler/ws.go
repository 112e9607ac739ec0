package handler

import (
	"net/http"

	"civicshield/backend/internal/models"
	"civicshield/backend/internal/statushub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS middleware in front of the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StatusStream handles GET /ws/status. With ?complaintId= it follows one
// complaint the actor may view; without it, only staff may follow every
// complaint.
func (h *Handler) StatusStream(c *gin.Context) {
	actor := actorFrom(c)
	complaintID := c.Query("complaintId")

	if complaintID != "" {
		if _, err := h.Complaints.Get(c.Request.Context(), actor, complaintID); err != nil {
			h.writeError(c, err)
			return
		}
	} else if actor.Role == models.RoleUser {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "complaintId is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := statushub.NewWebSocketClient(h.Hub, conn, uuid.NewString(), complaintID, h.log)
	if !h.Hub.Register(client) {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		conn.Close()
		return
	}
	client.Run()
}
