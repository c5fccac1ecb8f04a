package public

import (
	"strings"

	handlershared "github.com/parcelpal/internal/http/handlers/shared"
	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/realtime"

	"github.com/gin-gonic/gin"
)

// Realtime upgrades to the websocket push channel; browsers cannot set
// headers on the handshake so the access token comes in ?token=
func (h *Handler) Realtime(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		var msgKey string
		if token, msgKey = handlershared.BearerToken(c.GetHeader("Authorization")); msgKey != "" {
			respondError(c, response.CodeUnauthorized, msgKey, nil)
			return
		}
	}
	claims, err := h.AuthService.Authenticate(c.Request.Context(), token)
	if err != nil {
		respondWithMappedError(c, err, authErrorRules, response.CodeUnauthorized, "error.token_invalid")
		return
	}
	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		requestLog(c).Warnw("realtime_upgrade_failed", "user_id", claims.UserID, "error", err)
		return
	}
	realtime.Serve(c.Request.Context(), h.Hub, h.RealtimeGate, conn, claims.UserID)
}
