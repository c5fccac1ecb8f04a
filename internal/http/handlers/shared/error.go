package shared

import (
	"github.com/parcelpal/internal/http/response"
	"github.com/parcelpal/internal/i18n"
	"github.com/parcelpal/internal/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog sugared logger carrying request_id and user_id when known
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	var kv []interface{}
	if id := c.GetString("request_id"); id != "" {
		kv = append(kv, "request_id", id)
	}
	if uid, ok := c.Get("user_id"); ok {
		kv = append(kv, "user_id", uid)
	}
	if len(kv) == 0 {
		return logger.S()
	}
	return logger.SW(kv...)
}

// RespondError translated error envelope. err is logged, never sent: server
// faults at error level, rejected requests at warn.
func RespondError(c *gin.Context, code int, key string, err error) {
	msg := i18n.T(i18n.ResolveLocale(c), key)
	if err != nil {
		log := RequestLog(c)
		if response.IsServerFault(code) {
			log.Errorw("handler_error", "code", code, "message", msg, "error", err)
		} else {
			log.Warnw("handler_rejected", "code", code, "message", msg, "error", err)
		}
	}
	response.Error(c, code, msg)
}
