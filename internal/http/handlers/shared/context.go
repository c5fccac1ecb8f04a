package shared

import (
	"strings"

	"github.com/parcelpal/internal/http/response"

	"github.com/gin-gonic/gin"
)

// CurrentUserID the account id set by the auth middleware; answers 401 itself when absent
func CurrentUserID(c *gin.Context) (uint, bool) {
	value, exists := c.Get("user_id")
	if !exists {
		RespondError(c, response.CodeUnauthorized, "error.unauthorized", nil)
		return 0, false
	}
	id, ok := value.(uint)
	if !ok {
		RespondError(c, response.CodeInternal, "error.user_id_type_invalid", nil)
		return 0, false
	}
	if id == 0 {
		RespondError(c, response.CodeUnauthorized, "error.user_id_invalid", nil)
		return 0, false
	}
	return id, true
}

// BearerToken token from an Authorization header. msgKey names the
// problem when the header is missing or not a Bearer credential.
func BearerToken(header string) (token, msgKey string) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", "error.auth_header_missing"
	}
	scheme, rest, found := strings.Cut(header, " ")
	token = strings.TrimSpace(rest)
	if !found || scheme != "Bearer" || token == "" {
		return "", "error.auth_header_invalid"
	}
	return token, ""
}
