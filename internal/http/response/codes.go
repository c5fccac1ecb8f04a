package response

// Envelope status codes
const (
	CodeOK              = 0
	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429
	CodeInternal        = 500
	CodeUpstream        = 502 // geocoder or another dependency failed
)

// IsServerFault codes the caller cannot fix by changing the request
func IsServerFault(code int) bool {
	return code >= CodeInternal
}
