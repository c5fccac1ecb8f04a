package public

import "github.com/parcelpal/internal/provider"

// Handler user facing API handlers
type Handler struct {
	*provider.Container
}

// New creates the handler
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
