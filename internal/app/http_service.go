package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// HTTPService serves the api. Request contexts derive from a base context
// cancelled on Stop: Shutdown does not wait for hijacked websocket
// connections, so cancelling is what tells realtime sessions to close.
type HTTPService struct {
	server     *http.Server
	baseCtx    context.Context
	cancelBase context.CancelFunc
}

// NewHTTPService wraps handler on addr
func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	baseCtx, cancel := context.WithCancel(context.Background())
	return &HTTPService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
		baseCtx:    baseCtx,
		cancelBase: cancel,
	}
}

// Name service name
func (s *HTTPService) Name() string {
	return "http"
}

// Start blocks until the server is shut down
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("http server not initialized")
	}
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes realtime sockets and drains in-flight requests
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.cancelBase()
	return s.server.Shutdown(ctx)
}
