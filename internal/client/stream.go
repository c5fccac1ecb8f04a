package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/parcelpal/internal/logger"
	"github.com/parcelpal/internal/realtime"

	"github.com/gorilla/websocket"
)

const (
	streamWriteWait = 10 * time.Second
	streamBuffer    = 64
)

// ErrStreamClosed write on a closed stream
var ErrStreamClosed = errors.New("stream closed")

// Stream one realtime websocket. Events is closed when the connection ends.
type Stream struct {
	conn    *websocket.Conn
	events  chan realtime.Event
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once

	mu  sync.Mutex
	err error
}

// OpenStream dials /api/v1/realtime with the current access token,
// refreshing once when the handshake is rejected
func (a *API) OpenStream(ctx context.Context) (*Stream, error) {
	token := a.accessToken()
	if token == "" {
		return nil, ErrUnauthorized
	}
	conn, err := a.dial(ctx, token)
	if errors.Is(err, websocket.ErrBadHandshake) && a.Tokens().RefreshToken != "" {
		if rerr := a.refreshAfter(ctx, token); rerr != nil {
			return nil, ErrUnauthorized
		}
		conn, err = a.dial(ctx, a.accessToken())
	}
	if errors.Is(err, websocket.ErrBadHandshake) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	s := &Stream{
		conn:   conn,
		events: make(chan realtime.Event, streamBuffer),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (a *API) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	endpoint := a.baseURL + apiPrefix + "/realtime"
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		endpoint = "wss://" + strings.TrimPrefix(endpoint, "https://")
	case strings.HasPrefix(endpoint, "http://"):
		endpoint = "ws://" + strings.TrimPrefix(endpoint, "http://")
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	if a.userAgent != "" {
		header.Set("User-Agent", a.userAgent)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if errors.Is(err, websocket.ErrBadHandshake) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return conn, nil
}

// Events pushed events, closed when the stream ends
func (s *Stream) Events() <-chan realtime.Event {
	return s.events
}

// Done closed when the stream ends
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Err why the stream ended; nil while open or after Close
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe adds topics; denied topics come back as error events
func (s *Stream) Subscribe(topics ...string) error {
	return s.send(realtime.Frame{Type: realtime.FrameSubscribe, Topics: topics})
}

// Unsubscribe removes topics
func (s *Stream) Unsubscribe(topics ...string) error {
	return s.send(realtime.Frame{Type: realtime.FrameUnsubscribe, Topics: topics})
}

// SendLocation reports the partner position for a delivery
func (s *Stream) SendLocation(update realtime.LocationUpdate) error {
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now().UTC()
	}
	raw, err := json.Marshal(update)
	if err != nil {
		return err
	}
	return s.send(realtime.Frame{Type: realtime.FrameLocationUpdate, Data: raw})
}

// SendTyping typing indicator for a chat
func (s *Stream) SendTyping(chatID uint, active bool) error {
	raw, err := json.Marshal(realtime.Typing{ChatID: chatID, Active: active})
	if err != nil {
		return err
	}
	return s.send(realtime.Frame{Type: realtime.FrameTyping, Data: raw})
}

// Close ends the stream; Events is closed once the reader notices
func (s *Stream) Close() error {
	s.once.Do(func() { close(s.done) })
	s.writeMu.Lock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	s.writeMu.Unlock()
	return s.conn.Close()
}

func (s *Stream) send(frame realtime.Frame) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := s.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return nil
}

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		var evt realtime.Event
		if err := s.conn.ReadJSON(&evt); err != nil {
			select {
			case <-s.done:
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Warnw("client_stream_read_failed", "error", err)
				}
				s.mu.Lock()
				s.err = err
				s.mu.Unlock()
				s.once.Do(func() { close(s.done) })
			}
			return
		}
		select {
		case s.events <- evt:
		case <-s.done:
			return
		}
	}
}
