package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/parcelpal/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client frame types
const (
	FrameSubscribe      = "subscribe"
	FrameUnsubscribe    = "unsubscribe"
	FrameLocationUpdate = "location-update"
	FrameTyping         = "typing"
	FramePing           = "ping"
)

// Frame client to server message
type Frame struct {
	Type   string          `json:"type"`
	Topics []string        `json:"topics,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Gatekeeper authorizes subscriptions and accepts partner positions
type Gatekeeper interface {
	CanSubscribe(ctx context.Context, userID uint, topic string) bool
	OnLocation(ctx context.Context, userID uint, update LocationUpdate) error
}

// Upgrader shared websocket upgrader
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type session struct {
	hub     *Hub
	gate    Gatekeeper
	conn    *websocket.Conn
	userID  uint
	sub     *Subscription
	control chan Event
	done    chan struct{}
}

// Serve runs a websocket session for userID and returns when the peer goes away
// or ctx ends. The session always listens on the user's own notification topic.
func Serve(ctx context.Context, hub *Hub, gate Gatekeeper, conn *websocket.Conn, userID uint) {
	s := &session{
		hub:     hub,
		gate:    gate,
		conn:    conn,
		userID:  userID,
		sub:     hub.Subscribe(UserTopic(userID)),
		control: make(chan Event, 16),
		done:    make(chan struct{}),
	}
	logger.Debugw("realtime_session_open", "user_id", userID)
	go s.writePump()
	go s.closeOnDone(ctx)
	s.readPump(ctx)
	logger.Debugw("realtime_session_closed", "user_id", userID)
}

// closeOnDone sends a going-away close frame and drops the connection once ctx ends,
// which unblocks readPump
func (s *session) closeOnDone(ctx context.Context) {
	select {
	case <-ctx.Done():
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = s.conn.Close()
	case <-s.done:
	}
}

func (s *session) readPump(ctx context.Context) {
	defer func() {
		s.sub.Close()
		close(s.done)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Warnw("realtime_read_failed", "user_id", s.userID, "error", err)
			}
			return
		}
		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			s.reply(TypeError, "", map[string]string{"error": "invalid frame"})
			continue
		}
		s.handle(ctx, frame)
	}
}

func (s *session) handle(ctx context.Context, frame Frame) {
	switch frame.Type {
	case FrameSubscribe:
		granted := make([]string, 0, len(frame.Topics))
		for _, t := range frame.Topics {
			if _, _, err := ParseTopic(t); err != nil || !s.gate.CanSubscribe(ctx, s.userID, t) {
				s.reply(TypeError, t, map[string]string{"error": "subscription denied"})
				continue
			}
			granted = append(granted, t)
		}
		s.sub.Add(granted...)
		s.reply(TypeSubscribed, "", map[string][]string{"topics": granted})
	case FrameUnsubscribe:
		s.sub.Remove(frame.Topics...)
		s.reply(TypeUnsubscribed, "", map[string][]string{"topics": frame.Topics})
	case FrameLocationUpdate:
		var update LocationUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			s.reply(TypeError, "", map[string]string{"error": "invalid location"})
			return
		}
		if err := s.gate.OnLocation(ctx, s.userID, update); err != nil {
			s.reply(TypeError, LocationTopic(update.DeliveryID), map[string]string{"error": err.Error()})
		}
	case FrameTyping:
		var typing Typing
		if err := json.Unmarshal(frame.Data, &typing); err != nil || typing.ChatID == 0 {
			return
		}
		topic := ChatTopic(typing.ChatID)
		if !s.gate.CanSubscribe(ctx, s.userID, topic) {
			return
		}
		typing.UserID = s.userID
		s.hub.Emit(ctx, TypeTyping, topic, typing)
	case FramePing:
		s.reply(TypePong, "", nil)
	default:
		s.reply(TypeError, "", map[string]string{"error": "unknown frame type"})
	}
}

func (s *session) reply(eventType, topic string, data interface{}) {
	evt, err := NewEvent(eventType, topic, data)
	if err != nil {
		return
	}
	select {
	case s.control <- evt:
	default:
	}
}

func (s *session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case evt, ok := <-s.sub.C():
			if !ok {
				_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.write(evt); err != nil {
				return
			}
		case evt := <-s.control:
			if err := s.write(evt); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) write(evt Event) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(evt)
}
