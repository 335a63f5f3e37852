package live

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/wonny/trendlens/internal/contracts"
	"github.com/wonny/trendlens/internal/panel"
	"github.com/wonny/trendlens/pkg/logger"
)

const (
	// Ping/Pong settings
	pingInterval = 30 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	maxMessageSize = 4096
	sendBuffer     = 32
)

// Client message types
const (
	MsgView  = "view"  // start viewing a topic (supersedes the previous view)
	MsgLeave = "leave" // stop viewing
)

// Server message types
const (
	MsgHello   = "hello"
	MsgSection = "section"
	MsgDone    = "done"
	MsgError   = "error"
)

var errSuperseded = errors.New("view superseded")

// Streamer emits incremental section updates for a topic
type Streamer interface {
	Stream(ctx context.Context, id contracts.TopicID, emit func(panel.SectionUpdate) error) error
}

// ClientMessage is sent by the browser
type ClientMessage struct {
	Type    string            `json:"type"`
	TopicID contracts.TopicID `json:"topic_id"`
}

// ServerMessage is pushed to the browser
// 모든 메시지는 topic_id + generation으로 태깅 (클라이언트도 검증 가능)
type ServerMessage struct {
	Type       string               `json:"type"`
	SessionID  string               `json:"session_id,omitempty"`
	TopicID    contracts.TopicID    `json:"topic_id,omitempty"`
	Generation uint64               `json:"generation"`
	Update     *panel.SectionUpdate `json:"update,omitempty"`
	Error      string               `json:"error,omitempty"`
}

// Handler upgrades HTTP requests to evidence stream sessions
// ⭐ SSOT: 실시간 근거 스트림은 여기서만
type Handler struct {
	streamer  Streamer
	logger    *logger.Logger
	upgrader  websocket.Upgrader
	maxPerSec int
}

// NewHandler creates a websocket handler
func NewHandler(streamer Streamer, maxPerSec int, log *logger.Logger) *Handler {
	if maxPerSec <= 0 {
		maxPerSec = 5
	}
	return &Handler{
		streamer:  streamer,
		logger:    log,
		maxPerSec: maxPerSec,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	s := &session{
		id:       uuid.NewString(),
		conn:     conn,
		streamer: h.streamer,
		limiter:  rate.NewLimiter(rate.Limit(h.maxPerSec), h.maxPerSec),
		send:     make(chan ServerMessage, sendBuffer),
		done:     make(chan struct{}),
		gone:     make(chan struct{}),
		ctx:      ctx,
	}
	s.logger = h.logger.WithField("session_id", s.id)
	s.run()
}

// session is one websocket connection
// 단일 writer 고루틴만 conn에 쓰기
type session struct {
	id       string
	conn     *websocket.Conn
	streamer Streamer
	logger   *logger.Logger
	limiter  *rate.Limiter
	send     chan ServerMessage
	done     chan struct{}
	gone     chan struct{} // writer exited
	ctx      context.Context

	mu         sync.Mutex
	topicID    contracts.TopicID
	generation uint64
	cancel     context.CancelFunc
}

func (s *session) run() {
	s.logger.Debug("Evidence stream opened")

	go func() {
		defer close(s.gone)
		s.writeLoop()
	}()

	s.enqueue(ServerMessage{Type: MsgHello, SessionID: s.id})
	s.readLoop()

	s.stopView()
	close(s.done)
	<-s.gone
	s.conn.Close()

	s.logger.Debug("Evidence stream closed")
}

// readLoop handles inbound messages until the connection fails
func (s *session) readLoop() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.WithError(err).Warn("Evidence stream read failed")
			}
			return
		}

		if !s.limiter.Allow() {
			s.enqueue(ServerMessage{Type: MsgError, Error: "rate limited"})
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.enqueue(ServerMessage{Type: MsgError, Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case MsgView:
			if msg.TopicID == "" {
				s.enqueue(ServerMessage{Type: MsgError, Error: "topic_id required"})
				continue
			}
			s.startView(msg.TopicID)
		case MsgLeave:
			s.stopView()
		default:
			s.enqueue(ServerMessage{Type: MsgError, Error: "unknown message type"})
		}
	}
}

// startView supersedes the current view and streams the new topic
func (s *session) startView(id contracts.TopicID) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.generation++
	gen := s.generation
	s.topicID = id
	ctx, cancel := context.WithCancel(s.ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"topic_id":   id,
		"generation": gen,
	}).Debug("View started")

	go func() {
		defer cancel()

		err := s.streamer.Stream(ctx, id, func(u panel.SectionUpdate) error {
			return s.deliver(ServerMessage{Type: MsgSection, TopicID: id, Generation: gen, Update: &u})
		})

		switch {
		case err == nil:
			_ = s.deliver(ServerMessage{Type: MsgDone, TopicID: id, Generation: gen})
		case errors.Is(err, errSuperseded), ctx.Err() != nil:
			// 새 뷰로 교체됨: 조용히 종료
		default:
			s.logger.WithError(err).WithTopic(string(id)).Warn("Evidence stream failed")
			_ = s.deliver(ServerMessage{Type: MsgError, TopicID: id, Generation: gen, Error: err.Error()})
		}
	}()
}

// stopView cancels the current view without starting a new one
func (s *session) stopView() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.generation++
	s.topicID = ""
}

// current reports whether a message still belongs to the active view
func (s *session) current(id contracts.TopicID, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen && s.topicID == id
}

// deliver queues a view message unless the view has been superseded
func (s *session) deliver(msg ServerMessage) error {
	if !s.current(msg.TopicID, msg.Generation) {
		return errSuperseded
	}
	if !s.enqueue(msg) {
		return errSuperseded
	}
	return nil
}

// enqueue hands a message to the writer; false once the session is closing
func (s *session) enqueue(msg ServerMessage) bool {
	select {
	case s.send <- msg:
		return true
	case <-s.done:
		return false
	case <-s.gone:
		return false
	}
}

// writeLoop is the only goroutine writing to the connection
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-s.send:
			// 큐에 들어간 뒤 교체된 뷰의 메시지는 도착 시점에 폐기
			if msg.Generation != 0 && !s.current(msg.TopicID, msg.Generation) {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.WithError(err).Warn("Evidence stream write failed")
				s.conn.Close()
				return
			}

		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.conn.Close()
				return
			}
		}
	}
}
