package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketscout/internal/alerting"
	"marketscout/internal/logger"
	"marketscout/internal/models"
)

const clientBuffer = 10

// MessageSource yields pub/sub messages. *cache.RedisSubscriber satisfies it.
type MessageSource interface {
	ReceiveMessage(ctx context.Context) (*redis.Message, error)
}

// Hub fans alerts out to the live SSE and WebSocket connections of their user.
type Hub struct {
	mu      sync.Mutex
	clients map[int64]map[chan models.Alert]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]map[chan models.Alert]struct{})}
}

func (h *Hub) subscribe(userID int64) chan models.Alert {
	ch := make(chan models.Alert, clientBuffer)

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[chan models.Alert]struct{})
	}
	h.clients[userID][ch] = struct{}{}
	total := h.countLocked()
	h.mu.Unlock()

	logger.Log.Info("Alert stream client connected", zap.Int64("user_id", userID), zap.Int("total_clients", total))
	return ch
}

func (h *Hub) unsubscribe(userID int64, ch chan models.Alert) {
	h.mu.Lock()
	delete(h.clients[userID], ch)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
	total := h.countLocked()
	h.mu.Unlock()

	logger.Log.Info("Alert stream client disconnected", zap.Int64("user_id", userID), zap.Int("total_clients", total))
}

func (h *Hub) countLocked() int {
	n := 0
	for _, chans := range h.clients {
		n += len(chans)
	}
	return n
}

// Broadcast delivers ev to every connection of its user. Slow clients drop the alert.
func (h *Hub) Broadcast(ev alerting.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.clients[ev.UserID] {
		select {
		case ch <- ev.Alert:
		default:
			logger.Log.Warn("Alert dropped due to slow client", zap.Int64("user_id", ev.UserID))
		}
	}
}

// Publish delivers an encoded alerting.Event straight to this hub's connections.
// It stands in for Redis pub/sub when a single instance runs without Redis.
func (h *Hub) Publish(_ context.Context, _, message string) error {
	ev, err := alerting.DecodeEvent(message)
	if err != nil {
		return err
	}
	h.Broadcast(ev)
	return nil
}

// Run relays alerts from src until ctx is cancelled.
func (h *Hub) Run(ctx context.Context, src MessageSource) error {
	logger.Log.Info("Starting to listen for alerts from Redis")

	for {
		msg, err := src.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Log.Error("Error receiving message from Redis", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		ev, err := alerting.DecodeEvent(msg.Payload)
		if err != nil {
			logger.Log.Error("Error unmarshaling alert message", zap.Error(err))
			continue
		}
		h.Broadcast(ev)
	}
}

// StreamAlerts serves the current user's new alerts as server-sent events.
func (s *Server) StreamAlerts(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// The stream outlives the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	user := currentUser(r)
	ch := s.hub.subscribe(user.ID)
	defer s.hub.unsubscribe(user.ID, ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(s.settings.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case alert := <-ch:
			data, err := json.Marshal(alert)
			if err != nil {
				logger.Log.Error("Failed to marshal alert data", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: alert\ndata: %s\n\n", alert.ID, data)
			flusher.Flush()
		}
	}
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsMaxMessage = 512
)

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(s.settings.AllowedOrigins))
	allowAll := false
	for _, o := range s.settings.AllowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowAll {
				return true
			}
			if _, ok := allowed[origin]; ok {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

// AlertsWebSocket pushes the current user's new alerts as JSON text frames.
func (s *Server) AlertsWebSocket(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warn("WebSocket upgrade failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	defer conn.Close()

	ch := s.hub.subscribe(user.ID)
	defer s.hub.unsubscribe(user.ID, ch)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Clients only send control frames; reading keeps pongs and close frames flowing.
	conn.SetReadLimit(wsMaxMessage)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(s.settings.Heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(wsWriteWait))
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case alert := <-ch:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(alert); err != nil {
				logger.Log.Warn("WebSocket write failed", zap.Int64("user_id", user.ID), zap.Error(err))
				return
			}
		}
	}
}
