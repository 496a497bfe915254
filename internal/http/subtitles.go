package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ai-interview-capture-service/internal/observability/logging"
	"ai-interview-capture-service/internal/service/transcription"
)

const writeWait = 5 * time.Second

// SubtitleEvent is the message pushed to subtitle clients on every
// transcript update of the answer in progress.
type SubtitleEvent struct {
	Finalized string `json:"finalized"`
	Interim   string `json:"interim"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Hub fans transcript updates out to WebSocket clients.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan SubtitleEvent
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	log        zerolog.Logger
}

// NewHub creates a hub. Run must be started for it to deliver anything.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan SubtitleEvent, 100),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		log:        logging.WithComponent("subtitles"),
	}
}

// Publish queues a transcript update. Updates are dropped while the queue
// is full; the next one carries the complete text anyway.
func (h *Hub) Publish(s transcription.Snapshot) {
	ev := SubtitleEvent{
		Finalized: s.Finalized,
		Interim:   s.Interim,
		Text:      s.Text(),
		Timestamp: time.Now().UnixMilli(),
	}
	select {
	case h.broadcast <- ev:
	default:
		h.log.Debug().Msg("Subtitle queue full, dropping update")
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Run delivers updates until ctx ends, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return

		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Int("clients", n).Msg("Subtitle client connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info().Int("clients", n).Msg("Subtitle client disconnected")

		case ev := <-h.broadcast:
			h.mu.Lock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteJSON(ev); err != nil {
					h.log.Warn().Err(err).Msg("Subtitle write failed")
					conn.Close()
					delete(h.clients, conn)
				}
			}
			h.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	// The agent only listens locally for the candidate's own browser.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	select {
	case h.register <- conn:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	go func() {
		defer func() {
			select {
			case h.unregister <- conn:
			case <-time.After(writeWait):
				conn.Close()
			}
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
