package server

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"nlpservice/models"
)

// WSManager tracks WebSocket clients and fans job status updates out to
// them.
type WSManager struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	log        *slog.Logger
	mu         sync.Mutex
}

// NewWSManager creates a manager; Start launches its event loop.
func NewWSManager(log *slog.Logger) *WSManager {
	return &WSManager{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		log:        log,
	}
}

// Start begins the event loop that serializes all client map access.
func (m *WSManager) Start() {
	go func() {
		for {
			select {
			case client := <-m.register:
				m.mu.Lock()
				m.clients[client] = true
				total := len(m.clients)
				m.mu.Unlock()
				m.log.Debug("websocket client connected", "clients", total)
			case client := <-m.unregister:
				m.mu.Lock()
				if _, ok := m.clients[client]; ok {
					delete(m.clients, client)
					client.Close()
				}
				total := len(m.clients)
				m.mu.Unlock()
				m.log.Debug("websocket client disconnected", "clients", total)
			case message := <-m.broadcast:
				m.mu.Lock()
				for client := range m.clients {
					if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
						m.log.Debug("dropping websocket client", "error", err)
						client.Close()
						delete(m.clients, client)
					}
				}
				m.mu.Unlock()
			}
		}
	}()
}

// BroadcastJobUpdate pushes one job status change to every client. The
// send is non-blocking: when the feed buffer is full the update is
// dropped instead of stalling the caller.
func (m *WSManager) BroadcastJobUpdate(update models.JobUpdate) {
	payload := map[string]any{
		"type":      "job_update",
		"job_id":    update.JobID,
		"status":    update.Status,
		"timestamp": update.Timestamp,
	}
	if update.Status == models.StatusFailed && update.Error != "" {
		payload["error"] = update.Error
	}

	message, err := json.Marshal(payload)
	if err != nil {
		m.log.Error("marshal job update", "error", err)
		return
	}

	select {
	case m.broadcast <- message:
	default:
	}
}

// RegisterClient adds a client to the feed.
func (m *WSManager) RegisterClient(conn *websocket.Conn) {
	m.register <- conn
}

// UnregisterClient removes a client and closes its connection.
func (m *WSManager) UnregisterClient(conn *websocket.Conn) {
	m.unregister <- conn
}
