// Package events pushes auth and balance state changes to every connected
// shell of a player, so logging out or reconciling a balance in one tab is
// reflected in the others without a reload.
package events

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Envelope is one pushed event.
type Envelope struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
}

type message struct {
	playerID uuid.UUID
	data     []byte
}

// Hub maintains the set of connected clients and routes events to the
// clients of the addressed player.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan message
	register   chan *Client
	unregister chan *Client
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
		case msg := <-h.broadcast:
			for client := range h.clients {
				if client.playerID != msg.playerID {
					continue
				}
				select {
				case client.send <- msg.data:
				default:
					// Slow client; drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// Broadcast queues an event for every connection of a player.
func (h *Hub) Broadcast(playerID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(Envelope{Event: event, Payload: payload, SentAt: time.Now().UTC()})
	if err != nil {
		h.log.Warn("failed to marshal event", "event", event, "error", err)
		return
	}
	select {
	case h.broadcast <- message{playerID: playerID, data: data}:
	default:
		h.log.Warn("event channel full, dropping event", "event", event, "player_id", playerID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades an authenticated request to a push connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, playerID uuid.UUID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "player_id", playerID, "error", err)
		return
	}

	client := &Client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, 64),
		playerID: playerID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}
