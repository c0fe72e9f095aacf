package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/middleware"
	"provably-fair-backend/internal/models"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler streams audit entries to connected operators.
type WebSocketHandler struct {
	hub *WebSocketHub
	log *slog.Logger
}

type WebSocketHub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
	log        *slog.Logger
}

type Client struct {
	OperatorID string
	Conn       *websocket.Conn
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`

	// to limits delivery to one client; nil means everyone
	to *Client
}

func NewWebSocketHandler(log *slog.Logger) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
		log:        log,
	}

	go hub.run()

	return &WebSocketHandler{
		hub: hub,
		log: log,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade to websocket", sl.Err(err))
		return
	}

	client := &Client{
		OperatorID: c.GetString(middleware.ContextOperatorID),
		Conn:       conn,
	}

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket error", sl.Err(err))
			}
			break
		}

		if msg.Type == "PING" {
			h.hub.broadcast <- &Message{
				Type: "PONG",
				Data: gin.H{"timestamp": time.Now().Unix()},
				to:   client,
			}
		}
	}
}

// BroadcastAudit queues entry for every connected client. When the queue is
// full the entry is dropped from the live feed; the store keeps it.
func (h *WebSocketHandler) BroadcastAudit(entry models.AuditEntry) {
	msg := &Message{
		Type: "AUDIT_ENTRY",
		Data: entry,
	}

	select {
	case h.hub.broadcast <- msg:
	default:
		h.log.Warn("audit feed backlog full, dropping live entry", slog.Int64("sequence", entry.Sequence))
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client] = struct{}{}
			hub.log.Debug("client registered", sl.String("operator_id", client.OperatorID))

		case client := <-hub.unregister:
			if _, ok := hub.clients[client]; ok {
				delete(hub.clients, client)
				hub.log.Debug("client unregistered", sl.String("operator_id", client.OperatorID))
			}

		case message := <-hub.broadcast:
			hub.broadcastMessage(message)
		}
	}
}

func (hub *WebSocketHub) broadcastMessage(message *Message) {
	for client := range hub.clients {
		if message.to != nil && message.to != client {
			continue
		}
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteJSON(message); err != nil {
			hub.log.Debug("dropping websocket client", sl.Err(err))
			delete(hub.clients, client)
			client.Conn.Close()
		}
	}
}
