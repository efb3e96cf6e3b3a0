package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pawmart/wallet-backend/internal/models"
	"github.com/pawmart/wallet-backend/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes wallet and hold events to connected clients, so
// the storefront does not have to poll wallet or hold status endpoints.
type WebSocketHandler struct {
	redisService *services.RedisService
	hub          *WebSocketHub
}

type WebSocketHub struct {
	clients    map[int64]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

// Client owns its connection's writes: everything leaving the socket goes
// through the send channel and out via writePump, the connection's single
// writer. The reader goroutine and the hub only ever enqueue.
type Client struct {
	UserID int64
	Conn   *websocket.Conn
	send   chan *Message
}

type Message struct {
	Type   string      `json:"type"`
	UserID int64       `json:"user_id,omitempty"`
	Data   interface{} `json:"data"`
}

func NewWebSocketHandler(redisService *services.RedisService) *WebSocketHandler {
	hub := &WebSocketHub{
		clients:    make(map[int64]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 100),
	}

	go hub.run()

	return &WebSocketHandler{
		redisService: redisService,
		hub:          hub,
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("failed to upgrade to websocket")
		return
	}

	client := &Client{
		UserID: userID,
		Conn:   conn,
		send:   make(chan *Message, 16),
	}

	go client.writePump()

	h.hub.register <- client

	defer func() {
		h.hub.unregister <- client
		conn.Close()
	}()

	h.sendWallet(c, client)

	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).Debug("websocket read error")
			}
			break
		}

		if msg.Type == "PING" {
			client.deliver(&Message{
				Type: "PONG",
				Data: gin.H{"timestamp": time.Now().Unix()},
			})
		}
	}
}

func (h *WebSocketHandler) sendWallet(c *gin.Context, client *Client) {
	wallet, err := h.redisService.GetOrCreateWallet(c.Request.Context(), client.UserID)
	if err != nil {
		logrus.WithError(err).Warn("failed to get wallet for websocket")
		return
	}

	client.deliver(&Message{
		Type: "WALLET_UPDATE",
		Data: wallet.ToBalanceResponse(),
	})
}

// PublishWallet pushes a fresh wallet snapshot to the user's connection,
// tagged with the transaction that caused it.
func (h *WebSocketHandler) PublishWallet(wallet *models.Wallet, record *models.Transaction) {
	data := gin.H{"wallet": wallet.ToBalanceResponse()}
	if record != nil {
		data["transaction"] = record
	}
	h.hub.broadcast <- &Message{
		Type:   "WALLET_UPDATE",
		UserID: wallet.UserID,
		Data:   data,
	}
}

// PublishHold pushes a hold state transition to the user's connection.
func (h *WebSocketHandler) PublishHold(hold *models.OrderHold) {
	h.hub.broadcast <- &Message{
		Type:   "HOLD_UPDATE",
		UserID: hold.UserID,
		Data:   hold,
	}
}

func (c *Client) writePump() {
	for msg := range c.send {
		if err := c.Conn.WriteJSON(msg); err != nil {
			logrus.WithError(err).Debug("websocket write error")
		}
	}
}

// deliver enqueues without blocking; a client that cannot drain its buffer
// misses messages rather than stalling the hub or the reader.
func (c *Client) deliver(msg *Message) {
	select {
	case c.send <- msg:
	default:
		logrus.WithField("user_id", c.UserID).Debug("websocket send buffer full, dropping message")
	}
}

func (hub *WebSocketHub) run() {
	for {
		select {
		case client := <-hub.register:
			hub.clients[client.UserID] = client
			logrus.WithField("user_id", client.UserID).Debug("websocket client registered")

		case client := <-hub.unregister:
			if current, ok := hub.clients[client.UserID]; ok && current == client {
				delete(hub.clients, client.UserID)
				logrus.WithField("user_id", client.UserID).Debug("websocket client unregistered")
			}
			close(client.send)

		case message := <-hub.broadcast:
			if message.UserID != 0 {
				if client, ok := hub.clients[message.UserID]; ok {
					client.deliver(message)
				}
			} else {
				for _, client := range hub.clients {
					client.deliver(message)
				}
			}
		}
	}
}
