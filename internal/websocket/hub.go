package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/storage"
)

// MailboxLookup 用于确认订阅的邮箱仍然有效
type MailboxLookup interface {
	GetMailboxByAddress(ctx context.Context, address string) (*domain.Mailbox, error)
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 64
)

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				return true
			}
			for _, origin := range allowedOrigins {
				if origin == "*" || origin == requestOrigin {
					return true
				}
			}
			return false
		},
	}
}

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewEmail    MessageType = "new_email"
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// EmailSummary 新邮件通知中携带的邮件摘要，不含正文
type EmailSummary struct {
	ID             string `json:"id"`
	MailboxID      string `json:"mailboxId"`
	FromAddress    string `json:"fromAddress"`
	FromName       string `json:"fromName"`
	ToAddress      string `json:"toAddress"`
	Subject        string `json:"subject"`
	ReceivedAt     int64  `json:"receivedAt"`
	IsRead         bool   `json:"isRead"`
	HasAttachments bool   `json:"hasAttachments"`
}

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType   `json:"type"`
	Address   string        `json:"address,omitempty"`
	Email     *EmailSummary `json:"email,omitempty"`
	Error     string        `json:"error,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// Client 代表一个WebSocket客户端连接
type Client struct {
	ID        string
	conn      *websocket.Conn
	send      chan []byte
	hub       *Hub
	addresses map[string]struct{} // 订阅的邮箱地址，只由 Hub.Run 修改
	log       *zap.Logger
}

// subscription 由读协程提交，统一在 Hub.Run 中处理，send 通道只在 Run 中写入和关闭
type subscription struct {
	client  *Client
	address string
	add     bool
	errMsg  string
}

// Hub 管理所有WebSocket连接，按邮箱地址分发新邮件通知
type Hub struct {
	clients        map[string]*Client
	addresses      map[string]map[string]*Client // address -> clientID -> Client
	register       chan *Client
	unregister     chan *Client
	subscriptions  chan subscription
	broadcast      chan *Message
	lookup         MailboxLookup
	allowedOrigins []string
	log            *zap.Logger

	mu      sync.RWMutex
	stopped bool
	done    chan struct{}
}

// NewHub 创建WebSocket Hub
func NewHub(lookup MailboxLookup, allowedOrigins []string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		clients:        make(map[string]*Client),
		addresses:      make(map[string]map[string]*Client),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		subscriptions:  make(chan subscription),
		broadcast:      make(chan *Message, 256),
		lookup:         lookup,
		allowedOrigins: allowedOrigins,
		log:            log,
		done:           make(chan struct{}),
	}
}

// Run 启动Hub，ctx 结束时关闭所有连接
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			h.mu.Unlock()
			h.closeAllClients()
			h.log.Info("websocket hub stopped")
			return

		case client := <-h.register:
			h.clients[client.ID] = client
			for address := range client.addresses {
				h.subscribe(client, address)
			}
			h.log.Debug("client registered", zap.String("id", client.ID))

		case client := <-h.unregister:
			if _, ok := h.clients[client.ID]; ok {
				for address := range client.addresses {
					h.unsubscribe(client, address)
				}
				delete(h.clients, client.ID)
				close(client.send)
				h.log.Debug("client unregistered", zap.String("id", client.ID))
			}

		case sub := <-h.subscriptions:
			if _, ok := h.clients[sub.client.ID]; !ok {
				continue
			}
			switch {
			case sub.errMsg != "":
				sub.client.sendMessage(&Message{Type: MessageTypeError, Error: sub.errMsg, Timestamp: time.Now().Unix()})
			case sub.add:
				h.subscribe(sub.client, sub.address)
			default:
				h.unsubscribe(sub.client, sub.address)
			}

		case msg := <-h.broadcast:
			h.broadcastToAddress(msg)
		}
	}
}

// NotifyNewEmail 通知订阅了该地址的客户端。队列满时丢弃通知，不阻塞调用方。
func (h *Hub) NotifyNewEmail(address string, email *domain.Email) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.stopped {
		return
	}

	msg := &Message{
		Type:    MessageTypeNewEmail,
		Address: address,
		Email: &EmailSummary{
			ID:             email.ID,
			MailboxID:      email.MailboxID,
			FromAddress:    email.FromAddress,
			FromName:       email.FromName,
			ToAddress:      email.ToAddress,
			Subject:        email.Subject,
			ReceivedAt:     email.ReceivedAt.Unix(),
			IsRead:         email.IsRead,
			HasAttachments: email.HasAttachments,
		},
		Timestamp: time.Now().Unix(),
	}

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("notification queue full, dropping", zap.String("address", address))
	}
}

// Subscribers 返回订阅某地址的客户端数量
func (h *Hub) Subscribers(address string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.addresses[address])
}

func (h *Hub) subscribe(c *Client, address string) {
	c.addresses[address] = struct{}{}

	h.mu.Lock()
	if h.addresses[address] == nil {
		h.addresses[address] = make(map[string]*Client)
	}
	h.addresses[address][c.ID] = c
	h.mu.Unlock()

	c.sendMessage(&Message{Type: MessageTypeSubscribed, Address: address, Timestamp: time.Now().Unix()})
}

func (h *Hub) unsubscribe(c *Client, address string) {
	delete(c.addresses, address)

	h.mu.Lock()
	if clients, ok := h.addresses[address]; ok {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(h.addresses, address)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) broadcastToAddress(msg *Message) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.addresses[msg.Address]))
	for _, c := range h.addresses[msg.Address] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	for _, client := range clients {
		select {
		case client.send <- data:
		default:
			h.log.Warn("client channel blocked, skipping", zap.String("clientID", client.ID))
		}
	}
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.addresses = make(map[string]map[string]*Client)
}

// HandleWebSocket 处理 GET /api/ws?address=<addr>
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	upgrader := upgraderFactory(hub.allowedOrigins)

	return func(c *gin.Context) {
		address := domain.NormalizeAddress(c.Query("address"))
		if address == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "address is required"})
			return
		}

		if _, err := hub.lookup.GetMailboxByAddress(c.Request.Context(), address); err != nil {
			if errors.Is(err, storage.ErrMailboxNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "mailbox not found"})
				return
			}
			hub.log.Error("failed to look up mailbox", zap.String("address", address), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal server error"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("failed to upgrade connection",
				zap.Error(err),
				zap.String("origin", c.Request.Header.Get("Origin")),
				zap.String("remote_addr", c.ClientIP()))
			return
		}

		client := &Client{
			ID:        uuid.NewString(),
			conn:      conn,
			send:      make(chan []byte, sendBufferSize),
			hub:       hub,
			addresses: map[string]struct{}{address: {}},
			log:       hub.log,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			_ = conn.Close()
			return
		}

		go client.writePump()
		go client.readPump()
	}
}

// readPump 处理客户端消息
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read error", zap.Error(err))
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump 发送消息给客户端
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理订阅切换，新地址同样需要是有效邮箱
func (c *Client) handleMessage(msg *Message) {
	address := domain.NormalizeAddress(msg.Address)

	switch msg.Type {
	case MessageTypeSubscribe:
		if address == "" {
			c.hub.enqueue(subscription{client: c, errMsg: "address is required"})
			return
		}
		if _, err := c.hub.lookup.GetMailboxByAddress(context.Background(), address); err != nil {
			c.hub.enqueue(subscription{client: c, errMsg: "mailbox not found"})
			return
		}
		c.hub.enqueue(subscription{client: c, address: address, add: true})
	case MessageTypeUnsubscribe:
		c.hub.enqueue(subscription{client: c, address: address})
	default:
		c.log.Debug("unknown message type", zap.String("type", string(msg.Type)))
	}
}

func (h *Hub) enqueue(sub subscription) {
	select {
	case h.subscriptions <- sub:
	case <-h.done:
	}
}

// sendMessage 只能在 Hub.Run 中调用
func (c *Client) sendMessage(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error("failed to marshal message", zap.Error(err))
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn("client channel blocked", zap.String("clientID", c.ID))
	}
}
