package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypermarket/pkg/app/core/market"
)

// ChannelEvents carries every executed block
const ChannelEvents = "events"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
	sendBuffer = 256
)

// AssetChannel names the channel of txs touching key
func AssetChannel(key market.Key) string {
	return fmt.Sprintf("asset:%s:%s", key.Collection.Hex(), key.Instance)
}

// normalizeChannel checksums the address of an asset channel so clients
// may subscribe with any hex casing
func normalizeChannel(channel string) string {
	parts := strings.SplitN(channel, ":", 3)
	if len(parts) != 3 || parts[0] != "asset" || !common.IsHexAddress(parts[1]) {
		return channel
	}
	return AssetChannel(market.Key{Collection: common.HexToAddress(parts[1]), Instance: parts[2]})
}

type envelope struct {
	channel string
	client  *Client // direct reply when set
	data    []byte
}

// Hub maintains active WebSocket connections and fans published
// messages out to subscribed clients. All client bookkeeping happens on
// the Run goroutine.
type Hub struct {
	clients    map[*Client]bool
	publish    chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *zap.SugaredLogger

	mu    sync.RWMutex // guards count
	count int
}

// NewHub creates a new WebSocket hub
func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		publish:    make(chan envelope, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop; it returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return

		case client := <-h.register:
			h.clients[client] = true
			h.setCount()
			h.log.Debugw("ws_connected", "client", client.id, "total", len(h.clients))

		case client := <-h.unregister:
			if h.clients[client] {
				h.drop(client)
				h.log.Debugw("ws_disconnected", "client", client.id, "total", len(h.clients))
			}

		case msg := <-h.publish:
			if msg.client != nil {
				if h.clients[msg.client] {
					h.deliver(msg.client, msg.data)
				}
				continue
			}
			for client := range h.clients {
				if client.IsSubscribed(msg.channel) {
					h.deliver(client, msg.data)
				}
			}
		}
	}
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		// Client send buffer full, disconnect
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.mu.Lock()
	h.count = len(h.clients)
	h.mu.Unlock()
}

// Clients is the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// BroadcastToChannel queues msg for every client subscribed to channel.
// It never blocks: when the hub is backed up the message is dropped.
func (h *Hub) BroadcastToChannel(channel string, msg WSMessage) {
	msg.Channel = channel
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Warnw("ws_marshal_failed", "channel", channel, "err", err)
		return
	}
	select {
	case h.publish <- envelope{channel: channel, data: data}:
	default:
		h.log.Warnw("ws_publish_dropped", "channel", channel)
	}
}

// Client represents a WebSocket connection
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	// Subscribed channels
	subscriptions map[string]bool
	subsMu        sync.RWMutex
}

// IsSubscribed checks if client is subscribed to a channel
func (c *Client) IsSubscribed(channel string) bool {
	c.subsMu.RLock()
	defer c.subsMu.RUnlock()
	return c.subscriptions[channel]
}

// Subscribe adds channel subscriptions
func (c *Client) Subscribe(channels ...string) []string {
	out := make([]string, 0, len(channels))
	c.subsMu.Lock()
	for _, ch := range channels {
		ch = normalizeChannel(ch)
		c.subscriptions[ch] = true
		out = append(out, ch)
	}
	c.subsMu.Unlock()
	return out
}

// Unsubscribe removes channel subscriptions
func (c *Client) Unsubscribe(channels ...string) []string {
	out := make([]string, 0, len(channels))
	c.subsMu.Lock()
	for _, ch := range channels {
		ch = normalizeChannel(ch)
		delete(c.subscriptions, ch)
		out = append(out, ch)
	}
	c.subsMu.Unlock()
	return out
}

// reply queues a direct answer to this client only
func (c *Client) reply(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.hub.publish <- envelope{client: c, data: data}:
	case <-c.hub.done:
	}
}

// readPump pumps messages from the WebSocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debugw("ws_read_failed", "client", c.id, "err", err)
			}
			break
		}

		// Handle subscription requests
		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.reply(WSMessage{Type: "error", Data: "invalid message"})
			continue
		}

		switch req.Op {
		case "subscribe":
			c.reply(WSMessage{Type: "subscribed", Data: c.Subscribe(req.Channels...)})
		case "unsubscribe":
			c.reply(WSMessage{Type: "unsubscribed", Data: c.Unsubscribe(req.Channels...)})
		default:
			c.reply(WSMessage{Type: "error", Data: "unknown op: " + req.Op})
		}
	}
}

// writePump pumps messages from the hub to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One JSON document per frame
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket handles WebSocket upgrade and client lifecycle
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debugw("ws_upgrade_failed", "err", err)
		return
	}

	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		id:            conn.RemoteAddr().String(),
		subscriptions: make(map[string]bool),
	}

	select {
	case client.hub.register <- client:
	case <-client.hub.done:
		conn.Close()
		return
	}

	// Start read and write pumps in separate goroutines
	go client.writePump()
	go client.readPump()
}
