// Package stream pushes ETF quote updates to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"xrp_etf_backend/models"
)

const (
	MaxWebSocketClients   = 100 // Maximum concurrent WebSocket clients
	WebSocketWriteTimeout = 10 * time.Second
	WebSocketPongTimeout  = 60 * time.Second
	WebSocketPingInterval = 30 * time.Second
	DefaultPollInterval   = 60 * time.Second
	clientBuffer          = 32
	maxCommandBytes       = 1024
)

// TypeQuotes tags quote update messages
const TypeQuotes = "etf_quotes"

// Quote is one fund's streamed price
type Quote struct {
	Symbol       string  `json:"symbol"`
	Group        string  `json:"group"`
	Price        float64 `json:"price"`
	DailyShares  int64   `json:"dailyShares"`
	DailyDollars int64   `json:"dailyDollars"`
}

// Message is what clients receive
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
	Time string `json:"time"`
}

// Client is one websocket connection
type Client struct {
	conn       *websocket.Conn
	send       chan []byte
	subscribed map[string]bool
	mu         sync.RWMutex
}

// wants reports whether the client receives symbol. No subscriptions means everything.
func (c *Client) wants(symbol string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subscribed) == 0 || c.subscribed[symbol]
}

// Hub fans quote updates out to every connected client
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []Quote
	register   chan *Client
	unregister chan *Client
	shutdown   chan struct{}
	mu         sync.RWMutex
	upgrader   websocket.Upgrader
	log        zerolog.Logger

	lastMu sync.RWMutex
	last   []Quote

	pollMu   sync.Mutex
	stopPoll context.CancelFunc
	once     sync.Once
}

// NewHub starts a hub
func NewHub(log zerolog.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []Quote, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		shutdown:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: log.With().Str("component", "stream").Logger(),
	}
	go h.run()
	return h
}

// Quotes flattens an ETF payload into stream quotes
func Quotes(data *models.ETFData) []Quote {
	var quotes []Quote
	for _, group := range data.Groups {
		for _, etf := range data.Data[group] {
			quotes = append(quotes, Quote{
				Symbol:       etf.Symbol,
				Group:        group,
				Price:        etf.Price,
				DailyShares:  etf.Daily.Shares,
				DailyDollars: etf.Daily.Dollars,
			})
		}
	}
	return quotes
}

// PublishETF queues a fresh ETF payload for broadcast. It never blocks the caller.
func (h *Hub) PublishETF(data *models.ETFData) {
	quotes := Quotes(data)

	h.lastMu.Lock()
	h.last = quotes
	h.lastMu.Unlock()

	select {
	case h.broadcast <- quotes:
	case <-h.shutdown:
	default:
		h.log.Warn().Msg("Broadcast queue full, dropping update")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown closes every connection and stops polling
func (h *Hub) Shutdown() {
	h.once.Do(func() {
		h.StopPolling()
		close(h.shutdown)

		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			client.conn.Close()
		}
		h.clients = make(map[*Client]bool)
		h.mu.Unlock()

		h.log.Info().Msg("Stream hub shutdown complete")
	})
}

func (h *Hub) run() {
	for {
		select {
		case <-h.shutdown:
			return

		case client := <-h.register:
			h.mu.Lock()
			if len(h.clients) >= MaxWebSocketClients {
				h.mu.Unlock()
				client.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "Server at capacity"))
				client.conn.Close()
				h.log.Warn().Int("max", MaxWebSocketClients).Msg("WebSocket client rejected")
				continue
			}
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", count).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", count).Msg("WebSocket client disconnected")

		case quotes := <-h.broadcast:
			h.mu.Lock()
			var dead []*Client
			for client := range h.clients {
				data, ok := encode(client, quotes)
				if !ok {
					continue
				}
				select {
				case client.send <- data:
				default:
					dead = append(dead, client)
				}
			}
			for _, client := range dead {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
		}
	}
}

// encode renders the quotes this client subscribed to; ok is false when there are none
func encode(c *Client, quotes []Quote) ([]byte, bool) {
	filtered := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		if c.wants(q.Symbol) {
			filtered = append(filtered, q)
		}
	}
	if len(filtered) == 0 {
		return nil, false
	}
	data, err := json.Marshal(Message{Type: TypeQuotes, Data: filtered, Time: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return nil, false
	}
	return data, true
}

// HandleWebSocket upgrades the request and registers the client
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.ClientCount() >= MaxWebSocketClients {
		http.Error(w, "Server at capacity", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &Client{
		conn:       conn,
		send:       make(chan []byte, clientBuffer),
		subscribed: make(map[string]bool),
	}

	select {
	case h.register <- client:
	case <-h.shutdown:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump(h)

	h.sendLatest(client)
}

// sendLatest replays the most recent quotes so new clients need not wait for the next update
func (h *Hub) sendLatest(c *Client) {
	h.lastMu.RLock()
	quotes := h.last
	h.lastMu.RUnlock()
	if len(quotes) == 0 {
		return
	}
	data, ok := encode(c, quotes)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// command is a client request: {"action":"subscribe","symbols":["XRP","XRPC"]}
type command struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxCommandBytes)
	c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(WebSocketPongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Debug().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(message, &cmd); err != nil {
			continue
		}

		switch cmd.Action {
		case "subscribe":
			c.mu.Lock()
			for _, s := range cmd.Symbols {
				c.subscribed[strings.ToUpper(s)] = true
			}
			c.mu.Unlock()
			h.sendLatest(c)
		case "unsubscribe":
			c.mu.Lock()
			for _, s := range cmd.Symbols {
				delete(c.subscribed, strings.ToUpper(s))
			}
			c.mu.Unlock()
		case "snapshot":
			h.sendLatest(c)
		}
	}
}

// StartPolling calls refresh every interval while at least one client is connected. Fresh
// ETF fetches reach clients through PublishETF.
func (h *Hub) StartPolling(interval time.Duration, refresh func(ctx context.Context) error) error {
	h.pollMu.Lock()
	defer h.pollMu.Unlock()
	if h.stopPoll != nil {
		return fmt.Errorf("polling already running")
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.stopPoll = cancel

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if h.ClientCount() == 0 {
					continue
				}
				if err := refresh(ctx); err != nil {
					h.log.Warn().Err(err).Msg("Stream refresh failed")
				}
			}
		}
	}()

	h.log.Info().Dur("interval", interval).Msg("Started stream polling")
	return nil
}

// StopPolling stops the polling loop
func (h *Hub) StopPolling() {
	h.pollMu.Lock()
	defer h.pollMu.Unlock()
	if h.stopPoll == nil {
		return
	}
	h.stopPoll()
	h.stopPoll = nil
	h.log.Info().Msg("Stream polling stopped")
}
