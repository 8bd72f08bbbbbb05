package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"inventory-analytics/internal/domain"
	"inventory-analytics/internal/logging"
	"inventory-analytics/internal/observability"
)

// MessageForecastUpdate is the type tag of forecast notifications.
const MessageForecastUpdate = "FORECAST_UPDATE"

// HubConfig holds websocket timing settings.
type HubConfig struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration // must exceed PingInterval
	WriteTimeout time.Duration
	SendBuffer   int // queued messages per client before it is dropped
}

// DefaultHubConfig returns sensible defaults.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   16,
	}
}

// UpdateMessage is pushed to every subscriber when a forecast is regenerated.
type UpdateMessage struct {
	Type            string    `json:"type"`
	ProductSKU      string    `json:"product_sku"`
	GeneratedAt     time.Time `json:"generated_at"`
	ForecastHorizon int       `json:"forecast_horizon"`
}

// Hub fans forecast notifications out to websocket subscribers.
// It implements forecast.Notifier.
type Hub struct {
	cfg      HubConfig
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// NewHub creates a hub. A nil config uses DefaultHubConfig.
func NewHub(config *HubConfig, logger *zerolog.Logger) *Hub {
	cfg := DefaultHubConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 1
	}

	h := &Hub{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger:  logging.WithComponent("ws-hub"),
		clients: make(map[*wsClient]struct{}),
	}
	if logger != nil {
		h.logger = *logger
	}
	return h
}

// ServeHTTP upgrades the request and registers the connection.
// Subscribers only receive; inbound frames other than control frames are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan []byte, h.cfg.SendBuffer),
		done: make(chan struct{}),
	}
	if !h.register(c) {
		c.close()
		return
	}

	go h.writeLoop(c)
	go h.readLoop(c)
}

// ForecastUpdated broadcasts f. Clients whose queue is full are disconnected.
func (h *Hub) ForecastUpdated(f *domain.Forecast) {
	payload, err := json.Marshal(UpdateMessage{
		Type:            MessageForecastUpdate,
		ProductSKU:      f.ProductSKU,
		GeneratedAt:     f.GeneratedAt,
		ForecastHorizon: f.Horizon,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("marshal forecast update")
		return
	}

	h.mu.Lock()
	var slow []*wsClient
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.logger.Warn().Str("remote", c.conn.RemoteAddr().String()).Msg("dropping slow websocket client")
		h.unregister(c)
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every subscriber and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*wsClient]struct{})
	h.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(h.cfg.WriteTimeout))
		c.close()
	}
	observability.SetWebsocketClients(0)
}

func (h *Hub) register(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	observability.SetWebsocketClients(len(h.clients))
	return true
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		observability.SetWebsocketClients(len(h.clients))
	}
	h.mu.Unlock()
	c.close()
}

// readLoop drains inbound frames so pong and close frames are processed.
func (h *Hub) readLoop(c *wsClient) {
	defer h.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writeLoop is the only writer of data and ping frames on the connection.
func (h *Hub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	defer h.unregister(c)

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
