package chart

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/tradedeck/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Hub fans draw operations out to every connected browser. It outlives
// renderer instances: destroying and recreating the chart must not drop
// browser connections, only what they display.
type Hub struct {
	logger *slog.Logger

	clients    map[*hubClient]bool
	broadcast  chan []byte
	register   chan *hubClient
	unregister chan *hubClient
	done       chan struct{}

	closeOnce sync.Once
}

type hubClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates a Hub. Call Run before serving connections.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger.With("component", "chart_hub"),
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		done:       make(chan struct{}),
	}
}

// Run is the hub's event loop. Launch as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Debug("viewer connected", "viewers", len(h.clients))
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Debug("viewer disconnected", "viewers", len(h.clients))
			}
		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer: drop it rather than stall the chart.
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Broadcast queues a message for every viewer. Never blocks; messages are
// dropped if the hub is saturated or closed.
func (h *Hub) Broadcast(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		h.logger.Warn("broadcast buffer full, dropping draw op")
	}
}

// Close shuts the hub down and disconnects every viewer.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

var chartUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeHTTP upgrades a browser connection and attaches it to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := chartUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &hubClient{hub: h, conn: conn, send: make(chan []byte, 256)}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains (and discards) inbound frames so pongs and close frames are
// processed.
func (c *hubClient) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *hubClient) writePump() {
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
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
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

// drawOp is one frame of the chart stream protocol.
type drawOp struct {
	Op          string              `json:"op"`
	Series      string              `json:"series,omitempty"`
	Points      []model.TimePoint   `json:"points,omitempty"`
	Candles     []model.CandlePoint `json:"candles,omitempty"`
	Point       *model.TimePoint    `json:"point,omitempty"`
	Annotations []Annotation        `json:"annotations,omitempty"`
}

// streamRenderer draws by broadcasting draw ops through a Hub. The hub is
// shared transport, not owned: Close resets viewers but leaves them connected.
type streamRenderer struct {
	hub *Hub
}

// NewStreamRenderer creates the live-streaming renderer over hub.
func NewStreamRenderer(hub *Hub) Renderer {
	return &streamRenderer{hub: hub}
}

func (s *streamRenderer) Kind() string { return KindStream }

func (s *streamRenderer) SetData(series string, points []model.TimePoint) error {
	return s.emit(drawOp{Op: "set_data", Series: series, Points: points})
}

func (s *streamRenderer) SetCandles(series string, candles []model.CandlePoint) error {
	return s.emit(drawOp{Op: "set_candles", Series: series, Candles: candles})
}

func (s *streamRenderer) AppendPoint(series string, p model.TimePoint) error {
	return s.emit(drawOp{Op: "append", Series: series, Point: &p})
}

func (s *streamRenderer) SetAnnotations(annotations []Annotation) error {
	return s.emit(drawOp{Op: "annotations", Annotations: annotations})
}

func (s *streamRenderer) Clear(series string) error {
	return s.emit(drawOp{Op: "clear", Series: series})
}

func (s *streamRenderer) Close() error {
	return s.emit(drawOp{Op: "reset"})
}

func (s *streamRenderer) emit(op drawOp) error {
	data, err := json.Marshal(op)
	if err != nil {
		return err
	}
	s.hub.Broadcast(data)
	return nil
}
