package server

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/denowallet/portfolio"
	"github.com/hertz-contrib/websocket"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var upgrader = websocket.HertzUpgrader{
	CheckOrigin: func(*app.RequestContext) bool { return true },
}

// Sender is the write side of a websocket connection.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Message is what clients send: {"action": "subscribe", "ids": ["bitcoin"]}.
type Message struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
}

// Event is what the hub sends.
type Event struct {
	Type  string                     `json:"type"`
	IDs   []string                   `json:"ids,omitempty"`
	Data  map[string]portfolio.Quote `json:"data,omitempty"`
	Error string                     `json:"error,omitempty"`
}

// Client is a connected websocket subscriber.
type Client struct {
	conn Sender
	mu   sync.Mutex // one writer at a time
	ids  map[string]struct{}
}

func (c *Client) send(e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub pushes live prices to subscribed websocket clients.
type Hub struct {
	prices   PriceSource
	pool     *ants.Pool
	interval time.Duration

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewHub(prices PriceSource, pool *ants.Pool, interval time.Duration) *Hub {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Hub{prices: prices, pool: pool, interval: interval, clients: make(map[*Client]struct{})}
}

// Serve upgrades the request and reads subscriptions until the client leaves.
func (h *Hub) Serve(_ context.Context, c *app.RequestContext) {
	err := upgrader.Upgrade(c, func(conn *websocket.Conn) {
		cl := h.Add(conn)
		defer h.Remove(cl)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				zap.L().Debug("websocket closed", zap.Error(err))
				return
			}
			h.Handle(cl, msg)
		}
	})
	if err != nil {
		zap.L().Warn("websocket upgrade failed", zap.Error(err))
	}
}

// Add registers a connection without subscriptions.
func (h *Hub) Add(conn Sender) *Client {
	cl := &Client{conn: conn, ids: make(map[string]struct{})}
	h.mu.Lock()
	h.clients[cl] = struct{}{}
	h.mu.Unlock()
	return cl
}

// Remove forgets cl and closes its connection.
func (h *Hub) Remove(cl *Client) {
	h.mu.Lock()
	_, ok := h.clients[cl]
	delete(h.clients, cl)
	h.mu.Unlock()
	if ok {
		_ = cl.conn.Close()
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handle applies a client message and acknowledges it.
func (h *Hub) Handle(cl *Client, msg []byte) {
	var m Message
	if err := json.Unmarshal(msg, &m); err != nil {
		_ = cl.send(Event{Type: "error", Error: "invalid message"})
		return
	}
	var ack string
	h.mu.Lock()
	switch m.Action {
	case "subscribe":
		for _, id := range m.IDs {
			if id = strings.ToLower(strings.TrimSpace(id)); id != "" {
				cl.ids[id] = struct{}{}
			}
		}
		ack = "subscription_ack"
	case "unsubscribe":
		for _, id := range m.IDs {
			delete(cl.ids, strings.ToLower(strings.TrimSpace(id)))
		}
		ack = "unsubscription_ack"
	}
	ids := sortedKeys(cl.ids)
	h.mu.Unlock()

	if ack == "" {
		_ = cl.send(Event{Type: "error", Error: "unknown action " + m.Action})
		return
	}
	if err := cl.send(Event{Type: ack, IDs: ids}); err != nil {
		h.Remove(cl)
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Push quotes every subscribed id once and sends each client its own ids.
// It returns when every send is done.
func (h *Hub) Push(ctx context.Context) error {
	h.mu.Lock()
	union := make(map[string]struct{})
	type target struct {
		cl  *Client
		ids []string
	}
	targets := make([]target, 0, len(h.clients))
	for cl := range h.clients {
		if len(cl.ids) == 0 {
			continue
		}
		ids := sortedKeys(cl.ids)
		for _, id := range ids {
			union[id] = struct{}{}
		}
		targets = append(targets, target{cl, ids})
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return nil
	}

	quotes, err := h.prices.SimplePrice(ctx, sortedKeys(union))
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, t := range targets {
		data := make(map[string]portfolio.Quote, len(t.ids))
		for _, id := range t.ids {
			if q, ok := quotes[id]; ok {
				data[id] = q
			}
		}
		cl := t.cl
		send := func() {
			defer wg.Done()
			if err := cl.send(Event{Type: "prices", Data: data}); err != nil {
				zap.L().Debug("dropping websocket client", zap.Error(err))
				h.Remove(cl)
			}
		}
		wg.Add(1)
		if h.pool == nil || h.pool.Submit(send) != nil {
			go send()
		}
	}
	wg.Wait()
	return nil
}

// Run pushes prices every interval until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := h.Push(ctx); err != nil {
				zap.L().Warn("live prices unavailable", zap.Error(err))
			}
		}
	}
}
