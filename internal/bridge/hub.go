package bridge

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxInboundSize = 1024
)

// Message はWebSocketで送信する1件のイベント。
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Hub は接続中のクライアントを管理し、各配信元の変更を送信する。
// 接続直後に全配信元の現在値を送信し、以降は変更のたびに送信する。
type Hub struct {
	sources  []Source
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

// NewHub はHubを生成する。allowedOrigin 以外のブラウザからの接続は拒否する。
func NewHub(sources []Source, allowedOrigin string, logger *slog.Logger) *Hub {
	h := &Hub{
		sources: sources,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return checkOrigin(r, allowedOrigin)
		},
	}
	return h
}

func checkOrigin(r *http.Request, allowedOrigin string) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == allowedOrigin {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// ServeHTTP は接続をWebSocketにアップグレードし、切断されるまで配信する。
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := newClient(uuid.NewString(), conn)
	h.register(c)

	unsubscribes := make([]func(), 0, len(h.sources))
	for _, src := range h.sources {
		event := src.Event
		unsubscribes = append(unsubscribes, src.Subscribe(func(data any) {
			c.enqueue(event, data)
		}))
	}
	c.attach(unsubscribes)

	go c.writePump(h.logger)
	c.readPump()

	h.unregister(c)
}

// Len は接続中のクライアント数を返す。
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close はすべての接続を閉じる。
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	size := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("bridge client connected", slog.String("client_id", c.id), slog.Int("clients", size))
}

func (h *Hub) unregister(c *client) {
	c.close()
	c.conn.Close()
	h.mu.Lock()
	delete(h.clients, c)
	size := len(h.clients)
	h.mu.Unlock()
	h.logger.Info("bridge client disconnected", slog.String("client_id", c.id), slog.Int("clients", size))
}

// client は1つのWebSocket接続。
// 未送信の値はイベントごとに最新の1件だけを保持するため、通知元をブロックしない。
type client struct {
	id           string
	conn         *websocket.Conn
	unsubscribes []func()

	mu      sync.Mutex
	pending map[string]any
	order   []string
	wake    chan struct{}
	done    chan struct{}
	closed  bool
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:      id,
		conn:    conn,
		pending: make(map[string]any),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// attach は購読解除関数を登録する。すでに閉じていれば直ちに解除する。
func (c *client) attach(unsubscribes []func()) {
	c.mu.Lock()
	if !c.closed {
		c.unsubscribes = unsubscribes
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}

func (c *client) enqueue(event string, data any) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if _, ok := c.pending[event]; !ok {
		c.order = append(c.order, event)
	}
	c.pending[event] = data
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// drain は未送信のイベントを到着順に取り出す。
func (c *client) drain() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]Message, 0, len(c.order))
	for _, event := range c.order {
		msgs = append(msgs, Message{Event: event, Data: c.pending[event]})
	}
	c.order = c.order[:0]
	clear(c.pending)
	return msgs
}

func (c *client) writePump(logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			// close フレームへの応答を待ってから読み込みを止める
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.SetReadDeadline(time.Now().Add(writeWait))
			return
		case <-c.wake:
			for _, msg := range c.drain() {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := c.conn.WriteJSON(msg); err != nil {
					logger.Debug("websocket write failed", slog.String("client_id", c.id), slog.String("error", err.Error()))
					c.conn.Close()
					return
				}
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

// readPump は切断を検知するまで受信を読み捨てる。クライアントからのコマンドはHTTPで受け付ける。
func (c *client) readPump() {
	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// close は購読を解除し、送信ループを止める。何度呼んでもよい。
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	unsubscribes := c.unsubscribes
	c.mu.Unlock()

	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}
