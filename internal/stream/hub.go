package stream

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 2 * time.Second

// client serializa as escritas na conexão (gorilla não aceita escritores concorrentes)
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub mantém as assinaturas por símbolo. Initial, se definido, fornece o
// snapshot atual enviado logo após o subscribe.
type Hub struct {
	Log     *zap.Logger
	Initial func(symbol string) ([]byte, bool)

	OnConnect    func()
	OnDisconnect func()

	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}
}

func NewHub(log *zap.Logger, allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		Log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096, CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS atende uma conexão até o cliente desconectar
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	if h.OnConnect != nil {
		h.OnConnect()
	}
	defer func() {
		h.drop(c)
		_ = conn.Close()
		if h.OnDisconnect != nil {
			h.OnDisconnect()
		}
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		symbol := strings.ToUpper(msg.Symbol)
		switch msg.Type {
		case "subscribe":
			h.mu.Lock()
			if _, ok := h.subs[symbol]; !ok {
				h.subs[symbol] = make(map[*client]struct{})
			}
			h.subs[symbol][c] = struct{}{}
			h.mu.Unlock()
			if h.Initial != nil {
				if b, ok := h.Initial(symbol); ok {
					_ = c.write(b)
				}
			}
		case "unsubscribe":
			h.mu.Lock()
			if set, ok := h.subs[symbol]; ok {
				delete(set, c)
				if len(set) == 0 {
					delete(h.subs, symbol)
				}
			}
			h.mu.Unlock()
		case "ping":
			_ = c.write([]byte(`{"type":"pong"}`))
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for symbol, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, symbol)
		}
	}
}

// Dispatch lê o símbolo do GridUpdate e faz o broadcast do payload bruto
func (h *Hub) Dispatch(raw []byte) error {
	var head struct {
		Symbol string `json:"symbol"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return err
	}
	h.Broadcast(strings.ToUpper(head.Symbol), raw)
	return nil
}

// Broadcast envia para os inscritos no símbolo; conexões com erro são fechadas
func (h *Hub) Broadcast(symbol string, payload []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.subs[symbol]))
	for c := range h.subs[symbol] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(payload); err != nil {
			h.Log.Debug("ws write failed", zap.String("symbol", symbol), zap.Error(err))
			_ = c.conn.Close()
		}
	}
}

// Subscribers conta as conexões inscritas no símbolo
func (h *Hub) Subscribers(symbol string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[symbol])
}
