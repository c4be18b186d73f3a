package simulator

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type clientConn struct {
	id   string
	conn *websocket.Conn
}

// Hub gerencia os clientes WebSocket conectados e faz broadcast das mensagens
type Hub struct {
	Log *zap.Logger

	OnConnect    func()
	OnDisconnect func()
	OnSent       func()

	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[string]*clientConn
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		Log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*clientConn),
	}
}

func (h *Hub) add(c *clientConn) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	if h.OnConnect != nil {
		h.OnConnect()
	}
	h.Log.Info("ws client connected", zap.String("client_id", c.id))
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	_, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		if h.OnDisconnect != nil {
			h.OnDisconnect()
		}
		h.Log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Broadcast envia para todos; clientes com escrita falha são fechados e o
// leitor de cada um faz a remoção
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		h.Log.Error("marshal feed message", zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		_ = c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.Log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
			continue
		}
		if h.OnSent != nil {
			h.OnSent()
		}
	}
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleWS faz o upgrade e mantém a conexão até o cliente sair
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	c := &clientConn{id: uuid.NewString(), conn: conn}
	h.add(c)

	go func() {
		defer func() {
			h.remove(c.id)
			_ = conn.Close()
		}()
		for {
			// descarta mensagens do cliente; só serve para detectar desconexão
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
