package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/pkg/contracts/events"
)

// Publisher recebe as mensagens do feed já decodificadas
type Publisher interface {
	PublishTick(ctx context.Context, e events.PriceTick) error
	PublishCandle(ctx context.Context, e events.CandleClosed) error
}

// WSClient consome o feed de preços via WebSocket e republica no Kafka.
// Reconecta com Backoff após qualquer queda.
type WSClient struct {
	URL       string
	Log       *zap.Logger
	Publisher Publisher
	Backoff   time.Duration

	OnMessage func(kind string)
	OnError   func(stage string)
}

// Start bloqueia até o contexto ser cancelado
func (c *WSClient) Start(ctx context.Context) {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	for {
		if err := c.connectAndListen(ctx); err != nil {
			c.Log.Warn("connection closed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping WS client")
			return
		case <-time.After(backoff):
		}
	}
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		c.fail("dial")
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to price feed", zap.String("url", c.URL))

	// fecha a conexão no cancelamento para destravar o ReadMessage
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.fail("read")
			return err
		}
		c.handle(ctx, raw)
	}
}

func (c *WSClient) handle(ctx context.Context, raw []byte) {
	var m events.FeedMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		c.Log.Warn("invalid message", zap.Error(err))
		c.fail("decode")
		return
	}

	var err error
	switch {
	case m.Type == events.FeedPriceTick && m.Tick != nil:
		err = c.Publisher.PublishTick(ctx, *m.Tick)
	case m.Type == events.FeedCandleClosed && m.Candle != nil:
		err = c.Publisher.PublishCandle(ctx, *m.Candle)
	default:
		c.Log.Warn("unknown feed message", zap.String("type", m.Type))
		c.fail("decode")
		return
	}
	if err != nil {
		c.fail("publish")
		return
	}
	if c.OnMessage != nil {
		c.OnMessage(m.Type)
	}
}

func (c *WSClient) fail(stage string) {
	if c.OnError != nil {
		c.OnError(stage)
	}
}
