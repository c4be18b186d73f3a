// Package simulator gera um feed de preços sintético (random walk) com ticks e
// candles de 1s, no lugar da exchange em ambiente local.
package simulator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/kmarket/pkg/contracts/events"
)

type walk struct {
	symbol string
	price  decimal.Decimal
	second int64 // segundo do candle aberto (unix)
	opened bool
}

// Walker mantém um random walk por símbolo. Step é chamado pelo loop do simulador.
type Walker struct {
	Source string
	Vol    float64 // desvio padrão do retorno por passo, ex: 0.0005

	mu    sync.Mutex
	rnd   *rand.Rand
	walks []*walk
}

// NewWalker cria o walker com os preços iniciais; a ordem dos símbolos é preservada nos eventos
func NewWalker(source string, vol float64, seed int64, start map[string]decimal.Decimal, symbols []string) *Walker {
	w := &Walker{Source: source, Vol: vol, rnd: rand.New(rand.NewSource(seed))}
	for _, s := range symbols {
		p, ok := start[s]
		if !ok || !p.IsPositive() {
			p = decimal.NewFromInt(100)
		}
		w.walks = append(w.walks, &walk{symbol: s, price: p})
	}
	return w
}

// Step move os preços e devolve as mensagens do instante: o candle do segundo
// anterior (se o segundo virou) e depois o tick novo.
func (w *Walker) Step(now time.Time) []events.FeedMessage {
	w.mu.Lock()
	defer w.mu.Unlock()

	now = now.UTC()
	sec := now.Unix()
	var out []events.FeedMessage
	for _, wk := range w.walks {
		if wk.opened && sec > wk.second {
			// fecha no limite do segundo com o último preço observado
			out = append(out, events.FeedMessage{Type: events.FeedCandleClosed, Candle: &events.CandleClosed{
				Symbol:    wk.symbol,
				Price:     wk.price.StringFixed(2),
				Timestamp: (wk.second + 1) * 1000,
				Source:    w.Source,
			}})
		}
		wk.second, wk.opened = sec, true

		ret := w.rnd.NormFloat64() * w.Vol
		next := wk.price.Mul(decimal.NewFromFloat(1 + ret)).Round(2)
		if next.IsPositive() {
			wk.price = next
		}
		out = append(out, events.FeedMessage{Type: events.FeedPriceTick, Tick: &events.PriceTick{
			Symbol: wk.symbol,
			Price:  wk.price.StringFixed(2),
			Ts:     now,
			Source: w.Source,
		}})
	}
	return out
}
