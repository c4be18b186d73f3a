package metrics

import "github.com/prometheus/client_golang/prometheus"

// Market reúne os collectors do market-service. Os componentes não importam
// prometheus: recebem callbacks (OnX) que o main liga a estes collectors.
type Market struct {
	DriverTicks       prometheus.Counter
	DriverSkips       prometheus.Counter
	LiveSlices        *prometheus.GaugeVec
	BetsPlaced        *prometheus.CounterVec
	BetRejections     *prometheus.CounterVec
	Settlements       *prometheus.CounterVec
	SettlementErrors  *prometheus.CounterVec
	DuplicateCandles  *prometheus.CounterVec
	DepositsReplayed  prometheus.Counter
	FeedConsumed      *prometheus.CounterVec
	FeedErrors        *prometheus.CounterVec
	StreamSubscribers prometheus.Gauge
}

// NewMarket cria e registra os collectors no registerer informado
func NewMarket(reg prometheus.Registerer) *Market {
	m := &Market{
		DriverTicks: prometheus.NewCounter(prometheus.CounterOpts{Name: "grid_driver_ticks_total", Help: "ciclos do driver que avançaram o grid"}),
		DriverSkips: prometheus.NewCounter(prometheus.CounterOpts{Name: "grid_driver_skips_total", Help: "ciclos ignorados por falta de preço"}),
		LiveSlices:  prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "grid_live_slices", Help: "slices no snapshot atual"}, []string{"symbol"}),
		BetsPlaced:  prometheus.NewCounterVec(prometheus.CounterOpts{Name: "bets_placed_total", Help: "apostas aceitas"}, []string{"symbol"}),
		BetRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bets_rejected_total", Help: "apostas rejeitadas por código",
		}, []string{"code"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlements_total", Help: "apostas liquidadas por resultado",
		}, []string{"symbol", "outcome"}),
		SettlementErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_errors_total", Help: "falhas de liquidação por aposta",
		}, []string{"symbol"}),
		DuplicateCandles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "settlement_duplicate_candles_total", Help: "candles reentregues e ignorados",
		}, []string{"symbol"}),
		DepositsReplayed: prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_deposits_replayed_total", Help: "depósitos com chave de idempotência repetida"}),
		FeedConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_messages_consumed_total", Help: "mensagens consumidas do kafka",
		}, []string{"topic"}),
		FeedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_errors_total", Help: "erros por estágio",
		}, []string{"stage"}),
		StreamSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{Name: "grid_stream_connections", Help: "clientes WebSocket conectados"}),
	}

	reg.MustRegister(
		m.DriverTicks, m.DriverSkips, m.LiveSlices, m.BetsPlaced, m.BetRejections,
		m.Settlements, m.SettlementErrors, m.DuplicateCandles, m.DepositsReplayed,
		m.FeedConsumed, m.FeedErrors, m.StreamSubscribers,
	)
	return m
}
