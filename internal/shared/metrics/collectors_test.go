package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMarket_RegistersAll(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMarket(reg)

	m.DriverTicks.Inc()
	m.BetRejections.WithLabelValues("SLICE_LOCKED").Inc()
	m.Settlements.WithLabelValues("ETHUSDT", "won").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DriverTicks))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Settlements.WithLabelValues("ETHUSDT", "won")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
