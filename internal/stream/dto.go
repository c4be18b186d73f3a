package stream

import "encoding/json"

// ClientMsg é o que o cliente WebSocket envia: subscribe | unsubscribe | ping
type ClientMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// GridUpdate trafega no canal Redis e é repassado tal como está aos clientes.
// "grid" leva o snapshot inteiro; "grid_delta" só os slices alterados desde
// BaseVersion. Cliente fora de BaseVersion refaz o subscribe ou GET /v1/grid.
type GridUpdate struct {
	Type        string          `json:"type"` // grid | grid_delta
	Symbol      string          `json:"symbol"`
	Version     uint64          `json:"version"`
	BaseVersion uint64          `json:"baseVersion,omitempty"`
	Grid        json.RawMessage `json:"grid"`
}
