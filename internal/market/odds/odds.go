// Package odds calcula o multiplicador de cada faixa de preço em função da
// distância ao preço base e do tempo até a liquidação, e converte odds em
// valores de pagamento com aritmética inteira.
package odds

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
)

// Config parametriza a curva. TickSizePct é o tamanho de cada faixa em pontos
// percentuais (0.5 => 0,5%).
type Config struct {
	BaseOdds    float64
	MinOdds     float64
	MaxOdds     float64
	TickSizePct float64
	LockSec     float64 // fator de tempo cheio
	WindowSec   float64 // metade do fator na borda da janela
}

func DefaultConfig() Config {
	return Config{
		BaseOdds:    1.1,
		MinOdds:     1.05,
		MaxOdds:     20.0,
		TickSizePct: 0.5,
		LockSec:     180,
		WindowSec:   360,
	}
}

// Engine é imutável e sem estado; pode ser compartilhado entre goroutines.
type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) Engine { return Engine{cfg: cfg} }

func (e Engine) Config() Config { return e.cfg }

// Odds devolve o multiplicador para o tick dado faltando millisToSettlement
// para a liquidação, limitado a [MinOdds, MaxOdds] e arredondado em 2 casas.
func (e Engine) Odds(tick int, millisToSettlement int64) float64 {
	distance := math.Abs(float64(tick)) * e.cfg.TickSizePct
	factor := distanceFactor(distance)

	secondsAhead := float64(millisToSettlement) / 1000
	odds := e.cfg.BaseOdds + factor*e.timeFactor(secondsAhead)

	odds = math.Max(e.cfg.MinOdds, math.Min(e.cfg.MaxOdds, odds))
	return math.Round(odds*100) / 100
}

// distanceFactor: quatro segmentos lineares com inclinação crescente,
// saturando em 20 a partir de 50 pontos percentuais.
func distanceFactor(d float64) float64 {
	switch {
	case d >= 50:
		return 20.0
	case d <= 1:
		return d * 0.3
	case d <= 5:
		return 0.3 + (d-1)*0.4
	case d <= 10:
		return 1.9 + (d-5)*0.5
	default:
		return 4.4 + (d-10)*0.3
	}
}

// timeFactor = 1 na linha de lock, 0.5 na borda da janela
func (e Engine) timeFactor(secondsAhead float64) float64 {
	span := e.cfg.WindowSec - e.cfg.LockSec
	norm := 0.0
	if span > 0 {
		norm = (secondsAhead - e.cfg.LockSec) / span
	}
	norm = math.Max(0, math.Min(1, norm))
	return 1 - 0.5*norm
}

// Scale converte odds em centésimos inteiros (1.8 => 180)
func Scale(odds float64) int64 {
	return int64(math.Round(odds * 100))
}

// Unscale é o inverso de Scale, só para exibição
func Unscale(x100 int64) float64 {
	return float64(x100) / 100
}

// FormatScaled escreve odds escaladas com duas casas sem passar por float
func FormatScaled(x100 int64) string {
	sign := ""
	if x100 < 0 {
		sign, x100 = "-", -x100
	}
	return fmt.Sprintf("%s%d.%02d", sign, x100/100, x100%100)
}

// Payout = floor(amount * round(odds*100) / 100)
func Payout(amount int64, odds float64) int64 {
	return PayoutScaled(amount, Scale(odds))
}

// Refund = floor(amount * 100 / round(odds*100)); 0 quando odds arredonda para 0
func Refund(amount int64, odds float64) int64 {
	return RefundScaled(amount, Scale(odds))
}

// PayoutScaled opera direto sobre odds já congeladas em centésimos
func PayoutScaled(amount, oddsX100 int64) int64 {
	return mulDiv(amount, oddsX100, 100)
}

func RefundScaled(amount, oddsX100 int64) int64 {
	if oddsX100 <= 0 {
		return 0
	}
	return mulDiv(amount, 100, oddsX100)
}

// mulDiv calcula floor(a*b/c) sem overflow intermediário. Valores são não
// negativos; o resultado satura em MaxInt64.
func mulDiv(a, b, c int64) int64 {
	if a <= 0 || b <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi == 0 {
		q := lo / uint64(c)
		if q > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(q)
	}
	r := new(big.Int).Mul(big.NewInt(a), big.NewInt(b))
	r.Quo(r, big.NewInt(c))
	if !r.IsInt64() {
		return math.MaxInt64
	}
	return r.Int64()
}
