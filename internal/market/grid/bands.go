package grid

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	half    = decimal.NewFromFloat(0.5)
)

// Bounds devolve [lower, upper) do tick: basis*(1+(tick∓0.5)*size/100)
func Bounds(basis decimal.Decimal, tick int, sizePct decimal.Decimal) (lower, upper decimal.Decimal) {
	t := decimal.NewFromInt(int64(tick))
	lowPct := t.Sub(half).Mul(sizePct).Div(hundred)
	highPct := t.Add(half).Mul(sizePct).Div(hundred)
	lower = basis.Mul(decimal.NewFromInt(1).Add(lowPct))
	upper = basis.Mul(decimal.NewFromInt(1).Add(highPct))
	return lower, upper
}

// PriceChangePercent = (price - basis) / basis * 100
func PriceChangePercent(basis, price decimal.Decimal) decimal.Decimal {
	if basis.IsZero() {
		return decimal.Zero
	}
	return price.Sub(basis).Mul(hundred).Div(basis)
}

// WinningTick mapeia o preço de liquidação para a faixa vencedora com a mesma
// largura usada na geração: floor(pct/size + 0.5). O resultado pode ficar fora
// de [-range, range]; nesse caso nenhuma faixa do slice vence.
func WinningTick(basis, price, sizePct decimal.Decimal) int {
	if sizePct.IsZero() {
		return 0
	}
	units := PriceChangePercent(basis, price).Div(sizePct).Add(half).Floor()
	return int(units.IntPart())
}
