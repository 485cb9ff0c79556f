// Package points — policy.go: сколько очков даёт пакет голосов.
package points

// Policy считает начисление за пакет из n голосов.
type Policy interface {
	Amount(n int) int64
}

// PositionWeights — начисление по позициям: Weights[0] за 1-е место,
// Weights[1] за 2-е и так далее; позиции за концом списка дают Default.
// Пакет получает сумму весов своих позиций.
//
// Пример (веса 3,2,1, Default 1):
//
//	Amount(1) = 3
//	Amount(3) = 3+2+1 = 6
//	Amount(5) = 6+1+1 = 8
type PositionWeights struct {
	Weights []int64
	Default int64
}

// ForPosition возвращает вес позиции (1-based).
func (p PositionWeights) ForPosition(position int) int64 {
	if position >= 1 && position <= len(p.Weights) {
		return p.Weights[position-1]
	}
	return p.Default
}

// Amount возвращает сумму весов позиций 1..n.
func (p PositionWeights) Amount(n int) int64 {
	var total int64
	for pos := 1; pos <= n; pos++ {
		total += p.ForPosition(pos)
	}
	return total
}
