package pool

import "math/big"

var (
	big100 = big.NewInt(100)
	big365 = big.NewInt(365)
)

// percentage computes value*100/of with integer truncation. A zero (or nil)
// denominator yields zero rather than an error; admission checks treat the
// empty pool as fully unutilised.
func percentage(value, of *big.Int) *big.Int {
	if value == nil || of == nil || of.Sign() == 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(value, big100)
	return out.Quo(out, of)
}

// clampPercent bounds a percentage to [0, 100]. Utilisation can transiently
// exceed 100 while a borrow projection is being checked; views never report
// values outside the scale.
func clampPercent(p *big.Int) *big.Int {
	if p == nil || p.Sign() < 0 {
		return big.NewInt(0)
	}
	if p.Cmp(big100) > 0 {
		return new(big.Int).Set(big100)
	}
	return new(big.Int).Set(p)
}
