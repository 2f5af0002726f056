package pool

import "math/big"

const (
	oneDayMillis  = 86_400_000
	quarterMillis = 90 * oneDayMillis
)

// interestDenominator is 100 (apy scale) * 100 (utilisation scale) * one
// year in milliseconds.
var interestDenominator = new(big.Int).Mul(
	big.NewInt(100*100),
	new(big.Int).Mul(big365, big.NewInt(oneDayMillis)),
)

// simpleInterest computes non-compounding interest, linear in amount, APY,
// utilisation and elapsed time:
//
//	amount * apy * utilisation * elapsedMillis / (100 * 100 * 365 * oneDay)
//
// with integer truncation throughout.
func simpleInterest(amount, apy, utilisation *big.Int, elapsedMillis uint64) *big.Int {
	if amount == nil || apy == nil || utilisation == nil || elapsedMillis == 0 {
		return big.NewInt(0)
	}
	if amount.Sign() <= 0 || apy.Sign() <= 0 || utilisation.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(amount, apy)
	out.Mul(out, utilisation)
	out.Mul(out, new(big.Int).SetUint64(elapsedMillis))
	return out.Quo(out, interestDenominator)
}

// accruedInterest computes the interest owed on amount for one position.
//
// Staking pools accrue nothing while the deposit window is still open;
// afterwards they accrue from the window close at full (100) utilisation
// weighting, optionally clamped to the pool's configured accrual duration.
// Loan pools accrue from the position's own anchor time at the pool's
// current loan utilisation.
func (e *Engine) accruedInterest(p *Pool, pos Position, amount *big.Int, now uint64, clampDuration bool) (*big.Int, error) {
	if amount == nil || pos.Amount == nil || amount.Cmp(pos.Amount) > 0 {
		return nil, errAmountExceedsPosition
	}
	if p.Type == TypeStaking && now < p.Limits.EndTime {
		return big.NewInt(0), nil
	}

	utilisation := big.NewInt(100)
	if p.Type == TypeLoan {
		utilisation = clampPercent(percentage(p.Funds.LoanedBalance, p.Funds.Balance))
	}

	var elapsed uint64
	if p.Type == TypeLoan {
		if now > pos.Time {
			elapsed = now - pos.Time
		}
	} else {
		if now > p.Limits.EndTime {
			elapsed = now - p.Limits.EndTime
		}
		if clampDuration && elapsed > p.Limits.Duration {
			elapsed = p.Limits.Duration
		}
	}

	return simpleInterest(amount, p.APY, utilisation, elapsed), nil
}
