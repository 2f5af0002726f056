package pool

import (
	"math/big"

	"stakehub/crypto"
)

// TotalPools reports how many pools have ever been created. Pool ids are
// the half-open range [0, TotalPools).
func (e *Engine) TotalPools() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.state.PoolCount()
}

// PoolInfo returns a snapshot of one pool. Reading a pool also kicks off an
// asynchronous metadata refresh for its underlying token, so display caches
// converge on whatever the external ledger currently reports.
func (e *Engine) PoolInfo(pid uint64) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return nil, err
	}
	if e.ledger != nil {
		e.ledger.RequestMetadata(p.TokenInfo.Token)
	}
	return p.Clone(), nil
}

// PoolInfoRange returns snapshots for the half-open id range [from, to).
func (e *Engine) PoolInfoRange(from, to uint64) ([]*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	count, err := e.state.PoolCount()
	if err != nil {
		return nil, err
	}
	if from > to || to > count {
		return nil, errInvalidRange
	}
	out := make([]*Pool, 0, to-from)
	for pid := from; pid < to; pid++ {
		p, err := e.loadPool(pid)
		if err != nil {
			return nil, err
		}
		out = append(out, p.Clone())
	}
	return out, nil
}

// PoolUtilisation reports loaned balance over total balance as an integer
// percentage, clamped to the 0-100 scale. An empty pool reads as zero.
func (e *Engine) PoolUtilisation(pid uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return nil, err
	}
	return clampPercent(percentage(p.Funds.LoanedBalance, p.Funds.Balance)), nil
}

// CalculateInterest previews the interest accrued on amount of one position
// as of now. Unlike reward settlement, the preview does not clamp staking
// accrual to the configured duration; it reports raw wall-clock accrual.
func (e *Engine) CalculateInterest(account crypto.Address, pid uint64, index int, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return nil, err
	}
	list, err := e.loadPositions(pid, account)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list) {
		return nil, errPositionNotFound
	}
	return e.accruedInterest(p, list[index], amount, e.now(), false)
}

// TotalStakesOfUser reports how many open positions the account holds in a
// pool. Position indices are only valid until the next mutating call.
func (e *Engine) TotalStakesOfUser(pid uint64, account crypto.Address) (int, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	list, err := e.loadPositions(pid, account)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}

// UserStakes returns copies of the account's positions in the half-open
// index range [from, to).
func (e *Engine) UserStakes(pid uint64, account crypto.Address, from, to int) ([]Position, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	list, err := e.loadPositions(pid, account)
	if err != nil {
		return nil, err
	}
	if from < 0 || from > to || to > len(list) {
		return nil, errInvalidRange
	}
	out := make([]Position, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, list[i].Clone())
	}
	return out, nil
}

// StakedTotal reports the account's aggregate staked principal in a pool.
func (e *Engine) StakedTotal(pid uint64, account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadTotal(e.state.GetStakedTotal, pid, account)
}

// BorrowedTotal reports the account's aggregate borrowed principal in a pool.
func (e *Engine) BorrowedTotal(pid uint64, account crypto.Address) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadTotal(e.state.GetBorrowedTotal, pid, account)
}

// IsWhitelisted reports borrow access for an account on a pool.
func (e *Engine) IsWhitelisted(pid uint64, account crypto.Address) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.IsWhitelisted(pid, account)
}

// Owner returns the administrative account.
func (e *Engine) Owner() crypto.Address { return e.owner }
