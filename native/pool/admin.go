package pool

import (
	"math/big"

	"stakehub/crypto"
	nativecommon "stakehub/native/common"
	"stakehub/native/token"
)

func (e *Engine) requireOwner(caller crypto.Address) error {
	if !caller.Equal(e.owner) {
		return errNotOwner
	}
	return nil
}

// validateLimits checks the deposit window. Loan pools never open one, so
// a degenerate window is only an error on staking pools.
func validateLimits(p *Pool) error {
	if p.Type != TypeLoan && p.Limits.EndTime <= p.Limits.StartTime {
		return errInvalidWindow
	}
	return nil
}

// CreatePool appends a new pool to the sequence and returns its id. The
// template's runtime counters are ignored: a pool always starts empty,
// unpaused counters aside, with zero members. Token metadata is fetched
// asynchronously and lands via ApplyTokenMetadata.
func (e *Engine) CreatePool(caller crypto.Address, template *Pool) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}
	if template == nil {
		return 0, errPoolNotFound
	}
	p := template.Clone()
	p.EnsureDefaults()
	if err := validateLimits(p); err != nil {
		return 0, err
	}
	p.Funds = Funds{Balance: big.NewInt(0), LoanedBalance: big.NewInt(0)}
	p.UniqueUsers = 0

	pid, err := e.state.AppendPool(p)
	if err != nil {
		return 0, err
	}
	e.ledger.RequestMetadata(p.TokenInfo.Token)
	e.emit(NewCreatedEvent(pid, p))
	return pid, nil
}

// EditPool replaces the configurable fields of an existing pool. Live
// accounting state survives the edit: funds, the unique-user counter and
// the underlying token binding are carried over from the stored pool.
func (e *Engine) EditPool(caller crypto.Address, pid uint64, template *Pool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if template == nil {
		return errPoolNotFound
	}
	current, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	next := template.Clone()
	next.EnsureDefaults()
	if err := validateLimits(next); err != nil {
		return err
	}
	next.Funds = current.Funds
	next.UniqueUsers = current.UniqueUsers
	next.TokenInfo.Token = current.TokenInfo.Token

	if err := e.state.PutPool(pid, next); err != nil {
		return err
	}
	e.emit(NewUpdatedEvent(pid, next))
	return nil
}

// SetPoolPaused flips the per-pool pause flag. Paused pools reject deposits
// and borrows but keep every exit path open.
func (e *Engine) SetPoolPaused(caller crypto.Address, pid uint64, paused bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	p.Paused = paused
	if err := e.state.PutPool(pid, p); err != nil {
		return err
	}
	e.emit(NewPausedEvent(pid, p))
	return nil
}

// SetWhitelist grants or revokes borrow access on a loan pool.
func (e *Engine) SetWhitelist(caller crypto.Address, pid uint64, account crypto.Address, status bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	if p.Type != TypeLoan {
		return errNotLoanPool
	}
	if err := e.state.SetWhitelisted(pid, account, status); err != nil {
		return err
	}
	e.emit(NewWhitelistEvent(pid, account, status))
	return nil
}

// RecoverToken sweeps stray holdings of an arbitrary token back to the
// contract account. Pure outbound transfer; no pool state is touched.
func (e *Engine) RecoverToken(caller, tokenID crypto.Address, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	e.ledger.Transfer(tokenID, e.contract, amount, recoverMemo)
	e.emit(NewTokenRecoveredEvent(tokenID, amount))
	return nil
}

// ApplyTokenMetadata lands an asynchronous metadata fetch, refreshing the
// display caches of every pool bound to the token.
func (e *Engine) ApplyTokenMetadata(tokenID crypto.Address, meta token.Metadata) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	count, err := e.state.PoolCount()
	if err != nil {
		return err
	}
	for pid := uint64(0); pid < count; pid++ {
		p, err := e.loadPool(pid)
		if err != nil {
			return err
		}
		if !p.TokenInfo.Token.Equal(tokenID) {
			continue
		}
		p.TokenInfo.Decimals = meta.Decimals
		p.TokenInfo.Name = meta.Name
		p.TokenInfo.Symbol = meta.Symbol
		if err := e.state.PutPool(pid, p); err != nil {
			return err
		}
	}
	return nil
}
