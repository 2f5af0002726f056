package pool

import (
	"errors"
	"math/big"
	"time"

	"stakehub/core/events"
	"stakehub/core/types"
	"stakehub/crypto"
	nativecommon "stakehub/native/common"
	"stakehub/native/token"
)

var (
	errNilState              = errors.New("pool engine: state not configured")
	errNilLedger             = errors.New("pool engine: token ledger not configured")
	errNotOwner              = errors.New("pool engine: caller not allowed")
	errPoolNotFound          = errors.New("pool engine: pool not found")
	errInvalidAmount         = errors.New("pool engine: amount must be positive")
	errPoolPaused            = errors.New("pool engine: pool paused")
	errWrongToken            = errors.New("pool engine: invalid token or pool id")
	errDepositsClosed        = errors.New("pool engine: deposits disabled at this time")
	errOverUserLimit         = errors.New("pool engine: amount exceeds limit per transaction")
	errCapacityReached       = errors.New("pool engine: pool capacity reached")
	errNotWhitelisted        = errors.New("pool engine: only whitelisted can borrow")
	errUtilisationMaxed      = errors.New("pool engine: utilisation maxed out")
	errNothingDeposited      = errors.New("pool engine: nothing deposited")
	errHighUtilisation       = errors.New("pool engine: high utilisation")
	errNotLoanPool           = errors.New("pool engine: no loans from here")
	errNotStakingPool        = errors.New("pool engine: pool type not staking")
	errNotStaked             = errors.New("pool engine: not staked")
	errNotBorrowed           = errors.New("pool engine: not borrowed")
	errAmountExceedsPosition = errors.New("pool engine: amount greater than transaction")
	errRepayExceedsBorrowed  = errors.New("pool engine: repay amount greater than borrowed")
	errInsufficientRepay     = errors.New("pool engine: amount less than repay amount plus interest")
	errWithdrawTooEarly      = errors.New("pool engine: withdrawing too early")
	errInvalidWindow         = errors.New("pool engine: end time should be after start time")
	errQuarterlyDisabled     = errors.New("pool engine: quarterly payout disabled for pool")
	errQuarterlyNotStarted   = errors.New("pool engine: payout period not started")
	errQuarterlyTooEarly     = errors.New("pool engine: too early for quarterly payout")
	errPositionNotFound      = errors.New("pool engine: position not found")
	errInvalidRange          = errors.New("pool engine: invalid range")
)

const moduleName = "pool"

// recoverMemo is the minimal transfer memo the external ledger expects.
const recoverMemo = "0"

// EngineState is the persistence boundary for the accounting engine. The
// pool sequence is append-only and index-addressed; the four per-(pool,
// account) maps mirror the persisted layout. Every public operation runs to
// completion as one atomic unit of work against this state; the host is
// expected to serialise calls against a single engine instance.
type EngineState interface {
	PoolCount() (uint64, error)
	GetPool(pid uint64) (*Pool, error)
	PutPool(pid uint64, p *Pool) error
	AppendPool(p *Pool) (uint64, error)

	IsPoolUser(pid uint64, addr crypto.Address) (bool, error)
	SetPoolUser(pid uint64, addr crypto.Address, member bool) error
	IsWhitelisted(pid uint64, addr crypto.Address) (bool, error)
	SetWhitelisted(pid uint64, addr crypto.Address, status bool) error

	GetPositions(pid uint64, addr crypto.Address) ([]Position, error)
	PutPositions(pid uint64, addr crypto.Address, list []Position) error

	GetStakedTotal(pid uint64, addr crypto.Address) (*big.Int, error)
	PutStakedTotal(pid uint64, addr crypto.Address, v *big.Int) error
	GetBorrowedTotal(pid uint64, addr crypto.Address) (*big.Int, error)
	PutBorrowedTotal(pid uint64, addr crypto.Address, v *big.Int) error
}

type poolEvent struct {
	evt *types.Event
}

func (e poolEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e poolEvent) Event() *types.Event { return e.evt }

// Engine orchestrates the state transitions of the multi-pool ledger. All
// token movements it requests from the external ledger are fire-and-forget:
// local state commits first and the remote outcome is never awaited.
type Engine struct {
	state    EngineState
	ledger   token.Ledger
	emitter  events.Emitter
	pauses   nativecommon.PauseView
	owner    crypto.Address
	contract crypto.Address
	nowFn    func() uint64
}

// NewEngine constructs an engine bound to the contract-owner account and the
// contract's own account on external token ledgers.
func NewEngine(owner, contract crypto.Address) *Engine {
	return &Engine{
		owner:    owner,
		contract: contract,
		emitter:  events.NoopEmitter{},
		nowFn:    func() uint64 { return uint64(time.Now().UnixMilli()) },
	}
}

// SetState wires the engine to the persistence layer.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetLedger wires the engine to the external token-ledger boundary.
func (e *Engine) SetLedger(ledger token.Ledger) { e.ledger = ledger }

// SetPauses installs the module-level pause view consulted before every
// mutation, on top of the per-pool pause flags.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the millisecond time source. Primarily intended for
// tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() uint64) {
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().UnixMilli()) }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().UnixMilli())
	}
	return e.nowFn()
}

func (e *Engine) emit(evt *types.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(poolEvent{evt: evt})
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) loadPool(pid uint64) (*Pool, error) {
	p, err := e.state.GetPool(pid)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errPoolNotFound
	}
	p.EnsureDefaults()
	return p, nil
}

func (e *Engine) loadPositions(pid uint64, addr crypto.Address) ([]Position, error) {
	list, err := e.state.GetPositions(pid, addr)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].EnsureDefaults()
	}
	return list, nil
}

func (e *Engine) loadTotal(get func(uint64, crypto.Address) (*big.Int, error), pid uint64, addr crypto.Address) (*big.Int, error) {
	v, err := get(pid, addr)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return big.NewInt(0), nil
	}
	return v, nil
}

// markPoolUser flags the account as a member of the pool, bumping the
// unique-user counter on first contact.
func (e *Engine) markPoolUser(pid uint64, addr crypto.Address, p *Pool) error {
	member, err := e.state.IsPoolUser(pid, addr)
	if err != nil {
		return err
	}
	if !member {
		p.UniqueUsers++
	}
	return e.state.SetPoolUser(pid, addr, true)
}

// cleanupPosition removes a zeroed position via swap-with-last and clears
// pool membership when the list empties. Position indices are unstable
// across removals; callers must not cache them across mutating calls.
func (e *Engine) cleanupPosition(pid uint64, addr crypto.Address, index int, list []Position, p *Pool) ([]Position, error) {
	if index < len(list) && list[index].Amount.Sign() == 0 {
		list[index] = list[len(list)-1]
		list = list[:len(list)-1]
	}
	if len(list) == 0 {
		member, err := e.state.IsPoolUser(pid, addr)
		if err != nil {
			return nil, err
		}
		if member {
			if err := e.state.SetPoolUser(pid, addr, false); err != nil {
				return nil, err
			}
			if p.UniqueUsers > 0 {
				p.UniqueUsers--
			}
		}
	}
	return list, nil
}

// OnTransfer is the inbound notification handler the external token ledger
// invokes when this contract receives tokens. The attached message selects
// the flow; the returned code (1 = stake, 2 = repay) acknowledges it.
func (e *Engine) OnTransfer(sender, tokenID crypto.Address, amount *big.Int, msg string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	cmd, err := ParseTransferMessage(msg)
	if err != nil {
		return 0, err
	}
	switch cmd.Kind {
	case CommandStake:
		if err := e.depositAndStake(sender, cmd.PoolID, tokenID, amount); err != nil {
			return 0, err
		}
		return ResultStaked, nil
	case CommandRepay:
		if err := e.repay(sender, cmd.PoolID, cmd.Index, tokenID, amount, cmd.RepayAmount); err != nil {
			return 0, err
		}
		return ResultRepaid, nil
	default:
		return 0, errUnknownCommand
	}
}

// depositAndStake admits an inbound deposit into a pool and opens a staking
// position. Reached only through OnTransfer.
func (e *Engine) depositAndStake(staker crypto.Address, pid uint64, tokenID crypto.Address, amount *big.Int) error {
	p, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	if p.Paused {
		return errPoolPaused
	}
	if !p.TokenInfo.Token.Equal(tokenID) {
		return errWrongToken
	}
	now := e.now()
	if p.Type == TypeStaking {
		if now < p.Limits.StartTime || now > p.Limits.EndTime {
			return errDepositsClosed
		}
	}
	if amount.Cmp(p.Limits.LimitPerUser) > 0 {
		return errOverUserLimit
	}
	projected := new(big.Int).Add(p.Funds.Balance, amount)
	if projected.Cmp(p.Limits.Capacity) > 0 {
		return errCapacityReached
	}

	list, err := e.loadPositions(pid, staker)
	if err != nil {
		return err
	}
	list = append(list, Position{Kind: TxStaking, Amount: new(big.Int).Set(amount), Time: now, PaidOut: big.NewInt(0)})
	if err := e.state.PutPositions(pid, staker, list); err != nil {
		return err
	}

	staked, err := e.loadTotal(e.state.GetStakedTotal, pid, staker)
	if err != nil {
		return err
	}
	if err := e.state.PutStakedTotal(pid, staker, new(big.Int).Add(staked, amount)); err != nil {
		return err
	}

	p.Funds.Balance = projected
	if err := e.markPoolUser(pid, staker, p); err != nil {
		return err
	}
	if err := e.state.PutPool(pid, p); err != nil {
		return err
	}

	// Local state is committed; the claim-token mint is a message to the
	// external ledger and is never awaited.
	e.ledger.Mint(p.TokenInfo.CollateralToken, staker, amount)
	e.emit(NewStakedEvent(pid, staker, amount))
	return nil
}

// Withdraw returns principal (and settled rewards) from a staking position.
// Attempts made before the deposit window closes are routed to the
// emergency path, which skips reward settlement entirely.
func (e *Engine) Withdraw(caller crypto.Address, pid uint64, index int, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	now := e.now()
	if now < p.Limits.EndTime {
		return e.EmergencyWithdraw(caller, pid, index, amount)
	}

	list, err := e.loadPositions(pid, caller)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return errPositionNotFound
	}
	pos := list[index]
	if pos.Kind != TxStaking {
		return errNotStaked
	}
	if amount.Cmp(pos.Amount) > 0 {
		return errAmountExceedsPosition
	}
	if p.Type == TypeStaking {
		if now < p.Limits.EndTime+p.Limits.Duration {
			return errWithdrawTooEarly
		}
	} else {
		// Liquidity currently on loan cannot leave the pool, and the
		// withdrawal must keep utilisation under the ceiling.
		needed := new(big.Int).Add(p.Funds.LoanedBalance, amount)
		if p.Funds.Balance.Cmp(needed) < 0 {
			return errHighUtilisation
		}
		remaining := new(big.Int).Sub(p.Funds.Balance, amount)
		projected := percentage(p.Funds.LoanedBalance, remaining)
		if projected.Cmp(p.Limits.MaxUtilisation) >= 0 {
			return errUtilisationMaxed
		}
	}

	// Rewards settle before principal moves.
	list, _, err = e.settleRewards(caller, pid, index, list, p, now, amount)
	if err != nil {
		return err
	}

	list[index].Amount = new(big.Int).Sub(list[index].Amount, amount)
	list[index].Time = now

	staked, err := e.loadTotal(e.state.GetStakedTotal, pid, caller)
	if err != nil {
		return err
	}
	staked = new(big.Int).Sub(staked, amount)
	if staked.Sign() < 0 {
		staked = big.NewInt(0)
	}
	if err := e.state.PutStakedTotal(pid, caller, staked); err != nil {
		return err
	}

	p.Funds.Balance = new(big.Int).Sub(p.Funds.Balance, amount)

	list, err = e.cleanupPosition(pid, caller, index, list, p)
	if err != nil {
		return err
	}
	if err := e.state.PutPositions(pid, caller, list); err != nil {
		return err
	}
	if err := e.state.PutPool(pid, p); err != nil {
		return err
	}

	e.ledger.Burn(p.TokenInfo.CollateralToken, caller, amount)
	e.ledger.Transfer(p.TokenInfo.Token, caller, amount, recoverMemo)
	e.emit(NewWithdrawnEvent(pid, caller, amount))
	return nil
}

// EmergencyWithdraw returns principal without reward settlement, admission
// checks, or lock-duration checks. Any theoretically accrued reward is
// forfeited; pool funds and aggregates are deliberately left untouched so
// the escape hatch cannot be used to skew utilisation.
func (e *Engine) EmergencyWithdraw(caller crypto.Address, pid uint64, index int, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	list, err := e.loadPositions(pid, caller)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return errPositionNotFound
	}
	if amount.Cmp(list[index].Amount) > 0 {
		return errAmountExceedsPosition
	}

	list[index].Amount = new(big.Int).Sub(list[index].Amount, amount)
	list[index].Time = e.now()

	list, err = e.cleanupPosition(pid, caller, index, list, p)
	if err != nil {
		return err
	}
	if err := e.state.PutPositions(pid, caller, list); err != nil {
		return err
	}
	if err := e.state.PutPool(pid, p); err != nil {
		return err
	}

	e.ledger.Burn(p.TokenInfo.CollateralToken, caller, amount)
	e.ledger.Transfer(p.TokenInfo.Token, caller, amount, recoverMemo)
	e.emit(NewEmergencyWithdrawnEvent(pid, caller, amount))
	return nil
}

// Borrow draws pooled liquidity down to a whitelisted borrower and opens a
// borrow position anchored at the current time.
func (e *Engine) Borrow(caller crypto.Address, pid uint64, amount *big.Int) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	whitelisted, err := e.state.IsWhitelisted(pid, caller)
	if err != nil {
		return err
	}
	if !whitelisted {
		return errNotWhitelisted
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	if p.Type != TypeLoan {
		return errNotLoanPool
	}
	if p.Paused {
		return errPoolPaused
	}
	if p.Funds.Balance.Sign() == 0 {
		return errNothingDeposited
	}
	projectedLoaned := new(big.Int).Add(p.Funds.LoanedBalance, amount)
	if percentage(projectedLoaned, p.Funds.Balance).Cmp(p.Limits.MaxUtilisation) >= 0 {
		return errUtilisationMaxed
	}

	now := e.now()
	list, err := e.loadPositions(pid, caller)
	if err != nil {
		return err
	}
	list = append(list, Position{Kind: TxBorrow, Amount: new(big.Int).Set(amount), Time: now, PaidOut: big.NewInt(0)})
	if err := e.state.PutPositions(pid, caller, list); err != nil {
		return err
	}

	borrowed, err := e.loadTotal(e.state.GetBorrowedTotal, pid, caller)
	if err != nil {
		return err
	}
	if err := e.state.PutBorrowedTotal(pid, caller, new(big.Int).Add(borrowed, amount)); err != nil {
		return err
	}

	p.Funds.LoanedBalance = projectedLoaned
	if err := e.markPoolUser(pid, caller, p); err != nil {
		return err
	}
	if err := e.state.PutPool(pid, p); err != nil {
		return err
	}

	e.ledger.Transfer(p.TokenInfo.Token, caller, amount, recoverMemo)
	e.emit(NewBorrowedEvent(pid, caller, amount))
	return nil
}

// repay settles principal plus interest on a borrow position. The inbound
// transfer must cover repayAmount plus the interest owed on it in one shot;
// there is no partial-interest settlement path. Reached only through
// OnTransfer.
func (e *Engine) repay(borrower crypto.Address, pid uint64, index int, tokenID crypto.Address, amount, repayAmount *big.Int) error {
	p, err := e.loadPool(pid)
	if err != nil {
		return err
	}
	if !p.TokenInfo.Token.Equal(tokenID) {
		return errWrongToken
	}
	if p.Type != TypeLoan {
		return errNotLoanPool
	}
	list, err := e.loadPositions(pid, borrower)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(list) {
		return errPositionNotFound
	}
	pos := list[index]
	if pos.Kind != TxBorrow {
		return errNotBorrowed
	}
	if repayAmount == nil || repayAmount.Cmp(pos.Amount) > 0 {
		return errRepayExceedsBorrowed
	}
	now := e.now()
	interest, err := e.accruedInterest(p, pos, repayAmount, now, false)
	if err != nil {
		return err
	}
	owed := new(big.Int).Add(repayAmount, interest)
	if amount.Cmp(owed) < 0 {
		return errInsufficientRepay
	}

	list[index].Amount = new(big.Int).Sub(list[index].Amount, repayAmount)
	list[index].Time = now

	// The loan counters shrink by the full inbound amount, interest
	// included, matching the contract this ledger settles against. Values
	// floor at zero so over-repayment cannot drive them negative.
	borrowed, err := e.loadTotal(e.state.GetBorrowedTotal, pid, borrower)
	if err != nil {
		return err
	}
	borrowed = new(big.Int).Sub(borrowed, amount)
	if borrowed.Sign() < 0 {
		borrowed = big.NewInt(0)
	}
	if err := e.state.PutBorrowedTotal(pid, borrower, borrowed); err != nil {
		return err
	}
	p.Funds.LoanedBalance = new(big.Int).Sub(p.Funds.LoanedBalance, amount)
	if p.Funds.LoanedBalance.Sign() < 0 {
		p.Funds.LoanedBalance = big.NewInt(0)
	}

	list, err = e.cleanupPosition(pid, borrower, index, list, p)
	if err != nil {
		return err
	}
	if err := e.state.PutPositions(pid, borrower, list); err != nil {
		return err
	}
	if err := e.state.PutPool(pid, p); err != nil {
		return err
	}

	e.emit(NewRepaidEvent(pid, borrower, amount, repayAmount))
	return nil
}

// ClaimQuarterlyPayout settles accrued rewards for one staking position
// without moving principal. Available once per elapsed quarter on pools
// that enable it.
func (e *Engine) ClaimQuarterlyPayout(caller crypto.Address, pid uint64, index int) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	p, err := e.loadPool(pid)
	if err != nil {
		return nil, err
	}
	if !p.QuarterlyPayout {
		return nil, errQuarterlyDisabled
	}
	if p.Type != TypeStaking {
		return nil, errNotStakingPool
	}
	now := e.now()
	if now <= p.Limits.EndTime {
		return nil, errQuarterlyNotStarted
	}
	timeDiff := now - p.Limits.EndTime
	if timeDiff > p.Limits.Duration {
		timeDiff = p.Limits.Duration
	}
	if timeDiff/quarterMillis == 0 {
		return nil, errQuarterlyTooEarly
	}

	list, err := e.loadPositions(pid, caller)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list) {
		return nil, errPositionNotFound
	}
	list, claimable, err := e.settleRewards(caller, pid, index, list, p, now, list[index].Amount)
	if err != nil {
		return nil, err
	}
	if err := e.state.PutPositions(pid, caller, list); err != nil {
		return nil, err
	}
	return claimable, nil
}

// settleRewards computes the claimable reward (accrued interest minus what
// has already been paid out), requests the external transfer, and advances
// the position's paid-out watermark. PaidOut never decreases; the same
// accrued amount is never paid twice. The caller persists the returned
// position list.
func (e *Engine) settleRewards(receiver crypto.Address, pid uint64, index int, list []Position, p *Pool, now uint64, amount *big.Int) ([]Position, *big.Int, error) {
	if index < 0 || index >= len(list) {
		return nil, nil, errPositionNotFound
	}
	pos := list[index]
	reward, err := e.accruedInterest(p, pos, amount, now, true)
	if err != nil {
		return nil, nil, err
	}
	claimable := big.NewInt(0)
	if reward.Cmp(pos.PaidOut) > 0 {
		claimable = new(big.Int).Sub(reward, pos.PaidOut)
	}
	list[index].PaidOut = new(big.Int).Add(pos.PaidOut, claimable)

	if claimable.Sign() > 0 {
		e.ledger.Transfer(p.TokenInfo.Token, receiver, claimable, recoverMemo)
		e.emit(NewRewardsPaidEvent(pid, receiver, claimable))
	}
	return list, claimable, nil
}
