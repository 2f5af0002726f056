package pool

import (
	"fmt"
	"math/big"

	"stakehub/crypto"
)

// PoolType distinguishes the two accounting domains a pool can run.
type PoolType uint8

const (
	// TypeStaking is a time-locked yield pool with a fixed deposit window.
	TypeStaking PoolType = iota
	// TypeLoan is a borrow/repay pool with utilisation-weighted yield.
	TypeLoan
)

func (t PoolType) String() string {
	switch t {
	case TypeStaking:
		return "staking"
	case TypeLoan:
		return "loan"
	default:
		return fmt.Sprintf("pooltype(%d)", uint8(t))
	}
}

// MarshalText encodes the pool type as its canonical string form.
func (t PoolType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes the canonical string form.
func (t *PoolType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "staking":
		*t = TypeStaking
	case "loan":
		*t = TypeLoan
	default:
		return fmt.Errorf("pool: unknown pool type %q", string(text))
	}
	return nil
}

// TxKind distinguishes stake entries from borrow entries in a position list.
type TxKind uint8

const (
	// TxStaking marks a deposit position.
	TxStaking TxKind = iota
	// TxBorrow marks a drawn-down loan position.
	TxBorrow
)

func (k TxKind) String() string {
	switch k {
	case TxStaking:
		return "staking"
	case TxBorrow:
		return "borrow"
	default:
		return fmt.Sprintf("txkind(%d)", uint8(k))
	}
}

// MarshalText encodes the transaction kind as its canonical string form.
func (k TxKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes the canonical string form.
func (k *TxKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "staking":
		*k = TxStaking
	case "borrow":
		*k = TxBorrow
	default:
		return fmt.Errorf("pool: unknown transaction kind %q", string(text))
	}
	return nil
}

// TokenInfo links a pool to its underlying asset and claim token on the
// external ledger. Decimals, name and symbol are display caches refreshed
// by an asynchronous metadata fetch; readers must tolerate staleness
// between the request and the callback.
type TokenInfo struct {
	Token           crypto.Address `json:"token"`
	CollateralToken crypto.Address `json:"collateralToken"`
	Decimals        uint8          `json:"decimals"`
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
}

// DepositLimiters bundles the admission controls applied before any
// balance-changing operation. Times are unix milliseconds; MaxUtilisation
// is on the 0-100 scale.
type DepositLimiters struct {
	Duration       uint64   `json:"duration"`
	StartTime      uint64   `json:"startTime"`
	EndTime        uint64   `json:"endTime"`
	LimitPerUser   *big.Int `json:"limitPerUser"`
	Capacity       *big.Int `json:"capacity"`
	MaxUtilisation *big.Int `json:"maxUtilisation"`
}

// Funds tracks the live liquidity counters of a pool. LoanedBalance never
// exceeds Balance.
type Funds struct {
	Balance       *big.Int `json:"balance"`
	LoanedBalance *big.Int `json:"loanedBalance"`
}

// Pool is one isolated accounting domain. Pools live in an append-only
// sequence; the index assigned at creation is the stable pool id and is
// never reused.
type Pool struct {
	Name            string          `json:"name"`
	Type            PoolType        `json:"type"`
	APY             *big.Int        `json:"apy"` // annual yield, integer scaled x100
	Paused          bool            `json:"paused"`
	QuarterlyPayout bool            `json:"quarterlyPayout"`
	UniqueUsers     uint64          `json:"uniqueUsers"`
	TokenInfo       TokenInfo       `json:"tokenInfo"`
	Funds           Funds           `json:"funds"`
	Limits          DepositLimiters `json:"depositLimiters"`
}

// Position is one stake or borrow event. Amount is the remaining principal,
// Time the interest-accrual anchor for loan positions (reset on every
// partial withdraw/repay), PaidOut the cumulative reward already settled.
type Position struct {
	Kind    TxKind   `json:"kind"`
	Amount  *big.Int `json:"amount"`
	Time    uint64   `json:"time"`
	PaidOut *big.Int `json:"paidOut"`
}

// Clone returns a deep copy of the position.
func (p Position) Clone() Position {
	clone := Position{Kind: p.Kind, Time: p.Time}
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	}
	if p.PaidOut != nil {
		clone.PaidOut = new(big.Int).Set(p.PaidOut)
	}
	return clone
}

// EnsureDefaults populates nil big.Int fields so codec handling is safe.
func (p *Position) EnsureDefaults() {
	if p.Amount == nil {
		p.Amount = big.NewInt(0)
	}
	if p.PaidOut == nil {
		p.PaidOut = big.NewInt(0)
	}
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := &Pool{
		Name:            p.Name,
		Type:            p.Type,
		Paused:          p.Paused,
		QuarterlyPayout: p.QuarterlyPayout,
		UniqueUsers:     p.UniqueUsers,
		TokenInfo:       p.TokenInfo,
		Limits: DepositLimiters{
			Duration:  p.Limits.Duration,
			StartTime: p.Limits.StartTime,
			EndTime:   p.Limits.EndTime,
		},
	}
	if p.APY != nil {
		clone.APY = new(big.Int).Set(p.APY)
	}
	if p.Funds.Balance != nil {
		clone.Funds.Balance = new(big.Int).Set(p.Funds.Balance)
	}
	if p.Funds.LoanedBalance != nil {
		clone.Funds.LoanedBalance = new(big.Int).Set(p.Funds.LoanedBalance)
	}
	if p.Limits.LimitPerUser != nil {
		clone.Limits.LimitPerUser = new(big.Int).Set(p.Limits.LimitPerUser)
	}
	if p.Limits.Capacity != nil {
		clone.Limits.Capacity = new(big.Int).Set(p.Limits.Capacity)
	}
	if p.Limits.MaxUtilisation != nil {
		clone.Limits.MaxUtilisation = new(big.Int).Set(p.Limits.MaxUtilisation)
	}
	return clone
}

// EnsureDefaults populates nil big.Int fields so codec handling is safe.
func (p *Pool) EnsureDefaults() {
	if p.APY == nil {
		p.APY = big.NewInt(0)
	}
	if p.Funds.Balance == nil {
		p.Funds.Balance = big.NewInt(0)
	}
	if p.Funds.LoanedBalance == nil {
		p.Funds.LoanedBalance = big.NewInt(0)
	}
	if p.Limits.LimitPerUser == nil {
		p.Limits.LimitPerUser = big.NewInt(0)
	}
	if p.Limits.Capacity == nil {
		p.Limits.Capacity = big.NewInt(0)
	}
	if p.Limits.MaxUtilisation == nil {
		p.Limits.MaxUtilisation = big.NewInt(0)
	}
}
