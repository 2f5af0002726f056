package pool

import (
	"math/big"
	"strconv"

	"stakehub/core/types"
	"stakehub/crypto"
)

const (
	EventTypePoolCreated        = "pool.created"
	EventTypePoolUpdated        = "pool.updated"
	EventTypePoolPaused         = "pool.paused"
	EventTypeWhitelistUpdated   = "pool.whitelistUpdated"
	EventTypeStaked             = "pool.staked"
	EventTypeWithdrawn          = "pool.withdrawn"
	EventTypeEmergencyWithdrawn = "pool.emergencyWithdrawn"
	EventTypeBorrowed           = "pool.borrowed"
	EventTypeRepaid             = "pool.repaid"
	EventTypeRewardsPaid        = "pool.rewardsPaid"
	EventTypeTokenRecovered     = "pool.tokenRecovered"
)

func newPoolEvent(eventType string, pid uint64, p *Pool) *types.Event {
	attrs := map[string]string{
		"pid":  strconv.FormatUint(pid, 10),
		"name": p.Name,
		"type": p.Type.String(),
	}
	if p.Funds.Balance != nil {
		attrs["balance"] = p.Funds.Balance.String()
	}
	if p.Funds.LoanedBalance != nil {
		attrs["loanedBalance"] = p.Funds.LoanedBalance.String()
	}
	attrs["uniqueUsers"] = strconv.FormatUint(p.UniqueUsers, 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newAccountAmountEvent(eventType string, pid uint64, account crypto.Address, amount *big.Int) *types.Event {
	attrs := map[string]string{
		"pid":     strconv.FormatUint(pid, 10),
		"account": account.String(),
	}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewCreatedEvent returns the canonical payload for a freshly created pool.
func NewCreatedEvent(pid uint64, p *Pool) *types.Event {
	return newPoolEvent(EventTypePoolCreated, pid, p)
}

// NewUpdatedEvent returns the canonical payload for an edited pool.
func NewUpdatedEvent(pid uint64, p *Pool) *types.Event {
	return newPoolEvent(EventTypePoolUpdated, pid, p)
}

// NewPausedEvent returns the payload emitted when a pool pause flag flips.
func NewPausedEvent(pid uint64, p *Pool) *types.Event {
	evt := newPoolEvent(EventTypePoolPaused, pid, p)
	evt.Attributes["paused"] = strconv.FormatBool(p.Paused)
	return evt
}

// NewWhitelistEvent returns the payload emitted when a loan-pool whitelist
// entry changes.
func NewWhitelistEvent(pid uint64, account crypto.Address, status bool) *types.Event {
	return &types.Event{Type: EventTypeWhitelistUpdated, Attributes: map[string]string{
		"pid":     strconv.FormatUint(pid, 10),
		"account": account.String(),
		"status":  strconv.FormatBool(status),
	}}
}

// NewStakedEvent returns the payload for an accepted deposit.
func NewStakedEvent(pid uint64, staker crypto.Address, amount *big.Int) *types.Event {
	return newAccountAmountEvent(EventTypeStaked, pid, staker, amount)
}

// NewWithdrawnEvent returns the payload for a settled withdrawal.
func NewWithdrawnEvent(pid uint64, account crypto.Address, amount *big.Int) *types.Event {
	return newAccountAmountEvent(EventTypeWithdrawn, pid, account, amount)
}

// NewEmergencyWithdrawnEvent returns the payload for an emergency-path
// withdrawal, which forfeits rewards.
func NewEmergencyWithdrawnEvent(pid uint64, account crypto.Address, amount *big.Int) *types.Event {
	return newAccountAmountEvent(EventTypeEmergencyWithdrawn, pid, account, amount)
}

// NewBorrowedEvent returns the payload for an accepted borrow.
func NewBorrowedEvent(pid uint64, borrower crypto.Address, amount *big.Int) *types.Event {
	return newAccountAmountEvent(EventTypeBorrowed, pid, borrower, amount)
}

// NewRepaidEvent returns the payload for a processed repayment. amount is
// the full inbound transfer, principal the settled share of it.
func NewRepaidEvent(pid uint64, borrower crypto.Address, amount, principal *big.Int) *types.Event {
	evt := newAccountAmountEvent(EventTypeRepaid, pid, borrower, amount)
	if principal != nil {
		evt.Attributes["principal"] = principal.String()
	}
	return evt
}

// NewRewardsPaidEvent returns the payload for a reward settlement.
func NewRewardsPaidEvent(pid uint64, account crypto.Address, claimable *big.Int) *types.Event {
	return newAccountAmountEvent(EventTypeRewardsPaid, pid, account, claimable)
}

// NewTokenRecoveredEvent returns the payload for an owner-initiated sweep of
// stray token holdings.
func NewTokenRecoveredEvent(token crypto.Address, amount *big.Int) *types.Event {
	attrs := map[string]string{"token": token.String()}
	if amount != nil {
		attrs["amount"] = amount.String()
	}
	return &types.Event{Type: EventTypeTokenRecovered, Attributes: attrs}
}
