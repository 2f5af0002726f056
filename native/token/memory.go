package token

import (
	"math/big"
	"sync"

	"stakehub/core/types"
	"stakehub/crypto"
)

// MemoryLedger is a synchronous in-process Ledger used by tests and local
// tooling. It records every request in order and applies mint/burn/transfer
// against per-token account balances so assertions can observe both the
// request stream and the resulting remote-side state.
type MemoryLedger struct {
	mu       sync.Mutex
	self     crypto.Address
	requests []Request
	accounts map[string]map[string]*types.Account
	metadata map[string]Metadata
}

// NewMemoryLedger creates a ledger fake. self identifies the pool contract
// account whose holdings outbound transfers are drawn from.
func NewMemoryLedger(self crypto.Address) *MemoryLedger {
	return &MemoryLedger{
		self:     self,
		accounts: make(map[string]map[string]*types.Account),
		metadata: make(map[string]Metadata),
	}
}

// Requests returns a copy of every request seen so far, in issue order.
func (m *MemoryLedger) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// BalanceOf reports the recorded balance of account on the given token.
func (m *MemoryLedger) BalanceOf(token, account crypto.Address) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc := m.lookup(token, account)
	return new(big.Int).Set(acc.Balance)
}

// SetMetadata seeds the metadata returned for a token.
func (m *MemoryLedger) SetMetadata(token crypto.Address, meta Metadata) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[token.String()] = meta
}

// Mint implements Ledger.
func (m *MemoryLedger) Mint(token, account crypto.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Request{Op: OpMint, Token: token, Account: account, Amount: cloneAmount(amount)})
	acc := m.lookup(token, account)
	acc.Balance = new(big.Int).Add(acc.Balance, cloneAmount(amount))
	acc.Nonce++
}

// Burn implements Ledger.
func (m *MemoryLedger) Burn(token, account crypto.Address, amount *big.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Request{Op: OpBurn, Token: token, Account: account, Amount: cloneAmount(amount)})
	acc := m.lookup(token, account)
	acc.Balance = new(big.Int).Sub(acc.Balance, cloneAmount(amount))
	if acc.Balance.Sign() < 0 {
		acc.Balance = big.NewInt(0)
	}
	acc.Nonce++
}

// Transfer implements Ledger.
func (m *MemoryLedger) Transfer(token, account crypto.Address, amount *big.Int, memo string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Request{Op: OpTransfer, Token: token, Account: account, Amount: cloneAmount(amount), Memo: memo})
	from := m.lookup(token, m.self)
	to := m.lookup(token, account)
	amt := cloneAmount(amount)
	from.Balance = new(big.Int).Sub(from.Balance, amt)
	if from.Balance.Sign() < 0 {
		from.Balance = big.NewInt(0)
	}
	to.Balance = new(big.Int).Add(to.Balance, amt)
	from.Nonce++
}

// RequestMetadata implements Ledger. The fake only records the request;
// tests deliver metadata explicitly through their own callbacks.
func (m *MemoryLedger) RequestMetadata(token crypto.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(Request{Op: OpMetadata, Token: token})
}

// FetchMetadata implements Sender so the fake can back a Dispatcher.
func (m *MemoryLedger) FetchMetadata(token crypto.Address) (Metadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metadata[token.String()], nil
}

// Send implements Sender.
func (m *MemoryLedger) Send(req Request) error {
	switch req.Op {
	case OpMint:
		m.Mint(req.Token, req.Account, req.Amount)
	case OpBurn:
		m.Burn(req.Token, req.Account, req.Amount)
	case OpTransfer:
		m.Transfer(req.Token, req.Account, req.Amount, req.Memo)
	}
	return nil
}

func (m *MemoryLedger) record(req Request) {
	m.requests = append(m.requests, req)
}

func (m *MemoryLedger) lookup(token, account crypto.Address) *types.Account {
	holders, ok := m.accounts[token.String()]
	if !ok {
		holders = make(map[string]*types.Account)
		m.accounts[token.String()] = holders
	}
	acc, ok := holders[account.String()]
	if !ok {
		acc = &types.Account{Balance: big.NewInt(0)}
		holders[account.String()] = acc
	}
	acc.EnsureDefaults()
	return acc
}
