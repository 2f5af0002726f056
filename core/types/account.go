package types

import "math/big"

// Account is the balance record a fungible-token ledger keeps per holder.
// The staking-pool contract itself never owns these records; they exist so
// in-process ledger fakes and reconciliation tooling share one shape.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// EnsureDefaults populates nil big.Int fields so JSON handling is safe.
func (a *Account) EnsureDefaults() {
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
}
