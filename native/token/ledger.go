package token

import (
	"math/big"

	"stakehub/crypto"
)

// Metadata mirrors the display fields a fungible-token ledger exposes.
type Metadata struct {
	Decimals uint8  `json:"decimals"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
}

// Ledger is the outbound boundary to the external fungible-token service.
// Every call is a fire-and-forget request: the caller commits its own state
// first and never observes the outcome of the remote operation. Failed or
// delayed requests therefore leave local accounting ahead of the remote
// ledger until operators reconcile (see Dispatcher).
type Ledger interface {
	// Mint credits freshly issued claim tokens to an account. Privileged on
	// the remote side; only the pool contract account may request it.
	Mint(token, account crypto.Address, amount *big.Int)
	// Burn destroys claim tokens held by an account.
	Burn(token, account crypto.Address, amount *big.Int)
	// Transfer moves the contract's own holdings of token to an account,
	// attaching the minimal deposit unit the remote ledger requires.
	Transfer(token, account crypto.Address, amount *big.Int, memo string)
	// RequestMetadata asks the token ledger for decimals/name/symbol. The
	// response arrives later through the dispatcher's metadata callback.
	RequestMetadata(token crypto.Address)
}

// Op identifies the remote operation a queued request represents.
type Op string

const (
	OpMint     Op = "mint"
	OpBurn     Op = "burn"
	OpTransfer Op = "transfer"
	OpMetadata Op = "metadata"
)

// Request is one queued remote-ledger call. The ID ties log lines and
// metrics for an unconfirmed request back to the operation that issued it.
type Request struct {
	ID      string
	Op      Op
	Token   crypto.Address
	Account crypto.Address
	Amount  *big.Int
	Memo    string
}

// Sender carries requests across the transport boundary. Transports are out
// of scope for this module; implementations range from the in-memory fake
// used in tests to a wire client in the host service.
type Sender interface {
	Send(Request) error
	FetchMetadata(token crypto.Address) (Metadata, error)
}
