package token

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"stakehub/crypto"
)

func testAccount(fill byte) crypto.Address {
	b := make([]byte, 20)
	for i := range b {
		b[i] = fill
	}
	return crypto.MustNewAddress(crypto.AccountPrefix, b)
}

func testToken(fill byte) crypto.Address {
	b := make([]byte, 20)
	for i := range b {
		b[i] = fill
	}
	return crypto.MustNewAddress(crypto.TokenPrefix, b)
}

// failingSender rejects every request so failure handling can be observed.
type failingSender struct {
	mu    sync.Mutex
	seen  []Request
	fails int
}

func (f *failingSender) Send(req Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, req)
	f.fails++
	return errors.New("remote unavailable")
}

func (f *failingSender) FetchMetadata(crypto.Address) (Metadata, error) {
	return Metadata{}, errors.New("remote unavailable")
}

func TestDispatcherDeliversRequests(t *testing.T) {
	contract := testAccount(0x01)
	user := testAccount(0x02)
	asset := testToken(0x0a)

	remote := NewMemoryLedger(contract)
	d := NewDispatcher(remote, nil)

	d.Mint(asset, user, big.NewInt(100))
	d.Burn(asset, user, big.NewInt(40))
	d.Transfer(asset, user, big.NewInt(10), "0")
	d.Close()

	reqs := remote.Requests()
	if len(reqs) != 3 {
		t.Fatalf("requests = %d, want 3", len(reqs))
	}
	// Requests carry unique ids and arrive in issue order.
	if reqs[0].Op != OpMint || reqs[1].Op != OpBurn || reqs[2].Op != OpTransfer {
		t.Fatalf("unexpected order: %v %v %v", reqs[0].Op, reqs[1].Op, reqs[2].Op)
	}
	// Mint 100, burn 40, then the outbound transfer credits 10 more.
	if remote.BalanceOf(asset, user).Cmp(big.NewInt(70)) != 0 {
		t.Fatalf("balance = %s, want 70", remote.BalanceOf(asset, user))
	}
}

func TestDispatcherMetadataCallback(t *testing.T) {
	contract := testAccount(0x01)
	asset := testToken(0x0a)

	remote := NewMemoryLedger(contract)
	remote.SetMetadata(asset, Metadata{Decimals: 18, Name: "Asset", Symbol: "AST"})

	d := NewDispatcher(remote, nil)
	var (
		mu   sync.Mutex
		got  Metadata
		seen bool
	)
	d.SetMetadataHandler(func(tok crypto.Address, meta Metadata) {
		mu.Lock()
		defer mu.Unlock()
		if tok.Equal(asset) {
			got = meta
			seen = true
		}
	})

	d.RequestMetadata(asset)
	d.Close()

	mu.Lock()
	defer mu.Unlock()
	if !seen {
		t.Fatal("metadata callback not invoked")
	}
	if got.Decimals != 18 || got.Symbol != "AST" {
		t.Fatalf("metadata = %+v", got)
	}
}

func TestDispatcherFireAndForgetOnFailure(t *testing.T) {
	sender := &failingSender{}
	d := NewDispatcher(sender, nil)

	// Send failures are swallowed: the caller's state is already committed
	// and there is no retry, only logs and counters.
	d.Mint(testToken(0x0a), testAccount(0x02), big.NewInt(1))
	d.Close()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if sender.fails != 1 {
		t.Fatalf("fails = %d, want 1", sender.fails)
	}
}

func TestDispatcherDropsAfterClose(t *testing.T) {
	contract := testAccount(0x01)
	remote := NewMemoryLedger(contract)
	d := NewDispatcher(remote, nil)
	d.Close()

	d.Mint(testToken(0x0a), testAccount(0x02), big.NewInt(1))
	// Give a straggler a moment; nothing may arrive.
	time.Sleep(10 * time.Millisecond)
	if len(remote.Requests()) != 0 {
		t.Fatalf("requests = %d, want 0 after close", len(remote.Requests()))
	}
}
