package token

import (
	"log/slog"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"stakehub/crypto"
	"stakehub/observability/metrics"
)

const defaultQueueDepth = 256

// MetadataHandler receives metadata responses once the remote ledger
// answers a RequestMetadata call.
type MetadataHandler func(token crypto.Address, meta Metadata)

// Dispatcher is the asynchronous Ledger implementation. Requests are queued
// after the caller has already committed its local state; the dispatcher
// hands them to the Sender on a background goroutine and never reports the
// outcome back to the caller. Failures are logged and counted so operators
// can reconcile the gap between local accounting and the remote ledger;
// there is no retry and no rollback.
type Dispatcher struct {
	sender     Sender
	log        *slog.Logger
	onMetadata MetadataHandler

	queue chan Request

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts the background send loop. A nil logger falls back to
// slog.Default.
func NewDispatcher(sender Sender, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		sender: sender,
		log:    log,
		queue:  make(chan Request, defaultQueueDepth),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// SetMetadataHandler wires the callback invoked when metadata responses
// arrive. Must be called before the first RequestMetadata.
func (d *Dispatcher) SetMetadataHandler(h MetadataHandler) {
	if d == nil {
		return
	}
	d.onMetadata = h
}

// Close drains the queue and stops the send loop.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Mint implements Ledger.
func (d *Dispatcher) Mint(token, account crypto.Address, amount *big.Int) {
	d.enqueue(Request{Op: OpMint, Token: token, Account: account, Amount: cloneAmount(amount)})
}

// Burn implements Ledger.
func (d *Dispatcher) Burn(token, account crypto.Address, amount *big.Int) {
	d.enqueue(Request{Op: OpBurn, Token: token, Account: account, Amount: cloneAmount(amount)})
}

// Transfer implements Ledger.
func (d *Dispatcher) Transfer(token, account crypto.Address, amount *big.Int, memo string) {
	d.enqueue(Request{Op: OpTransfer, Token: token, Account: account, Amount: cloneAmount(amount), Memo: memo})
}

// RequestMetadata implements Ledger.
func (d *Dispatcher) RequestMetadata(token crypto.Address) {
	d.enqueue(Request{Op: OpMetadata, Token: token})
}

func (d *Dispatcher) enqueue(req Request) {
	if d == nil {
		return
	}
	req.ID = uuid.NewString()
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.log.Warn("token request dropped after dispatcher close",
			"id", req.ID, "op", string(req.Op), "token", req.Token.String())
		metrics.Pool().OutboxDropped()
		return
	}
	select {
	case d.queue <- req:
		metrics.Pool().OutboxDepth(len(d.queue))
	default:
		// Queue saturation widens the reconciliation gap instead of
		// blocking a ledger mutation mid-flight.
		d.log.Error("token request dropped, outbox full",
			"id", req.ID, "op", string(req.Op), "token", req.Token.String())
		metrics.Pool().OutboxDropped()
	}
	d.mu.Unlock()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for req := range d.queue {
		metrics.Pool().OutboxDepth(len(d.queue))
		if req.Op == OpMetadata {
			d.fetchMetadata(req)
			continue
		}
		if d.sender == nil {
			continue
		}
		if err := d.sender.Send(req); err != nil {
			d.log.Error("token request failed, remote ledger out of sync",
				"id", req.ID, "op", string(req.Op), "token", req.Token.String(), "err", err)
			metrics.Pool().OutboxFailed(string(req.Op))
		}
	}
}

func (d *Dispatcher) fetchMetadata(req Request) {
	if d.sender == nil || d.onMetadata == nil {
		return
	}
	meta, err := d.sender.FetchMetadata(req.Token)
	if err != nil {
		d.log.Warn("token metadata fetch failed",
			"id", req.ID, "token", req.Token.String(), "err", err)
		metrics.Pool().OutboxFailed(string(OpMetadata))
		return
	}
	d.onMetadata(req.Token, meta)
}

func cloneAmount(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
