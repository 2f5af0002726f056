package pool

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Result codes returned to the external ledger's transfer-received hook.
const (
	// ResultStaked acknowledges a processed deposit-and-stake command.
	ResultStaked = 1
	// ResultRepaid acknowledges a processed repayment command.
	ResultRepaid = 2
)

// CommandKind tags the operation an inbound transfer requests.
type CommandKind uint8

const (
	// CommandStake routes the transfer into the deposit-and-stake flow.
	CommandStake CommandKind = iota
	// CommandRepay routes the transfer into the loan repayment flow.
	CommandRepay
)

// TransferCommand is the validated form of the colon-delimited message a
// sender attaches to an inbound token transfer. Parsing happens once at the
// boundary; the engine dispatches on the tag, never on raw strings.
type TransferCommand struct {
	Kind        CommandKind
	PoolID      uint64
	Index       int      // repay only: position index
	RepayAmount *big.Int // repay only: principal to settle
}

var (
	errUnknownCommand   = errors.New("pool router: wrong message format")
	errMalformedCommand = errors.New("pool router: malformed command")
)

// ParseTransferMessage validates a transfer message of the form
// "staking:<pid>" or "borrow:<pid>:<index>:<repay_amount>". Any other
// prefix, arity, or non-numeric field rejects the whole inbound transfer.
func ParseTransferMessage(msg string) (TransferCommand, error) {
	fields := strings.Split(msg, ":")
	switch fields[0] {
	case "staking":
		if len(fields) != 2 {
			return TransferCommand{}, fmt.Errorf("%w: staking expects 2 fields, got %d", errMalformedCommand, len(fields))
		}
		pid, err := parsePoolID(fields[1])
		if err != nil {
			return TransferCommand{}, err
		}
		return TransferCommand{Kind: CommandStake, PoolID: pid}, nil
	case "borrow":
		if len(fields) != 4 {
			return TransferCommand{}, fmt.Errorf("%w: borrow expects 4 fields, got %d", errMalformedCommand, len(fields))
		}
		pid, err := parsePoolID(fields[1])
		if err != nil {
			return TransferCommand{}, err
		}
		index, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil || index < 0 {
			return TransferCommand{}, fmt.Errorf("%w: position index %q", errMalformedCommand, fields[2])
		}
		repay, ok := new(big.Int).SetString(strings.TrimSpace(fields[3]), 10)
		if !ok || repay.Sign() < 0 {
			return TransferCommand{}, fmt.Errorf("%w: repay amount %q", errMalformedCommand, fields[3])
		}
		return TransferCommand{Kind: CommandRepay, PoolID: pid, Index: index, RepayAmount: repay}, nil
	default:
		return TransferCommand{}, errUnknownCommand
	}
}

func parsePoolID(field string) (uint64, error) {
	pid, err := strconv.ParseUint(strings.TrimSpace(field), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: pool id %q", errMalformedCommand, field)
	}
	return pid, nil
}
