// Package wallet implements the Wallet Adapter: the consumed interface the
// Accounting Engine uses to send payout transactions and learn when they
// confirm, plus an RPC-backed implementation and a no-op test double.
package wallet

import "context"

// ConfirmationStatus reports the outcome of a previously sent payment.
type ConfirmationStatus int

const (
	StatusConfirmed ConfirmationStatus = iota
	StatusFailed
)

// Confirmation is one event on the confirmation_events() stream.
type Confirmation struct {
	TxHash string
	Status ConfirmationStatus
}

// Wallet is the Accounting Engine's consumed view of a payout-sending
// collaborator, matching the interface named in SPEC_FULL.md §6.
type Wallet interface {
	// Send broadcasts a payout transaction and returns its tx hash.
	Send(ctx context.Context, toAddress string, amount int64) (txHash string, broadcastOK bool, err error)

	// ConfirmationEvents returns a channel of confirmation/failure events
	// for transactions previously sent through Send. Closed when ctx is
	// cancelled.
	ConfirmationEvents(ctx context.Context) (<-chan Confirmation, error)
}
