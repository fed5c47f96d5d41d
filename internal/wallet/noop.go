package wallet

import (
	"context"
	"fmt"
	"sync/atomic"
)

// NoopWallet always succeeds immediately, for tests and dry-run deployments
// where payouts should be scheduled and accounted for but never actually
// broadcast.
type NoopWallet struct {
	ShouldError bool
	ErrorMsg    string

	counter atomic.Int64
	sent    chan Confirmation
}

// NewNoopWallet creates a no-op Wallet.
func NewNoopWallet() *NoopWallet {
	return &NoopWallet{sent: make(chan Confirmation, 64)}
}

var _ Wallet = (*NoopWallet)(nil)

// Send fabricates a deterministic tx hash and immediately queues its
// confirmation.
func (w *NoopWallet) Send(_ context.Context, toAddress string, amount int64) (string, bool, error) {
	if w.ShouldError {
		return "", false, fmt.Errorf("%s", w.ErrorMsg)
	}
	n := w.counter.Add(1)
	txHash := fmt.Sprintf("noop-tx-%d", n)
	w.sent <- Confirmation{TxHash: txHash, Status: StatusConfirmed}
	return txHash, true, nil
}

// ConfirmationEvents returns the channel fed by Send.
func (w *NoopWallet) ConfirmationEvents(ctx context.Context) (<-chan Confirmation, error) {
	out := make(chan Confirmation, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case c, ok := <-w.sent:
				if !ok {
					return
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
