package work

import "context"

// ChainNode is the Work Director's consumed view of the underlying
// blockchain node, matching the interface named in SPEC_FULL.md §6. The
// concrete implementation (internal/bitcoin.ChainAdapter) wraps the
// teacher's RPCClient and ZMQNotifier.
type ChainNode interface {
	// GetTemplate fetches a fresh block template and a coinbase transaction
	// built against a placeholder extranonce, together with the byte
	// offset information needed to split it into coinb1/coinb2.
	GetTemplate(ctx context.Context) (*Template, error)

	// SubmitBlock submits a fully assembled block (as hex) to the network.
	SubmitBlock(ctx context.Context, blockHex string) (accepted bool, rejectReason string, err error)

	// SubscribeTips returns a channel of new chain-tip block hashes. The
	// channel is closed when ctx is cancelled.
	SubscribeTips(ctx context.Context) (<-chan string, error)

	// CurrentDifficulty returns the network's current difficulty.
	CurrentDifficulty(ctx context.Context) (float64, error)
}
