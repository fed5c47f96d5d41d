package work

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/INT-devs/mining-pool/internal/bitcoin"
)

// ChainAdapter implements ChainNode on top of the teacher's RPCClient and
// ZMQNotifier, grounded on internal/bitcoin's existing circuit+retry
// composed RPC calls and hashblock ZMQ subscription.
type ChainAdapter struct {
	rpc bitcoin.RPCInterface
	zmq bitcoin.ZMQInterface

	poolAddress     string
	extraNonce1Size int
}

// NewChainAdapter wraps rpc (template/submit/tip-polling fallback) and zmq
// (hashblock tip notifications) into a single ChainNode.
func NewChainAdapter(rpc bitcoin.RPCInterface, zmq bitcoin.ZMQInterface, poolAddress string, extraNonce1Size int) *ChainAdapter {
	return &ChainAdapter{rpc: rpc, zmq: zmq, poolAddress: poolAddress, extraNonce1Size: extraNonce1Size}
}

var _ ChainNode = (*ChainAdapter)(nil)

// GetTemplate fetches a template and builds a placeholder coinbase so the
// Director can compute the coinb1/coinb2 split and the Merkle branch.
func (a *ChainAdapter) GetTemplate(ctx context.Context) (*Template, error) {
	raw, err := a.rpc.GetBlockTemplate(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block template: %w", err)
	}

	coinbaseValue := int64(0)
	if raw.CoinbaseValue != nil {
		coinbaseValue = *raw.CoinbaseValue
	}

	placeholder := ""
	for i := 0; i < a.extraNonce1Size; i++ {
		placeholder += "00"
	}

	tx, coinb1, coinb2, err := a.rpc.CreateCoinbaseTransaction(ctx, raw.Height, coinbaseValue, placeholder, a.poolAddress)
	if err != nil {
		return nil, fmt.Errorf("create placeholder coinbase: %w", err)
	}

	return &Template{Raw: raw, PlaceholderTx: tx, Coinb1: coinb1, Coinb2: coinb2}, nil
}

// SubmitBlock submits a fully assembled block.
func (a *ChainAdapter) SubmitBlock(ctx context.Context, blockHex string) (bool, string, error) {
	if err := a.rpc.SubmitBlock(ctx, blockHex); err != nil {
		// Bitcoin Core returns a non-nil error string ("duplicate",
		// "inconclusive", "rejected") for any non-accepted outcome; treat
		// all as a non-fatal reject rather than surfacing to clients.
		return false, err.Error(), nil
	}
	return true, "", nil
}

// SubscribeTips relays ZMQ hashblock notifications as tip-change events.
func (a *ChainAdapter) SubscribeTips(ctx context.Context) (<-chan string, error) {
	tips := make(chan string, 16)
	handler := bitcoin.NewBlockNotificationHandler(slog.Default())
	handler.SetNewBlockHandler(func(blockHash string) error {
		select {
		case tips <- blockHash:
		case <-ctx.Done():
		}
		return nil
	})

	if err := a.zmq.Subscribe("hashblock"); err != nil {
		return nil, fmt.Errorf("subscribe hashblock: %w", err)
	}
	if err := a.zmq.Connect(); err != nil {
		return nil, fmt.Errorf("connect zmq: %w", err)
	}

	go func() {
		defer close(tips)
		_ = a.zmq.Listen(ctx, handler.HandleMessage)
	}()

	return tips, nil
}

// CurrentDifficulty returns the network's current difficulty.
func (a *ChainAdapter) CurrentDifficulty(ctx context.Context) (float64, error) {
	return a.rpc.GetDifficulty(ctx)
}
