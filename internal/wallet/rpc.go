package wallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/INT-devs/mining-pool/pkg/circuit"
	"github.com/INT-devs/mining-pool/pkg/errors"
	"github.com/INT-devs/mining-pool/pkg/retry"
)

// RPCClient wraps btcd's rpcclient for payout sends, mirroring
// internal/bitcoin.RPCClient's circuit-breaker/retry composition.
type RPCClient struct {
	client         *rpcclient.Client
	circuitBreaker *circuit.Breaker
	retryConfig    *retry.Config
	chainParams    *chaincfg.Params

	pollInterval time.Duration

	mu      sync.Mutex
	pending map[string]struct{} // tx hashes awaiting confirmation
}

// NewRPCClient connects to a wallet-enabled Bitcoin Core RPC endpoint.
func NewRPCClient(host string, port int, username, password string, chainParams *chaincfg.Params) (*RPCClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         fmt.Sprintf("%s:%d", host, port),
		User:         username,
		Pass:         password,
		HTTPPostMode: true,
		DisableTLS:   true,
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeBitcoin, "wallet_rpc_client_creation", "failed to create wallet RPC client")
	}

	cbConfig := &circuit.Config{
		MaxFailures:     3,
		SuccessRequired: 2,
		Timeout:         15 * time.Second,
		ResetTimeout:    60 * time.Second,
	}

	return &RPCClient{
		client:         client,
		circuitBreaker: circuit.New(cbConfig),
		retryConfig:    retry.NetworkConfig(),
		chainParams:    chainParams,
		pollInterval:   30 * time.Second,
		pending:        make(map[string]struct{}),
	}, nil
}

var _ Wallet = (*RPCClient)(nil)

// Send broadcasts a sendtoaddress-style payout transaction.
func (c *RPCClient) Send(ctx context.Context, toAddress string, amount int64) (string, bool, error) {
	addr, err := btcutil.DecodeAddress(toAddress, c.chainParams)
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrorTypeValidation, "wallet_send", "invalid payout address")
	}

	var txHash *chainhash.Hash
	err = c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			h, sendErr := c.client.SendToAddress(addr, btcutil.Amount(amount))
			if sendErr != nil {
				return errors.Wrap(sendErr, errors.ErrorTypeBitcoin, "wallet_send", "sendtoaddress failed")
			}
			txHash = h
			return nil
		})
	})
	if err != nil {
		return "", false, err
	}

	c.mu.Lock()
	c.pending[txHash.String()] = struct{}{}
	c.mu.Unlock()

	return txHash.String(), true, nil
}

// ConfirmationEvents polls gettransaction for each pending send's
// confirmation count, publishing a Confirmation once it clears 1
// confirmation (or is abandoned/conflicted, reported as failed).
func (c *RPCClient) ConfirmationEvents(ctx context.Context) (<-chan Confirmation, error) {
	events := make(chan Confirmation, 16)

	go func() {
		defer close(events)
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.pollOnce(ctx, events)
			}
		}
	}()

	return events, nil
}

func (c *RPCClient) pollOnce(ctx context.Context, events chan<- Confirmation) {
	c.mu.Lock()
	hashes := make([]string, 0, len(c.pending))
	for h := range c.pending {
		hashes = append(hashes, h)
	}
	c.mu.Unlock()

	for _, h := range hashes {
		hash, err := chainhash.NewHashFromStr(h)
		if err != nil {
			continue
		}
		tx, err := c.client.GetTransaction(hash)
		if err != nil {
			continue
		}
		if tx.Confirmations >= 1 {
			c.resolve(ctx, h, Confirmation{TxHash: h, Status: StatusConfirmed}, events)
		} else if tx.Confirmations < 0 {
			c.resolve(ctx, h, Confirmation{TxHash: h, Status: StatusFailed}, events)
		}
	}
}

func (c *RPCClient) resolve(ctx context.Context, h string, conf Confirmation, events chan<- Confirmation) {
	c.mu.Lock()
	delete(c.pending, h)
	c.mu.Unlock()

	select {
	case events <- conf:
	case <-ctx.Done():
	}
}

// Close shuts down the underlying RPC client.
func (c *RPCClient) Close() {
	c.client.Shutdown()
}
