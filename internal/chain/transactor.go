package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"statpool/internal/fault"
)

// TransactorConfig holds signing and submission settings.
type TransactorConfig struct {
	PrivateKeyHex string
	// SubmitRate limits submitted transactions per second. Zero disables the
	// gate. The gate exists so reconcile bursts do not trip RPC spam policy.
	SubmitRate  float64
	WaitRetries int
	WaitBackoff time.Duration
}

// Transactor signs and submits ledger writes, awaiting finality for each one
// before returning. One Transactor acts for one party; dependent writes must
// be issued sequentially through it.
type Transactor struct {
	client  *Client
	key     *ecdsa.PrivateKey
	from    common.Address
	signer  types.Signer
	gate    *rate.Limiter
	logger  *zap.Logger
	retries int
	backoff time.Duration
}

// NewTransactor builds a Transactor bound to the client's chain ID.
func NewTransactor(ctx context.Context, client *Client, cfg TransactorConfig, logger *zap.Logger) (*Transactor, error) {
	if client == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	chainID, err := client.GetChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}

	var gate *rate.Limiter
	if cfg.SubmitRate > 0 {
		gate = rate.NewLimiter(rate.Limit(cfg.SubmitRate), 1)
	}

	retries := cfg.WaitRetries
	if retries <= 0 {
		retries = 12
	}
	backoff := cfg.WaitBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}

	return &Transactor{
		client:  client,
		key:     key,
		from:    crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.LatestSignerForChainID(chainID),
		gate:    gate,
		logger:  logger,
		retries: retries,
		backoff: backoff,
	}, nil
}

// From returns the acting account address.
func (t *Transactor) From() common.Address {
	return t.from
}

// Submit signs and sends a contract call, then blocks until the write is
// confirmed. The returned receipt is for a successful write only; a reverted
// write surfaces as fault.ErrWriteRejected.
func (t *Transactor) Submit(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error) {
	if t.gate != nil {
		if err := t.gate.Wait(ctx); err != nil {
			return nil, err
		}
	}

	nonce, err := t.client.PendingNonceAt(ctx, t.from)
	if err != nil {
		return nil, fmt.Errorf("pending nonce: %w", err)
	}

	gasPrice, err := t.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	msg := ethereum.CallMsg{From: t.from, To: &to, Data: data}
	gasLimit, err := t.client.EstimateGas(ctx, msg)
	if err != nil {
		return nil, fault.Classify(fmt.Errorf("estimate gas: %w", err))
	}
	gasLimit = gasLimit + gasLimit/5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})

	signed, err := types.SignTx(tx, t.signer, t.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := t.client.SendTransaction(ctx, signed); err != nil {
		return nil, fault.Classify(fmt.Errorf("send transaction: %w", err))
	}

	t.logger.Debug("transaction submitted",
		zap.String("tx", signed.Hash().Hex()),
		zap.String("to", to.Hex()),
		zap.Uint64("nonce", nonce),
	)

	receipt, err := t.waitMined(ctx, signed.Hash())
	if err != nil {
		return nil, fmt.Errorf("await confirmation of %s: %w", signed.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s", fault.ErrWriteRejected, signed.Hash().Hex())
	}

	return receipt, nil
}

// waitMined polls for the receipt with doubling backoff. A receipt is absent
// until the transaction is mined, so "not found" is the normal polling state
// rather than a failure until the attempt budget runs out.
func (t *Transactor) waitMined(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	delay := t.backoff
	for attempt := 0; ; attempt++ {
		receipt, err := t.client.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}
		if attempt >= t.retries {
			return nil, err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
