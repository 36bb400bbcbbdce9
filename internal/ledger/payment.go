package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentContract adapts the ERC20 payment token used for mint and purchase
// settlement.
type PaymentContract struct {
	contract
}

// NewPaymentContract binds the adapter to the payment token address.
func NewPaymentContract(address common.Address, caller Caller, submitter Submitter) (*PaymentContract, error) {
	parsed, err := PaymentABI()
	if err != nil {
		return nil, fmt.Errorf("parse payment abi: %w", err)
	}
	return &PaymentContract{contract{
		address:   address,
		parsedABI: parsed,
		caller:    caller,
		submitter: submitter,
	}}, nil
}

// BalanceOf returns the owner's balance in base units.
func (c *PaymentContract) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	values, err := c.call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported balance type %T", values[0])
	}
	return balance, nil
}

// Allowance returns the spender's remaining allowance from owner.
func (c *PaymentContract) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	values, err := c.call(ctx, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	allowance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported allowance type %T", values[0])
	}
	return allowance, nil
}

// Approve grants the spender an allowance and awaits confirmation.
func (c *PaymentContract) Approve(ctx context.Context, spender common.Address, amount *big.Int) (string, error) {
	receipt, err := c.submit(ctx, "approve", spender, amount)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// Decimals returns the payment token's decimal count.
func (c *PaymentContract) Decimals(ctx context.Context) (uint8, error) {
	values, err := c.call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	switch v := values[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported decimals type %T", values[0])
	}
}
