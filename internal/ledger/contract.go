package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Caller performs read-only contract calls. Satisfied by chain.Client.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Submitter signs and submits one confirmed write at a time. Satisfied by
// chain.Transactor.
type Submitter interface {
	From() common.Address
	Submit(ctx context.Context, to common.Address, data []byte) (*types.Receipt, error)
}

// contract is the shared call/submit plumbing for one deployed contract.
type contract struct {
	address   common.Address
	parsedABI abi.ABI
	caller    Caller
	submitter Submitter
}

func (c *contract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &c.address, Data: data}
	resp, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := c.parsedABI.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (c *contract) submit(ctx context.Context, method string, args ...interface{}) (*types.Receipt, error) {
	if c.submitter == nil {
		return nil, fmt.Errorf("no submitter configured for %s", method)
	}
	data, err := c.parsedABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	receipt, err := c.submitter.Submit(ctx, c.address, data)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", method, err)
	}
	return receipt, nil
}
