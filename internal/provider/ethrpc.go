package provider

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Minimal ERC-20 fragment for read-only balance queries.
const erc20ABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

var erc20, _ = abi.JSON(strings.NewReader(erc20ABI))

// EthProvider fetches Ethereum balances over JSON-RPC. With a token contract
// configured it queries balanceOf on that contract instead of the native
// account balance; either way it is strictly read-only.
type EthProvider struct {
	client *ethclient.Client
	token  *common.Address
	name   string
}

// NewEthProvider connects to an Ethereum JSON-RPC endpoint for native
// balance queries.
func NewEthProvider(rpcURL string) (*EthProvider, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	return &EthProvider{client: client, name: "eth-rpc"}, nil
}

// NewTokenProvider connects to an Ethereum JSON-RPC endpoint for ERC-20
// token balance queries against the given contract.
func NewTokenProvider(rpcURL, tokenContract string) (*EthProvider, error) {
	if !common.IsHexAddress(tokenContract) {
		return nil, fmt.Errorf("invalid token contract address: %s", tokenContract)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC: %w", err)
	}
	contract := common.HexToAddress(tokenContract)
	return &EthProvider{client: client, token: &contract, name: "erc20-rpc"}, nil
}

// Close closes the underlying RPC connection.
func (e *EthProvider) Close() {
	e.client.Close()
}

// Name returns the provider name for logging.
func (e *EthProvider) Name() string {
	return e.name
}

// GetBalance returns the balance of an address in wei or token base units.
func (e *EthProvider) GetBalance(ctx context.Context, address string) (*AddressBalance, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid address: %s", address)
	}
	account := common.HexToAddress(address)

	if e.token != nil {
		return e.tokenBalance(ctx, account)
	}

	balance, err := e.client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	nonce, err := e.client.NonceAt(ctx, account, nil)
	if err != nil {
		nonce = 0
	}

	return &AddressBalance{
		BaseUnits: balance,
		TxCount:   int64(nonce),
	}, nil
}

func (e *EthProvider) tokenBalance(ctx context.Context, account common.Address) (*AddressBalance, error) {
	data, err := erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf: %w", err)
	}

	msg := ethereum.CallMsg{To: e.token, Data: data}
	out, err := e.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	results, err := erc20.Unpack("balanceOf", out)
	if err != nil || len(results) != 1 {
		return nil, fmt.Errorf("%w: bad balanceOf result", ErrMalformed)
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%w: bad balanceOf type", ErrMalformed)
	}

	return &AddressBalance{BaseUnits: balance}, nil
}

var _ BalanceProvider = (*EthProvider)(nil)
