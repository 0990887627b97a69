package asset

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"gridLadder/internal/chain"
)

const erc20ABIJSON = `[
  {"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "to", "type": "address"},
    {"internalType": "uint256", "name": "amount", "type": "uint256"}
  ], "name": "transfer", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"},
  {"inputs": [
    {"internalType": "address", "name": "from", "type": "address"},
    {"internalType": "address", "name": "to", "type": "address"},
    {"internalType": "uint256", "name": "amount", "type": "uint256"}
  ], "name": "transferFrom", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

var (
	erc20ABI     abi.ABI
	erc20ABIOnce sync.Once
	erc20ABIErr  error
)

func erc20ABIInstance() (abi.ABI, error) {
	erc20ABIOnce.Do(func() {
		erc20ABI, erc20ABIErr = abi.JSON(strings.NewReader(erc20ABIJSON))
	})
	return erc20ABI, erc20ABIErr
}

// ERC20Ledger reads balances via eth_call and submits transfers with a
// keyed transactor. The signing key's address is the engine account.
type ERC20Ledger struct {
	client  *chain.Client
	key     *ecdsa.PrivateKey
	account common.Address

	mu       sync.Mutex
	decimals map[common.Address]uint8
}

// NewERC20Ledger creates a ledger signing with the given hex private key.
func NewERC20Ledger(client *chain.Client, privateKeyHex string) (*ERC20Ledger, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &ERC20Ledger{
		client:   client,
		key:      key,
		account:  crypto.PubkeyToAddress(key.PublicKey),
		decimals: make(map[common.Address]uint8),
	}, nil
}

// Account returns the address transfers are signed from.
func (l *ERC20Ledger) Account() common.Address {
	return l.account
}

// BalanceOf reads the token balance of owner at the latest block.
func (l *ERC20Ledger) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("pack balanceOf: %w", err)
	}
	resp, err := l.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call balanceOf: %w", err)
	}
	values, err := parsed.Unpack("balanceOf", resp)
	if err != nil {
		return nil, fmt.Errorf("unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported balance type %T", values[0])
	}
	return balance, nil
}

// Decimals reads the token decimals, cached after the first lookup.
func (l *ERC20Ledger) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	l.mu.Lock()
	cached, ok := l.decimals[token]
	l.mu.Unlock()
	if ok {
		return cached, nil
	}

	parsed, err := erc20ABIInstance()
	if err != nil {
		return 0, fmt.Errorf("parse erc20 abi: %w", err)
	}
	data, err := parsed.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("pack decimals: %w", err)
	}
	resp, err := l.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("call decimals: %w", err)
	}
	values, err := parsed.Unpack("decimals", resp)
	if err != nil {
		return 0, fmt.Errorf("unpack decimals: %w", err)
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unsupported decimals type %T", values[0])
	}

	l.mu.Lock()
	l.decimals[token] = decimals
	l.mu.Unlock()
	return decimals, nil
}

// Transfer sends tokens from the signing account to the recipient.
func (l *ERC20Ledger) Transfer(ctx context.Context, token, to common.Address, amount *big.Int) error {
	return l.transact(ctx, token, "transfer", to, amount)
}

// TransferFrom moves tokens from a pre-approved owner to the recipient.
func (l *ERC20Ledger) TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	return l.transact(ctx, token, "transferFrom", from, to, amount)
}

func (l *ERC20Ledger) transact(ctx context.Context, token common.Address, method string, args ...interface{}) error {
	parsed, err := erc20ABIInstance()
	if err != nil {
		return fmt.Errorf("parse erc20 abi: %w", err)
	}
	chainID, err := l.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(l.key, chainID)
	if err != nil {
		return fmt.Errorf("build transactor: %w", err)
	}
	opts.Context = ctx

	eth := l.client.Eth()
	contract := bind.NewBoundContract(token, parsed, eth, eth, eth)
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return fmt.Errorf("transact %s: %w", method, err)
	}

	receipt, err := bind.WaitMined(ctx, eth, tx)
	if err != nil {
		return fmt.Errorf("wait %s: %w", method, err)
	}
	if receipt.Status == 0 {
		return fmt.Errorf("%s reverted: tx %s", method, tx.Hash().Hex())
	}
	return nil
}
