package asset

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger keeps balances and allowances in memory. It backs tests
// and offline previews with the same semantics the ERC20 ledger has on
// chain: transfers fail atomically on missing balance or allowance.
type MemoryLedger struct {
	mu         sync.Mutex
	decimals   map[common.Address]uint8
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]map[common.Address]*big.Int
	spender    common.Address
}

// NewMemoryLedger creates an empty ledger acting on behalf of spender
// (the engine account, for TransferFrom allowance checks).
func NewMemoryLedger(spender common.Address) *MemoryLedger {
	return &MemoryLedger{
		decimals:   make(map[common.Address]uint8),
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]map[common.Address]*big.Int),
		spender:    spender,
	}
}

// SetDecimals registers a token's decimals.
func (l *MemoryLedger) SetDecimals(token common.Address, decimals uint8) {
	l.mu.Lock()
	l.decimals[token] = decimals
	l.mu.Unlock()
}

// SetBalance overwrites owner's token balance.
func (l *MemoryLedger) SetBalance(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	l.balanceRef(token, owner).Set(amount)
	l.mu.Unlock()
}

// Approve grants the ledger's spender an allowance over owner's tokens.
func (l *MemoryLedger) Approve(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	l.allowanceRef(token, owner, l.spender).Set(amount)
	l.mu.Unlock()
}

// BalanceOf returns owner's token balance.
func (l *MemoryLedger) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceRef(token, owner)), nil
}

// Decimals returns the registered decimals for token.
func (l *MemoryLedger) Decimals(_ context.Context, token common.Address) (uint8, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	decimals, ok := l.decimals[token]
	if !ok {
		return 0, fmt.Errorf("unknown token %s", token.Hex())
	}
	return decimals, nil
}

// Transfer moves tokens from the spender account to the recipient.
func (l *MemoryLedger) Transfer(_ context.Context, token, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(token, l.spender, to, amount)
}

// TransferFrom moves tokens from an owner, consuming allowance.
func (l *MemoryLedger) TransferFrom(_ context.Context, token, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := l.allowanceRef(token, from, l.spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s owner %s", ErrInsufficientAllowance, token.Hex(), from.Hex())
	}
	if err := l.move(token, from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (l *MemoryLedger) move(token, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount")
	}
	fromBal := l.balanceRef(token, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: token %s owner %s", ErrInsufficientBalance, token.Hex(), from.Hex())
	}
	fromBal.Sub(fromBal, amount)
	l.balanceRef(token, to).Add(l.balanceRef(token, to), amount)
	return nil
}

func (l *MemoryLedger) balanceRef(token, owner common.Address) *big.Int {
	owners, ok := l.balances[token]
	if !ok {
		owners = make(map[common.Address]*big.Int)
		l.balances[token] = owners
	}
	balance, ok := owners[owner]
	if !ok {
		balance = new(big.Int)
		owners[owner] = balance
	}
	return balance
}

func (l *MemoryLedger) allowanceRef(token, owner, spender common.Address) *big.Int {
	owners, ok := l.allowances[token]
	if !ok {
		owners = make(map[common.Address]map[common.Address]*big.Int)
		l.allowances[token] = owners
	}
	spenders, ok := owners[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		owners[owner] = spenders
	}
	allowance, ok := spenders[spender]
	if !ok {
		allowance = new(big.Int)
		spenders[spender] = allowance
	}
	return allowance
}
