package asset

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Ledger is the narrow token surface the engine depends on. The engine
// never touches transfer mechanics beyond these four calls, so chain
// and in-memory implementations are interchangeable.
type Ledger interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	Transfer(ctx context.Context, token, to common.Address, amount *big.Int) error
	TransferFrom(ctx context.Context, token, from, to common.Address, amount *big.Int) error
}
