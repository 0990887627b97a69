package engine

import "errors"

var (
	ErrAlreadyInitialized = errors.New("engine already initialized")
	ErrNotInitialized     = errors.New("engine not initialized")
	ErrConfig             = errors.New("invalid configuration")
	ErrExpired            = errors.New("deadline expired")
	ErrZeroAmount         = errors.New("zero amount")
	ErrSlippage           = errors.New("slippage limit exceeded")
	ErrNoInventorySold    = errors.New("nothing sold yet")
	ErrRebuyStartZero     = errors.New("rebuy start price is zero")
	ErrDeltaUnderflow     = errors.New("rebuy price step underflow")
	ErrTransfer           = errors.New("transfer failed")
)
