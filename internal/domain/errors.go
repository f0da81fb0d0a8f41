package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidSide       = errors.New("invalid side")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrUserRejected      = errors.New("user rejected")
	ErrWrongNetwork      = errors.New("wrong network")
	ErrReverted          = errors.New("execution reverted")
	ErrNotClaimable      = errors.New("bet is not claimable")
	ErrContextDone       = errors.New("context cancelled")
)
