package domain

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidParameters    = errors.New("invalid order parameters")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientQuantity = errors.New("insufficient quantity")
	ErrUnknownOrderID       = errors.New("unknown order id")
	ErrContextDone          = errors.New("context cancelled")
)
