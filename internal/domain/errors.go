package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
	ErrGateway           = errors.New("payment gateway error")
	ErrForbidden         = errors.New("forbidden")
	ErrInternal          = errors.New("internal error")
)
