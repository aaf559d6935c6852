// Package errs define a taxonomia de erros do ledger de apostas.
// Cada falha carrega no máximo um desses sentinels, via %w.
package errs

import (
	"context"
	"errors"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDanglingReference      = errors.New("dangling reference")
)

// Códigos estáveis expostos para clientes e métricas
const (
	KindValidation   = "validation_error"
	KindNotFound     = "not_found"
	KindInvalidState = "invalid_state_transition"
	KindDangling     = "dangling_reference"
	KindCanceled     = "canceled"
	KindDeadline     = "deadline_exceeded"
	KindInternal     = "internal_error"
)

// Kind devolve o código do erro; nil vira string vazia
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidState
	case errors.Is(err, ErrDanglingReference):
		return KindDangling
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindDeadline
	default:
		return KindInternal
	}
}

// Permanent indica erros que não mudam com nova tentativa
func Permanent(err error) bool {
	switch Kind(err) {
	case KindValidation, KindNotFound, KindInvalidState, KindDangling:
		return true
	}
	return false
}
