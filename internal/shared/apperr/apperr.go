// Package apperr define a taxonomia de erros de negócio compartilhada entre
// ledger, apostas, liquidação e a API HTTP.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindStateConflict
	KindInsufficientBalance
	KindNothingToClaim
	KindNotFound
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindStateConflict:
		return "state_conflict"
	case KindInsufficientBalance:
		return "insufficient_balance"
	case KindNothingToClaim:
		return "nothing_to_claim"
	case KindNotFound:
		return "not_found"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error carrega o tipo, um código estável para o cliente e a causa opcional
type Error struct {
	Kind Kind
	Code string
	Msg  string
	Err  error
}

func New(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por código, então uma cópia com detalhe extra (With) ainda casa
// com o sentinel de origem em errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// With devolve uma cópia do sentinel com mensagem detalhada
func (e *Error) With(format string, args ...any) *Error {
	cp := *e
	cp.Msg = e.Msg + ": " + fmt.Sprintf(format, args...)
	return &cp
}

var (
	ErrInvalidRequest = New(KindValidation, "INVALID_REQUEST", "invalid request")
	ErrNotFound       = New(KindNotFound, "NOT_FOUND", "not found")
)

// Invalid cria um erro de validação com mensagem própria
func Invalid(format string, args ...any) *Error {
	return ErrInvalidRequest.With(format, args...)
}

// Transient marca falhas de infraestrutura (storage, commit); seguro repetir a operação
func Transient(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindTransient, Code: "TRANSIENT", Msg: "temporary failure, retry", Err: err}
}

// KindOf retorna o Kind do primeiro *Error na cadeia (KindUnknown se não houver)
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}

// CodeOf retorna o código do erro ou "INTERNAL"
func CodeOf(err error) string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return "INTERNAL"
}

// HTTPStatus mapeia o Kind para o status HTTP da API pública
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindStateConflict:
		return http.StatusConflict
	case KindInsufficientBalance, KindNothingToClaim:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
