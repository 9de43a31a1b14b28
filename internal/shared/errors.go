package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState occurs when an action violates a status workflow.
	ErrInvalidState = errors.New("invalid state transition")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("invalid input")
)

// UserSafeMessage converts known errors into a message that can be
// shown to an end user without leaking internals.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Registro não encontrado"
	case errors.Is(err, ErrInvalidState):
		return "Operação não permitida no estado atual"
	case errors.Is(err, ErrValidation):
		return "Dados inválidos"
	default:
		return "Erro interno, tente novamente"
	}
}
