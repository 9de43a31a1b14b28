package requisition

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procura-erp/procura-erp/internal/shared"
)

func TestSentinelsMapToUserMessages(t *testing.T) {
	require.ErrorIs(t, ErrNotFound, shared.ErrNotFound)
	require.ErrorIs(t, ErrInvalidState, shared.ErrInvalidState)
	require.ErrorIs(t, ErrValidation, shared.ErrValidation)

	require.Equal(t, "Registro não encontrado", shared.UserSafeMessage(ErrNotFound))
	require.Equal(t, "Operação não permitida no estado atual", shared.UserSafeMessage(ErrInvalidState))
}
