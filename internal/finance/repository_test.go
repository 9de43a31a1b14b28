package finance

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestIsSourceLinkConflict(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_source_links"}
	require.True(t, isSourceLinkConflict(pgErr))
	require.True(t, isSourceLinkConflict(fmt.Errorf("exec: %w", pgErr)))

	require.False(t, isSourceLinkConflict(&pgconn.PgError{Code: "23505", ConstraintName: "uq_journals_number"}))
	require.False(t, isSourceLinkConflict(errors.New("connection reset")))
	require.False(t, isSourceLinkConflict(nil))
}
