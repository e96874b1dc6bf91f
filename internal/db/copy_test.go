package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.Background(), nil, "run_skips", []string{"run_id"}, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"run_skips"}, []string{"run_id", "row_ref"}).WillReturnResult(2)

	n, err := CopyFrom(context.Background(), mock, "run_skips", []string{"run_id", "row_ref"}, [][]any{{"r", "1"}, {"r", "2"}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_SchemaQualified(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"xref", "run_skips"}, []string{"run_id"}).WillReturnError(fmt.Errorf("copy failed"))

	_, err = CopyFrom(context.Background(), mock, "xref.run_skips", []string{"run_id"}, [][]any{{"r"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO xref.run_skips")
	assert.NoError(t, mock.ExpectationsWereMet())
}
