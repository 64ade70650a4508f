package db

import (
	"context"
	"testing"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "order_circuits",
		Columns:      []string{"site_name", "provider_name"},
		ConflictKeys: []string{"site_name"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:        "order_circuits",
		ConflictKeys: []string{"site_name"},
	}, [][]any{{"Store 1042", "Comcast"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(nil, nil, UpsertConfig{
		Table:   "order_circuits",
		Columns: []string{"site_name", "provider_name"},
	}, [][]any{{"Store 1042", "Comcast"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestBulkUpsert_TempTableFlow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_order_circuits"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom([]string{"_tmp_upsert_order_circuits"}, []string{"site_name", "provider_name"}).
		WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "order_circuits" .+ ON CONFLICT \("site_name"\) DO UPDATE SET "provider_name" = EXCLUDED\."provider_name"`).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "order_circuits",
		Columns:      []string{"site_name", "provider_name"},
		ConflictKeys: []string{"site_name"},
	}, [][]any{
		{"Store 1042", "Comcast Business"},
		{"Store 1043", "Cox"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"circuits.order_circuits", `"circuits"."order_circuits"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"site_name", "speed", "purpose"})
	assert.Equal(t, `"site_name", "speed", "purpose"`, result)
}
