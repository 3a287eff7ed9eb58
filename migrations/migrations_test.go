package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgres_OrderedAndNonEmpty(t *testing.T) {
	ms, err := Postgres()
	require.NoError(t, err)
	require.Len(t, ms, 3)

	assert.Equal(t, "001_stored_predictions.sql", ms[0].Name)
	assert.Equal(t, "002_model_performance.sql", ms[1].Name)
	assert.Equal(t, "003_model_performance_tokens.sql", ms[2].Name)
	for _, m := range ms {
		assert.NotEmpty(t, m.Statements, m.Name)
	}
	assert.Contains(t, ms[0].Statements[0], "CREATE TABLE IF NOT EXISTS stored_predictions")
}

func TestClickHouse_SingleStatementPerExec(t *testing.T) {
	ms, err := ClickHouse()
	require.NoError(t, err)
	require.Len(t, ms, 1)
	require.Len(t, ms[0].Statements, 1)
	assert.Contains(t, ms[0].Statements[0], "usage_records")
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("CREATE TABLE a (x INT);\n\n  CREATE INDEX i ON a (x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a (x)"}, got)
	assert.Empty(t, splitStatements("  ;\n"))
}
