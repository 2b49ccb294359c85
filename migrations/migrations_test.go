package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestList(t *testing.T) {
	migrations, err := List()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	assert.Equal(t, "000001_init_schema", migrations[0].Version)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE activity_logs")
	assert.Contains(t, migrations[0].SQL, "append-only")
}
