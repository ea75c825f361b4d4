package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsAreOrderedAndVersioned(t *testing.T) {
	ms, err := Migrations()
	require.NoError(t, err)
	require.Len(t, ms, 2)

	assert.Equal(t, 1, ms[0].Version)
	assert.Equal(t, 2, ms[1].Version)
	assert.True(t, strings.Contains(ms[0].SQL, "CHECK (quantity >= 0)"))
	assert.True(t, strings.Contains(ms[1].SQL, "ON DELETE CASCADE"))
}
