package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPendingFiles_SortedAndSQLOnly(t *testing.T) {
	fsys := fstest.MapFS{
		"002_behavior_events.sql": {Data: []byte("SELECT 2;")},
		"001_init.sql":            {Data: []byte("SELECT 1;")},
		"README.md":               {Data: []byte("notes")},
		"sub/003_nested.sql":      {Data: []byte("SELECT 3;")},
	}

	files, err := PendingFiles(fsys)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_init.sql", "002_behavior_events.sql"}, files)
}
