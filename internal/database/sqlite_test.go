package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitDB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat.db")

	db, err := InitDB(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, db.Close()) }()

	for _, table := range []string{"conversations", "messages", "settings"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
		assert.Equal(t, table, name)
	}

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestInitDB_RunsTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")

	first, err := InitDB(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := InitDB(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestWithForeignKeys(t *testing.T) {
	assert.Equal(t, "chat.db?_foreign_keys=on", withForeignKeys("chat.db"))
	assert.Equal(t, "chat.db?cache=shared&_foreign_keys=on", withForeignKeys("chat.db?cache=shared"))
	assert.Equal(t, "chat.db?_fk=1", withForeignKeys("chat.db?_fk=1"))
}
