package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(nil)
	deps := TableDeps{
		Coordinator: createTestCoordinator(t),
		DB:          newFakeDB(),
		Notifier:    NewNotifier(nil),
	}

	tbl, err := reg.CreateTable(TableConfig{ID: "alpha", MinPlayers: 2, MaxPlayers: 6}, deps)
	require.NoError(t, err)
	require.NotNil(t, tbl)

	// Blank IDs get generated.
	anon, err := reg.CreateTable(TableConfig{MinPlayers: 2, MaxPlayers: 6}, deps)
	require.NoError(t, err)
	assert.NotEmpty(t, anon.config.ID)

	// Duplicate IDs are rejected.
	_, err = reg.CreateTable(TableConfig{ID: "alpha"}, deps)
	assert.Error(t, err)

	got, ok := reg.Get("alpha")
	require.True(t, ok)
	assert.Same(t, tbl, got)

	_, ok = reg.Get("missing")
	assert.False(t, ok)

	ids := reg.List()
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "alpha")

	reg.Remove("alpha")
	_, ok = reg.Get("alpha")
	assert.False(t, ok)
	assert.Len(t, reg.List(), 1)
}
