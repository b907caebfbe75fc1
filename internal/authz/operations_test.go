package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOperations() []Operation {
	return []Operation{
		{ID: "list_items", Method: "get", Path: "/items", Title: "List items", RequiresAuth: true},
		{ID: "ping", Method: "GET", Path: "/ping", RequiresAuth: false},
	}
}

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(testOperations())
	require.NoError(t, err)

	op, ok := r.Lookup("list_items")
	require.True(t, ok)
	assert.Equal(t, "GET", op.Method) // normalized
	assert.Equal(t, "List items", op.Title)

	op, ok = r.Lookup("ping")
	require.True(t, ok)
	assert.Equal(t, "ping", op.Title) // title defaults to the id

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestNewRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry([]Operation{{ID: "a"}, {ID: "a"}})
	assert.Error(t, err)

	_, err = NewRegistry([]Operation{{ID: ""}})
	assert.Error(t, err)
}

func TestRegistryRequiresAuth(t *testing.T) {
	t.Parallel()

	r, err := NewRegistry(testOperations())
	require.NoError(t, err)

	assert.True(t, r.RequiresAuth("list_items"))
	assert.False(t, r.RequiresAuth("ping"))
	// Unknown operations fail closed.
	assert.True(t, r.RequiresAuth("missing"))
}

func TestMemoryPermissions(t *testing.T) {
	t.Parallel()

	p := NewMemoryPermissions()
	assert.False(t, p.IsPermitted("c1", "list_items"))

	p.Grant("c1", "list_items")
	assert.True(t, p.IsPermitted("c1", "list_items"))
	assert.False(t, p.IsPermitted("c1", "create_item"))
	assert.False(t, p.IsPermitted("c2", "list_items"))

	p.Replace(map[string][]string{"c2": {"create_item"}})
	assert.False(t, p.IsPermitted("c1", "list_items"))
	assert.True(t, p.IsPermitted("c2", "create_item"))
}

func TestGateAllow(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(testOperations())
	require.NoError(t, err)

	permissions := NewMemoryPermissions()
	permissions.Grant("c1", "list_items")

	gate := NewGate(registry, permissions)

	t.Run("granted consumer allowed", func(t *testing.T) {
		t.Parallel()
		assert.True(t, gate.Allow("c1", "list_items"))
	})

	t.Run("consumer without grant denied", func(t *testing.T) {
		t.Parallel()
		assert.False(t, gate.Allow("c2", "list_items"))
	})

	t.Run("open operation always allowed", func(t *testing.T) {
		t.Parallel()
		assert.True(t, gate.Allow("", "ping"))
		assert.True(t, gate.Allow("c2", "ping"))
	})

	t.Run("anonymous denied on protected operation", func(t *testing.T) {
		t.Parallel()
		assert.False(t, gate.Allow("", "list_items"))
	})
}
