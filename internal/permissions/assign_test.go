package permissions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAssignFixture() (*AssignmentService, *memStore, *auditSink) {
	store := newMemStore()
	audit := &auditSink{}
	svc := NewAssignmentService(nil, fixtureDirectory(), fixtureCatalog(), store, NewCache(nil, 0), audit, nil)
	return svc, store, audit
}

func TestToggleGrantsThenRevokes(t *testing.T) {
	svc, store, audit := newAssignFixture()
	ctx := context.Background()

	granted, err := svc.Toggle(ctx, 1, 10, 100)
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 1, store.size())

	// Toggling again returns the triple to its original state.
	granted, err = svc.Toggle(ctx, 1, 10, 100)
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 0, store.size())

	assert.Equal(t, []string{"PERMISSION_GRANT", "PERMISSION_REVOKE"}, audit.actions())
}

func TestToggleValidatesBeforeMutation(t *testing.T) {
	svc, store, _ := newAssignFixture()
	ctx := context.Background()

	_, err := svc.Toggle(ctx, 99, 10, 100)
	require.ErrorIs(t, err, ErrRoleNotFound)

	_, err = svc.Toggle(ctx, 1, 999, 100)
	require.ErrorIs(t, err, ErrItemNotFound)

	_, err = svc.Toggle(ctx, 1, 10, 999)
	require.ErrorIs(t, err, ErrPermissionNotFound)

	// No failed validation reached the store.
	assert.Equal(t, 0, store.size())
}

func TestToggleSurfacesStoreConflict(t *testing.T) {
	svc, store, _ := newAssignFixture()
	store.toggleErr = ErrToggleConflict

	_, err := svc.Toggle(context.Background(), 1, 10, 100)
	require.ErrorIs(t, err, ErrToggleConflict)
}

func TestDeleteGrantByID(t *testing.T) {
	svc, store, audit := newAssignFixture()
	ctx := context.Background()

	_, err := svc.Toggle(ctx, 1, 10, 100)
	require.NoError(t, err)

	id, ok := store.grantID(1, 10, 100)
	require.True(t, ok)

	require.NoError(t, svc.DeleteGrant(ctx, id))
	assert.Equal(t, 0, store.size())

	require.ErrorIs(t, svc.DeleteGrant(ctx, id), ErrGrantNotFound)
	assert.Contains(t, audit.actions(), "PERMISSION_GRANT_DELETE")
}

func TestReadAfterWriteVisibility(t *testing.T) {
	store := newMemStore()
	directory := fixtureDirectory()
	cat := fixtureCatalog()
	cache := NewCache(nil, 0)
	query := NewQueryService(directory, cat, store, cache)
	assign := NewAssignmentService(nil, directory, cat, store, cache, nil, nil)
	ctx := context.Background()

	granted, err := assign.Toggle(ctx, 1, 10, 100)
	require.NoError(t, err)
	require.True(t, granted)

	view, err := query.GetRolePermissions(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, view[0].Items[0].Permissions, 1)
	assert.Equal(t, int64(100), view[0].Items[0].Permissions[0].PermissionID)
}
