package modelstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edupulse/domain/core"
	"edupulse/ports"
)

func TestFSStore_SaveLoadRoundTrip(t *testing.T) {
	store := NewFSStore(t.TempDir())
	snap := ports.ModelSnapshot{
		ModelID: core.ModelID("default"),
		Kind:    "risk",
		Payload: []byte(`{"sizes":[12,16,8,1]}`),
	}

	require.NoError(t, store.Save(context.Background(), snap))

	loaded, err := store.Load(context.Background(), snap.ModelID, snap.Kind)
	require.NoError(t, err)
	assert.Equal(t, snap, loaded)
}

func TestFSStore_LoadMissingSnapshot(t *testing.T) {
	store := NewFSStore(t.TempDir())

	_, err := store.Load(context.Background(), core.ModelID("absent"), "risk")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestFSStore_SaveCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "models")
	store := NewFSStore(dir)
	snap := ports.ModelSnapshot{ModelID: core.ModelID("m1"), Kind: "risk", Payload: []byte("{}")}

	require.NoError(t, store.Save(context.Background(), snap))

	_, err := os.Stat(filepath.Join(dir, "m1_risk.json"))
	assert.NoError(t, err)
}

func TestFSStore_KindsAreIndependent(t *testing.T) {
	store := NewFSStore(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, ports.ModelSnapshot{ModelID: "default", Kind: "risk", Payload: []byte("a")}))
	require.NoError(t, store.Save(ctx, ports.ModelSnapshot{ModelID: "default", Kind: "baseline", Payload: []byte("b")}))

	risk, err := store.Load(ctx, "default", "risk")
	require.NoError(t, err)
	baseline, err := store.Load(ctx, "default", "baseline")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), risk.Payload)
	assert.Equal(t, []byte("b"), baseline.Payload)
}
