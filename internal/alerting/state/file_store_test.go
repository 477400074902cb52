package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-stock-alerts/internal/alerting/corridor"
	"golang-stock-alerts/pkg/logger"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_state.json")
	store := NewFileStore(path, logger.NewNop())
	ctx := context.Background()

	st := map[string]corridor.Direction{
		"AAPL":   corridor.DirectionUp,
		"SAP.DE": corridor.DirectionNone,
	}
	require.NoError(t, store.Save(ctx, st))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, st, loaded)
}

func TestFileStoreSaveIsPrettyPrintedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_state.json")
	store := NewFileStore(path, logger.NewNop())

	require.NoError(t, store.Save(context.Background(), map[string]corridor.Direction{
		"AAPL": corridor.DirectionDown,
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"AAPL\": \"down\"")

	var raw map[string]string
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, map[string]string{"AAPL": "down"}, raw)
}

func TestFileStoreLoadMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "does-not-exist.json"), logger.NewNop())

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st)
}

func TestFileStoreLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	store := NewFileStore(path, logger.NewNop())

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, st)
}

func TestFileStoreLoadNormalizesUnknownDirections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alert_state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"AAPL": "sideways", "MSFT": "up"}`), 0o644))
	store := NewFileStore(path, logger.NewNop())

	st, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, corridor.DirectionNone, st["AAPL"])
	assert.Equal(t, corridor.DirectionUp, st["MSFT"])
}
