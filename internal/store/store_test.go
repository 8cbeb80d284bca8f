package store

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phenotune/internal/config"
	"phenotune/internal/hyperparams"
)

func sampleTrial(runID string, index int, status string, valLoss float64) *Trial {
	return &Trial{
		RunID:   runID,
		TrialID: "trial-" + string(rune('a'+index)),
		Index:   index,
		Status:  status,
		Source:  "random",
		Hyperparameters: hyperparams.Assignment{
			"units_1":    hyperparams.IntValue(8),
			"activation": hyperparams.ChoiceValue("relu"),
			"lr":         hyperparams.FloatValue(0.01),
		},
		ValLoss: Float(valLoss),
		History: map[string][]Float{
			"val_loss": Floats([]float64{0.9, math.NaN(), valLoss}),
		},
		StartedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		DurationMS: 1500,
	}
}

func TestFloatEncodesNonFiniteAsNull(t *testing.T) {
	data, err := json.Marshal([]Float{1.5, Float(math.NaN()), Float(math.Inf(1))})
	require.NoError(t, err)
	assert.Equal(t, "[1.5,null,null]", string(data))

	var back []Float
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Float(1.5), back[0])
	assert.True(t, math.IsNaN(float64(back[1])))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SaveTrial(ctx, sampleTrial("run1", 1, "completed", 0.4)))
	require.NoError(t, s.SaveTrial(ctx, sampleTrial("run1", 0, "failed", math.NaN())))
	require.NoError(t, s.SaveTrial(ctx, sampleTrial("run2", 0, "completed", 0.1)))

	trials, err := s.LoadTrials(ctx, "run1")
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, 0, trials[0].Index)
	assert.Equal(t, 1, trials[1].Index)
	assert.NoError(t, s.Close())
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "trials")
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.SaveTrial(ctx, sampleTrial("run-1", 2, "completed", 0.3)))
	require.NoError(t, s.SaveTrial(ctx, sampleTrial("run-1", 0, "completed", 0.5)))
	require.NoError(t, s.SaveTrial(ctx, sampleTrial("run-1", 1, "failed", math.NaN())))

	updated := sampleTrial("run-1", 0, "completed", 0.2)
	require.NoError(t, s.SaveTrial(ctx, updated))

	trials, err := s.LoadTrials(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, trials, 3)
	assert.Equal(t, Float(0.2), trials[0].ValLoss)
	assert.True(t, math.IsNaN(float64(trials[1].ValLoss)))
	assert.Equal(t, 8, trials[0].Hyperparameters["units_1"].Int())
	assert.Equal(t, "relu", trials[0].Hyperparameters["activation"].Str())
	assert.True(t, math.IsNaN(float64(trials[0].History["val_loss"][1])))

	_, err = os.Stat(filepath.Join(dir, "run-1", "trial-a.json.tmp"))
	assert.True(t, os.IsNotExist(err))

	best, ok := Best(trials)
	require.True(t, ok)
	assert.Equal(t, 0, best.Index)
}

func TestFileStoreRejectsPathTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	bad := sampleTrial("../escape", 0, "completed", 1)
	assert.Error(t, s.SaveTrial(context.Background(), bad))
	_, err = s.LoadTrials(context.Background(), "../escape")
	assert.Error(t, err)
}

func TestBestTieBreaksOnIndex(t *testing.T) {
	trials := []*Trial{
		sampleTrial("r", 3, "completed", 0.25),
		sampleTrial("r", 1, "completed", 0.25),
		sampleTrial("r", 0, "failed", 0.1),
	}
	best, ok := Best(trials)
	require.True(t, ok)
	assert.Equal(t, 1, best.Index)

	_, ok = Best([]*Trial{sampleTrial("r", 0, "failed", 0.1)})
	assert.False(t, ok)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StoreConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(ctx, config.StoreConfig{Backend: "file", Directory: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(ctx, config.StoreConfig{Backend: "s3"})
	assert.Error(t, err)
}

func TestRedisKeys(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	rs := newRedisStore(client, "", 0)
	assert.Equal(t, "phenotune:run:abc:trials", rs.trialsKey("abc"))
	assert.Equal(t, "phenotune:run:abc:ranking", rs.rankingKey("abc"))
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationFS.ReadDir("migrations")
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_create_trials.up.sql")
	assert.Contains(t, names, "000001_create_trials.down.sql")
}
