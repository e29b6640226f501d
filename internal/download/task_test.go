package download

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusDownloading.IsTerminal())
	assert.False(t, StatusPaused.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusError.IsTerminal())
	assert.True(t, StatusCancelled.IsTerminal())
}

func TestSnapshotProgress(t *testing.T) {
	task := newTask("http://example.com/a.zip", "/tmp", "a.zip", "", nil)
	task.totalSize = 1000
	task.downloaded = 250

	assert.InDelta(t, 0.25, task.Snapshot().Progress, 1e-9)

	task.totalSize = 0
	assert.Equal(t, float64(-1), task.Snapshot().Progress, "unknown length is indeterminate")

	task.status = StatusCompleted
	assert.Equal(t, float64(1), task.Snapshot().Progress)
}

func TestChunkAccounting(t *testing.T) {
	chunk := &Chunk{ID: 0, StartByte: 100, EndByte: 199}

	assert.Equal(t, int64(100), chunk.Size())
	assert.False(t, chunk.complete())

	chunk.addDownloaded(60)
	assert.Equal(t, int64(60), chunk.Downloaded())
	chunk.addDownloaded(40)
	assert.True(t, chunk.complete())
}

func TestRegistryRemoveReportsPresence(t *testing.T) {
	registry := NewRegistry()
	task := newTask("http://example.com/a.zip", "/tmp", "a.zip", "", nil)
	registry.Add(task)

	got, ok := registry.Get(task.ID)
	require.True(t, ok)
	assert.Equal(t, task.ID, got.ID)

	assert.True(t, registry.Remove(task.ID))
	assert.False(t, registry.Remove(task.ID))
	_, ok = registry.Get(task.ID)
	assert.False(t, ok)
}

func TestRegistryPruneKeepsActiveTasks(t *testing.T) {
	registry := NewRegistry()
	active := newTask("http://example.com/a.zip", "/tmp", "a.zip", "", nil)
	done := newTask("http://example.com/b.zip", "/tmp", "b.zip", "", nil)
	done.status = StatusCompleted
	paused := newTask("http://example.com/c.zip", "/tmp", "c.zip", "", nil)
	paused.status = StatusPaused
	registry.Add(active)
	registry.Add(done)
	registry.Add(paused)

	assert.Equal(t, 1, registry.Prune())
	assert.Len(t, registry.Snapshots(), 2)
}
