package download

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a transfer task.
type Status string

const (
	StatusDownloading Status = "Downloading"
	StatusPaused      Status = "Paused"
	StatusCompleted   Status = "Completed"
	StatusError       Status = "Error"
	StatusCancelled   Status = "Cancelled"
)

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// Strategy is the transfer mode chosen for a task.
type Strategy string

const (
	StrategySingle  Strategy = "single"
	StrategyChunked Strategy = "chunked"
)

// intent records why an in-flight transfer is being torn down, so the
// supervisor can tell a pause apart from a cancel when the streams abort.
type intent int32

const (
	intentNone intent = iota
	intentPause
	intentCancel
)

// Chunk is one byte-range sub-transfer of a chunked task. StartByte and
// EndByte are inclusive. The downloaded counter is written by exactly one
// fetcher goroutine and read by the aggregator, so it is atomic.
type Chunk struct {
	ID         int
	StartByte  int64
	EndByte    int64
	downloaded atomic.Int64
	cancelled  atomic.Bool
}

func (c *Chunk) Size() int64 {
	return c.EndByte - c.StartByte + 1
}

func (c *Chunk) Downloaded() int64 {
	return c.downloaded.Load()
}

func (c *Chunk) addDownloaded(n int64) {
	c.downloaded.Add(n)
}

func (c *Chunk) complete() bool {
	return c.downloaded.Load() >= c.Size()
}

func (c *Chunk) cancel() {
	c.cancelled.Store(true)
}

func (c *Chunk) isCancelled() bool {
	return c.cancelled.Load()
}

// Task is one requested transfer. Mutable fields are guarded by mu; the
// boundary only ever sees read-only Snapshot copies.
type Task struct {
	mu sync.RWMutex

	ID          string
	URL         string
	DestDir     string
	DisplayName string
	Platform    string
	OutputPath  string
	Metadata    map[string]string

	status      Status
	strategy    Strategy
	connections int
	totalSize   int64
	chunks      []*Chunk
	errDetail   string
	finalPath   string

	// telemetry, refreshed by the aggregator
	downloaded int64
	speedBPS   float64
	etaSeconds int64

	intent     atomic.Int32
	cancelFunc context.CancelFunc
	startedAt  time.Time

	// attemptWG tracks the in-flight transfer attempt; resume waits on it
	// so a new attempt never overlaps the old one's teardown.
	attemptWG sync.WaitGroup
}

// Snapshot is the caller-visible view of a task. Progress is in [0,1], or
// -1 when the total size is unknown. ETASeconds is -1 when indeterminate.
type Snapshot struct {
	ID          string            `json:"id"`
	URL         string            `json:"url"`
	Name        string            `json:"name"`
	Platform    string            `json:"platform,omitempty"`
	Status      Status            `json:"status"`
	Strategy    Strategy          `json:"strategy"`
	Connections int               `json:"connections"`
	TotalBytes  int64             `json:"total_bytes"`
	Downloaded  int64             `json:"downloaded_bytes"`
	Progress    float64           `json:"progress"`
	SpeedBPS    float64           `json:"speed_bps"`
	ETASeconds  int64             `json:"eta_seconds"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"started_at"`
	OutputPath  string            `json:"output_path,omitempty"`
	FinalPath   string            `json:"final_path,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

func newTask(url, destDir, name, platform string, metadata map[string]string) *Task {
	return &Task{
		ID:          uuid.New().String(),
		URL:         url,
		DestDir:     destDir,
		DisplayName: name,
		Platform:    platform,
		Metadata:    metadata,
		status:      StatusDownloading,
		etaSeconds:  -1,
		startedAt:   time.Now(),
	}
}

func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Task) setStatus(s Status) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

func (t *Task) setError(detail string) {
	t.mu.Lock()
	t.status = StatusError
	t.errDetail = detail
	t.mu.Unlock()
}

func (t *Task) Strategy() Strategy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.strategy
}

func (t *Task) TotalSize() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.totalSize
}

func (t *Task) Chunks() []*Chunk {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.chunks
}

func (t *Task) setCancelFunc(cancel context.CancelFunc) {
	t.mu.Lock()
	t.cancelFunc = cancel
	t.mu.Unlock()
}

// abort cancels the in-flight attempt context and flags every chunk, so
// fetchers stop at their next suspension point and sockets close promptly.
func (t *Task) abort(why intent) {
	t.intent.Store(int32(why))
	t.mu.RLock()
	cancel := t.cancelFunc
	chunks := t.chunks
	t.mu.RUnlock()
	for _, chunk := range chunks {
		chunk.cancel()
	}
	if cancel != nil {
		cancel()
	}
}

func (t *Task) currentIntent() intent {
	return intent(t.intent.Load())
}

func (t *Task) clearIntent() {
	t.intent.Store(int32(intentNone))
	for _, chunk := range t.Chunks() {
		chunk.cancelled.Store(false)
	}
}

// chunkedBytes sums per-chunk counters. Only meaningful for chunked tasks.
func (t *Task) chunkedBytes() int64 {
	var total int64
	for _, chunk := range t.Chunks() {
		total += chunk.Downloaded()
	}
	return total
}

func (t *Task) setTelemetry(downloaded int64, speedBPS float64, etaSeconds int64) {
	t.mu.Lock()
	t.downloaded = downloaded
	t.speedBPS = speedBPS
	t.etaSeconds = etaSeconds
	t.mu.Unlock()
}

// Snapshot returns an eventually-consistent copy of the task for polling.
func (t *Task) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap := Snapshot{
		ID:          t.ID,
		URL:         t.URL,
		Name:        t.DisplayName,
		Platform:    t.Platform,
		Status:      t.status,
		Strategy:    t.strategy,
		Connections: t.connections,
		TotalBytes:  t.totalSize,
		Downloaded:  t.downloaded,
		SpeedBPS:    t.speedBPS,
		ETASeconds:  t.etaSeconds,
		Error:       t.errDetail,
		StartedAt:   t.startedAt,
		OutputPath:  t.OutputPath,
		FinalPath:   t.finalPath,
		Metadata:    t.Metadata,
	}
	switch {
	case t.status == StatusCompleted:
		snap.Progress = 1
	case t.totalSize > 0:
		snap.Progress = float64(t.downloaded) / float64(t.totalSize)
	default:
		snap.Progress = -1 // indeterminate
	}
	return snap
}
