package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/AlikanakelaKarwowski/emularr/utils"
)

const probeTimeout = 30 * time.Second

// ConfigSource supplies the settings the engine reads at task-start time.
// The engine never writes configuration.
type ConfigSource interface {
	DownloadDir() string
	ChunkThreads() int
	UserAgent() string
}

// Extractor classifies and unpacks completed downloads. Extraction failure
// is non-fatal: the original file is kept and cataloged as-is.
type Extractor interface {
	ShouldExtract(path string) bool
	Extract(path, destDir string) (string, error)
}

// Catalog records finished downloads as library entries. Registration
// failure is logged, never propagated.
type Catalog interface {
	Register(name, platform, filePath, sourceDir string, metadata map[string]string) error
}

// Metadata is the caller-supplied description of a download.
type Metadata struct {
	Name     string
	Platform string
	Extra    map[string]string
}

// Controller owns the lifecycle of download tasks: strategy selection,
// pause/resume/cancel, progress tracking, and the post-completion handoff
// to extraction and the catalog.
type Controller struct {
	registry       *Registry
	cfg            ConfigSource
	extractor      Extractor
	catalog        Catalog
	probeClient    *http.Client
	transferClient *http.Client
}

// NewController wires a controller with its collaborators. extractor and
// catalog may be nil, in which case the corresponding handoff is skipped.
func NewController(cfg ConfigSource, extractor Extractor, catalog Catalog) *Controller {
	return &Controller{
		registry:    NewRegistry(),
		cfg:         cfg,
		extractor:   extractor,
		catalog:     catalog,
		probeClient: utils.CreateHTTPClient(probeTimeout),
		// transfers have no overall deadline, large files run for hours
		transferClient: utils.CreateHTTPClient(0),
	}
}

// Start creates the task, picks a strategy from the probe result, and
// returns the task id immediately; the transfer runs in the background.
func (c *Controller) Start(rawURL string, meta Metadata) (string, error) {
	log := utils.GetLogger("controller")
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid URL: %q", rawURL)
	}
	destDir := c.cfg.DownloadDir()
	threads := c.cfg.ChunkThreads()
	if threads < 1 {
		threads = 1
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("error creating download directory: %w", err)
	}

	cap := ProbeURL(c.probeClient, rawURL, c.cfg.UserAgent())
	name := meta.Name
	if name == "" {
		name = cap.Filename
	}
	if name == "" {
		name = path.Base(parsed.Path)
	}
	name = utils.SanitizeFilename(name)

	task := newTask(rawURL, destDir, name, meta.Platform, meta.Extra)
	outputPath := filepath.Join(destDir, name)
	if _, err := os.Stat(outputPath); err == nil {
		outputPath = utils.RenewOutputPath(outputPath)
	}
	task.OutputPath = outputPath
	task.totalSize = cap.ContentLength
	task.connections = threads
	if cap.SupportsRange && cap.ContentLength > 0 && threads > 1 {
		task.strategy = StrategyChunked
		task.chunks = splitChunks(cap.ContentLength, threads)
	} else {
		task.strategy = StrategySingle
	}
	log.Info().Str("taskId", task.ID).Str("url", rawURL).Str("strategy", string(task.strategy)).Int64("size", cap.ContentLength).Msg("Starting download")

	c.registry.Add(task)
	task.attemptWG.Add(1)
	go c.run(task)
	return task.ID, nil
}

// run drives one transfer attempt to a terminal or paused state. Resume
// spawns a fresh run for the same task.
func (c *Controller) run(task *Task) {
	defer task.attemptWG.Done()
	ctx, cancel := context.WithCancel(context.Background())
	task.setCancelFunc(cancel)
	defer cancel()
	go c.trackProgress(task)

	var err error
	if task.Strategy() == StrategyChunked {
		err = c.runChunkedAttempt(ctx, task)
	} else {
		err = runSingle(ctx, c.transferClient, task, c.cfg.UserAgent())
	}
	c.finish(task, err)
}

func (c *Controller) runChunkedAttempt(ctx context.Context, task *Task) error {
	log := utils.GetLogger("controller").With().Str("taskId", task.ID).Logger()
	file, err := openPreallocated(task.OutputPath, task.TotalSize())
	if err != nil {
		return err
	}
	err = runChunked(ctx, c.transferClient, task, file, c.cfg.UserAgent())
	file.Close()
	if errors.Is(err, errRangeIgnored) {
		// The probe lied: ranges were advertised but a fetcher got a 200.
		// Discard the pre-allocated file and redo this attempt as a plain
		// stream.
		log.Warn().Msg("Server ignored range request, falling back to single stream")
		os.Remove(task.OutputPath)
		task.mu.Lock()
		task.strategy = StrategySingle
		task.chunks = nil
		task.mu.Unlock()
		return runSingle(ctx, c.transferClient, task, c.cfg.UserAgent())
	}
	return err
}

func openPreallocated(outputPath string, size int64) (*os.File, error) {
	file, err := os.OpenFile(outputPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("error opening destination file: %w", err)
	}
	// fixed length up front so concurrent positioned writes never race a
	// truncation
	if err := file.Truncate(size); err != nil {
		file.Close()
		return nil, fmt.Errorf("error pre-allocating destination file: %w", err)
	}
	return file, nil
}

// finish classifies how the attempt ended. Pause and cancel intents win
// over whatever error the aborted streams produced.
func (c *Controller) finish(task *Task, err error) {
	log := utils.GetLogger("controller").With().Str("taskId", task.ID).Logger()
	switch task.currentIntent() {
	case intentCancel:
		c.removeArtifacts(task)
		log.Info().Msg("Download cancelled")
		return
	case intentPause:
		if err == nil {
			// transfer won the race against the pause request
			break
		}
		task.setStatus(StatusPaused)
		task.setTelemetry(c.measureBytes(task), 0, -1)
		log.Info().Msg("Download paused")
		return
	}
	if err != nil {
		if errors.Is(err, errCancelled) {
			// aborted stream without a recorded intent, treat as cancel
			c.removeArtifacts(task)
			return
		}
		task.setError(err.Error())
		log.Error().Err(err).Msg("Download failed")
		return
	}

	task.mu.Lock()
	if task.totalSize <= 0 {
		if fileInfo, statErr := os.Stat(task.OutputPath); statErr == nil {
			task.totalSize = fileInfo.Size()
		}
	}
	task.downloaded = task.totalSize
	task.speedBPS = 0
	task.etaSeconds = 0
	task.status = StatusCompleted
	task.mu.Unlock()
	log.Info().Str("file", task.OutputPath).Msg("Download completed")
	c.postProcess(task)
}

// postProcess hands the finished file to the extractor and then the
// catalog. Neither failure mode demotes the task from Completed.
func (c *Controller) postProcess(task *Task) {
	log := utils.GetLogger("controller").With().Str("taskId", task.ID).Logger()
	finalPath := task.OutputPath
	if c.extractor != nil && c.extractor.ShouldExtract(finalPath) {
		base := strings.TrimSuffix(task.DisplayName, filepath.Ext(task.DisplayName))
		extractDir := filepath.Join(task.DestDir, base)
		resolved, err := c.extractor.Extract(finalPath, extractDir)
		if err != nil {
			log.Warn().Err(err).Str("file", finalPath).Msg("Extraction failed, keeping original file")
		} else {
			finalPath = resolved
			log.Info().Str("dir", resolved).Msg("Archive extracted")
		}
	}
	task.mu.Lock()
	task.finalPath = finalPath
	task.mu.Unlock()

	if c.catalog != nil {
		if err := c.catalog.Register(task.DisplayName, task.Platform, finalPath, task.DestDir, task.Metadata); err != nil {
			log.Warn().Err(err).Msg("Catalog registration failed")
		}
	}
}

// Pause aborts the in-flight streams without discarding flushed bytes.
// Valid only while Downloading.
func (c *Controller) Pause(id string) bool {
	task, ok := c.registry.Get(id)
	if !ok {
		return false
	}
	task.mu.Lock()
	if task.status != StatusDownloading {
		task.mu.Unlock()
		return false
	}
	task.status = StatusPaused
	task.mu.Unlock()
	task.abort(intentPause)
	return true
}

// Resume re-probes range support and restarts the remaining region with
// the task's original thread count. Without range support the task cannot
// be resumed and is marked Error.
func (c *Controller) Resume(id string) bool {
	task, ok := c.registry.Get(id)
	if !ok {
		return false
	}
	task.mu.Lock()
	if task.status != StatusPaused {
		task.mu.Unlock()
		return false
	}
	task.mu.Unlock()
	// let the previous attempt finish tearing down before starting a new one
	task.attemptWG.Wait()

	cap := ProbeURL(c.probeClient, task.URL, c.cfg.UserAgent())
	if !cap.SupportsRange {
		task.setError("cannot resume: server does not support range requests")
		return false
	}
	task.mu.Lock()
	if task.totalSize <= 0 {
		task.totalSize = cap.ContentLength
	}
	task.status = StatusDownloading
	task.mu.Unlock()
	task.clearIntent()
	task.attemptWG.Add(1)
	go c.run(task)
	return true
}

// Cancel aborts the transfer, deletes the partial file, and removes the
// task from the registry. A second cancel on the same id returns false.
func (c *Controller) Cancel(id string) bool {
	task, ok := c.registry.Get(id)
	if !ok {
		return false
	}
	if task.Status().IsTerminal() {
		return false
	}
	task.setStatus(StatusCancelled)
	task.abort(intentCancel)
	c.registry.Remove(id)
	c.removeArtifacts(task)
	return true
}

func (c *Controller) removeArtifacts(task *Task) {
	c.registry.Remove(task.ID)
	os.Remove(task.OutputPath)
	os.Remove(task.OutputPath + ".part")
}

// GetProgress returns the task snapshot, or nil for an unknown id.
func (c *Controller) GetProgress(id string) *Snapshot {
	task, ok := c.registry.Get(id)
	if !ok {
		return nil
	}
	snap := task.Snapshot()
	return &snap
}

// Tasks returns snapshots of every registered task.
func (c *Controller) Tasks() []Snapshot {
	return c.registry.Snapshots()
}

// Prune drops finished tasks from the registry and reports how many.
func (c *Controller) Prune() int {
	return c.registry.Prune()
}
