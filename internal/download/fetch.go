package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/AlikanakelaKarwowski/emularr/utils"
)

// errCancelled marks a stream abort caused by pause or cancel. It is never
// surfaced as a task error.
var errCancelled = errors.New("transfer cancelled")

// errRangeIgnored is returned when a server answers a range request with
// 200 and the full body. The chunked attempt is abandoned and the
// controller retries the task single-stream.
var errRangeIgnored = errors.New("server ignored range request")

// splitChunks partitions [0, fileSize) into n contiguous inclusive ranges.
// The last chunk absorbs the remainder.
func splitChunks(fileSize int64, n int) []*Chunk {
	chunkSize := fileSize / int64(n)
	chunks := make([]*Chunk, 0, n)
	var currentPosition int64 = 0
	for i := 0; i < n; i++ {
		startByte := currentPosition
		endByte := startByte + chunkSize - 1
		if i == n-1 {
			endByte = fileSize - 1
		}
		if endByte >= fileSize {
			endByte = fileSize - 1
		}
		if endByte >= startByte {
			chunks = append(chunks, &Chunk{ID: i, StartByte: startByte, EndByte: endByte})
		}
		currentPosition = endByte + 1
	}
	return chunks
}

// runChunked streams every incomplete chunk of the task concurrently into
// the shared pre-allocated file. Writes are positioned inside each chunk's
// disjoint range, so no lock is needed on the file. Returns nil only when
// all chunks completed.
func runChunked(ctx context.Context, client *http.Client, task *Task, file *os.File, userAgent string) error {
	log := utils.GetLogger("chunked").With().Str("taskId", task.ID).Logger()
	chunks := task.Chunks()

	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	for _, chunk := range chunks {
		if chunk.complete() {
			log.Debug().Int("chunkId", chunk.ID).Msg("Chunk already complete, skipping")
			continue
		}
		wg.Add(1)
		go func(c *Chunk) {
			defer wg.Done()
			if err := fetchChunk(ctx, client, task.URL, file, c, userAgent); err != nil {
				mu.Lock()
				if firstErr == nil || errors.Is(firstErr, errCancelled) {
					firstErr = err
				}
				mu.Unlock()
			}
		}(chunk)
	}
	wg.Wait()

	if firstErr != nil {
		return firstErr
	}
	for _, chunk := range chunks {
		if !chunk.complete() {
			return fmt.Errorf("chunk %d incomplete: %d of %d bytes", chunk.ID, chunk.Downloaded(), chunk.Size())
		}
	}
	return nil
}

// fetchChunk transfers one byte range into the file at the chunk's offset.
// The remaining sub-range is computed from the chunk's own counter, which
// is what makes pause/resume exact per chunk. Cancellation flags are
// checked before the request, before acting on the response, and on every
// read.
func fetchChunk(ctx context.Context, client *http.Client, url string, file *os.File, chunk *Chunk, userAgent string) error {
	log := utils.GetLogger("chunk").With().Int("chunkId", chunk.ID).Logger()
	if chunk.isCancelled() || ctx.Err() != nil {
		return errCancelled
	}

	startByte := chunk.StartByte + chunk.Downloaded()
	rangeHeader := fmt.Sprintf("bytes=%d-%d", startByte, chunk.EndByte)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", rangeHeader)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Connection", "keep-alive")
	log.Debug().Str("range", rangeHeader).Msg("Sending range request")
	resp, err := client.Do(req)
	if err != nil {
		if chunk.isCancelled() || ctx.Err() != nil {
			return errCancelled
		}
		return err
	}
	defer resp.Body.Close()
	if chunk.isCancelled() {
		return errCancelled
	}
	if resp.StatusCode == http.StatusOK {
		return errRangeIgnored
	}
	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	writer := io.NewOffsetWriter(file, startByte)
	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := writer.Write(buffer[:bytesRead]); writeErr != nil {
				return writeErr
			}
			chunk.addDownloaded(int64(bytesRead))
		}
		if chunk.isCancelled() || ctx.Err() != nil {
			return errCancelled
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return readErr
		}
	}
	if !chunk.complete() {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d bytes", chunk.Size(), chunk.Downloaded())
	}
	log.Debug().Int64("size", chunk.Size()).Msg("Chunk download completed")
	return nil
}

// runSingle streams the whole remaining body into <output>.part and
// renames it into place on completion. A non-zero resume offset requires a
// 206; getting a 200 back means the file cannot be resumed.
func runSingle(ctx context.Context, client *http.Client, task *Task, userAgent string) error {
	log := utils.GetLogger("single").With().Str("taskId", task.ID).Logger()
	partPath := task.OutputPath + ".part"

	var resumeOffset int64 = 0
	fileMode := os.O_CREATE | os.O_WRONLY
	if fileInfo, err := os.Stat(partPath); err == nil && fileInfo.Size() > 0 {
		resumeOffset = fileInfo.Size()
		fileMode |= os.O_APPEND
		log.Debug().Int64("offset", resumeOffset).Msg("Resuming incomplete download")
	} else {
		fileMode |= os.O_TRUNC
	}
	outFile, err := os.OpenFile(partPath, fileMode, 0644)
	if err != nil {
		return fmt.Errorf("error opening output file: %w", err)
	}
	defer outFile.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return err
	}
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return errCancelled
		}
		return fmt.Errorf("error executing GET request: %w", err)
	}
	defer resp.Body.Close()

	if resumeOffset > 0 {
		if resp.StatusCode != http.StatusPartialContent {
			return fmt.Errorf("cannot resume: server ignored range request (status %d)", resp.StatusCode)
		}
	} else if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	buffer := make([]byte, utils.DefaultBufferSize)
	var newBytes int64 = 0
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if _, writeErr := outFile.Write(buffer[:bytesRead]); writeErr != nil {
				return fmt.Errorf("error writing to output file: %w", writeErr)
			}
			newBytes += int64(bytesRead)
		}
		if ctx.Err() != nil {
			return errCancelled
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return fmt.Errorf("error reading response body: %w", readErr)
		}
	}
	log.Debug().Int64("resumeOffset", resumeOffset).Int64("downloadedThisSession", newBytes).Msg("Single-stream download completed")
	if err := outFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(partPath, task.OutputPath); err != nil {
		return fmt.Errorf("error finalizing output file: %w", err)
	}
	return nil
}
