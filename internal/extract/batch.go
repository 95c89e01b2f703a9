package extract

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rmaffei/rotafoto/internal/logging"
	"github.com/rmaffei/rotafoto/internal/models"
)

// defaultWorkers bounds the extraction fan-out of one batch.
const defaultWorkers = 4

// FileError records one file that could not be fully extracted.
type FileError struct {
	Path string
	Err  error
}

// BatchResult is the outcome of extracting one upload batch. Records
// are in the original file order regardless of completion order, with
// indices assigned from the requested start. Failed lists files that
// produced only a stub record; WithoutGPS lists readable files that
// carried no usable location.
type BatchResult struct {
	Records    []*models.PhotoRecord
	Failed     []FileError
	WithoutGPS []string
}

// Batch extracts the given files concurrently. Per-file failures never
// abort the batch: an unreadable file still yields a stub record (name,
// best-effort size, absent coordinate) so the caller's index assignment
// stays dense. The context aborts scheduling of not-yet-started files
// but already-running extractions finish.
func Batch(ctx context.Context, paths []string, startIndex, workers int) *BatchResult {
	if workers <= 0 {
		workers = defaultWorkers
	}
	batchID := uuid.NewString()
	started := time.Now()
	logging.Info("extraction batch started", map[string]interface{}{
		"batch_id":    batchID,
		"files":       len(paths),
		"start_index": startIndex,
		"workers":     workers,
	})

	type job struct {
		pos  int
		path string
	}
	jobs := make(chan job)
	records := make([]*models.PhotoRecord, len(paths))
	failures := make([]error, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				rec, err := Extract(j.path, startIndex+j.pos)
				if err != nil {
					failures[j.pos] = err
					rec = stubRecord(j.path, startIndex+j.pos)
				}
				records[j.pos] = rec
			}
		}()
	}

	for pos, path := range paths {
		select {
		case <-ctx.Done():
			// Unscheduled files become stubs so indices stay dense.
			for rest := pos; rest < len(paths); rest++ {
				failures[rest] = ctx.Err()
				records[rest] = stubRecord(paths[rest], startIndex+rest)
			}
		case jobs <- job{pos: pos, path: path}:
			continue
		}
		break
	}
	close(jobs)
	wg.Wait()

	result := &BatchResult{Records: records}
	for pos, err := range failures {
		if err != nil {
			result.Failed = append(result.Failed, FileError{Path: paths[pos], Err: err})
		}
	}
	for pos, rec := range records {
		if failures[pos] == nil && !rec.Coordinate.Valid {
			result.WithoutGPS = append(result.WithoutGPS, paths[pos])
		}
	}

	logging.Info("extraction batch finished", map[string]interface{}{
		"batch_id":    batchID,
		"records":     len(result.Records),
		"failed":      len(result.Failed),
		"without_gps": len(result.WithoutGPS),
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return result
}

// stubRecord keeps the batch shape intact when a file cannot be read:
// the record exists, carries the coordinate sentinel and no preview.
func stubRecord(path string, index int) *models.PhotoRecord {
	var size int64
	modTime := timeNow()
	if info, err := os.Stat(path); err == nil {
		size = info.Size()
		modTime = info.ModTime()
	}
	rec := newRecord(filepath.Base(path), index, size, modTime)
	rec.FileType = "application/octet-stream"
	return rec
}
