// Package download tracks in-flight fetches as tasks with an explicit
// lifecycle, driving retry-wrapped remote reads into the cache store.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/netcache/internal/cachestore"
	"github.com/vietddude/netcache/internal/core/domain"
	"github.com/vietddude/netcache/internal/credentials"
	"github.com/vietddude/netcache/internal/metrics"
	"github.com/vietddude/netcache/internal/netretry"
	"github.com/vietddude/netcache/internal/remote"
)

var (
	// ErrTaskNotFound is returned for an unknown task ID.
	ErrTaskNotFound = errors.New("download task not found")
	// ErrTaskNotQueued is returned when Run is called on a task that already
	// left the Queued state.
	ErrTaskNotQueued = errors.New("download task not queued")
)

// maxConcurrentRuns bounds RunAll parallelism.
const maxConcurrentRuns = 4

// PolicySource supplies the retry policy downloads run under, typically a
// *connectivity.Monitor. Reads must be safe for concurrent use.
type PolicySource interface {
	Policy() domain.RetryPolicy
	Online() bool
}

// Queue tracks download tasks. Tasks stay visible after finishing until
// ClearFinished prunes them. All methods are safe for concurrent use.
type Queue struct {
	service      remote.Service
	creds        credentials.Store
	store        *cachestore.Store
	monitor      PolicySource
	fetchTimeout time.Duration

	mu      sync.Mutex
	tasks   map[string]*domain.DownloadTask
	order   []string
	cancels map[string]context.CancelFunc
}

// NewQueue creates a queue fetching through service into store, under the
// policy currently selected by monitor. fetchTimeout bounds each attempt;
// 0 disables the per-attempt deadline.
func NewQueue(service remote.Service, creds credentials.Store, store *cachestore.Store, monitor PolicySource, fetchTimeout time.Duration) *Queue {
	return &Queue{
		service:      service,
		creds:        creds,
		store:        store,
		monitor:      monitor,
		fetchTimeout: fetchTimeout,
		tasks:        make(map[string]*domain.DownloadTask),
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Enqueue creates a task in the Queued state and returns its snapshot.
func (q *Queue) Enqueue(remotePath, server string) domain.DownloadTask {
	task := domain.DownloadTask{
		ID:         uuid.NewString(),
		RemotePath: remotePath,
		FileName:   path.Base(remotePath),
		Server:     server,
		Status:     domain.TaskQueued,
	}

	q.mu.Lock()
	q.tasks[task.ID] = &task
	q.order = append(q.order, task.ID)
	q.mu.Unlock()

	return task
}

// Run drives a queued task to a terminal state. The fetch is wrapped by the
// retry executor under the monitor's active policy, each attempt raced
// against the queue's fetch timeout. A task cancelled at any point before the
// cache commit leaves no cache entry.
func (q *Queue) Run(ctx context.Context, id string) error {
	runCtx, err := q.begin(ctx, id)
	if err != nil {
		return err
	}
	defer q.finishCancel(id)

	task, _ := q.Task(id)
	key := domain.CacheKey(task.Server, task.RemotePath)

	if !q.monitor.Online() {
		// Fail fast; callers fall back to the cache.
		netErr := &domain.NetworkError{Kind: domain.KindNoConnection}
		q.fail(id, netErr)
		return netErr
	}

	staging, err := os.CreateTemp("", "netcache-dl-*")
	if err != nil {
		netErr := netretry.Classify(err)
		q.fail(id, netErr)
		return netErr
	}
	stagingName := staging.Name()
	staging.Close()
	defer os.Remove(stagingName)

	start := time.Now()
	exec := netretry.NewExecutor()
	fetchErr := exec.Do(runCtx, q.monitor.Policy(), func(ctx context.Context) error {
		_, err := netretry.WithTimeout(ctx, q.fetchTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, q.fetchAttempt(ctx, id, task, stagingName)
		})
		return err
	})

	if q.status(id) == domain.TaskCancelled {
		slog.Debug("Download cancelled", "task", id, "path", task.RemotePath)
		return nil
	}
	if fetchErr != nil {
		netErr := netretry.Classify(fetchErr)
		q.fail(id, netErr)
		return netErr
	}

	payload, err := os.Open(stagingName)
	if err != nil {
		netErr := &domain.NetworkError{Kind: domain.KindUnknown, Cause: err}
		q.fail(id, netErr)
		return netErr
	}
	defer payload.Close()

	// Re-check under runCtx: a cancel between fetch completion and here must
	// keep the cache untouched, and a cancel during Put aborts the copy
	// before the index commit.
	if q.status(id) == domain.TaskCancelled {
		return nil
	}
	if _, err := q.store.Put(runCtx, key, payload); err != nil {
		if q.status(id) == domain.TaskCancelled {
			return nil
		}
		netErr := &domain.NetworkError{Kind: domain.KindUnknown, Cause: fmt.Errorf("cache payload: %w", err)}
		q.fail(id, netErr)
		return netErr
	}

	q.complete(id)
	metrics.FetchDuration.Observe(time.Since(start).Seconds())
	slog.Info("Download completed",
		"task", id,
		"path", task.RemotePath,
		"server", task.Server,
		"duration", time.Since(start),
	)
	return nil
}

// fetchAttempt performs one connect+fetch attempt into the staging file,
// reporting progress as bytes arrive.
func (q *Queue) fetchAttempt(ctx context.Context, id string, task domain.DownloadTask, stagingName string) error {
	creds, err := q.creds.Get(task.Server)
	if err != nil && !errors.Is(err, credentials.ErrNotFound) {
		return err
	}

	session, err := q.service.Connect(ctx, task.Server, creds)
	if err != nil {
		return err
	}
	defer session.Close()

	body, size, err := session.Fetch(ctx, task.RemotePath)
	if err != nil {
		return err
	}
	defer body.Close()

	// Each attempt restarts the staging file from scratch.
	staging, err := os.OpenFile(stagingName, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	var written int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			staging.Close()
			return err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			w, writeErr := staging.Write(buf[:n])
			written += int64(w)
			if writeErr != nil {
				staging.Close()
				return writeErr
			}
			if size > 0 {
				q.setProgress(id, float64(written)/float64(size))
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			staging.Close()
			return readErr
		}
	}
	return staging.Close()
}

// Cancel transitions a Queued or Downloading task to Cancelled and aborts
// its in-flight fetch. It reports whether the task was cancelled by this
// call; terminal tasks are left untouched.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.Status.Terminal() {
		q.mu.Unlock()
		return false
	}
	task.Status = domain.TaskCancelled
	cancel := q.cancels[id]
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	metrics.DownloadTasksTotal.WithLabelValues(domain.TaskCancelled.String()).Inc()
	return true
}

// CancelAll cancels every task still in Queued or Downloading.
func (q *Queue) CancelAll() {
	for _, task := range q.Tasks() {
		if !task.Status.Terminal() {
			q.Cancel(task.ID)
		}
	}
}

// RunAll drives every currently queued task, a bounded number at a time.
// The first terminal failure is returned after all runs finish; cancelled
// tasks do not count as failures.
func (q *Queue) RunAll(ctx context.Context) error {
	// Plain group: one task failing must not abort unrelated downloads.
	var g errgroup.Group
	g.SetLimit(maxConcurrentRuns)

	for _, task := range q.Tasks() {
		if task.Status != domain.TaskQueued {
			continue
		}
		g.Go(func() error {
			return q.Run(ctx, task.ID)
		})
	}
	return g.Wait()
}

// ClearFinished prunes Completed, Failed and Cancelled tasks.
func (q *Queue) ClearFinished() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.order[:0]
	for _, id := range q.order {
		if q.tasks[id].Status.Terminal() {
			delete(q.tasks, id)
			delete(q.cancels, id)
			continue
		}
		kept = append(kept, id)
	}
	q.order = kept
}

// Task returns a snapshot of one task.
func (q *Queue) Task(id string) (domain.DownloadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return domain.DownloadTask{}, false
	}
	return *task, true
}

// Tasks returns snapshots of all tasks in enqueue order.
func (q *Queue) Tasks() []domain.DownloadTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]domain.DownloadTask, 0, len(q.order))
	for _, id := range q.order {
		out = append(out, *q.tasks[id])
	}
	return out
}

// begin transitions a task from Queued to Downloading and registers its
// cancel function.
func (q *Queue) begin(ctx context.Context, id string) (context.Context, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if task.Status != domain.TaskQueued {
		return nil, fmt.Errorf("%w: task is %s", ErrTaskNotQueued, task.Status)
	}
	task.Status = domain.TaskDownloading

	runCtx, cancel := context.WithCancel(ctx)
	q.cancels[id] = cancel
	return runCtx, nil
}

func (q *Queue) finishCancel(id string) {
	q.mu.Lock()
	cancel := q.cancels[id]
	delete(q.cancels, id)
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (q *Queue) status(id string) domain.TaskStatus {
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok {
		return domain.TaskCancelled
	}
	return task.Status
}

// setProgress applies a monotonically non-decreasing progress value while the
// task is still downloading.
func (q *Queue) setProgress(id string, p float64) {
	if p > 1 {
		p = 1
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	task, ok := q.tasks[id]
	if !ok || task.Status != domain.TaskDownloading {
		return
	}
	if p > task.Progress {
		task.Progress = p
	}
}

func (q *Queue) fail(id string, netErr *domain.NetworkError) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.Status != domain.TaskDownloading {
		q.mu.Unlock()
		return
	}
	task.Status = domain.TaskFailed
	task.Err = netErr
	q.mu.Unlock()

	metrics.DownloadTasksTotal.WithLabelValues(domain.TaskFailed.String()).Inc()
	slog.Warn("Download failed",
		"task", id,
		"kind", netErr.Kind.String(),
		"action", netErr.Kind.RecoveryAction(),
	)
}

func (q *Queue) complete(id string) {
	q.mu.Lock()
	task, ok := q.tasks[id]
	if !ok || task.Status != domain.TaskDownloading {
		q.mu.Unlock()
		return
	}
	task.Status = domain.TaskCompleted
	task.Progress = 1
	q.mu.Unlock()

	metrics.DownloadTasksTotal.WithLabelValues(domain.TaskCompleted.String()).Inc()
}
