package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stacklet/mcp-server/internal/artifact"
	"github.com/stacklet/mcp-server/internal/metric"
	"github.com/stacklet/mcp-server/internal/platform"
)

// job is the mutable export record. Only the pipeline that owns it mutates
// it, always under the store lock; pollers only ever see snapshots.
type job struct {
	id            string
	state         State
	startedAt     time.Time
	completedAt   *time.Time
	processedRows int64
	result        *artifact.Handle
	failure       *Error
	done          chan struct{}
}

// Store tracks export jobs by dataset id and runs their pipelines. Jobs are
// fully isolated from each other; the schema cache is the only shared state.
type Store struct {
	schemas   *platform.Cache
	artifacts artifact.Store
	staging   string
	logger    *slog.Logger
	metrics   *metric.Metrics

	mu   sync.Mutex
	jobs map[string]*job

	now   func() time.Time
	newID func() string
}

// NewStore creates a job store that publishes artifacts through artifacts and
// stages CSV files under stagingDir. metrics may be nil.
func NewStore(schemas *platform.Cache, artifacts artifact.Store, stagingDir string, logger *slog.Logger, metrics *metric.Metrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		schemas:   schemas,
		artifacts: artifacts,
		staging:   stagingDir,
		logger:    logger,
		metrics:   metrics,
		jobs:      make(map[string]*job),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Start validates the request, creates a running job record, and launches the
// pipeline. It returns immediately with the initial snapshot. Requests that
// fail shape validation (including caller-supplied paging arguments) are
// rejected here, before any job exists or any network call is made.
func (s *Store) Start(ex platform.Executor, identity string, req Request) (Snapshot, error) {
	if err := req.Validate(); err != nil {
		return Snapshot{}, err
	}

	j := &job{
		id:        s.newID(),
		state:     StateRunning,
		startedAt: s.now(),
		done:      make(chan struct{}),
	}

	s.mu.Lock()
	s.jobs[j.id] = j
	snap := s.snapshotLocked(j)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ExportsStarted.Inc()
	}
	s.logger.Info("export started", "dataset_id", j.id, "connection_field", req.ConnectionField)

	go s.run(j, ex, identity, req)
	return snap, nil
}

// Await blocks up to timeout for the job to reach a terminal state, then
// returns the current snapshot either way. A zero timeout returns the current
// snapshot immediately. Unknown ids are a distinct, reportable condition.
func (s *Store) Await(id string, timeout time.Duration) (Snapshot, error) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	s.mu.Unlock()
	if !ok {
		return Snapshot{}, errorf(CodeDatasetNotFound, "dataset %q not found", id)
	}

	if timeout > 0 {
		select {
		case <-j.done:
		case <-time.After(timeout):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(j), nil
}

// run is the export pipeline: schema, sink, pagination, publish. It owns the
// job record exclusively until it closes done.
func (s *Store) run(j *job, ex platform.Executor, identity string, req Request) {
	ctx := context.Background()

	snap, err := s.schemas.Get(ctx, ex, identity)
	if err != nil {
		s.fail(j, wrapError(CodeTransport, err))
		return
	}

	sink, err := NewCSVSink(s.staging, req.Columns)
	if err != nil {
		s.fail(j, err)
		return
	}

	driver := &Driver{
		Executor: ex,
		Logger:   s.logger.With("dataset_id", j.id),
		OnProgress: func(rows int64) {
			s.mu.Lock()
			j.processedRows = rows
			s.mu.Unlock()
		},
	}

	rows, err := driver.Run(ctx, snap, &req, sink)
	if err != nil {
		// All-or-nothing: drop the partial staging file, keep the row count
		// as a record of the attempt.
		sink.Abort()
		s.fail(j, err)
		return
	}

	path, err := sink.Finish()
	if err != nil {
		s.fail(j, err)
		return
	}

	handle, err := s.artifacts.Publish(ctx, "exports/"+j.id+".csv", path, "text/csv")
	os.Remove(path)
	if err != nil {
		s.fail(j, wrapError(CodeArtifactWrite, err))
		return
	}

	s.mu.Lock()
	now := s.now()
	j.state = StateSucceeded
	j.completedAt = &now
	j.processedRows = rows
	j.result = &handle
	close(j.done)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ExportsCompleted.WithLabelValues(string(StateSucceeded)).Inc()
		s.metrics.ExportRows.Add(float64(rows))
	}
	s.logger.Info("export succeeded", "dataset_id", j.id, "rows", rows)
}

func (s *Store) fail(j *job, err error) {
	failure, ok := err.(*Error)
	if !ok {
		failure = wrapError(CodeTransport, err)
	}

	s.mu.Lock()
	now := s.now()
	j.state = StateFailed
	j.completedAt = &now
	j.failure = failure
	close(j.done)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ExportsCompleted.WithLabelValues(string(StateFailed)).Inc()
	}
	s.logger.Error("export failed", "dataset_id", j.id, "code", failure.Code, "error", failure.Err)
}

func (s *Store) snapshotLocked(j *job) Snapshot {
	snap := Snapshot{
		DatasetID:     j.id,
		Started:       j.startedAt,
		ProcessedRows: j.processedRows,
	}
	if j.completedAt != nil {
		completed := *j.completedAt
		snap.Completed = &completed
		success := j.state == StateSucceeded
		snap.Success = &success
	}
	if j.failure != nil {
		snap.Message = j.failure.Error()
	}
	if j.result != nil {
		url := j.result.DownloadURL
		until := j.result.AvailableUntil
		snap.DownloadURL = &url
		snap.AvailableUntil = &until
		snap.Message = fmt.Sprintf("export complete: %d rows", j.processedRows)
	}
	return snap
}
