// Package restore orchestrates disaster-recovery jobs: backup upload,
// database restore, post-restore verification, and maintenance-mode
// gating. Jobs run detached from their caller and report progress through a
// pollable in-memory status map.
package restore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"canon/internal/proposal/ports"
	"canon/internal/restore/executor"
	restoremetrics "canon/internal/restore/metrics"
	dErrors "canon/pkg/domainerrors"
	audit "canon/pkg/platform/audit"
	"canon/pkg/platform/audit/emitter"
	"canon/pkg/requestcontext"
)

// Backup describes one uploaded backup file.
type Backup struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Size       int       `json:"size"`
	UploadedBy string    `json:"uploadedBy"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// entityTypeBackup and entityTypeDatabase tag audit events from this module.
const (
	entityTypeBackup   = "Backup"
	entityTypeDatabase = "Database"
)

// Service is the restore job coordinator.
type Service struct {
	jobs      *jobMap
	gate      *Gate
	uploads   UploadStore
	exec      executor.Executor
	proposals ports.ProposalStore
	emitter   *emitter.Emitter
	logger    *slog.Logger
	metrics   *restoremetrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *restoremetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	gate *Gate,
	uploads UploadStore,
	exec executor.Executor,
	proposals ports.ProposalStore,
	auditEmitter *emitter.Emitter,
	opts ...Option,
) *Service {
	s := &Service{
		jobs:      newJobMap(),
		gate:      gate,
		uploads:   uploads,
		exec:      exec,
		proposals: proposals,
		emitter:   auditEmitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Gate exposes the maintenance gate for health endpoints.
func (s *Service) Gate() *Gate { return s.gate }

// Upload validates and persists a backup payload, then emits a
// BACKUP_UPLOAD audit event. Validation failures surface before any storage
// call is made.
func (s *Service) Upload(ctx context.Context, data []byte, name, actorID string) (*Backup, error) {
	if err := ValidateUpload(data, name); err != nil {
		return nil, err
	}

	id, _, err := s.uploads.Save(data, name)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store backup")
	}

	backup := &Backup{
		ID:         id,
		Filename:   name,
		Size:       len(data),
		UploadedBy: actorID,
		UploadedAt: requestcontext.Now(ctx),
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:     audit.ActionBackupUpload,
		ActorID:    actorID,
		EntityType: entityTypeBackup,
		EntityID:   backup.ID,
		Metadata: map[string]any{
			"filename": name,
			"size":     len(data),
		},
		RequestID: requestcontext.RequestID(ctx),
	})

	s.logger.InfoContext(ctx, "backup uploaded", "backup_id", backup.ID, "size", backup.Size)
	return backup, nil
}

// ListBackups returns the stored backups, newest first.
func (s *Service) ListBackups(ctx context.Context) ([]StoredBackup, error) {
	backups, err := s.uploads.List()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list backups")
	}
	return backups, nil
}

// DeleteBackup removes a stored backup file and emits a BACKUP_DELETE event.
func (s *Service) DeleteBackup(ctx context.Context, backupID, actorID string) error {
	if err := s.uploads.Remove(backupID); err != nil {
		return err
	}

	s.emitter.Emit(ctx, audit.Event{
		Action:     audit.ActionBackupDelete,
		ActorID:    actorID,
		EntityType: entityTypeBackup,
		EntityID:   backupID,
		RequestID:  requestcontext.RequestID(ctx),
	})

	s.logger.InfoContext(ctx, "backup deleted", "backup_id", backupID)
	return nil
}

// StartRestore validates the backup reference, records a pending job, emits
// RESTORE_STARTED, and launches execution detached from the caller. The job
// id returns immediately; progress is observed through GetJob.
func (s *Service) StartRestore(ctx context.Context, backupID, actorID string) (string, error) {
	if strings.TrimSpace(backupID) == "" {
		return "", dErrors.New(dErrors.CodeValidation, "backup id is required")
	}
	if !strings.HasSuffix(backupID, backupExt) {
		return "", dErrors.New(dErrors.CodeValidation, "backup id must reference a .sql file")
	}
	path, err := s.uploads.Path(backupID)
	if err != nil {
		return "", err
	}

	job := &Job{
		ID:        "restore_" + uuid.NewString(),
		BackupID:  backupID,
		Status:    JobPending,
		Progress:  0,
		StartedAt: requestcontext.Now(ctx),
		Logs:      []string{},
	}
	s.jobs.put(job)

	s.emitter.Emit(ctx, audit.Event{
		Action:     audit.ActionRestoreStarted,
		ActorID:    actorID,
		EntityType: entityTypeDatabase,
		EntityID:   job.ID,
		Metadata:   map[string]any{"backupId": backupID},
		RequestID:  requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.IncrementStarted()
	}

	s.logger.InfoContext(ctx, "restore job started", "job_id", job.ID, "backup_id", backupID)

	// Detach from the request: the job outlives its caller, but keeps the
	// request-scoped values for audit attribution.
	go s.run(context.WithoutCancel(ctx), job.ID, path, actorID)

	return job.ID, nil
}

// GetJob returns a snapshot of the job's status. Pure read; never blocks on
// the running job.
func (s *Service) GetJob(id string) (*Job, error) {
	job, ok := s.jobs.get(id)
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "restore job not found")
	}
	return job, nil
}

// run executes the restore pipeline in the background. Maintenance mode is
// cleared on every exit path.
func (s *Service) run(ctx context.Context, jobID, path, actorID string) {
	s.appendLog(jobID, fmt.Sprintf("Starting restore from: %s", path))
	s.jobs.update(jobID, func(j *Job) {
		j.Status = JobRunning
		j.CurrentStep = "starting"
	})

	s.gate.Enable(ctx)
	s.appendLog(jobID, "Maintenance mode enabled")
	defer func() {
		s.gate.Disable(ctx)
		s.appendLog(jobID, "Maintenance mode disabled")
	}()

	if err := s.restoreAndVerify(ctx, jobID, path); err != nil {
		s.fail(ctx, jobID, actorID, err)
		return
	}
	s.complete(ctx, jobID, actorID)
}

func (s *Service) restoreAndVerify(ctx context.Context, jobID, path string) error {
	s.jobs.update(jobID, func(j *Job) {
		j.CurrentStep = "restoring"
		j.Progress = 30
	})
	s.appendLog(jobID, "Executing database restore...")

	if err := s.exec.Restore(ctx, path); err != nil {
		return fmt.Errorf("restore execution: %w", err)
	}

	s.jobs.update(jobID, func(j *Job) { j.Progress = 70 })
	s.appendLog(jobID, "Database restore completed")

	s.jobs.update(jobID, func(j *Job) {
		j.CurrentStep = "verifying"
		j.Progress = 90
	})
	s.appendLog(jobID, "Verifying restore...")

	count, err := s.proposals.Count(ctx)
	if err != nil {
		return fmt.Errorf("restore verification: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("restore verification failed: no proposals found")
	}
	s.appendLog(jobID, fmt.Sprintf("Verification passed: %d proposals found", count))
	return nil
}

func (s *Service) complete(ctx context.Context, jobID, actorID string) {
	now := time.Now()
	s.jobs.update(jobID, func(j *Job) {
		j.Status = JobCompleted
		j.CurrentStep = "completed"
		j.Progress = 100
		j.CompletedAt = &now
	})
	s.appendLog(jobID, "Restore completed successfully")

	s.emitter.Emit(ctx, audit.Event{
		Action:     audit.ActionRestoreCompleted,
		ActorID:    actorID,
		EntityType: entityTypeDatabase,
		EntityID:   jobID,
	})
	if s.metrics != nil {
		s.metrics.IncrementCompleted()
	}
	s.logger.InfoContext(ctx, "restore job completed", "job_id", jobID)
}

func (s *Service) fail(ctx context.Context, jobID, actorID string, cause error) {
	now := time.Now()
	s.jobs.update(jobID, func(j *Job) {
		j.Status = JobFailed
		j.Error = cause.Error()
		j.CompletedAt = &now
	})
	s.appendLog(jobID, fmt.Sprintf("Restore failed: %v", cause))

	s.emitter.Emit(ctx, audit.Event{
		Action:     audit.ActionRestoreFailed,
		ActorID:    actorID,
		EntityType: entityTypeDatabase,
		EntityID:   jobID,
		Metadata:   map[string]any{"error": cause.Error()},
	})
	if s.metrics != nil {
		s.metrics.IncrementFailed()
	}
	s.logger.ErrorContext(ctx, "restore job failed", "job_id", jobID, "error", cause)
}

func (s *Service) appendLog(jobID, line string) {
	s.jobs.update(jobID, func(j *Job) {
		j.Logs = append(j.Logs, line)
	})
}
