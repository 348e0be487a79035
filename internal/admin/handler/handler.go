// Package handler wires the admin API endpoints to the restore and
// integrity services.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"canon/internal/integrity"
	"canon/internal/proposal/models"
	"canon/internal/restore"
	dErrors "canon/pkg/domainerrors"
	audit "canon/pkg/platform/audit"
	"canon/pkg/platform/httputil"
	"canon/pkg/requestcontext"
)

// RestoreService defines the restore operations the handler depends on.
type RestoreService interface {
	Upload(ctx context.Context, data []byte, name, actorID string) (*restore.Backup, error)
	ListBackups(ctx context.Context) ([]restore.StoredBackup, error)
	DeleteBackup(ctx context.Context, backupID, actorID string) error
	StartRestore(ctx context.Context, backupID, actorID string) (string, error)
	GetJob(id string) (*restore.Job, error)
	Gate() *restore.Gate
}

// IntegrityService defines the verification operations the handler depends on.
type IntegrityService interface {
	Verify(ctx context.Context) (*models.VerificationReport, error)
}

// CorrectionService applies corrections for a set of mismatches.
type CorrectionService interface {
	Correct(ctx context.Context, mismatches []models.MismatchRecord) *models.CorrectionSummary
}

// Handler serves the admin API.
type Handler struct {
	restore   RestoreService
	verifier  IntegrityService
	corrector CorrectionService
	reports   *integrity.ReportCache
	auditLog  audit.Querier
	logger    *slog.Logger
}

// New constructs the admin handler with its dependencies.
func New(
	restoreSvc RestoreService,
	verifier IntegrityService,
	corrector CorrectionService,
	reports *integrity.ReportCache,
	auditLog audit.Querier,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		restore:   restoreSvc,
		verifier:  verifier,
		corrector: corrector,
		reports:   reports,
		auditLog:  auditLog,
		logger:    logger,
	}
}

// Register mounts the admin endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/admin/backups", h.HandleUploadBackup)
	r.Get("/admin/backups", h.HandleListBackups)
	r.Delete("/admin/backups/{id}", h.HandleDeleteBackup)
	r.Post("/admin/restore", h.HandleStartRestore)
	r.Get("/admin/restore/jobs/{id}", h.HandleGetJob)
	r.Post("/admin/verify", h.HandleVerify)
	r.Get("/admin/verify", h.HandleLastReport)
	r.Post("/admin/verify/correct", h.HandleVerifyAndCorrect)
	r.Get("/admin/maintenance", h.HandleMaintenance)
	r.Get("/admin/audit", h.HandleAuditLog)
}

// HandleUploadBackup handles POST /admin/backups multipart uploads.
func (h *Handler) HandleUploadBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "no backup file provided"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, restore.MaxUploadSize+1))
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "read upload"))
		return
	}

	backup, err := h.restore.Upload(ctx, data, header.Filename, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "backup upload rejected",
			"request_id", requestcontext.RequestID(ctx),
			"filename", header.Filename,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, backup)
}

// HandleListBackups handles GET /admin/backups, newest first.
func (h *Handler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.restore.ListBackups(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"backups": backups})
}

// HandleDeleteBackup handles DELETE /admin/backups/{id}.
func (h *Handler) HandleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	backupID := chi.URLParam(r, "id")

	if err := h.restore.DeleteBackup(ctx, backupID, requestcontext.ActorID(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]string{"deleted": backupID})
}

type startRestoreRequest struct {
	BackupID string `json:"backupId"`
}

// HandleStartRestore handles POST /admin/restore. The restore itself runs in
// the background; the response carries the job ID to poll.
func (h *Handler) HandleStartRestore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req startRestoreRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	jobID, err := h.restore.StartRestore(ctx, req.BackupID, requestcontext.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "restore job rejected",
			"request_id", requestcontext.RequestID(ctx),
			"backup_id", req.BackupID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// HandleGetJob handles GET /admin/restore/jobs/{id}.
func (h *Handler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.restore.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, job)
}

// HandleVerify handles POST /admin/verify: runs a full verification pass and
// caches the resulting report.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	report, err := h.verifier.Verify(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "state verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	if err := h.reports.Save(ctx, report); err != nil {
		h.logger.WarnContext(ctx, "failed to cache verification report", "error", err)
	}

	h.logger.InfoContext(ctx, "state verification completed",
		"request_id", requestcontext.RequestID(ctx),
		"total", report.Total,
		"mismatched", report.MismatchedCount,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleLastReport handles GET /admin/verify: returns the most recent cached
// verification report without running a new pass.
func (h *Handler) HandleLastReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Latest(r.Context())
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "no verification report available"))
			return
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, report)
}

type verifyCorrectResponse struct {
	Report  *models.VerificationReport `json:"report"`
	Summary *models.CorrectionSummary  `json:"summary"`
}

// HandleVerifyAndCorrect handles POST /admin/verify/correct: verifies and
// then repairs every mismatch found, continuing past individual failures.
func (h *Handler) HandleVerifyAndCorrect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.verifier.Verify(ctx)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	summary := h.corrector.Correct(ctx, report.Mismatches)

	if err := h.reports.Save(ctx, report); err != nil {
		h.logger.WarnContext(ctx, "failed to cache verification report", "error", err)
	}

	h.logger.InfoContext(ctx, "state correction completed",
		"request_id", requestcontext.RequestID(ctx),
		"mismatched", report.MismatchedCount,
		"corrected", summary.Corrected,
		"failed", summary.Failed,
	)

	httputil.WriteJSON(w, http.StatusOK, verifyCorrectResponse{Report: report, Summary: summary})
}

// HandleMaintenance handles GET /admin/maintenance.
func (h *Handler) HandleMaintenance(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]bool{
		"maintenance": h.restore.Gate().Enabled(),
	})
}

// HandleAuditLog handles GET /admin/audit with optional entityType, entityId,
// actorId, action, limit, and offset query parameters.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := audit.Filter{
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		ActorID:    q.Get("actorId"),
		Action:     audit.Action(q.Get("action")),
	}
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Offset = v
		}
	}

	events, err := h.auditLog.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
