package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	adminhandler "canon/internal/admin/handler"
	"canon/internal/integrity"
	"canon/internal/jwttoken"
	"canon/internal/platform/logger"
	"canon/internal/proposal/models"
	proposalstore "canon/internal/proposal/store"
	"canon/internal/restore"
	httptransport "canon/internal/transport/http"
	"canon/pkg/platform/audit/emitter"
	auditmemory "canon/pkg/platform/audit/store/memory"
	"canon/pkg/platform/secrets"
)

const adminToken = "test-admin-token"

type okExecutor struct{}

func (okExecutor) Restore(context.Context, string) error { return nil }

type adminFixture struct {
	router    http.Handler
	token     string
	proposals *proposalstore.InMemoryStore
	sink      *auditmemory.InMemoryStore
}

func newAdminFixture(t *testing.T) *adminFixture {
	t.Helper()
	log := logger.New()

	proposals := proposalstore.NewInMemoryStore()
	sink := auditmemory.NewInMemoryStore()
	auditEmitter := emitter.New(sink, emitter.WithBaseDelay(time.Millisecond))

	verifier := integrity.NewVerifier(proposals, proposals)
	corrector := integrity.NewCorrector(proposals, integrity.WithCorrectorEmitter(auditEmitter))
	reports := integrity.NewReportCache(nil, 0)

	uploads, err := restore.NewFSUploadStore(t.TempDir())
	require.NoError(t, err)

	restoreSvc := restore.New(
		restore.NewGate(nil, log),
		uploads,
		okExecutor{},
		proposals,
		auditEmitter,
		restore.WithLogger(log),
	)

	jwtService := jwttoken.NewService("test-signing-key", "canon-test")
	token, err := jwtService.GenerateToken("admin-1", "Site Admin", time.Hour)
	require.NoError(t, err)

	adminTokenHash, err := secrets.Hash(adminToken)
	require.NoError(t, err)

	admin := adminhandler.New(restoreSvc, verifier, corrector, reports, sink, log)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Admin:          admin,
		Validator:      jwtService,
		AdminTokenHash: adminTokenHash,
		Logger:         log,
	})

	return &adminFixture{router: router, token: token, proposals: proposals, sink: sink}
}

func (f *adminFixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+f.token)
	req.Header.Set("X-Admin-Token", adminToken)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestAuthRequired(t *testing.T) {
	f := newAdminFixture(t)

	t.Run("missing bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/maintenance", nil)
		req.Header.Set("X-Admin-Token", adminToken)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid bearer token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/maintenance", nil)
		req.Header.Set("Authorization", "Bearer not-a-token")
		req.Header.Set("X-Admin-Token", adminToken)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing admin token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/maintenance", nil)
		req.Header.Set("Authorization", "Bearer "+f.token)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestVerifyAndCorrectFlow(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()

	// Seed a proposal whose stored state disagrees with its transition log.
	f.proposals.Put(ctx, models.Proposal{ID: "p1", Code: "DT-001", State: models.StateDraft})
	require.NoError(t, f.proposals.Append(ctx, &models.TransitionEvent{
		ProposalID: "p1", Action: "CREATE", ToState: models.StateDraft,
		OccurredAt: time.Now().Add(-2 * time.Hour),
	}))
	require.NoError(t, f.proposals.Append(ctx, &models.TransitionEvent{
		ProposalID: "p1", Action: "SUBMIT", FromState: models.StateDraft,
		ToState: models.StateFacultyReview, OccurredAt: time.Now().Add(-time.Hour),
	}))

	rec := f.do(t, httptest.NewRequest(http.MethodPost, "/admin/verify", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report models.VerificationReport
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, 1, report.Total)
	require.Equal(t, 1, report.MismatchedCount)
	require.Equal(t, models.StateFacultyReview, report.Mismatches[0].ComputedState)

	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/admin/verify/correct", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result struct {
		Summary models.CorrectionSummary `json:"summary"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	require.Equal(t, 1, result.Summary.Corrected)
	require.Equal(t, 0, result.Summary.Failed)

	got, err := f.proposals.Get(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, models.StateFacultyReview, got.State)

	// A second verification pass sees no drift.
	rec = f.do(t, httptest.NewRequest(http.MethodPost, "/admin/verify", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&report))
	require.Equal(t, 0, report.MismatchedCount)
}

func TestLastReportWithoutCache(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/admin/verify", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestBackupUploadAndDelete(t *testing.T) {
	f := newAdminFixture(t)

	body, contentType := multipartBody(t, "file", "dump.sql", []byte("SELECT 1;"))
	req := httptest.NewRequest(http.MethodPost, "/admin/backups", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var backup restore.Backup
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&backup))
	require.NotEmpty(t, backup.ID)
	require.Equal(t, "dump.sql", backup.Filename)
	require.Equal(t, "admin-1", backup.UploadedBy)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/admin/backups/"+backup.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodDelete, "/admin/backups/"+backup.ID, nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListBackups(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/admin/backups", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Backups []restore.StoredBackup `json:"backups"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.Empty(t, listing.Backups)

	body, contentType := multipartBody(t, "file", "dump.sql", []byte("SELECT 1;"))
	req := httptest.NewRequest(http.MethodPost, "/admin/backups", body)
	req.Header.Set("Content-Type", contentType)
	rec = f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var backup restore.Backup
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&backup))

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/admin/backups", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listing))
	require.Len(t, listing.Backups, 1)
	require.Equal(t, backup.ID, listing.Backups[0].ID)
	require.Equal(t, "dump.sql", listing.Backups[0].Filename)
	require.Equal(t, int64(9), listing.Backups[0].Size)
	require.False(t, listing.Backups[0].CreatedAt.IsZero())
}

func TestBackupUploadRejectsNonSQL(t *testing.T) {
	f := newAdminFixture(t)

	body, contentType := multipartBody(t, "file", "dump.tar.gz", []byte("binary"))
	req := httptest.NewRequest(http.MethodPost, "/admin/backups", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(t, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestoreJobLifecycle(t *testing.T) {
	f := newAdminFixture(t)
	ctx := context.Background()
	f.proposals.Put(ctx, models.Proposal{ID: "p1", Code: "DT-001", State: models.StateDraft})

	body, contentType := multipartBody(t, "file", "dump.sql", []byte("SELECT 1;"))
	req := httptest.NewRequest(http.MethodPost, "/admin/backups", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var backup restore.Backup
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&backup))

	payload, err := json.Marshal(map[string]string{"backupId": backup.ID})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/admin/restore", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = f.do(t, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var started struct {
		JobID string `json:"jobId"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&started))
	require.NotEmpty(t, started.JobID)

	require.Eventually(t, func() bool {
		rec := f.do(t, httptest.NewRequest(http.MethodGet, "/admin/restore/jobs/"+started.JobID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var job restore.Job
		if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
			return false
		}
		return job.Status == restore.JobCompleted
	}, 5*time.Second, 10*time.Millisecond)

	// Maintenance mode must be off once the job finishes.
	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/admin/maintenance", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var maintenance map[string]bool
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&maintenance))
	require.False(t, maintenance["maintenance"])
}

func TestGetUnknownJob(t *testing.T) {
	f := newAdminFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/admin/restore/jobs/restore_missing", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuditLogEndpoint(t *testing.T) {
	f := newAdminFixture(t)

	body, contentType := multipartBody(t, "file", "dump.sql", []byte("SELECT 1;"))
	req := httptest.NewRequest(http.MethodPost, "/admin/backups", body)
	req.Header.Set("Content-Type", contentType)
	rec := f.do(t, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, httptest.NewRequest(http.MethodGet, "/admin/audit?entityType=Backup", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []map[string]any `json:"events"`
		Count  int              `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "BACKUP_UPLOAD", resp.Events[0]["action"])
	require.Equal(t, "admin-1", resp.Events[0]["actorId"])
}
