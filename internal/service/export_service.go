package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusconnect/campus-connect-api/internal/academic"
	"github.com/campusconnect/campus-connect-api/internal/models"
	appErrors "github.com/campusconnect/campus-connect-api/pkg/errors"
	"github.com/campusconnect/campus-connect-api/pkg/export"
	"github.com/campusconnect/campus-connect-api/pkg/jobs"
	"github.com/campusconnect/campus-connect-api/pkg/storage"
)

type exportUserLister interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
}

// ExportService renders the member directory to downloadable CSV or PDF
// files. Rendering happens on a background queue; callers poll job status
// and fetch the result through a signed URL.
type ExportService struct {
	users  exportUserLister
	store  *storage.LocalStorage
	signer *storage.SignedURLSigner
	queue  *jobs.Queue
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[string]*models.ExportJob

	now func() time.Time
}

// ExportServiceConfig carries queue sizing for directory exports.
type ExportServiceConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// NewExportService constructs the service and its backing queue. Call Start
// before accepting export requests.
func NewExportService(users exportUserLister, store *storage.LocalStorage, signer *storage.SignedURLSigner, cfg ExportServiceConfig, logger *zap.Logger) *ExportService {
	s := &ExportService{
		users:   users,
		store:   store,
		signer:  signer,
		logger:  logger,
		entries: make(map[string]*models.ExportJob),
		now:     func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("directory-exports", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the export workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the export workers.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Request enqueues a directory export and returns the tracking job.
func (s *ExportService) Request(ctx context.Context, format models.ExportFormat, requestedBy string) (*models.ExportJob, error) {
	switch format {
	case models.ExportFormatCSV, models.ExportFormatPDF:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	job := &models.ExportJob{
		ID:          uuid.NewString(),
		Format:      format,
		Status:      models.ExportStatusPending,
		RequestedBy: requestedBy,
		CreatedAt:   s.now(),
	}

	s.mu.Lock()
	s.entries[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: string(format), Payload: job.ID}); err != nil {
		s.mu.Lock()
		delete(s.entries, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, "EXPORT_QUEUE_FULL", http.StatusServiceUnavailable, "export queue is unavailable")
	}
	return s.snapshot(job.ID), nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// DownloadURL issues a signed URL for a completed export.
func (s *ExportService) DownloadURL(id string) (string, time.Time, error) {
	job := s.snapshot(id)
	if job == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.Status != models.ExportStatusCompleted {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrConflict, "export is not ready")
	}
	return s.signer.Generate(job.ID, job.FileName)
}

// Resolve validates a signed token and returns the on-disk path of the file.
func (s *ExportService) Resolve(token string) (string, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	job := s.snapshot(jobID)
	if job == nil || job.FileName != relPath {
		return "", appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return s.store.Path(relPath), nil
}

func (s *ExportService) handleJob(ctx context.Context, job jobs.Job) error {
	id, _ := job.Payload.(string)
	entry := s.snapshot(id)
	if entry == nil {
		return fmt.Errorf("export job %s missing", id)
	}

	data, err := s.buildDataset(ctx)
	if err != nil {
		s.fail(id, err)
		return err
	}

	var rendered []byte
	switch entry.Format {
	case models.ExportFormatPDF:
		rendered, err = export.NewPDFExporter().Render(data, "Member Directory")
	default:
		rendered, err = export.NewCSVExporter().Render(data)
	}
	if err != nil {
		s.fail(id, err)
		return err
	}

	fileName := fmt.Sprintf("directory-%s.%s", id, entry.Format)
	if _, err := s.store.Save(fileName, rendered); err != nil {
		s.fail(id, err)
		return err
	}

	done := s.now()
	s.mu.Lock()
	entry = s.entries[id]
	entry.Status = models.ExportStatusCompleted
	entry.FileName = fileName
	entry.CompletedAt = &done
	s.mu.Unlock()

	s.logger.Info("directory export completed", zap.String("job_id", id), zap.String("format", string(entry.Format)))
	return nil
}

func (s *ExportService) buildDataset(ctx context.Context) (export.Dataset, error) {
	filter := models.UserFilter{Page: 1, PageSize: 500}
	now := s.now()

	data := export.Dataset{Headers: []string{"Name", "Email", "Role", "Year", "Department"}}
	for {
		users, total, err := s.users.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, fmt.Errorf("list users for export: %w", err)
		}
		for i := range users {
			u := &users[i]
			data.Rows = append(data.Rows, map[string]string{
				"Name":       u.Name,
				"Email":      u.Email,
				"Role":       string(u.Role),
				"Year":       strconv.Itoa(academic.Year(u.AdmissionYear, now)),
				"Department": u.Department,
			})
		}
		if len(data.Rows) >= total || len(users) == 0 {
			return data, nil
		}
		filter.Page++
	}
}

func (s *ExportService) fail(id string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[id]; ok {
		entry.Status = models.ExportStatusFailed
		entry.Error = cause.Error()
	}
}

func (s *ExportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[id]
	if !ok {
		return nil
	}
	copied := *entry
	return &copied
}
