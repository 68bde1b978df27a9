// internal/app/store/resources/resourcestore.go
package resourcestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/freshershub/internal/app/system/inputval"
	"github.com/dalemusser/freshershub/internal/app/system/metrics"
	"github.com/dalemusser/freshershub/internal/app/system/notify"
	"github.com/dalemusser/freshershub/internal/app/system/saga"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/dalemusser/freshershub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	ResourcesTable   = "resources"
	DepartmentsTable = "departments"
	profilesTable    = "profiles"

	// Bucket holds uploaded resource files.
	Bucket = "resources"
)

// Step names in an upload report.
const (
	StepUpload = "upload"
	StepInsert = "insert"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrDepartmentExists = errors.New("a department with this code already exists")
	ErrDepartmentInUse  = errors.New("department still has resources")
	ErrInvalidStatus    = errors.New("unknown resource status")
)

// ValidationError carries per-field messages for a rejected upload.
type ValidationError struct {
	Result *inputval.Result
}

func (e *ValidationError) Error() string { return e.Result.All() }

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// Fields lists the per-field messages.
func (e *ValidationError) Fields() []inputval.FieldError { return e.Result.Errors }

// FileUpload is the binary part of an upload.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadInput is a resource as submitted. File is required unless Type is
// link, in which case URL is.
type UploadInput struct {
	Title        string      `json:"title" validate:"required,max=200" label:"Title"`
	Description  string      `json:"description" validate:"max=2000" label:"Description"`
	Type         string      `json:"type" validate:"required,resourcetype" label:"Type"`
	Flow         string      `json:"flow" validate:"omitempty,oneof=resources orientation" label:"Flow"`
	DepartmentID string      `json:"department_id" validate:"required,max=64" label:"Department"`
	URL          string      `json:"url" validate:"omitempty,httpurl" label:"Link"`
	File         *FileUpload `json:"-" validate:"-"`
}

// ValidateUpload checks an upload without touching the network.
func ValidateUpload(in UploadInput) *inputval.Result {
	res := inputval.Validate(in)
	if in.Type == models.ResourceTypeLink {
		if strings.TrimSpace(in.URL) == "" && res.Field("url") == "" {
			res.Add("url", "A link URL is required.")
		}
		return res
	}
	if in.File == nil || in.File.Body == nil {
		res.Add("file", "Please choose a file to upload.")
	}
	return res
}

// UploadResult describes a finished or partially applied upload.
// OrphanPath is set when the file was stored but its row was not written.
type UploadResult struct {
	Resource   *models.Resource `json:"resource,omitempty"`
	Report     *saga.Report     `json:"report"`
	OrphanPath string           `json:"orphan_path,omitempty"`
}

type departmentInput struct {
	Code string `json:"code" validate:"required,max=16" label:"Code"`
	Name string `json:"name" validate:"required,max=120" label:"Name"`
}

// State is a point-in-time copy of the store.
type State struct {
	Departments []models.Department `json:"departments"`
	Resources   []models.Resource   `json:"resources"`
	Loading     bool                `json:"loading"`
	Error       string              `json:"error,omitempty"`
}

// Store holds the department list and the last fetched resource list.
type Store struct {
	client *backend.Client
	log    *zap.Logger
	now    func() time.Time

	mu          sync.RWMutex
	departments []models.Department
	resources   []models.Resource
	loading     bool
	err         string
}

// New builds a store acting through client.
func New(client *backend.Client, logger *zap.Logger) *Store {
	return &Store{client: client, log: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Departments: append([]models.Department{}, s.departments...),
		Resources:   append([]models.Resource{}, s.resources...),
		Loading:     s.loading,
		Error:       s.err,
	}
}

// Resources returns the last fetched resource list.
func (s *Store) Resources() []models.Resource { return s.Snapshot().Resources }

// Departments returns the last fetched department list.
func (s *Store) Departments() []models.Department { return s.Snapshot().Departments }

func (s *Store) begin() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) end(op string, err error) error {
	metrics.Op("resources", op, err)
	s.mu.Lock()
	s.loading = false
	if err != nil {
		s.err = err.Error()
	}
	s.mu.Unlock()
	return err
}

// settle ends op after its write committed. A failed re-fetch is logged and
// kept on Error, but the op still succeeds.
func (s *Store) settle(op string, refetchErr error) {
	metrics.Op("resources", op, nil)
	if refetchErr != nil {
		s.log.Warn("resources re-fetch failed after write",
			zap.String("op", op), zap.Error(refetchErr))
	}
	s.mu.Lock()
	s.loading = false
	if refetchErr != nil {
		s.err = refetchErr.Error()
	}
	s.mu.Unlock()
}

func (s *Store) setResources(list []models.Resource) {
	s.mu.Lock()
	s.resources = list
	s.mu.Unlock()
}

func (s *Store) sessionUserID() (string, error) {
	sess := s.client.Session()
	if sess == nil || sess.AccessToken == "" || sess.User.ID == "" {
		return "", backend.ErrNoSession
	}
	return sess.User.ID, nil
}

// FetchDepartments replaces the department list, ordered by name.
func (s *Store) FetchDepartments(ctx context.Context) error {
	s.begin()
	return s.end("fetch_departments", s.refreshDepartments(ctx))
}

func (s *Store) refreshDepartments(ctx context.Context) error {
	list, err := backend.FindAll[models.Department](ctx, s.client.DB,
		backend.From(DepartmentsTable).OrderBy("name", false))
	if err != nil {
		return fmt.Errorf("fetch departments: %w", err)
	}
	s.mu.Lock()
	s.departments = list
	s.mu.Unlock()
	return nil
}

func approved(flow string) *backend.Query {
	return backend.From(ResourcesTable).
		Eq("status", models.StatusApproved).
		Eq("flow", flow).
		OrderBy("created_at", true)
}

// FetchResourcesByDepartment replaces the list with a department's approved
// library resources, newest first.
func (s *Store) FetchResourcesByDepartment(ctx context.Context, departmentID string) error {
	s.begin()
	list, err := backend.FindAll[models.Resource](ctx, s.client.DB,
		approved(models.FlowResources).Eq("department_id", departmentID))
	if err != nil {
		return s.end("fetch_by_department", fmt.Errorf("fetch resources: %w", err))
	}
	s.setResources(list)
	return s.end("fetch_by_department", nil)
}

// FetchMyResources looks up the session user's department, then loads its
// approved library resources. A user without a department sees nothing.
func (s *Store) FetchMyResources(ctx context.Context) error {
	uid, err := s.sessionUserID()
	if err != nil {
		return err
	}
	s.begin()
	p, err := backend.FindOne[models.Profile](ctx, s.client.DB,
		backend.From(profilesTable).Eq("_id", uid).Select("department_id"))
	if err != nil {
		return s.end("fetch_mine", fmt.Errorf("load department: %w", err))
	}
	if p.DepartmentID == "" {
		s.setResources([]models.Resource{})
		return s.end("fetch_mine", nil)
	}
	list, err := backend.FindAll[models.Resource](ctx, s.client.DB,
		approved(models.FlowResources).Eq("department_id", p.DepartmentID))
	if err != nil {
		return s.end("fetch_mine", fmt.Errorf("fetch resources: %w", err))
	}
	s.setResources(list)
	return s.end("fetch_mine", nil)
}

// FetchOrientation replaces the list with approved orientation material
// across all departments.
func (s *Store) FetchOrientation(ctx context.Context) error {
	s.begin()
	list, err := backend.FindAll[models.Resource](ctx, s.client.DB, approved(models.FlowOrientation))
	if err != nil {
		return s.end("fetch_orientation", fmt.Errorf("fetch orientation: %w", err))
	}
	s.setResources(list)
	return s.end("fetch_orientation", nil)
}

// FetchForReview replaces the list with resources in status, oldest first.
// An empty status means pending.
func (s *Store) FetchForReview(ctx context.Context, status string) error {
	if status == "" {
		status = models.StatusPending
	}
	if !models.IsValidResourceStatus(status) {
		return ErrInvalidStatus
	}
	s.begin()
	list, err := backend.FindAll[models.Resource](ctx, s.client.DB,
		backend.From(ResourcesTable).Eq("status", status).OrderBy("created_at", false))
	if err != nil {
		return s.end("fetch_review", fmt.Errorf("fetch for review: %w", err))
	}
	s.setResources(list)
	return s.end("fetch_review", nil)
}

// UploadResource stores the file and then writes the metadata row. The two
// calls are independent: if the row fails after the file is stored, the
// stored path is returned in OrphanPath and nothing is removed.
func (s *Store) UploadResource(ctx context.Context, in UploadInput) (*UploadResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Flow == "" {
		in.Flow = models.FlowResources
	}
	if res := ValidateUpload(in); res.HasErrors() {
		return nil, &ValidationError{Result: res}
	}
	uid, err := s.sessionUserID()
	if err != nil {
		return nil, err
	}

	s.begin()
	id := uuid.NewString()
	var stored string
	r := models.Resource{
		ID:           id,
		DepartmentID: in.DepartmentID,
		UploaderID:   uid,
		Title:        in.Title,
		TitleCI:      text.Fold(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Type:         in.Type,
		Flow:         in.Flow,
		Status:       models.StatusPending,
		CreatedAt:    s.now(),
	}

	rep := saga.Run(ctx,
		saga.Step{Name: StepUpload, Run: func(ctx context.Context) error {
			if in.Type == models.ResourceTypeLink {
				return saga.ErrSkip
			}
			objPath := in.DepartmentID + "/" + id + strings.ToLower(path.Ext(in.File.Name))
			p, err := s.client.Storage.Upload(ctx, Bucket, objPath, in.File.Body, in.File.ContentType)
			if err != nil {
				return fmt.Errorf("upload file: %w", err)
			}
			stored = p
			return nil
		}},
		saga.Step{Name: StepInsert, Run: func(ctx context.Context) error {
			if stored != "" {
				r.StoragePath = stored
				r.ContentURL = s.client.Storage.PublicURL(Bucket, stored)
			} else {
				r.ContentURL = strings.TrimSpace(in.URL)
			}
			if _, err := s.client.DB.Insert(ctx, ResourcesTable, r); err != nil {
				return fmt.Errorf("insert resource: %w", err)
			}
			return nil
		}},
	)

	out := &UploadResult{Report: rep}
	if err := rep.Err(); err != nil {
		if stored != "" {
			out.OrphanPath = stored
			s.log.Warn("resource file stored without metadata row",
				zap.String("bucket", Bucket), zap.String("path", stored), zap.Error(err))
		}
		return out, s.end("upload", err)
	}
	out.Resource = &r
	return out, s.end("upload", nil)
}

// RemoveOrphan deletes a stored file left behind by a failed upload.
func (s *Store) RemoveOrphan(ctx context.Context, objPath string) error {
	err := s.client.Storage.Remove(ctx, Bucket, objPath)
	metrics.Op("resources", "remove_orphan", err)
	return err
}

// SetStatus moves a resource through moderation and tells the uploader.
// The notification is best-effort.
func (s *Store) SetStatus(ctx context.Context, id, status string) error {
	if !models.IsValidResourceStatus(status) {
		return ErrInvalidStatus
	}
	s.begin()
	r, err := backend.FindOne[models.Resource](ctx, s.client.DB, backend.From(ResourcesTable).Eq("_id", id))
	if err != nil {
		return s.end("set_status", err)
	}
	now := s.now()
	if _, err := s.client.DB.Update(ctx, backend.From(ResourcesTable).Eq("_id", id),
		backend.Set{"status": status, "updated_at": now}); err != nil {
		return s.end("set_status", fmt.Errorf("update status: %w", err))
	}

	s.mu.Lock()
	for i := range s.resources {
		if s.resources[i].ID == id {
			s.resources[i].Status = status
			s.resources[i].UpdatedAt = &now
		}
	}
	s.mu.Unlock()

	if r.UploaderID != "" && r.Status != status {
		msg := fmt.Sprintf("Your resource %q is now %s.", r.Title, status)
		if res := notify.CreateNotification(ctx, s.client.DB, r.UploaderID, msg, models.NotifyResource); !res.Success {
			s.log.Warn("resource status notification failed", zap.String("resource_id", id), zap.Error(res.Err))
		}
	}
	return s.end("set_status", nil)
}

// DeleteResource removes the row, then its stored file. A failed file
// removal is logged only.
func (s *Store) DeleteResource(ctx context.Context, id string) error {
	s.begin()
	r, err := backend.FindOne[models.Resource](ctx, s.client.DB, backend.From(ResourcesTable).Eq("_id", id))
	if err != nil {
		return s.end("delete", err)
	}
	if _, err := s.client.DB.Delete(ctx, backend.From(ResourcesTable).Eq("_id", id)); err != nil {
		return s.end("delete", fmt.Errorf("delete resource: %w", err))
	}
	if r.StoragePath != "" {
		if err := s.client.Storage.Remove(ctx, Bucket, r.StoragePath); err != nil {
			s.log.Warn("resource file not removed", zap.String("path", r.StoragePath), zap.Error(err))
		}
	}

	s.mu.Lock()
	kept := s.resources[:0:0]
	for _, x := range s.resources {
		if x.ID != id {
			kept = append(kept, x)
		}
	}
	s.resources = kept
	s.mu.Unlock()
	return s.end("delete", nil)
}

// RecordDownload bumps a resource's download counter.
func (s *Store) RecordDownload(ctx context.Context, id string) error {
	n, err := s.client.DB.Increment(ctx, backend.From(ResourcesTable).Eq("_id", id), "downloads", 1)
	if err == nil && n == 0 {
		err = backend.ErrNotFound
	}
	metrics.Op("resources", "record_download", err)
	if err != nil {
		return err
	}
	s.mu.Lock()
	for i := range s.resources {
		if s.resources[i].ID == id {
			s.resources[i].Downloads++
		}
	}
	s.mu.Unlock()
	return nil
}

// CreateDepartment adds a department and re-fetches the list. Codes are
// stored uppercase and must be unique.
func (s *Store) CreateDepartment(ctx context.Context, code, name string) (*models.Department, error) {
	in := departmentInput{Code: strings.ToUpper(strings.TrimSpace(code)), Name: strings.TrimSpace(name)}
	if res := inputval.Validate(in); res.HasErrors() {
		return nil, &ValidationError{Result: res}
	}
	s.begin()
	n, err := s.client.DB.Count(ctx, backend.From(DepartmentsTable).Eq("code", in.Code))
	if err != nil {
		return nil, s.end("create_department", fmt.Errorf("check code: %w", err))
	}
	if n > 0 {
		return nil, s.end("create_department", ErrDepartmentExists)
	}
	d := models.Department{ID: uuid.NewString(), Code: in.Code, Name: in.Name}
	if _, err := s.client.DB.Insert(ctx, DepartmentsTable, d); err != nil {
		if errors.Is(err, backend.ErrConflict) {
			err = ErrDepartmentExists
		}
		return nil, s.end("create_department", err)
	}
	s.settle("create_department", s.refreshDepartments(ctx))
	return &d, nil
}

// DeleteDepartment removes an empty department and re-fetches the list.
func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	s.begin()
	n, err := s.client.DB.Count(ctx, backend.From(ResourcesTable).Eq("department_id", id))
	if err != nil {
		return s.end("delete_department", fmt.Errorf("check resources: %w", err))
	}
	if n > 0 {
		return s.end("delete_department", ErrDepartmentInUse)
	}
	deleted, err := s.client.DB.Delete(ctx, backend.From(DepartmentsTable).Eq("_id", id))
	if err != nil {
		return s.end("delete_department", fmt.Errorf("delete department: %w", err))
	}
	if deleted == 0 {
		return s.end("delete_department", backend.ErrNotFound)
	}
	s.settle("delete_department", s.refreshDepartments(ctx))
	return nil
}
