// internal/app/features/resources/handler.go
package resources

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/freshershub/internal/app/features/shared"
	resourcestore "github.com/dalemusser/freshershub/internal/app/store/resources"
	"github.com/dalemusser/freshershub/internal/app/system/auditlog"
	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"go.uber.org/zap"
)

func init() {
	respond.Register(http.StatusConflict, resourcestore.ErrDepartmentExists, resourcestore.ErrDepartmentInUse)
	respond.Register(http.StatusBadRequest, resourcestore.ErrInvalidStatus)
}

// Handler serves the resource library, orientation material and the admin
// review queue.
type Handler struct {
	Client    *backend.Client
	Log       *zap.Logger
	AuditLog  *auditlog.Logger
	MaxUpload int64
	// Compensate removes a stored file when its metadata row could not be
	// written.
	Compensate bool
}

func NewHandler(client *backend.Client, audit *auditlog.Logger, maxUpload int64, compensate bool, logger *zap.Logger) *Handler {
	return &Handler{
		Client:     client,
		Log:        logger,
		AuditLog:   audit,
		MaxUpload:  maxUpload,
		Compensate: compensate,
	}
}

func (h *Handler) store(r *http.Request) *resourcestore.Store {
	return resourcestore.New(shared.Client(h.Client, r), h.Log)
}

// list runs fetch and writes the resulting resource list.
func (h *Handler) list(w http.ResponseWriter, r *http.Request, fetch func(context.Context, *resourcestore.Store) error) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	s := h.store(r)
	if err := fetch(ctx, s); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.OK(w, r, s.Snapshot())
}

// HandleUpload handles POST /resources as multipart/form-data. Link
// resources need no file part.
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := shared.ParseMultipart(w, r, h.MaxUpload); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	file, err := shared.FormFile(r, "file")
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	defer file.Close()

	in := resourcestore.UploadInput{
		Title:        r.FormValue("title"),
		Description:  r.FormValue("description"),
		Type:         r.FormValue("type"),
		Flow:         r.FormValue("flow"),
		DepartmentID: r.FormValue("department_id"),
		URL:          r.FormValue("url"),
	}
	if file != nil {
		in.File = &resourcestore.FileUpload{
			Name:        file.Name,
			ContentType: file.ContentType,
			Size:        file.Size,
			Body:        file.Body,
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upload())
	defer cancel()
	s := h.store(r)
	res, err := s.UploadResource(ctx, in)
	if err != nil {
		if res != nil && res.OrphanPath != "" && h.Compensate {
			if rmErr := s.RemoveOrphan(context.WithoutCancel(ctx), res.OrphanPath); rmErr != nil {
				h.Log.Warn("orphaned resource file not removed",
					zap.String("path", res.OrphanPath), zap.Error(rmErr))
			}
		}
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.Created(w, r, res)
}

// HandleDownload handles POST /resources/{id}/download.
func (h *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	if err := h.store(r).RecordDownload(ctx, urlParam(r, "id")); err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	respond.NoContent(w, r)
}

var errMissingStatus = errors.New("status is required")
