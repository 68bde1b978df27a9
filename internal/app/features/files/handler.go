// Package files serves stored objects at the URLs the storage layer hands
// out for backends that have no public endpoint of their own.
package files

import (
	"context"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/dalemusser/freshershub/internal/app/system/respond"
	"github.com/dalemusser/freshershub/internal/app/system/timeouts"
	"github.com/dalemusser/freshershub/internal/backend"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Handler struct {
	Storage backend.Storage
	Log     *zap.Logger
	buckets map[string]bool
}

// NewHandler serves objects from the named buckets only.
func NewHandler(storage backend.Storage, logger *zap.Logger, buckets ...string) *Handler {
	h := &Handler{Storage: storage, Log: logger, buckets: make(map[string]bool, len(buckets))}
	for _, b := range buckets {
		h.buckets[b] = true
	}
	return h
}

// ServeFile handles GET /files/{bucket}/*.
func (h *Handler) ServeFile(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	objPath := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if !h.buckets[bucket] || objPath == "" || path.Clean("/"+objPath) != "/"+objPath {
		respond.Error(w, r, h.Log, backend.ErrObjectNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Upload())
	defer cancel()
	rc, contentType, err := h.Storage.Download(ctx, bucket, objPath)
	if err != nil {
		respond.Error(w, r, h.Log, err)
		return
	}
	defer rc.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		h.Log.Warn("file stream interrupted",
			zap.String("bucket", bucket), zap.String("path", objPath), zap.Error(err))
	}
}

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{bucket}/*", h.ServeFile)
	return r
}
