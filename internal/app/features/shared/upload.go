package shared

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dalemusser/freshershub/internal/app/system/respond"
)

// DefaultMaxUpload caps multipart bodies when no limit is configured.
const DefaultMaxUpload int64 = 20 << 20

// ErrFileTooLarge is returned when a multipart body exceeds its limit.
var ErrFileTooLarge = errors.New("uploaded file is too large")

func init() {
	respond.Register(http.StatusRequestEntityTooLarge, ErrFileTooLarge)
}

// FilePart is one uploaded file. Close releases its temp storage.
type FilePart struct {
	Name        string
	ContentType string
	Size        int64
	Body        multipart.File
}

func (p *FilePart) Close() error {
	if p == nil || p.Body == nil {
		return nil
	}
	return p.Body.Close()
}

// ParseMultipart limits the body to maxBytes and parses it. Non-file form
// values are then available through r.FormValue.
func ParseMultipart(w http.ResponseWriter, r *http.Request, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUpload
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return ErrFileTooLarge
		}
		return errors.Join(respond.ErrBadRequest, err)
	}
	return nil
}

// FormFile returns the file in field, or nil when the form has none. The
// content type falls back to sniffing the first bytes.
func FormFile(r *http.Request, field string) (*FilePart, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(respond.ErrBadRequest, err)
	}

	ct := hdr.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		head := make([]byte, 512)
		n, _ := io.ReadFull(f, head)
		ct = http.DetectContentType(head[:n])
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &FilePart{
		Name:        filepath.Base(strings.ReplaceAll(hdr.Filename, "\\", "/")),
		ContentType: ct,
		Size:        hdr.Size,
		Body:        f,
	}, nil
}
