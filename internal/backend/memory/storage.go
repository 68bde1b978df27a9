package memory

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/dalemusser/freshershub/internal/backend"
)

type object struct {
	data        []byte
	contentType string
}

// Storage keeps uploaded objects in memory.
type Storage struct {
	baseURL string

	mu   sync.Mutex
	objs map[string]object
	fail error
}

func newStorage(baseURL string) *Storage {
	return &Storage{baseURL: strings.TrimRight(baseURL, "/"), objs: map[string]object{}}
}

// FailUploads makes every Upload return err. A nil err clears the failure.
func (s *Storage) FailUploads(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

// Has reports whether an object exists.
func (s *Storage) Has(bucket, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objs[bucket+"/"+path]
	return ok
}

// Count reports how many objects bucket holds.
func (s *Storage) Count(bucket string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.objs {
		if strings.HasPrefix(k, bucket+"/") {
			n++
		}
	}
	return n
}

func (s *Storage) Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail != nil {
		return "", fail
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objs[bucket+"/"+path] = object{data: data, contentType: contentType}
	s.mu.Unlock()
	return path, nil
}

func (s *Storage) PublicURL(bucket, path string) string {
	return s.baseURL + "/files/" + bucket + "/" + path
}

func (s *Storage) Download(ctx context.Context, bucket, path string) (io.ReadCloser, string, error) {
	s.mu.Lock()
	o, ok := s.objs[bucket+"/"+path]
	s.mu.Unlock()
	if !ok {
		return nil, "", backend.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(o.data)), o.contentType, nil
}

func (s *Storage) Remove(ctx context.Context, bucket string, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		delete(s.objs, bucket+"/"+p)
	}
	return nil
}
