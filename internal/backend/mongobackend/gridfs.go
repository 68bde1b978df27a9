package mongobackend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dalemusser/freshershub/internal/backend"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GridFS implements backend.Storage with one GridFS bucket per logical
// bucket. Objects are served back through the /files route.
type GridFS struct {
	db      *mongo.Database
	baseURL string
}

// NewGridFS wraps db. baseURL prefixes public object URLs.
func NewGridFS(db *mongo.Database, baseURL string) *GridFS {
	return &GridFS{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

func (g *GridFS) bucket(name string) (*gridfs.Bucket, error) {
	return gridfs.NewBucket(g.db, options.GridFSBucket().SetName(name))
}

func (g *GridFS) Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b, err := g.bucket(bucket)
	if err != nil {
		return "", err
	}
	opts := options.GridFSUpload().SetMetadata(bson.M{"content_type": contentType})
	if _, err := b.UploadFromStream(path, r, opts); err != nil {
		return "", fmt.Errorf("gridfs upload %s/%s: %w", bucket, path, err)
	}
	return path, nil
}

func (g *GridFS) PublicURL(bucket, path string) string {
	return g.baseURL + "/files/" + bucket + "/" + path
}

func (g *GridFS) Download(ctx context.Context, bucket, path string) (io.ReadCloser, string, error) {
	b, err := g.bucket(bucket)
	if err != nil {
		return nil, "", err
	}
	stream, err := b.OpenDownloadStreamByName(path)
	if err != nil {
		if errors.Is(err, gridfs.ErrFileNotFound) {
			return nil, "", backend.ErrObjectNotFound
		}
		return nil, "", err
	}
	contentType := "application/octet-stream"
	if meta := stream.GetFile().Metadata; meta != nil {
		if v, ok := meta.Lookup("content_type").StringValueOK(); ok && v != "" {
			contentType = v
		}
	}
	return stream, contentType, nil
}

func (g *GridFS) Remove(ctx context.Context, bucket string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	b, err := g.bucket(bucket)
	if err != nil {
		return err
	}
	cur, err := b.Find(bson.M{"filename": bson.M{"$in": paths}})
	if err != nil {
		return err
	}
	defer cur.Close(ctx)

	var files []struct {
		ID primitive.ObjectID `bson:"_id"`
	}
	if err := cur.All(ctx, &files); err != nil {
		return err
	}
	for _, f := range files {
		if err := b.Delete(f.ID); err != nil && !errors.Is(err, gridfs.ErrFileNotFound) {
			return fmt.Errorf("gridfs remove %s: %w", bucket, err)
		}
	}
	return nil
}
