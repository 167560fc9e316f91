package objectstore

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/animus-labs/custody/internal/platform/digest"
	"github.com/minio/minio-go/v7"
)

var ErrObjectNotFound = errors.New("object not found")

// OpenFunc opens an object for sequential reading.
type OpenFunc func(ctx context.Context, key string) (io.ReadCloser, error)

// ContentHasher recomputes the digest of a stored evidence object by
// streaming it, so objects of any size hash in constant memory.
type ContentHasher struct {
	Open OpenFunc
}

func NewContentHasher(client *minio.Client, bucket string) *ContentHasher {
	return &ContentHasher{
		Open: func(ctx context.Context, key string) (io.ReadCloser, error) {
			obj, err := client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
			if err != nil {
				return nil, translateErr(err)
			}
			return &minioObject{obj: obj}, nil
		},
	}
}

func (h *ContentHasher) HashObject(ctx context.Context, key string, algorithm string) (string, error) {
	if h == nil || h.Open == nil {
		return "", errors.New("content hasher not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("object key is required")
	}

	hasher, err := digest.NewHasher(algorithm)
	if err != nil {
		return "", err
	}
	rc, err := h.Open(ctx, key)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if _, err := io.Copy(hasher, rc); err != nil {
		return "", fmt.Errorf("read object %s: %w", key, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// minioObject surfaces a missing key as ErrObjectNotFound; GetObject is
// lazy and only reports it on the first read.
type minioObject struct {
	obj *minio.Object
}

func (o *minioObject) Read(p []byte) (int, error) {
	n, err := o.obj.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		return n, translateErr(err)
	}
	return n, err
}

func (o *minioObject) Close() error {
	return o.obj.Close()
}

func translateErr(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, resp.Key)
	}
	return err
}
