// Package artifact writes packages and compiled output to the artefact bucket.
package artifact

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sethvargo/go-retry"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob" // driver for mem://
	_ "gocloud.dev/blob/s3blob"  // driver for s3://
	"gocloud.dev/gcerrors"
	"gopkg.in/yaml.v3"

	dserrors "github.com/stevehiehn/deployspec/internal/errors"
)

// Sink is durable storage for artefacts. Writes are server-side encrypted where the
// backend supports it and idempotent per key.
type Sink interface {
	Put(ctx context.Context, key string, body []byte) (version string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Store is a Sink over a gocloud bucket.
type Store struct {
	bucket    *blob.Bucket
	attempts  uint64
	baseDelay time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithRetry sets how many times a failed write is retried and the first backoff delay.
func WithRetry(attempts uint64, baseDelay time.Duration) Option {
	return func(s *Store) {
		s.attempts = attempts
		s.baseDelay = baseDelay
	}
}

// New wraps an open bucket.
func New(bucket *blob.Bucket, opts ...Option) *Store {
	s := &Store{bucket: bucket, attempts: 3, baseDelay: 200 * time.Millisecond}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open opens the bucket at url, e.g. s3://bucket?region=us-east-1, file:///tmp/artefacts or mem://.
func Open(ctx context.Context, url string, opts ...Option) (*Store, error) {
	b, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, dserrors.NewStorageError(fmt.Sprintf("opening bucket %s", url), err)
	}
	return New(b, opts...), nil
}

// OpenFile opens the directory holding path as a bucket and returns the key of path
// within it. Local packages are read this way.
func OpenFile(path string, opts ...Option) (*Store, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, "", dserrors.NewStorageError(fmt.Sprintf("resolving %s", path), err)
	}
	b, err := fileblob.OpenBucket(filepath.Dir(abs), nil)
	if err != nil {
		return nil, "", dserrors.NewStorageError(fmt.Sprintf("opening %s", filepath.Dir(abs)), err)
	}
	return New(b, opts...), filepath.Base(abs), nil
}

// Put writes body at key and returns the object version, falling back to the ETag
// when the backend does not version objects.
func (s *Store) Put(ctx context.Context, key string, body []byte) (string, error) {
	opts := &blob.WriterOptions{BeforeWrite: encrypt}
	backoff := retry.WithMaxRetries(s.attempts, retry.NewExponential(s.baseDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := s.bucket.WriteAll(ctx, key, body, opts); err != nil {
			if gcerrors.Code(err) == gcerrors.PermissionDenied || gcerrors.Code(err) == gcerrors.InvalidArgument {
				return err
			}
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return "", dserrors.NewStorageError(fmt.Sprintf("writing %s", key), err)
	}
	return s.version(ctx, key), nil
}

// encrypt asks S3 for AES256 server-side encryption; other backends ignore it.
func encrypt(as func(any) bool) error {
	var in *s3.PutObjectInput
	if as(&in) {
		in.ServerSideEncryption = s3types.ServerSideEncryptionAes256
	}
	return nil
}

func (s *Store) version(ctx context.Context, key string) string {
	attrs, err := s.bucket.Attributes(ctx, key)
	if err != nil {
		return ""
	}
	var head s3.HeadObjectOutput
	if attrs.As(&head) && head.VersionId != nil {
		return *head.VersionId
	}
	return attrs.ETag
}

// Get reads the object at key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, dserrors.NewStorageError(fmt.Sprintf("%s not found", key), err)
		}
		return nil, dserrors.NewStorageError(fmt.Sprintf("reading %s", key), err)
	}
	return data, nil
}

// PutYAML encodes v as YAML and writes it to sink at key.
func PutYAML(ctx context.Context, sink Sink, key string, v any) (string, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", dserrors.NewStorageError(fmt.Sprintf("encoding %s", key), err)
	}
	if err := enc.Close(); err != nil {
		return "", dserrors.NewStorageError(fmt.Sprintf("encoding %s", key), err)
	}
	return sink.Put(ctx, key, buf.Bytes())
}

// PutJSON encodes v as indented JSON and writes it to sink at key.
func PutJSON(ctx context.Context, sink Sink, key string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", dserrors.NewStorageError(fmt.Sprintf("encoding %s", key), err)
	}
	return sink.Put(ctx, key, data)
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, dserrors.NewStorageError(fmt.Sprintf("checking %s", key), err)
	}
	return ok, nil
}

func (s *Store) Close() error {
	return s.bucket.Close()
}
