// Package s3source fetches snapshots from a single S3 object.
//
// The object's ETag is the fingerprint. The body is downloaded only when the
// ETag changes, so an unchanged object costs one HeadObject per poll.
package s3source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/vango-dev/selector/pkg/source"
)

// Client is the subset of *s3.Client used by Fetcher.
type Client interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher implements source.Fetcher for one object.
type Fetcher[S any] struct {
	client Client
	bucket string
	key    string
	decode func([]byte) (S, error)

	// MaxSize limits the object body in bytes. Zero means no limit.
	MaxSize int64

	mu   sync.Mutex
	etag string
	last S
	has  bool
}

var _ source.Fetcher[int] = (*Fetcher[int])(nil)

// New creates a Fetcher for bucket/key.
//
// Example:
//
//	client := s3.NewFromConfig(cfg)
//	p := source.NewPoller(s3source.New(client, "config", "flags.json", decodeFlags))
func New[S any](client Client, bucket, key string, decode func([]byte) (S, error)) *Fetcher[S] {
	return &Fetcher[S]{
		client: client,
		bucket: bucket,
		key:    key,
		decode: decode,
	}
}

// Fetch implements source.Fetcher.
func (f *Fetcher[S]) Fetch(ctx context.Context) (S, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var zero S
	head, err := f.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return zero, "", fmt.Errorf("s3 head %s/%s: %w", f.bucket, f.key, err)
	}
	etag := normalizeETag(aws.ToString(head.ETag))
	if f.has && etag != "" && etag == f.etag {
		return f.last, f.etag, nil
	}

	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key),
	})
	if err != nil {
		return zero, "", fmt.Errorf("s3 get %s/%s: %w", f.bucket, f.key, err)
	}
	defer out.Body.Close()

	var body io.Reader = out.Body
	if f.MaxSize > 0 {
		body = io.LimitReader(out.Body, f.MaxSize+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return zero, "", fmt.Errorf("s3 read %s/%s: %w", f.bucket, f.key, err)
	}
	if f.MaxSize > 0 && int64(len(data)) > f.MaxSize {
		return zero, "", fmt.Errorf("s3 object %s/%s exceeds %d bytes", f.bucket, f.key, f.MaxSize)
	}

	snap, err := f.decode(data)
	if err != nil {
		return zero, "", fmt.Errorf("decode %s/%s: %w", f.bucket, f.key, err)
	}

	// Prefer the ETag from the body response; it matches the bytes read.
	if got := normalizeETag(aws.ToString(out.ETag)); got != "" {
		etag = got
	}
	if etag == "" {
		etag = source.Fingerprint(data)
	}

	f.etag = etag
	f.last = snap
	f.has = true
	return snap, etag, nil
}

func normalizeETag(etag string) string {
	return strings.Trim(etag, `"`)
}
