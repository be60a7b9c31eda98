package blob

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig configures an ObjectBackend.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Secure    bool
	Region    string
	// Prefix is a backend-level key prefix applied to every operation,
	// invisible to callers. It is distinct from the PrefixedBackend
	// decorator, which is visible in the registry namespace.
	Prefix string
}

// ObjectBackend implements Backend over an S3-compatible object store via
// minio-go. On construction it verifies (and if necessary creates) the
// target bucket.
type ObjectBackend struct {
	client *minio.Client
	bucket string
	prefix string
	region string
}

// NewObjectBackend dials endpoint and ensures bucket exists.
func NewObjectBackend(cfg ObjectConfig) (*ObjectBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, &ConnectionError{Backend: "s3", Err: err}
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, &ConnectionError{Backend: "s3", Err: err}
	}
	if !exists {
		opts := minio.MakeBucketOptions{Region: cfg.Region}
		if err := client.MakeBucket(ctx, cfg.Bucket, opts); err != nil {
			return nil, &ConnectionError{Backend: "s3", Err: err}
		}
	}

	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &ObjectBackend{client: client, bucket: cfg.Bucket, prefix: prefix, region: cfg.Region}, nil
}

func (b *ObjectBackend) objectKey(key string) string { return b.prefix + key }

func (b *ObjectBackend) stripPrefix(key string) string {
	return strings.TrimPrefix(key, b.prefix)
}

func translateMinioErr(op, key string, err error) error {
	if err == nil {
		return nil
	}
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchObject", "NotFound":
		return &NotFoundError{Key: key}
	}
	return &BackendError{Op: op, Key: key, Err: err}
}

func (b *ObjectBackend) Put(key string, data io.Reader, contentType string, metadata map[string]string) (string, error) {
	ctx := context.Background()

	// PutObject requires a known length; buffer unsized readers fully.
	buf, ok := data.(*bytes.Reader)
	var size int64
	var reader io.Reader
	if ok {
		size = int64(buf.Len())
		reader = buf
	} else {
		b2, err := io.ReadAll(data)
		if err != nil {
			return "", &BackendError{Op: "put", Key: key, Err: err}
		}
		size = int64(len(b2))
		reader = bytes.NewReader(b2)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	info, err := b.client.PutObject(ctx, b.bucket, b.objectKey(key), reader, size, minio.PutObjectOptions{
		ContentType:  contentType,
		UserMetadata: metadata,
	})
	if err != nil {
		return "", translateMinioErr("put", key, err)
	}
	return info.ETag, nil
}

func (b *ObjectBackend) Get(key string) ([]byte, error) {
	ctx := context.Background()
	obj, err := b.client.GetObject(ctx, b.bucket, b.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioErr("get", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateMinioErr("get", key, err)
	}
	return data, nil
}

func (b *ObjectBackend) GetStream(key string) (io.ReadCloser, error) {
	ctx := context.Background()
	obj, err := b.client.GetObject(ctx, b.bucket, b.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, translateMinioErr("get_stream", key, err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, translateMinioErr("get_stream", key, err)
	}
	return obj, nil
}

func (b *ObjectBackend) Delete(key string) error {
	ctx := context.Background()
	if _, err := b.client.StatObject(ctx, b.bucket, b.objectKey(key), minio.StatObjectOptions{}); err != nil {
		return translateMinioErr("delete", key, err)
	}
	if err := b.client.RemoveObject(ctx, b.bucket, b.objectKey(key), minio.RemoveObjectOptions{}); err != nil {
		return translateMinioErr("delete", key, err)
	}
	return nil
}

func (b *ObjectBackend) DeleteMany(keys []string) map[string]bool {
	results := make(map[string]bool, len(keys))
	for _, key := range keys {
		results[key] = b.Delete(key) == nil
	}
	return results
}

func (b *ObjectBackend) Exists(key string) (bool, error) {
	ctx := context.Background()
	_, err := b.client.StatObject(ctx, b.bucket, b.objectKey(key), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" || resp.Code == "NotFound" {
		return false, nil
	}
	return false, &BackendError{Op: "exists", Key: key, Err: err}
}

func (b *ObjectBackend) GetMetadata(key string) (Metadata, error) {
	ctx := context.Background()
	info, err := b.client.StatObject(ctx, b.bucket, b.objectKey(key), minio.StatObjectOptions{})
	if err != nil {
		return Metadata{}, translateMinioErr("get_metadata", key, err)
	}
	custom := map[string]string{}
	for k, v := range info.UserMetadata {
		custom[k] = v
	}
	return Metadata{
		Key:            key,
		Size:           uint64(info.Size),
		ContentType:    info.ContentType,
		LastModified:   info.LastModified,
		ETag:           info.ETag,
		CustomMetadata: custom,
	}, nil
}

func (b *ObjectBackend) GetSize(key string) (uint64, error) {
	ctx := context.Background()
	info, err := b.client.StatObject(ctx, b.bucket, b.objectKey(key), minio.StatObjectOptions{})
	if err != nil {
		return 0, translateMinioErr("get_size", key, err)
	}
	return uint64(info.Size), nil
}

func (b *ObjectBackend) List(opts ListOptions) (ListResult, error) {
	ctx := context.Background()
	prefix := b.objectKey(opts.Prefix)

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	listOpts := minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: opts.Delimiter == "",
	}

	var blobs []Metadata
	prefixSet := map[string]struct{}{}
	foundMarker := opts.Marker == ""
	count := 0

	for obj := range b.client.ListObjects(ctx, b.bucket, listOpts) {
		if obj.Err != nil {
			return ListResult{}, &BackendError{Op: "list", Err: obj.Err}
		}
		if strings.HasSuffix(obj.Key, "/") {
			rel := b.stripPrefix(obj.Key)
			prefixSet[rel] = struct{}{}
			continue
		}

		key := b.stripPrefix(obj.Key)

		if !foundMarker {
			if key == opts.Marker {
				foundMarker = true
			}
			continue
		}

		count++
		if count > maxResults {
			next := ""
			if len(blobs) > 0 {
				next = blobs[len(blobs)-1].Key
			}
			prefixes := sortedKeys(prefixSet)
			return ListResult{Blobs: blobs, Prefixes: prefixes, IsTruncated: true, NextMarker: next}, nil
		}

		blobs = append(blobs, Metadata{
			Key:          key,
			Size:         uint64(obj.Size),
			ContentType:  obj.ContentType,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}

	sort.Slice(blobs, func(i, j int) bool { return blobs[i].Key < blobs[j].Key })
	return ListResult{Blobs: blobs, Prefixes: sortedKeys(prefixSet)}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (b *ObjectBackend) Copy(src, dst string) error {
	ctx := context.Background()
	if _, err := b.client.StatObject(ctx, b.bucket, b.objectKey(src), minio.StatObjectOptions{}); err != nil {
		return translateMinioErr("copy", src, err)
	}
	destOpts := minio.CopyDestOptions{Bucket: b.bucket, Object: b.objectKey(dst)}
	srcOpts := minio.CopySrcOptions{Bucket: b.bucket, Object: b.objectKey(src)}
	if _, err := b.client.CopyObject(ctx, destOpts, srcOpts); err != nil {
		return translateMinioErr("copy", src, err)
	}
	return nil
}

func (b *ObjectBackend) GeneratePresignedURL(key string, ttl time.Duration, method string) (string, error) {
	ctx := context.Background()
	reqParams := url.Values{}

	var u *url.URL
	var err error
	switch strings.ToUpper(method) {
	case "PUT":
		u, err = b.client.PresignedPutObject(ctx, b.bucket, b.objectKey(key), ttl)
	default:
		u, err = b.client.PresignedGetObject(ctx, b.bucket, b.objectKey(key), ttl, reqParams)
	}
	if err != nil {
		return "", translateMinioErr("generate_presigned_url", key, err)
	}
	return u.String(), nil
}
