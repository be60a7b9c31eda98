package blob

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const metaSuffix = ".meta"

// FilesystemBackend implements Backend over local files. Each blob is
// stored at basePath/key with a sidecar JSON metadata file at
// basePath/key.meta.
type FilesystemBackend struct {
	basePath string
}

// NewFilesystemBackend creates (if needed) basePath and returns a backend
// rooted there.
func NewFilesystemBackend(basePath string) (*FilesystemBackend, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, &ConnectionError{Backend: "filesystem", Err: err}
	}
	return &FilesystemBackend{basePath: basePath}, nil
}

type fileMetadataDoc struct {
	Key            string            `json:"key"`
	Size           uint64            `json:"size"`
	ContentType    string            `json:"content_type"`
	LastModified   string            `json:"last_modified"`
	CustomMetadata map[string]string `json:"custom_metadata"`
}

func (b *FilesystemBackend) blobPath(key string) string {
	return filepath.Join(b.basePath, filepath.FromSlash(key))
}

func (b *FilesystemBackend) metaPath(key string) string {
	return b.blobPath(key) + metaSuffix
}

func (b *FilesystemBackend) saveMetadata(key string, size uint64, contentType string, custom map[string]string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if custom == nil {
		custom = map[string]string{}
	}
	doc := fileMetadataDoc{
		Key:            key,
		Size:           size,
		ContentType:    contentType,
		LastModified:   time.Now().UTC().Format(time.RFC3339Nano),
		CustomMetadata: custom,
	}
	path := b.metaPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (b *FilesystemBackend) loadMetadata(key string) (fileMetadataDoc, error) {
	metaPath := b.metaPath(key)
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			info, statErr := os.Stat(b.blobPath(key))
			if statErr != nil {
				return fileMetadataDoc{}, &NotFoundError{Key: key}
			}
			return fileMetadataDoc{
				Key:            key,
				Size:           uint64(info.Size()),
				ContentType:    "application/octet-stream",
				LastModified:   info.ModTime().UTC().Format(time.RFC3339Nano),
				CustomMetadata: map[string]string{},
			}, nil
		}
		return fileMetadataDoc{}, &BackendError{Op: "get_metadata", Key: key, Err: err}
	}
	var doc fileMetadataDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fileMetadataDoc{}, &BackendError{Op: "get_metadata", Key: key, Err: err}
	}
	return doc, nil
}

func (b *FilesystemBackend) Put(key string, data io.Reader, contentType string, metadata map[string]string) (string, error) {
	path := b.blobPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &BackendError{Op: "put", Key: key, Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return "", &BackendError{Op: "put", Key: key, Err: err}
	}
	tmpName := tmp.Name()
	size, err := io.Copy(tmp, data)
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpName)
		return "", &BackendError{Op: "put", Key: key, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return "", &BackendError{Op: "put", Key: key, Err: err}
	}

	if err := b.saveMetadata(key, uint64(size), contentType, metadata); err != nil {
		return "", &BackendError{Op: "put", Key: key, Err: err}
	}

	return uuid.NewString(), nil
}

func (b *FilesystemBackend) Get(key string) ([]byte, error) {
	path := b.blobPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, &BackendError{Op: "get", Key: key, Err: err}
	}
	return data, nil
}

func (b *FilesystemBackend) GetStream(key string) (io.ReadCloser, error) {
	path := b.blobPath(key)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Key: key}
		}
		return nil, &BackendError{Op: "get_stream", Key: key, Err: err}
	}
	return f, nil
}

func (b *FilesystemBackend) Delete(key string) error {
	path := b.blobPath(key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Key: key}
		}
		return &BackendError{Op: "delete", Key: key, Err: err}
	}
	if err := os.Remove(path); err != nil {
		return &BackendError{Op: "delete", Key: key, Err: err}
	}
	os.Remove(b.metaPath(key))
	b.cleanupEmptyDirs(filepath.Dir(path))
	return nil
}

// cleanupEmptyDirs best-effort removes now-empty parent directories up to
// basePath. Failures are swallowed; they never fail the delete.
func (b *FilesystemBackend) cleanupEmptyDirs(dir string) {
	for dir != b.basePath && strings.HasPrefix(dir, b.basePath) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (b *FilesystemBackend) DeleteMany(keys []string) map[string]bool {
	results := make(map[string]bool, len(keys))
	for _, key := range keys {
		results[key] = b.Delete(key) == nil
	}
	return results
}

func (b *FilesystemBackend) Exists(key string) (bool, error) {
	_, err := os.Stat(b.blobPath(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &BackendError{Op: "exists", Key: key, Err: err}
}

func (b *FilesystemBackend) GetMetadata(key string) (Metadata, error) {
	doc, err := b.loadMetadata(key)
	if err != nil {
		return Metadata{}, err
	}
	lastModified, _ := time.Parse(time.RFC3339Nano, doc.LastModified)
	return Metadata{
		Key:            doc.Key,
		Size:           doc.Size,
		ContentType:    doc.ContentType,
		LastModified:   lastModified,
		CustomMetadata: doc.CustomMetadata,
	}, nil
}

func (b *FilesystemBackend) GetSize(key string) (uint64, error) {
	info, err := os.Stat(b.blobPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &NotFoundError{Key: key}
		}
		return 0, &BackendError{Op: "get_size", Key: key, Err: err}
	}
	return uint64(info.Size()), nil
}

func (b *FilesystemBackend) List(opts ListOptions) (ListResult, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	searchRoot := b.basePath
	if opts.Prefix != "" {
		searchRoot = filepath.Join(b.basePath, filepath.FromSlash(opts.Prefix))
	}
	if _, err := os.Stat(searchRoot); os.IsNotExist(err) {
		return ListResult{}, nil
	}

	var keys []string
	err := filepath.WalkDir(b.basePath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, metaSuffix) {
			return nil
		}
		rel, err := filepath.Rel(b.basePath, path)
		if err != nil {
			return nil
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return ListResult{}, &BackendError{Op: "list", Err: err}
	}
	sort.Strings(keys)

	var blobs []Metadata
	prefixSet := map[string]struct{}{}
	foundMarker := opts.Marker == ""
	count := 0

	for _, key := range keys {
		if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		if !foundMarker {
			if key == opts.Marker {
				foundMarker = true
			}
			continue
		}

		if opts.Delimiter != "" {
			remaining := key
			if opts.Prefix != "" {
				remaining = key[len(opts.Prefix):]
			}
			if idx := strings.Index(remaining, opts.Delimiter); idx >= 0 {
				prefixSet[opts.Prefix+remaining[:idx+len(opts.Delimiter)]] = struct{}{}
				continue
			}
		}

		count++
		if count > maxResults {
			next := ""
			if len(blobs) > 0 {
				next = blobs[len(blobs)-1].Key
			}
			prefixes := make([]string, 0, len(prefixSet))
			for p := range prefixSet {
				prefixes = append(prefixes, p)
			}
			sort.Strings(prefixes)
			return ListResult{Blobs: blobs, Prefixes: prefixes, IsTruncated: true, NextMarker: next}, nil
		}

		info, err := os.Stat(filepath.Join(b.basePath, filepath.FromSlash(key)))
		if err != nil {
			continue
		}
		blobs = append(blobs, Metadata{
			Key:          key,
			Size:         uint64(info.Size()),
			LastModified: info.ModTime(),
		})
	}

	prefixes := make([]string, 0, len(prefixSet))
	for p := range prefixSet {
		prefixes = append(prefixes, p)
	}
	sort.Strings(prefixes)

	return ListResult{Blobs: blobs, Prefixes: prefixes}, nil
}

func (b *FilesystemBackend) Copy(src, dst string) error {
	srcPath := b.blobPath(src)
	if _, err := os.Stat(srcPath); err != nil {
		if os.IsNotExist(err) {
			return &NotFoundError{Key: src}
		}
		return &BackendError{Op: "copy", Key: src, Err: err}
	}

	data, err := os.ReadFile(srcPath)
	if err != nil {
		return &BackendError{Op: "copy", Key: src, Err: err}
	}
	dstPath := b.blobPath(dst)
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return &BackendError{Op: "copy", Key: dst, Err: err}
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return &BackendError{Op: "copy", Key: dst, Err: err}
	}

	if doc, err := b.loadMetadata(src); err == nil {
		_ = b.saveMetadata(dst, doc.Size, doc.ContentType, doc.CustomMetadata)
	}
	return nil
}

func (b *FilesystemBackend) GeneratePresignedURL(key string, ttl time.Duration, method string) (string, error) {
	path := b.blobPath(key)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", &NotFoundError{Key: key}
		}
		return "", &BackendError{Op: "generate_presigned_url", Key: key, Err: err}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", &BackendError{Op: "generate_presigned_url", Key: key, Err: err}
	}
	_ = ttl
	_ = method
	return "file://" + filepath.ToSlash(abs), nil
}
