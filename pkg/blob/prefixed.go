package blob

import (
	"io"
	"strings"
	"time"
)

// PrefixedBackend decorates a delegate Backend with a key namespace: every
// inbound key is rewritten to prefix+key, and every outbound key is
// stripped back to its unprefixed form. An empty prefix makes the
// decorator observationally identical to its delegate.
type PrefixedBackend struct {
	delegate Backend
	prefix   string
}

// NewPrefixedBackend wraps delegate so that all keys live under prefix.
// prefix is normalized to end with "/" unless empty.
func NewPrefixedBackend(delegate Backend, prefix string) *PrefixedBackend {
	if prefix != "" {
		prefix = strings.TrimSuffix(prefix, "/") + "/"
	}
	return &PrefixedBackend{delegate: delegate, prefix: prefix}
}

func (b *PrefixedBackend) addPrefix(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + key
}

func (b *PrefixedBackend) stripPrefix(key string) string {
	if b.prefix == "" {
		return key
	}
	return strings.TrimPrefix(key, b.prefix)
}

func (b *PrefixedBackend) Put(key string, data io.Reader, contentType string, metadata map[string]string) (string, error) {
	return b.delegate.Put(b.addPrefix(key), data, contentType, metadata)
}

func (b *PrefixedBackend) Get(key string) ([]byte, error) {
	return b.delegate.Get(b.addPrefix(key))
}

func (b *PrefixedBackend) GetStream(key string) (io.ReadCloser, error) {
	return b.delegate.GetStream(b.addPrefix(key))
}

func (b *PrefixedBackend) Delete(key string) error {
	return b.delegate.Delete(b.addPrefix(key))
}

func (b *PrefixedBackend) DeleteMany(keys []string) map[string]bool {
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = b.addPrefix(k)
	}
	results := b.delegate.DeleteMany(prefixed)
	out := make(map[string]bool, len(results))
	for k, v := range results {
		out[b.stripPrefix(k)] = v
	}
	return out
}

func (b *PrefixedBackend) Exists(key string) (bool, error) {
	return b.delegate.Exists(b.addPrefix(key))
}

func (b *PrefixedBackend) GetMetadata(key string) (Metadata, error) {
	meta, err := b.delegate.GetMetadata(b.addPrefix(key))
	if err != nil {
		return Metadata{}, err
	}
	meta.Key = b.stripPrefix(meta.Key)
	return meta, nil
}

func (b *PrefixedBackend) GetSize(key string) (uint64, error) {
	return b.delegate.GetSize(b.addPrefix(key))
}

func (b *PrefixedBackend) List(opts ListOptions) (ListResult, error) {
	innerOpts := opts
	if opts.Prefix != "" {
		innerOpts.Prefix = b.addPrefix(opts.Prefix)
	} else if b.prefix != "" {
		innerOpts.Prefix = b.prefix
	}
	if opts.Marker != "" {
		innerOpts.Marker = b.addPrefix(opts.Marker)
	}

	result, err := b.delegate.List(innerOpts)
	if err != nil {
		return ListResult{}, err
	}

	blobs := make([]Metadata, len(result.Blobs))
	for i, m := range result.Blobs {
		m.Key = b.stripPrefix(m.Key)
		blobs[i] = m
	}
	prefixes := make([]string, len(result.Prefixes))
	for i, p := range result.Prefixes {
		prefixes[i] = b.stripPrefix(p)
	}
	return ListResult{
		Blobs:       blobs,
		Prefixes:    prefixes,
		IsTruncated: result.IsTruncated,
		NextMarker:  b.stripPrefix(result.NextMarker),
	}, nil
}

func (b *PrefixedBackend) Copy(src, dst string) error {
	return b.delegate.Copy(b.addPrefix(src), b.addPrefix(dst))
}

func (b *PrefixedBackend) GeneratePresignedURL(key string, ttl time.Duration, method string) (string, error) {
	return b.delegate.GeneratePresignedURL(b.addPrefix(key), ttl, method)
}
