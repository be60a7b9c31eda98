package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jqsys/jqlakehouse/pkg/blob"
)

// NotFoundError is raised when a backend name's base component has no
// matching configuration entry.
type NotFoundError struct {
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("registry: backend %q not found; available: %s", e.Name, strings.Join(e.Available, ", "))
}

// Registry resolves backend names to Backend instances, applying
// hierarchical namespace parsing, configuration inheritance, and
// instance caching.
type Registry struct {
	mu       sync.Mutex
	config   ConfigMap
	resolved ConfigMap
	cache    map[string]blob.Backend
}

// New builds a Registry from an unresolved configuration map. Inheritance
// is resolved immediately so that a ConfigError surfaces at construction
// rather than on first lookup.
func New(cfg ConfigMap) (*Registry, error) {
	resolved, err := ResolveInheritance(cfg)
	if err != nil {
		return nil, err
	}
	return &Registry{
		config:   cfg,
		resolved: resolved,
		cache:    make(map[string]blob.Backend),
	}, nil
}

// ParseName splits a dot-separated backend name into its base config
// entry and the remaining path-style prefix, e.g. "dev.images.thumb" ->
// ("dev", "images/thumb").
func ParseName(name string) (base, prefix string) {
	parts := strings.Split(name, ".")
	return parts[0], strings.Join(parts[1:], "/")
}

// GetBackend resolves name to a Backend, constructing and caching the
// base backend on first use and wrapping it in a PrefixedBackend when
// name carries a namespace suffix.
func (r *Registry) GetBackend(name string) (blob.Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getBackendLocked(name)
}

func (r *Registry) getBackendLocked(name string) (blob.Backend, error) {
	if cached, ok := r.cache[name]; ok {
		return cached, nil
	}

	base, prefix := ParseName(name)

	baseCfg, ok := r.resolved[base]
	if !ok {
		names := make([]string, 0, len(r.resolved))
		for n := range r.resolved {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, &NotFoundError{Name: name, Available: names}
	}

	baseBackend, ok := r.cache[base]
	if !ok {
		built, err := createBackend(baseCfg)
		if err != nil {
			return nil, err
		}
		baseBackend = built
		r.cache[base] = baseBackend
	}

	if prefix == "" {
		r.cache[name] = baseBackend
		return baseBackend, nil
	}

	wrapped := blob.NewPrefixedBackend(baseBackend, prefix)
	r.cache[name] = wrapped
	return wrapped, nil
}

// Register adds or replaces a configuration entry and invalidates every
// cached instance whose key starts with name, so a subsequent GetBackend
// rebuilds under the new configuration.
func (r *Registry) Register(name string, cfg BackendConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.config[name] = cfg
	resolved, err := ResolveInheritance(r.config)
	if err != nil {
		return err
	}
	r.resolved = resolved

	for key := range r.cache {
		if strings.HasPrefix(key, name) {
			delete(r.cache, key)
		}
	}
	return nil
}

// ClearCache drops every cached backend instance.
func (r *Registry) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]blob.Backend)
}

// createBackend dispatches on cfg.Type, validating that every field the
// type requires is present.
func createBackend(cfg BackendConfig) (blob.Backend, error) {
	switch cfg.Type {
	case TypeFilesystem:
		var missing []string
		if cfg.BasePath == "" {
			missing = append(missing, "base_path")
		}
		if len(missing) > 0 {
			return nil, &ConfigError{Msg: fmt.Sprintf("filesystem backend missing required fields: %s", strings.Join(missing, ", "))}
		}
		return blob.NewFilesystemBackend(cfg.BasePath)

	case TypeS3, TypeMinio:
		var missing []string
		if cfg.Endpoint == "" {
			missing = append(missing, "endpoint")
		}
		if cfg.AccessKey == "" {
			missing = append(missing, "access_key")
		}
		if cfg.SecretKey == "" {
			missing = append(missing, "secret_key")
		}
		if cfg.Bucket == "" {
			missing = append(missing, "bucket")
		}
		if len(missing) > 0 {
			return nil, &ConfigError{Msg: fmt.Sprintf("s3 backend missing required fields: %s", strings.Join(missing, ", "))}
		}
		secure := true
		if cfg.Secure != nil {
			secure = *cfg.Secure
		}
		return blob.NewObjectBackend(blob.ObjectConfig{
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			Bucket:    cfg.Bucket,
			Secure:    secure,
			Region:    cfg.Region,
			Prefix:    cfg.Prefix,
		})

	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unknown backend type %q", cfg.Type)}
	}
}
