package registry

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"
)

// BackendType names a supported BackendConfig.Type value.
type BackendType string

const (
	TypeFilesystem BackendType = "filesystem"
	TypeS3         BackendType = "s3"
	TypeMinio      BackendType = "minio"
)

// BackendConfig is one named entry in a configuration file: a backend
// type plus its type-specific fields, and an optional inheritance
// marker naming a parent entry to default from.
type BackendConfig struct {
	Type       BackendType       `yaml:"type"`
	BasePath   string            `yaml:"base_path,omitempty"`
	Endpoint   string            `yaml:"endpoint,omitempty"`
	AccessKey  string            `yaml:"access_key,omitempty"`
	SecretKey  string            `yaml:"secret_key,omitempty"`
	Bucket     string            `yaml:"bucket,omitempty"`
	Secure     *bool             `yaml:"secure,omitempty"`
	Region     string            `yaml:"region,omitempty"`
	Prefix     string            `yaml:"prefix,omitempty"`
	Inherits   string            `yaml:"__inherits__,omitempty"`
	Extra      map[string]string `yaml:",inline"`
}

// ConfigMap is the raw name -> config mapping loaded from a configuration
// file, before inheritance resolution.
type ConfigMap map[string]BackendConfig

// ConfigError marks a registry/configuration fault: a missing required
// field, an unknown backend type, a missing inheritance parent, or a
// cyclic inheritance chain. It is always fatal to the caller.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "config: " + e.Msg }

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// ExpandEnv replaces ${VAR} and ${VAR:-default} references in s with the
// corresponding environment variable value (or the default if unset and
// one was given). LoadConfigFile applies it to the base_path, endpoint,
// access_key, secret_key, bucket, region and prefix fields before
// inheritance resolution runs; other fields are not expanded.
func ExpandEnv(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		name, def := groups[1], groups[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return def
	})
}

func expandConfig(cfg BackendConfig) BackendConfig {
	cfg.BasePath = ExpandEnv(cfg.BasePath)
	cfg.Endpoint = ExpandEnv(cfg.Endpoint)
	cfg.AccessKey = ExpandEnv(cfg.AccessKey)
	cfg.SecretKey = ExpandEnv(cfg.SecretKey)
	cfg.Bucket = ExpandEnv(cfg.Bucket)
	cfg.Region = ExpandEnv(cfg.Region)
	cfg.Prefix = ExpandEnv(cfg.Prefix)
	return cfg
}

// LoadConfigFile reads and env-expands a YAML backend configuration file.
// Inheritance is not resolved here; call ResolveInheritance afterward.
func LoadConfigFile(path string) (ConfigMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("reading %s: %v", path, err)}
	}
	var raw ConfigMap
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ConfigError{Msg: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	expanded := make(ConfigMap, len(raw))
	for name, cfg := range raw {
		expanded[name] = expandConfig(cfg)
	}
	return expanded, nil
}

// ResolveInheritance resolves every __inherits__ chain in cfgMap and
// returns a new map where every entry is fully merged and the
// inheritance marker has been dropped. It is a memoized DFS over
// the inheritance DAG with cycle detection via a visited set scoped to
// the current resolution path.
func ResolveInheritance(cfgMap ConfigMap) (ConfigMap, error) {
	resolved := make(ConfigMap, len(cfgMap))

	var resolveOne func(name string, visited map[string]bool) (BackendConfig, error)
	resolveOne = func(name string, visited map[string]bool) (BackendConfig, error) {
		if visited[name] {
			names := make([]string, 0, len(visited))
			for n := range visited {
				names = append(names, n)
			}
			sort.Strings(names)
			return BackendConfig{}, &ConfigError{Msg: fmt.Sprintf("circular inheritance detected involving %q", name)}
		}
		if r, ok := resolved[name]; ok {
			return r, nil
		}

		cfg, ok := cfgMap[name]
		if !ok {
			return BackendConfig{}, &ConfigError{Msg: fmt.Sprintf("unknown config entry %q", name)}
		}

		if cfg.Inherits == "" {
			resolved[name] = cfg
			return cfg, nil
		}

		parentName := cfg.Inherits
		if _, ok := cfgMap[parentName]; !ok {
			return BackendConfig{}, &ConfigError{Msg: fmt.Sprintf("%q inherits from %q, but %q was not found", name, parentName, parentName)}
		}

		newVisited := make(map[string]bool, len(visited)+1)
		for k := range visited {
			newVisited[k] = true
		}
		newVisited[name] = true

		parentResolved, err := resolveOne(parentName, newVisited)
		if err != nil {
			return BackendConfig{}, err
		}

		merged := mergeConfig(parentResolved, cfg)
		resolved[name] = merged
		return merged, nil
	}

	for name := range cfgMap {
		if _, err := resolveOne(name, map[string]bool{}); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}

// mergeConfig overlays child on top of parent: child fields override
// parent fields when non-zero, and the inheritance marker is dropped.
func mergeConfig(parent, child BackendConfig) BackendConfig {
	merged := parent
	if child.Type != "" {
		merged.Type = child.Type
	}
	if child.BasePath != "" {
		merged.BasePath = child.BasePath
	}
	if child.Endpoint != "" {
		merged.Endpoint = child.Endpoint
	}
	if child.AccessKey != "" {
		merged.AccessKey = child.AccessKey
	}
	if child.SecretKey != "" {
		merged.SecretKey = child.SecretKey
	}
	if child.Bucket != "" {
		merged.Bucket = child.Bucket
	}
	if child.Secure != nil {
		merged.Secure = child.Secure
	}
	if child.Region != "" {
		merged.Region = child.Region
	}
	if child.Prefix != "" {
		merged.Prefix = child.Prefix
	}
	if len(child.Extra) > 0 {
		if merged.Extra == nil {
			merged.Extra = map[string]string{}
		}
		for k, v := range child.Extra {
			merged.Extra[k] = v
		}
	}
	merged.Inherits = ""
	return merged
}
