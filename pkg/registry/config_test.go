package registry

import (
	"os"
	"testing"
)

func TestExpandEnv(t *testing.T) {
	os.Setenv("JQ_TEST_VAR", "resolved")
	defer os.Unsetenv("JQ_TEST_VAR")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain string", "no-vars-here", "no-vars-here"},
		{"set variable", "${JQ_TEST_VAR}", "resolved"},
		{"unset with default", "${JQ_MISSING_VAR:-fallback}", "fallback"},
		{"unset without default", "${JQ_MISSING_VAR}", ""},
		{"embedded in path", "/data/${JQ_TEST_VAR}/blobs", "/data/resolved/blobs"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.in); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolveInheritance_SimpleOverride(t *testing.T) {
	cfgMap := ConfigMap{
		"local": {Type: TypeFilesystem, BasePath: "/data"},
		"bronze": {Inherits: "local", Prefix: "bronze"},
	}

	resolved, err := ResolveInheritance(cfgMap)
	if err != nil {
		t.Fatalf("ResolveInheritance() error = %v", err)
	}

	bronze := resolved["bronze"]
	if bronze.Type != TypeFilesystem || bronze.BasePath != "/data" || bronze.Prefix != "bronze" {
		t.Errorf("bronze resolved = %+v, want merged filesystem config with prefix", bronze)
	}
	if bronze.Inherits != "" {
		t.Error("resolved config should have __inherits__ cleared")
	}
}

func TestResolveInheritance_MultiLevel(t *testing.T) {
	cfgMap := ConfigMap{
		"base": {Type: TypeFilesystem, BasePath: "/data"},
		"mid":  {Inherits: "base", Prefix: "mid"},
		"leaf": {Inherits: "mid", Prefix: "leaf"},
	}

	resolved, err := ResolveInheritance(cfgMap)
	if err != nil {
		t.Fatalf("ResolveInheritance() error = %v", err)
	}

	leaf := resolved["leaf"]
	if leaf.BasePath != "/data" {
		t.Errorf("leaf.BasePath = %q, want inherited %q", leaf.BasePath, "/data")
	}
	if leaf.Prefix != "leaf" {
		t.Errorf("leaf.Prefix = %q, want own override %q", leaf.Prefix, "leaf")
	}
}

func TestResolveInheritance_CycleDetected(t *testing.T) {
	cfgMap := ConfigMap{
		"a": {Inherits: "b"},
		"b": {Inherits: "a"},
	}

	_, err := ResolveInheritance(cfgMap)
	if err == nil {
		t.Fatal("ResolveInheritance() on a cycle returned nil error")
	}
	if _, ok := err.(*ConfigError); !ok {
		t.Errorf("error type = %T, want *ConfigError", err)
	}
}

func TestResolveInheritance_MissingParent(t *testing.T) {
	cfgMap := ConfigMap{
		"child": {Inherits: "ghost"},
	}

	_, err := ResolveInheritance(cfgMap)
	if err == nil {
		t.Fatal("ResolveInheritance() with a missing parent returned nil error")
	}
}

func TestResolveInheritance_NoInheritancePassesThrough(t *testing.T) {
	cfgMap := ConfigMap{
		"solo": {Type: TypeFilesystem, BasePath: "/data"},
	}

	resolved, err := ResolveInheritance(cfgMap)
	if err != nil {
		t.Fatalf("ResolveInheritance() error = %v", err)
	}
	if resolved["solo"].BasePath != "/data" {
		t.Errorf("solo.BasePath = %q, want %q", resolved["solo"].BasePath, "/data")
	}
}
