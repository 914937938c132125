package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source resolves configuration values by key.
type Source interface {
	Lookup(key string) (string, bool)
}

// Env reads the process environment.
type Env struct{}

func (Env) Lookup(key string) (string, bool) { return os.LookupEnv(key) }

// LoadDotenv loads .env files into the process environment. Missing files are ignored;
// variables already set are not overwritten.
func LoadDotenv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Map is an in-memory source, mostly for tests.
type Map map[string]string

func (m Map) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Chain returns the first non-blank hit across sources. A variable exported as
// "" does not hide a value set further down the chain.
type Chain []Source

func (c Chain) Lookup(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Lookup(key); ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

// YAMLFile loads a flat key/value YAML document. Nested maps are flattened with "_"
// and upper-cased, so {openai: {model: gpt-4o}} becomes OPENAI_MODEL.
func YAMLFile(path string) (Map, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	out := Map{}
	flatten("", doc, out)
	return out, nil
}

func flatten(prefix string, in map[string]any, out Map) {
	for k, v := range in {
		key := strings.ToUpper(strings.TrimSpace(k))
		if prefix != "" {
			key = prefix + "_" + key
		}
		switch x := v.(type) {
		case map[string]any:
			flatten(key, x, out)
		case nil:
			out[key] = ""
		default:
			out[key] = fmt.Sprint(x)
		}
	}
}

// Get returns the trimmed value for key, or "" when absent.
func Get(s Source, key string) string {
	if s == nil {
		return ""
	}
	v, _ := s.Lookup(key)
	return strings.TrimSpace(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
