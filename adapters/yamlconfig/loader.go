package yamlconfig

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/goliatone/go-webhooks/core"
	"gopkg.in/yaml.v3"
)

// FileLoader reads a YAML config file into the raw map consumed by
// core.CfgxConfigProvider. ${VAR} references are expanded from the
// environment before parsing.
type FileLoader struct {
	Path string
	// Optional treats a missing file as an empty config.
	Optional bool
	// FS reads Path from this filesystem instead of the OS.
	FS     fs.FS
	Lookup func(string) (string, bool)
}

func NewFileLoader(path string, optional bool) *FileLoader {
	return &FileLoader{Path: path, Optional: optional}
}

func (l *FileLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return map[string]any{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := l.read()
	if err != nil {
		if l.Optional && errors.Is(err, fs.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("yamlconfig: read %s: %w", l.Path, err)
	}
	return Parse(data, l.lookup())
}

func (l *FileLoader) read() ([]byte, error) {
	if l.FS != nil {
		return fs.ReadFile(l.FS, l.Path)
	}
	return os.ReadFile(l.Path)
}

func (l *FileLoader) lookup() func(string) (string, bool) {
	if l.Lookup != nil {
		return l.Lookup
	}
	return os.LookupEnv
}

// Parse decodes a YAML document into a string keyed map. Unset variables
// expand to the empty string.
func Parse(data []byte, lookup func(string) (string, bool)) (map[string]any, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	expanded := os.Expand(string(data), func(name string) string {
		value, _ := lookup(name)
		return value
	})

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("yamlconfig: parse: %w", err)
	}
	if raw == nil {
		return map[string]any{}, nil
	}
	return normalize(raw).(map[string]any), nil
}

// normalize converts any map[any]any left by custom tags into
// map[string]any so cfgx can decode it.
func normalize(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[key] = normalize(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = normalize(item)
		}
		return out
	default:
		return value
	}
}

var _ core.RawConfigLoader = (*FileLoader)(nil)
