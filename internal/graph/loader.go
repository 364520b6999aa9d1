package graph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

// Load reads a graph from a JSON or YAML file. The format is chosen by
// extension (.yaml and .yml are YAML, anything else is JSON). The graph is
// validated before it is returned.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read graph file %s", path), err)
	}

	format := "JSON"
	if isYAML(path) {
		format = "YAML"
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, errors.NewFileUnmarshalError(path, format, err)
		}
	}

	return Parse(data, func(err error) error {
		return errors.NewFileUnmarshalError(path, format, err)
	})
}

// Parse decodes a JSON graph document and normalizes it. A missing status
// becomes pending. onDecode maps JSON syntax errors; nil keeps them as is.
func Parse(data []byte, onDecode func(error) error) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		if onDecode != nil {
			return nil, onDecode(err)
		}
		return nil, err
	}
	if err := g.normalize(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Save writes a graph to path, as YAML when the extension says so and as
// indented JSON otherwise.
func Save(g *Graph, path string) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "marshal graph", err)
	}

	if isYAML(path) {
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			return errors.Wrap(errors.ErrCodeFileMarshal, "convert graph to YAML", err)
		}
		if data, err = yaml.Marshal(doc); err != nil {
			return errors.Wrap(errors.ErrCodeFileMarshal, "marshal graph YAML", err)
		}
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("create directory %s", dir), err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("write graph file %s", path), err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// yamlToJSON re-encodes a YAML document as JSON so that results keep their
// raw JSON form.
func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return json.Marshal(jsonCompatible(doc))
}

// jsonCompatible converts the map[any]any values yaml may produce for
// non-string keys.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = jsonCompatible(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = jsonCompatible(item)
		}
		return val
	default:
		return val
	}
}
