package route

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

//go:embed routes.yaml
var defaultDocument []byte

// Document is the YAML form of a route table.
type Document struct {
	// Services maps a service name to its base URL.
	Services map[string]string `yaml:"services" json:"services"`
	Routes   []Route           `yaml:"routes" json:"routes"`
}

// Route dispatches one or more task type aliases to a service endpoint.
type Route struct {
	Types   []string `yaml:"types" json:"types"`
	Service string   `yaml:"service" json:"service"`
	Method  string   `yaml:"method" json:"method"`
	Path    string   `yaml:"path" json:"path"`
}

// DefaultDocument returns the built-in route table.
func DefaultDocument() (*Document, error) {
	return ParseDocument(defaultDocument)
}

// LoadDocument reads a route table from a YAML file.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("read route table %s", path), err)
	}

	doc, err := ParseDocument(data)
	if err != nil {
		return nil, errors.NewFileUnmarshalError(path, "YAML", err)
	}
	return doc, nil
}

// ParseDocument decodes a YAML route table.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal route table: %w", err)
	}
	return &doc, nil
}
