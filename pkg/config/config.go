package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-go-golems/topicsync/pkg/topics"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const DefaultFilename = "public-config.json"

// DefaultTopics is used when neither the share hash nor the config names
// an initial selection.
var DefaultTopics = []string{"rawtx", "rawblock", "rawgovernancevote"}

const documentSchema = `{
  "type": "object",
  "required": ["topics"],
  "properties": {
    "topics": {"type": "array", "items": {"type": "string"}},
    "default_topics": {"type": "array", "items": {"type": "string"}}
  }
}`

// Document is the public config resource.
type Document struct {
	Topics        []string `json:"topics" yaml:"topics"`
	DefaultTopics []string `json:"default_topics,omitempty" yaml:"default_topics,omitempty"`
}

// ConfigError reports a config document that could not be read or does not
// match the schema.
type ConfigError struct {
	Source  string
	Reasons []string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config %s", e.Source)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// AllowedTopics returns the topic entries with comments removed.
func (d *Document) AllowedTopics() []string {
	var out []string
	for _, t := range d.Topics {
		if topics.IsComment(t) {
			continue
		}
		out = append(out, strings.TrimSpace(t))
	}
	return out
}

// InitialTopics returns the config's default selection, or DefaultTopics.
func (d *Document) InitialTopics() []string {
	if len(d.DefaultTopics) > 0 {
		return append([]string{}, d.DefaultTopics...)
	}
	return append([]string{}, DefaultTopics...)
}

// Load reads the document from a file path or an http(s) URL.
func Load(ctx context.Context, source string) (*Document, error) {
	if source == "" {
		source = DefaultFilename
	}
	var (
		b   []byte
		err error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		b, err = fetch(ctx, source)
	} else {
		b, err = os.ReadFile(source)
		err = errors.Wrap(err, "read config")
	}
	if err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	}
	return Parse(source, b)
}

// Parse decodes and validates a document. YAML is chosen by the source's
// extension, JSON otherwise.
func Parse(source string, b []byte) (*Document, error) {
	var raw any
	switch strings.ToLower(filepath.Ext(trimQuery(source))) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &raw); err != nil {
			return nil, &ConfigError{Source: source, Err: errors.Wrap(err, "parse config yaml")}
		}
	default:
		if err := json.Unmarshal(b, &raw); err != nil {
			return nil, &ConfigError{Source: source, Err: errors.Wrap(err, "parse config json")}
		}
	}

	if reasons, err := validate(raw); err != nil {
		return nil, &ConfigError{Source: source, Err: err}
	} else if len(reasons) > 0 {
		return nil, &ConfigError{Source: source, Reasons: reasons}
	}

	// normalize YAML and JSON through one decoder
	normalized, err := json.Marshal(raw)
	if err != nil {
		return nil, &ConfigError{Source: source, Err: errors.Wrap(err, "normalize config")}
	}
	var d Document
	if err := json.Unmarshal(normalized, &d); err != nil {
		return nil, &ConfigError{Source: source, Err: errors.Wrap(err, "decode config")}
	}
	return &d, nil
}

func validate(raw any) ([]string, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
	if err != nil {
		return nil, errors.Wrap(err, "compile config schema")
	}
	res, err := schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "validate config")
	}
	var reasons []string
	for _, e := range res.Errors() {
		reasons = append(reasons, e.String())
	}
	return reasons, nil
}

func fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build config request")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch config")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("failed to fetch public config: %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read config body")
	}
	return b, nil
}

func trimQuery(source string) string {
	if i := strings.IndexAny(source, "?#"); i >= 0 {
		return source[:i]
	}
	return source
}
