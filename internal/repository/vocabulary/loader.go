// Package vocabulary loads the closed tag set from YAML, the record database or the embedded default.
package vocabulary

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	domvocab "github.com/kailas-cloud/tagrec/internal/domain/vocabulary"
)

//go:embed default.yaml
var defaultYAML []byte

// Source selects where tags come from.
type Source string

// Known sources.
const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceRecords Source = "records"
)

// TagLister reads the tag table of the record database.
type TagLister interface {
	ListTags(ctx context.Context) ([]domvocab.Tag, error)
}

type file struct {
	Tags []domvocab.Tag `yaml:"tags"`
}

// Load builds the vocabulary from the configured source. An empty tags table
// falls back to the embedded default so a fresh database still works.
func Load(ctx context.Context, src Source, path string, records TagLister) (*domvocab.Vocabulary, error) {
	switch src {
	case SourceFile:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
		}
		return Parse(data)
	case SourceRecords:
		if records == nil {
			return nil, fmt.Errorf("vocabulary source %q requires a record database", src)
		}
		tags, err := records.ListTags(ctx)
		if err != nil {
			return nil, fmt.Errorf("load vocabulary from records: %w", err)
		}
		if len(tags) == 0 {
			return Default()
		}
		return domvocab.New(tags)
	case SourceDefault, "":
		return Default()
	default:
		return nil, fmt.Errorf("unknown vocabulary source %q", src)
	}
}

// Default returns the embedded freight vocabulary.
func Default() (*domvocab.Vocabulary, error) {
	return Parse(defaultYAML)
}

// Parse decodes a YAML document of the form {tags: [{name, category, definition}]}.
func Parse(data []byte) (*domvocab.Vocabulary, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	return domvocab.New(f.Tags)
}
