// Package vocabulary holds the closed set of standardized tags.
package vocabulary

import (
	"errors"
	"fmt"
	"strings"
)

// Tag is one standardized label with its reviewer-facing definition.
type Tag struct {
	Name       string `yaml:"name" db:"name"`
	Category   string `yaml:"category" db:"category"`
	Definition string `yaml:"definition" db:"definition"`
}

// Vocabulary is an ordered, immutable set of tags. Safe for concurrent reads.
type Vocabulary struct {
	tags   []Tag
	byName map[string]int
}

// New validates tags and builds a vocabulary. Names must be unique and non-empty.
func New(tags []Tag) (*Vocabulary, error) {
	if len(tags) == 0 {
		return nil, errors.New("vocabulary is empty")
	}

	v := &Vocabulary{
		tags:   make([]Tag, 0, len(tags)),
		byName: make(map[string]int, len(tags)),
	}
	for i, t := range tags {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			return nil, fmt.Errorf("tag at index %d has empty name", i)
		}
		if _, dup := v.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate tag %q", t.Name)
		}
		v.byName[t.Name] = len(v.tags)
		v.tags = append(v.tags, t)
	}
	return v, nil
}

// Len returns the number of tags.
func (v *Vocabulary) Len() int { return len(v.tags) }

// Tags returns a copy of all tags in vocabulary order.
func (v *Vocabulary) Tags() []Tag {
	out := make([]Tag, len(v.tags))
	copy(out, v.tags)
	return out
}

// Contains reports whether name is a known tag.
func (v *Vocabulary) Contains(name string) bool {
	_, ok := v.byName[name]
	return ok
}

// Definition returns the definition of a known tag.
func (v *Vocabulary) Definition(name string) (string, bool) {
	i, ok := v.byName[name]
	if !ok {
		return "", false
	}
	return v.tags[i].Definition, true
}

// Filter keeps known tags in input order, first occurrence wins.
// Unknown names are returned separately so callers can keep them for audit.
func (v *Vocabulary) Filter(names []string) (kept, dropped []string) {
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		if v.Contains(n) {
			kept = append(kept, n)
		} else {
			dropped = append(dropped, n)
		}
	}
	return kept, dropped
}
