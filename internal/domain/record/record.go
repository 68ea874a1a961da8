// Package record models the labeled dialogue transcripts the engine reads.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kailas-cloud/tagrec/internal/domain"
)

// Status is the review state of a record.
type Status string

// Review states.
const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusSkipped  Status = "skipped"
)

// Record is a stored transcript. Tags are the reviewer-approved labels,
// PriorTags the machine-suggested labels attached at import time.
type Record struct {
	ID        int64
	Text      string
	Tags      []string
	PriorTags []string
	Status    Status
	BatchID   int64
}

// Tagged reports whether the record carries at least one approved tag.
func (r *Record) Tagged() bool { return len(r.Tags) > 0 }

// ParseTags decodes a stored tag column.
// A JSON array yields its non-empty string items; a JSON string yields one tag;
// any other non-empty value is taken literally as a single tag.
func ParseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return []string{raw}
	}

	switch v := parsed.(type) {
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				tags = append(tags, s)
			}
		}
		return tags
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return []string{s}
		}
		return nil
	case nil:
		return nil
	default:
		return []string{raw}
	}
}

// Getter looks up a record by id.
type Getter interface {
	Get(ctx context.Context, id int64) (Record, error)
}

// Target is the resolved input of a recommendation request.
type Target struct {
	Text   string
	Record *Record
}

// PriorTags returns the machine-suggested tags of the resolved record, if any.
func (t Target) PriorTags() []string {
	if t.Record == nil {
		return nil
	}
	return t.Record.PriorTags
}

// Resolve turns a (record id, text) request pair into the text to analyze.
// Explicit text takes precedence over the stored text; a record id still loads
// the record so its prior tags are available. id <= 0 means "no record".
func Resolve(ctx context.Context, records Getter, id int64, text string) (Target, error) {
	text = strings.TrimSpace(text)
	if id <= 0 && text == "" {
		return Target{}, domain.ErrMissingInput
	}

	var target Target
	if id > 0 {
		if records == nil {
			return Target{}, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
		}
		rec, err := records.Get(ctx, id)
		if err != nil {
			return Target{}, fmt.Errorf("get record %d: %w", id, err)
		}
		target.Record = &rec
		target.Text = strings.TrimSpace(rec.Text)
	}
	if text != "" {
		target.Text = text
	}
	if target.Text == "" {
		return Target{}, domain.ErrMissingInput
	}
	return target, nil
}
