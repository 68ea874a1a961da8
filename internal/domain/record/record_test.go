package record

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/kailas-cloud/tagrec/internal/domain"
)

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace", "   ", nil},
		{"json array", `["面包车","尾板车"]`, []string{"面包车", "尾板车"}},
		{"json array with blanks", `["面包车",""," ",1]`, []string{"面包车"}},
		{"json empty array", `[]`, []string{}},
		{"json string", `"拼车单"`, []string{"拼车单"}},
		{"json null", `null`, nil},
		{"plain string", `拼车单`, []string{"拼车单"}},
		{"json number", `42`, []string{"42"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseTags(tc.raw)
			if len(got) == 0 && len(tc.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParseTags(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

type mockGetter struct {
	rec Record
	err error
}

func (m *mockGetter) Get(_ context.Context, _ int64) (Record, error) {
	return m.rec, m.err
}

func TestResolve_MissingInput(t *testing.T) {
	_, err := Resolve(context.Background(), &mockGetter{}, 0, "  ")
	if !errors.Is(err, domain.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestResolve_TextOnly(t *testing.T) {
	target, err := Resolve(context.Background(), nil, 0, " hello ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Text != "hello" {
		t.Errorf("expected trimmed text, got %q", target.Text)
	}
	if target.Record != nil || target.PriorTags() != nil {
		t.Error("text-only target should carry no record")
	}
}

func TestResolve_RecordText(t *testing.T) {
	g := &mockGetter{rec: Record{ID: 7, Text: "stored", PriorTags: []string{"面包车"}}}
	target, err := Resolve(context.Background(), g, 7, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Text != "stored" {
		t.Errorf("expected stored text, got %q", target.Text)
	}
	if !reflect.DeepEqual(target.PriorTags(), []string{"面包车"}) {
		t.Errorf("unexpected prior tags %v", target.PriorTags())
	}
}

func TestResolve_ExplicitTextWins(t *testing.T) {
	g := &mockGetter{rec: Record{ID: 7, Text: "stored", PriorTags: []string{"面包车"}}}
	target, err := Resolve(context.Background(), g, 7, "override")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.Text != "override" {
		t.Errorf("expected explicit text, got %q", target.Text)
	}
	if len(target.PriorTags()) != 1 {
		t.Error("prior tags should still come from the record")
	}
}

func TestResolve_NotFound(t *testing.T) {
	g := &mockGetter{err: domain.ErrNotFound}
	_, err := Resolve(context.Background(), g, 9, "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_EmptyStoredText(t *testing.T) {
	g := &mockGetter{rec: Record{ID: 3, Text: "  "}}
	_, err := Resolve(context.Background(), g, 3, "")
	if !errors.Is(err, domain.ErrMissingInput) {
		t.Fatalf("expected ErrMissingInput, got %v", err)
	}
}

func TestTagged(t *testing.T) {
	r := Record{}
	if r.Tagged() {
		t.Error("record without tags should not be tagged")
	}
	r.Tags = []string{"油车"}
	if !r.Tagged() {
		t.Error("record with tags should be tagged")
	}
}
