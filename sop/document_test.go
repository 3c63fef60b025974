package sop_test

import (
	"slices"
	"testing"

	"github.com/garagescholars/garage-tech-stack-sub001/sop"
)

func TestParseSections(t *testing.T) {
	t.Parallel()

	doc := sop.Parse("## 1. A\nfirst body\nmore\n\n## 2. B\nsecond body\n")
	if doc.Fallback() {
		t.Fatal("expected sections, got fallback")
	}
	if len(doc.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(doc.Sections))
	}
	want := []sop.Section{
		{Number: 1, Title: "A", Body: "first body\nmore"},
		{Number: 2, Title: "B", Body: "second body"},
	}
	for i, w := range want {
		if doc.Sections[i] != w {
			t.Errorf("section %d = %+v, want %+v", i, doc.Sections[i], w)
		}
	}
}

func TestParseFallback(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"plain text", "Just sort the garage.\nThen sweep."},
		{"malformed header", "# 1. Not a section\n##Missing number"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			doc := sop.Parse(tt.text)
			if !doc.Fallback() {
				t.Fatalf("expected fallback, got %d sections", len(doc.Sections))
			}
			view := doc.View()
			if len(view) != 1 || view[0].Title != "" {
				t.Fatalf("view = %+v, want one untitled section", view)
			}
		})
	}
}

func TestParseIgnoresPreamble(t *testing.T) {
	t.Parallel()

	doc := sop.Parse("Intro line\n## 1. SCOPE\nBody")
	if len(doc.Sections) != 1 || doc.Sections[0].Body != "Body" {
		t.Fatalf("sections = %+v", doc.Sections)
	}
}

func TestPhases(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "phase sequence",
			text: "## 3. PHASE SEQUENCE\n1. Check in\n2. Sort items",
			want: []string{"Check in", "Sort items"},
		},
		{
			name: "non matching lines ignored",
			text: "## 1. OVERVIEW\nx\n## 2. Phase Sequence\nIntro\n1. Unload\n- bullet\n10. Sweep floor\n## 3. NOTES\n1. Not a phase",
			want: []string{"Unload", "Sweep floor"},
		},
		{
			name: "no phase section",
			text: "## 1. OVERVIEW\n1. Not a phase",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := sop.Parse(tt.text).Phases(); !slices.Equal(got, tt.want) {
				t.Fatalf("Phases() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChecklistDefault(t *testing.T) {
	t.Parallel()

	got := sop.Parse("## 3. PHASE SEQUENCE\nnothing numbered").Checklist()
	if !slices.Equal(got, []string{"Check in", "Check out"}) {
		t.Fatalf("Checklist() = %q", got)
	}
	got = sop.Parse("opaque").Checklist()
	if len(got) != 2 {
		t.Fatalf("fallback Checklist() = %q", got)
	}
}
