package id_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"JobID", id.NewJobID, "job_"},
		{"TaskID", id.NewTaskID, "task_"},
		{"ScholarID", id.NewScholarID, "sch_"},
		{"PayoutID", id.NewPayoutID, "pay_"},
		{"EventID", id.NewEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
			if len(got) != len(tt.prefix)+26 {
				t.Errorf("unexpected length %d for %q", len(got), got)
			}
		})
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"JobID", id.NewJobID, id.ParseJobID},
		{"TaskID", id.NewTaskID, id.ParseTaskID},
		{"ScholarID", id.NewScholarID, id.ParseScholarID},
		{"PayoutID", id.NewPayoutID, id.ParsePayoutID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse failed: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round-trip mismatch: %q != %q", parsed.String(), original.String())
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		"",
		"nounderscore",
		"01h2xcejqtf2nbrexx3vqjhp41",
		"_01h2xcejqtf2nbrexx3vqjhp41",
		"JOB_01h2xcejqtf2nbrexx3vqjhp41",
		"job_tooshort",
		"job_81h2xcejqtf2nbrexx3vqjhp41",
	}
	for _, s := range cases {
		if _, err := id.Parse(s); err == nil {
			t.Errorf("Parse(%q): expected error", s)
		}
	}
}

func TestParseWithPrefixMismatch(t *testing.T) {
	j := id.NewJobID()
	if _, err := id.ParseScholarID(j.String()); err == nil {
		t.Fatal("expected prefix mismatch error")
	}
}

func TestSortable(t *testing.T) {
	a := id.NewJobID()
	time.Sleep(2 * time.Millisecond)
	b := id.NewJobID()
	if a.String() >= b.String() {
		t.Errorf("expected %q < %q", a.String(), b.String())
	}
}

func TestNilID(t *testing.T) {
	var i id.ID
	if !i.IsNil() {
		t.Error("zero-value ID should be nil")
	}
	if i.String() != "" {
		t.Errorf("expected empty string, got %q", i.String())
	}
	v, err := i.Value()
	if err != nil || v != nil {
		t.Errorf("expected nil value, got %v (%v)", v, err)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	type doc struct {
		ID       id.ID `json:"id"`
		Optional id.ID `json:"optional"`
	}
	in := doc{ID: id.NewJobID()}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out doc
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID.String() != in.ID.String() {
		t.Errorf("id mismatch: %q != %q", out.ID, in.ID)
	}
	if !out.Optional.IsNil() {
		t.Error("expected optional id to stay nil")
	}
}

func TestScan(t *testing.T) {
	orig := id.NewPayoutID()
	var fromString, fromBytes, fromNil id.ID
	if err := fromString.Scan(orig.String()); err != nil {
		t.Fatal(err)
	}
	if err := fromBytes.Scan([]byte(orig.String())); err != nil {
		t.Fatal(err)
	}
	if err := fromNil.Scan(nil); err != nil {
		t.Fatal(err)
	}
	if fromString != orig || fromBytes != orig {
		t.Error("scan mismatch")
	}
	if !fromNil.IsNil() {
		t.Error("expected nil after scanning NULL")
	}
	if err := fromNil.Scan(42); err == nil {
		t.Error("expected error scanning int")
	}
}

func TestMustParseKnownValue(t *testing.T) {
	const s = "job_01h2xcejqtf2nbrexx3vqjhp41"
	got := id.MustParse(s)
	if got.Prefix() != id.PrefixJob {
		t.Errorf("prefix = %q, want %q", got.Prefix(), id.PrefixJob)
	}
	if got.String() != s {
		t.Errorf("String() = %q, want %q", got.String(), s)
	}
}
