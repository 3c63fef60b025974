package job_test

import (
	"errors"
	"testing"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

func TestNewLead(t *testing.T) {
	t.Parallel()

	j, err := job.NewLead(job.LeadInput{ClientName: " A. Smith ", Package: "graduate", Email: "a@example.com"}, t0)
	if err != nil {
		t.Fatal(err)
	}
	if j.Status != job.StateLead || j.ClientName != "A. Smith" || j.ID.IsNil() {
		t.Errorf("lead = %+v", j)
	}
	if !j.CreatedAt.Equal(t0) {
		t.Errorf("CreatedAt = %v", j.CreatedAt)
	}
}

func TestNewLeadValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   job.LeadInput
	}{
		{"missing name", job.LeadInput{}},
		{"bad email", job.LeadInput{ClientName: "x", Email: "not-an-email"}},
		{"blank photo path", job.LeadInput{ClientName: "x", IntakePhotoPaths: []string{""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := job.NewLead(tt.in, t0)
			if !errors.Is(err, fieldwork.ErrGuardViolation) {
				t.Errorf("err = %v, want guard violation", err)
			}
		})
	}
}

func TestLineItemString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		item job.LineItem
		want string
	}{
		{job.LineItem{Name: "Overhead rack", Quantity: 2, Size: "4x8"}, "2 x Overhead rack (4x8)"},
		{job.LineItem{Name: "Bin", Quantity: 10}, "10 x Bin"},
	}
	for _, tt := range tests {
		if got := tt.item.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
