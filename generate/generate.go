// Package generate defines the document generation capability that drafts
// a job's work instructions.
//
// A generation call may take minutes and may complete server-side after
// the caller has given up. Implementations that persist their output to
// the job (see generate/claude) make that outcome observable to the
// reconciliation guard.
package generate

import (
	"context"

	"github.com/garagescholars/garage-tech-stack-sub001/id"
)

// Request is the input of one generation call.
type Request struct {
	JobID      id.JobID `json:"jobId"`
	AdminNotes string   `json:"adminNotes,omitempty"`
	PhotoURLs  []string `json:"photoUrls,omitempty"`
}

// Result is the output of one generation call.
type Result struct {
	OK            bool   `json:"ok"`
	GeneratedText string `json:"generatedText,omitempty"`
}

// Generator produces a work-instruction document for a job.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, req Request) (*Result, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (*Result, error) { return f(ctx, req) }
