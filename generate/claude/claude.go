// Package claude is a server-side generator backed by the Anthropic
// Messages API.
//
// On success the generated text is written onto the job before Generate
// returns, using a context detached from the caller's cancellation. A
// caller that times out or disconnects can therefore find the draft on
// the job later, which is exactly what the reconciliation guard checks.
package claude

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	fieldwork "github.com/garagescholars/garage-tech-stack-sub001"
	"github.com/garagescholars/garage-tech-stack-sub001/generate"
	"github.com/garagescholars/garage-tech-stack-sub001/job"
)

var _ generate.Generator = (*Generator)(nil)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Generator drafts documents with Claude and persists them to the job.
type Generator struct {
	client    anthropic.Client
	jobs      job.Store
	model     string
	maxTokens int64
	attempts  int
	logger    *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithModel sets the model name.
func WithModel(m string) Option { return func(g *Generator) { g.model = m } }

// WithMaxTokens caps the response length.
func WithMaxTokens(n int64) Option { return func(g *Generator) { g.maxTokens = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(g *Generator) { g.logger = l } }

// WithMutateAttempts sets how many times the draft write is retried on a
// version conflict.
func WithMutateAttempts(n int) Option { return func(g *Generator) { g.attempts = n } }

// New creates a Generator. requestOpts are passed to the Anthropic client,
// e.g. option.WithAPIKey or option.WithBaseURL.
func New(jobs job.Store, requestOpts []option.RequestOption, opts ...Option) *Generator {
	g := &Generator{
		client:    anthropic.NewClient(requestOpts...),
		jobs:      jobs,
		model:     DefaultModel,
		maxTokens: 4096,
		attempts:  5,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate drafts the job's document and writes it to the job while the
// job is still awaiting SOP review.
func (g *Generator) Generate(ctx context.Context, req generate.Request) (*generate.Result, error) {
	j, err := g.jobs.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, err
	}

	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(j, req.AdminNotes, req.PhotoURLs))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: claude: %w", fieldwork.ErrGenerationFailed, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return &generate.Result{OK: false}, nil
	}

	// The caller may already be gone; the draft must still land.
	persistCtx := context.WithoutCancel(ctx)
	if _, err := job.Mutate(persistCtx, g.jobs, req.JobID, g.attempts, func(cur *job.Job) (bool, error) {
		if cur.Status != job.StateSopNeedsReview {
			return false, nil
		}
		cur.GeneratedSop = text
		return true, nil
	}); err != nil {
		g.logger.Warn("persist generated document failed",
			slog.String("job_id", req.JobID.String()),
			slog.Any("error", err),
		)
	}

	g.logger.Info("document generated",
		slog.String("job_id", req.JobID.String()),
		slog.String("model", g.model),
		slog.Int64("output_tokens", msg.Usage.OutputTokens),
	)
	return &generate.Result{OK: true, GeneratedText: text}, nil
}
