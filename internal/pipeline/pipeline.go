// Package pipeline runs the two-stage company analysis workflow.
//
// The analysis stage always runs to completion before the benchmark stage
// starts. The benchmark stage sees the analysis output as read-only context.
// A failing stage ends the run; nothing is retried or recomputed. Runs on a
// Session also see the earlier turns of that session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/datacompass-go/internal/agent"
	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/tmc/langchaingo/llms"
)

// ErrStageFailed matches every StageError.
var ErrStageFailed = errors.New("pipeline stage failed")

// Phase is the position of a run in the workflow.
type Phase int

const (
	NotStarted Phase = iota
	RunningAnalysis
	RunningBenchmark
	Done
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not_started"
	case RunningAnalysis:
		return "running_analysis"
	case RunningBenchmark:
		return "running_benchmark"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// StageError reports which stage ended a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func (e *StageError) Is(target error) bool { return target == ErrStageFailed }

// Stage is one sequential step of the workflow.
type Stage interface {
	Name() string
	OutputKey() string
	Run(ctx context.Context, state agent.State, history []llms.MessageContent, message string) (string, error)
}

// Result is the outcome of one run. On failure Phase is the stage that failed
// and Err is a *StageError; outputs of completed stages are kept.
type Result struct {
	Phase     Phase
	Analysis  string
	Benchmark string
	State     agent.State
	Err       error
}

// Options tune a Pipeline.
type Options struct {
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Pipeline sequences the analysis and benchmark stages.
type Pipeline struct {
	name      string
	analysis  Stage
	benchmark Stage
	opts      Options
	logger    *slog.Logger
}

// New creates a pipeline from two stages.
func New(name string, analysis, benchmark Stage, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		name:      name,
		analysis:  analysis,
		benchmark: benchmark,
		opts:      opts,
		logger:    logger.With("workflow", name),
	}
}

// NewCompanyAnalysisWorkflow builds the analysis and benchmark agents over
// model and tools.
func NewCompanyAnalysisWorkflow(model agent.Generator, tools []agent.Tool, maxIterations int, opts Options) *Pipeline {
	analysis := agent.New(model, agent.Config{
		Name:          AnalysisAgentName,
		Description:   AnalysisAgentDescription,
		Instruction:   analysisInstruction,
		OutputKey:     AnalysisOutputKey,
		Tools:         tools,
		MaxIterations: maxIterations,
		Metrics:       opts.Metrics,
		Logger:        opts.Logger,
	})
	benchmark := agent.New(model, agent.Config{
		Name:          BenchmarkAgentName,
		Description:   BenchmarkAgentDescription,
		Instruction:   benchmarkInstruction,
		OutputKey:     BenchmarkOutputKey,
		Tools:         tools,
		MaxIterations: maxIterations,
		Metrics:       opts.Metrics,
		Logger:        opts.Logger,
	})
	return New(WorkflowName, analysis, benchmark, opts)
}

// Name returns the workflow name.
func (p *Pipeline) Name() string { return p.name }

// Run analyzes a structured company profile.
func (p *Pipeline) Run(ctx context.Context, profile models.CompanyProfile) (*Result, error) {
	return p.RunMessage(ctx, profile.Message())
}

// RunMessage runs both stages on a free-text message in a new session. The
// returned Result is never nil.
func (p *Pipeline) RunMessage(ctx context.Context, message string) (*Result, error) {
	return p.RunSession(ctx, NewSession(""), message)
}

// RunSession runs both stages as the next turn of session and records the
// turn when at least one stage produced output. The returned Result is never
// nil.
func (p *Pipeline) RunSession(ctx context.Context, session *Session, message string) (*Result, error) {
	res := &Result{Phase: NotStarted, State: session.State()}
	err := p.run(ctx, session, message, res)
	session.record(message, res)
	if err != nil {
		res.Err = err
		return res, err
	}
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, session *Session, message string, res *Result) error {
	logger := p.logger
	if session.ID != "" {
		logger = logger.With("session_id", session.ID)
	}
	history := session.History()

	res.Phase = RunningAnalysis
	out, err := p.runStage(ctx, logger, session, p.analysis, res.State, history, message)
	if err != nil {
		return err
	}
	res.Analysis = out

	res.Phase = RunningBenchmark
	out, err = p.runStage(ctx, logger, session, p.benchmark, res.State, history, message)
	if err != nil {
		return err
	}
	res.Benchmark = out

	res.Phase = Done
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, logger *slog.Logger, session *Session, stage Stage, state agent.State, history []llms.MessageContent, message string) (string, error) {
	start := time.Now()
	logger.Info("stage started", "stage", stage.Name(), "history_turns", len(history)/2)

	// Stages get a copy so they cannot change earlier outputs.
	view := make(agent.State, len(state))
	for k, v := range state {
		view[k] = v
	}

	out, err := stage.Run(ctx, view, history, message)
	p.opts.Metrics.Since(metrics.OpPipelineStage, start)
	duration := time.Since(start)
	if err != nil {
		logger.Error("stage failed", "stage", stage.Name(), "duration_ms", duration.Milliseconds(), "error", err)
		return "", &StageError{Stage: stage.Name(), Err: err}
	}

	state[stage.OutputKey()] = out
	logger.Info("stage complete", "stage", stage.Name(), "duration_ms", duration.Milliseconds())
	if session.OnStageOutput != nil {
		session.OnStageOutput(stage.Name(), out)
	}
	return out, nil
}
