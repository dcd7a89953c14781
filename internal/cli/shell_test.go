package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/raphaelgruber/datacompass-go/internal/agent"
	"github.com/raphaelgruber/datacompass-go/internal/indexer"
	"github.com/raphaelgruber/datacompass-go/internal/metrics"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/raphaelgruber/datacompass-go/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeRunner struct {
	messages []string
	sessions []*pipeline.Session
	turns    []int
	err      error
	panicMsg string
	// between is called after the analysis output was delivered.
	between func()
}

func (f *fakeRunner) Name() string { return "CompanyAnalysisWorkflow" }

func (f *fakeRunner) RunSession(_ context.Context, s *pipeline.Session, msg string) (*pipeline.Result, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.messages = append(f.messages, msg)
	f.sessions = append(f.sessions, s)
	f.turns = append(f.turns, s.Turns())

	s.OnStageOutput(pipeline.AnalysisAgentName, "analysis")
	if f.err != nil {
		return &pipeline.Result{Phase: pipeline.RunningBenchmark, Analysis: "analysis"}, f.err
	}
	if f.between != nil {
		f.between()
	}
	s.OnStageOutput(pipeline.BenchmarkAgentName, "report")
	return &pipeline.Result{Phase: pipeline.Done, Analysis: "analysis", Benchmark: "report"}, nil
}

func runShellWith(t *testing.T, runner *fakeRunner, input string) string {
	t.Helper()
	var out bytes.Buffer
	sh := NewShell(strings.NewReader(input), &out, runner, ShellOptions{})
	require.NoError(t, sh.Run(context.Background()))
	return out.String()
}

func TestShellBannerAndGoodbye(t *testing.T) {
	out := runShellWith(t, &fakeRunner{}, "quit\n")

	assert.Contains(t, out, "Agent loaded successfully: CompanyAnalysisWorkflow")
	assert.Contains(t, out, "Agent is ready! Type 'quit' to exit.")
	assert.Contains(t, out, "Example input: "+exampleInput)
	assert.Contains(t, out, "You > ")
	assert.True(t, strings.HasSuffix(out, "Goodbye!\n"))
}

func TestShellQuitIsCaseInsensitive(t *testing.T) {
	for _, word := range []string{"quit", "QUIT", "Quit", "  quit  "} {
		runner := &fakeRunner{}
		runShellWith(t, runner, word+"\nnot reached\n")
		assert.Empty(t, runner.messages, "input after %q must not run", word)
	}
}

func TestShellSkipsBlankLines(t *testing.T) {
	runner := &fakeRunner{}
	out := runShellWith(t, runner, "\n   \n\t\nquit\n")

	assert.Empty(t, runner.messages)
	assert.Equal(t, 4, strings.Count(out, "You > "))
}

func TestShellEndsOnEOF(t *testing.T) {
	runner := &fakeRunner{}
	out := runShellWith(t, runner, "tell me about fintech")

	assert.Equal(t, []string{"tell me about fintech"}, runner.messages)
	assert.Contains(t, out, "Goodbye!")
}

func TestShellRoutesProfilesAndText(t *testing.T) {
	runner := &fakeRunner{}
	out := runShellWith(t, runner, exampleInput+"\nfree text\nquit\n")

	profile := models.CompanyProfile{Name: "TechCorp", Industry: "SaaS", Stage: "Series A", RevenueRange: "$1M-$5M"}
	assert.Equal(t, []string{profile.Message(), "free text"}, runner.messages)
	assert.Contains(t, out, "Agent > analysis\n\nreport\n")
}

func TestShellKeepsOneSessionAcrossTurns(t *testing.T) {
	var out bytes.Buffer
	wf := pipeline.New("wf", &echoStage{name: "analysis", key: pipeline.AnalysisOutputKey},
		&echoStage{name: "benchmark", key: pipeline.BenchmarkOutputKey}, pipeline.Options{})
	sh := NewShell(strings.NewReader("analyze TechCorp\ncompare that with fintech peers\nquit\n"), &out, wf, ShellOptions{})
	require.NoError(t, sh.Run(context.Background()))

	assert.Contains(t, out.String(), "Agent > analysis saw 0 earlier turns\n\nbenchmark saw 0 earlier turns\n")
	assert.Contains(t, out.String(), "Agent > analysis saw 1 earlier turns, last answer \"analysis saw 0 earlier turns")
	assert.Equal(t, 2, sh.session.Turns())
}

func TestShellPrintsStagesAsTheyComplete(t *testing.T) {
	var out bytes.Buffer
	var atBenchmark string
	runner := &fakeRunner{}
	runner.between = func() { atBenchmark = out.String() }

	sh := NewShell(strings.NewReader("hello\nquit\n"), &out, runner, ShellOptions{})
	require.NoError(t, sh.Run(context.Background()))

	assert.True(t, strings.HasSuffix(atBenchmark, "Agent > analysis\n"), "analysis is shown before the benchmark stage runs")
	assert.NotContains(t, atBenchmark, "report")
}

func TestShellContinuesAfterTurnError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("stage benchmark_report_agent: boom")}
	out := runShellWith(t, runner, "first\nsecond\nquit\n")

	assert.Equal(t, []string{"first", "second"}, runner.messages)
	assert.Equal(t, 2, strings.Count(out, "Error: stage benchmark_report_agent: boom"))
	assert.Contains(t, out, "Agent > analysis\nError: stage benchmark_report_agent: boom")
	require.Len(t, runner.sessions, 2)
	assert.Same(t, runner.sessions[0], runner.sessions[1])
	assert.Contains(t, out, "Goodbye!")
}

func TestShellRecoversFromPanics(t *testing.T) {
	runner := &fakeRunner{panicMsg: "nil map"}
	out := runShellWith(t, runner, "boom\nquit\n")

	assert.Contains(t, out, "Error: nil map")
	assert.Contains(t, out, "Goodbye!")
}

func TestShellStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	var out bytes.Buffer
	require.NoError(t, NewShell(strings.NewReader("hello\n"), &out, runner, ShellOptions{}).Run(ctx))
	assert.Empty(t, runner.messages)
	assert.Contains(t, out.String(), "Goodbye!")
}

// echoStage answers with the number of earlier turns it was shown and the
// start of the last earlier answer.
type echoStage struct{ name, key string }

func (s *echoStage) Name() string      { return s.name }
func (s *echoStage) OutputKey() string { return s.key }
func (s *echoStage) Run(_ context.Context, _ agent.State, history []llms.MessageContent, _ string) (string, error) {
	out := fmt.Sprintf("%s saw %d earlier turns", s.name, len(history)/2)
	if len(history) > 0 {
		last := history[len(history)-1].Parts[0].(llms.TextContent).Text
		out += fmt.Sprintf(", last answer %q", last)
	}
	return out, nil
}

func TestReadCompanies(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "companies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
- company_id: "1"
  name: Acme Analytics
  market: Software
  funding_total_usd: "1,500,000"
  funding_rounds: 2
  founded_year: 2015
  round_A: 1000000
- company_id: "2"
  name: Beta Bank
`), 0o644))

	companies, err := readCompanies(path)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Acme Analytics", companies[0].Name)
	assert.Equal(t, int64(2), companies[0].FundingRounds)
	assert.InDelta(t, 1e6, companies[0].RoundA, 1e-9)

	jsonPath := filepath.Join(dir, "companies.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"company_id": "3", "name": "Gamma"}]`), 0o644))
	companies, err = readCompanies(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "Gamma", companies[0].Name)

	badPath := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte(`- name: no id`), 0o644))
	_, err = readCompanies(badPath)
	assert.ErrorContains(t, err, "has no company_id")
}

func TestPrintSnapshot(t *testing.T) {
	mc := metrics.NewCollector()
	mc.RecordTiming(metrics.OpVectorSearch, 20*time.Millisecond)
	mc.RecordLLMUsage(metrics.OpLLMGenerate, time.Second, 120, 40)

	var out bytes.Buffer
	printSnapshot(&out, mc.Snapshot())

	s := out.String()
	assert.Contains(t, s, "Vector Search:")
	assert.Contains(t, s, "LLM Generate:")
	assert.Contains(t, s, "Tokens In:  120 total")
	assert.NotContains(t, s, "Catalog Join:")
}

func TestPrintIndexStats(t *testing.T) {
	var out bytes.Buffer
	printIndexStats(&out, "postgres", indexer.IndexStats{TotalEmbeddings: 10, SuccessfulEmbeddings: 8, TotalCompanies: 12})

	s := out.String()
	assert.Contains(t, s, "Index Statistics (postgres)")
	assert.Contains(t, s, "Successful embeddings: 8")
	assert.Contains(t, s, "Failed embeddings:     2")
}
