package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/raphaelgruber/datacompass-go/internal/models"
	"github.com/raphaelgruber/datacompass-go/internal/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const exampleInput = `{"companyName": "TechCorp", "industry": "SaaS", "stage": "Series A", "revenueRange": "$1M-$5M"}`

// Runner runs one analysis turn of a session.
type Runner interface {
	Name() string
	RunSession(ctx context.Context, session *pipeline.Session, message string) (*pipeline.Result, error)
}

// ShellOptions tune a Shell.
type ShellOptions struct {
	// Styled enables colored prompts.
	Styled bool
	Logger *slog.Logger
}

// Shell is the interactive read loop. Each non-blank line is one turn of a
// single session, so follow-up lines can refer to earlier answers.
type Shell struct {
	in      io.Reader
	out     io.Writer
	runner  Runner
	styled  bool
	theme   Theme
	session *pipeline.Session
	logger  *slog.Logger
}

// NewShell creates a shell reading from in and writing to out.
func NewShell(in io.Reader, out io.Writer, runner Runner, opts ShellOptions) *Shell {
	id := uuid.New().String()[:8]
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Shell{
		in:      in,
		out:     out,
		runner:  runner,
		styled:  opts.Styled,
		theme:   defaultTheme,
		session: pipeline.NewSession(id),
		logger:  logger.With("session_id", id),
	}
}

// Run reads lines until "quit" (any case), EOF or ctx cancellation.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintf(s.out, "Agent loaded successfully: %s\n", s.runner.Name())
	fmt.Fprintln(s.out, "Agent is ready! Type 'quit' to exit.")
	fmt.Fprintln(s.out, s.hint("Example input: "+exampleInput))

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for ctx.Err() == nil {
		fmt.Fprint(s.out, "\n"+s.prompt("You > "))
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "quit") {
			break
		}
		if line == "" {
			continue
		}
		s.turn(ctx, line)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Error("read input", "error", err)
	}

	fmt.Fprintln(s.out, "Goodbye!")
	return nil
}

// turn runs the workflow for one line. Errors and panics are reported and
// the session continues. Ctrl+C cancels only the running turn.
func (s *Shell) turn(ctx context.Context, line string) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("turn panicked", "panic", r)
			fmt.Fprintln(s.out, s.errorText(fmt.Sprintf("Error: %v", r)))
		}
	}()

	message := line
	if profile, ok := models.ParseProfile(line); ok {
		s.logger.Info("turn started", "input", "profile", "company", profile.Name)
		message = profile.Message()
	} else {
		s.logger.Info("turn started", "input", "text")
	}

	// Stage outputs are printed as soon as each stage completes.
	fmt.Fprint(s.out, "\n"+s.agentPrompt("Agent > "))
	printed := 0
	s.session.OnStageOutput = func(_, output string) {
		if strings.TrimSpace(output) == "" {
			return
		}
		if printed > 0 {
			fmt.Fprintln(s.out)
		}
		fmt.Fprintln(s.out, output)
		printed++
	}
	defer func() { s.session.OnStageOutput = nil }()

	if _, err := s.runner.RunSession(ctx, s.session, message); err != nil {
		s.logger.Error("turn failed", "error", err)
		fmt.Fprintln(s.out, s.errorText(fmt.Sprintf("Error: %v", err)))
	}
}

func (s *Shell) prompt(text string) string {
	if !s.styled {
		return text
	}
	return s.theme.statusStyle().Bold(true).Render(text)
}

func (s *Shell) agentPrompt(text string) string {
	if !s.styled {
		return text
	}
	return s.theme.completedStyle().Render(text)
}

func (s *Shell) hint(text string) string {
	if !s.styled {
		return text
	}
	return s.theme.hintStyle().Render(text)
}

func (s *Shell) errorText(text string) string {
	if !s.styled {
		return text
	}
	return s.theme.errorStyle().Render(text)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func runShell(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "Starting Datacompass Agent...")

	b, err := openBackend(ctx)
	if err != nil {
		return fmt.Errorf("start agent: %w", err)
	}
	defer func() {
		if err := b.close(); err != nil {
			logger.Warn("close backend", "error", err)
		}
	}()

	workflow, err := newWorkflow(ctx, b)
	if err != nil {
		return fmt.Errorf("start agent: %w", err)
	}

	shell := NewShell(cmd.InOrStdin(), out, workflow, ShellOptions{
		Styled: isTerminal(out),
		Logger: logger,
	})
	return shell.Run(ctx)
}
