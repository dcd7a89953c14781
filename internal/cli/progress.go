package cli

import (
	"context"
	"errors"
	"fmt"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/datacompass-go/internal/indexer"
)

// Theme holds the color scheme for prompts and the progress display.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// errBuildCancelled is returned when the user stops a build from the UI.
var errBuildCancelled = errors.New("index build cancelled")

// progressMsg carries a build progress update
type progressMsg indexer.Progress

// buildDoneMsg carries the build outcome
type buildDoneMsg struct {
	result *indexer.BuildResult
	err    error
}

// progressModel is the bubbletea model for index build progress.
type progressModel struct {
	updates  <-chan indexer.Progress
	results  <-chan buildDoneMsg
	cancel   context.CancelFunc
	current  indexer.Progress
	result   *indexer.BuildResult
	progress progress.Model
	theme    Theme
	done     bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel(updates <-chan indexer.Progress, results <-chan buildDoneMsg, cancel context.CancelFunc) progressModel {
	// Create progress bar with color blend
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		updates:  updates,
		results:  results,
		cancel:   cancel,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command (wait for the first update).
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		m.wait(),
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case progressMsg:
		m.current = indexer.Progress(msg)
		return m, m.wait()

	case buildDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m progressModel) renderContent() string {
	if m.done || m.quitting {
		return m.finalView()
	}

	if m.current.Total == 0 {
		return "Starting index build...\n"
	}

	var pct float64
	if m.current.Total > 0 {
		pct = float64(m.current.Done) / float64(m.current.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.current.Step))
	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d", m.current.Done, m.current.Total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.quitting {
		return m.theme.hintStyle().Render("\nIndex build cancelled.\n")
	}

	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Index build failed: %s\n", m.err))
	}

	return m.theme.completedStyle().Render("✓ Completed") + "\n"
}

// wait blocks in a command until the next progress update or the build result.
func (m progressModel) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case p := <-m.updates:
			return progressMsg(p)
		case r := <-m.results:
			return r
		}
	}
}

// RunBuildProgress runs builder with an interactive progress UI.
// Ctrl+C cancels the build and returns errBuildCancelled.
func RunBuildProgress(ctx context.Context, builder indexer.Builder) (*indexer.BuildResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan indexer.Progress, 64)
	results := make(chan buildDoneMsg, 1)
	finished := make(chan struct{})
	var outcome buildDoneMsg
	go func() {
		defer close(finished)
		res, err := builder.Build(ctx, func(p indexer.Progress) {
			// Drop updates the UI has not caught up with
			select {
			case updates <- p:
			default:
			}
		})
		outcome = buildDoneMsg{result: res, err: err}
		results <- outcome
	}()

	p := tea.NewProgram(newProgressModel(updates, results, cancel))
	finalModel, err := p.Run()
	if err != nil {
		cancel()
		<-finished
		return nil, fmt.Errorf("progress UI error: %w", err)
	}

	m, ok := finalModel.(progressModel)
	if !ok {
		return nil, fmt.Errorf("progress UI error: unexpected model %T", finalModel)
	}
	if m.quitting {
		<-finished
		if outcome.err == nil {
			// The build finished before the cancel took effect.
			return outcome.result, nil
		}
		return nil, errBuildCancelled
	}
	return m.result, m.err
}
