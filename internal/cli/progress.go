package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/ctxcompress/internal/service"
)

const pollInterval = 200 * time.Millisecond

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
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

// tickMsg triggers reading the job state
type tickMsg time.Time

// jobDoneMsg is sent once the job goroutine returns.
type jobDoneMsg struct {
	summary *service.Summary
	err     error
}

// progressModel is the bubbletea model for job progress.
type progressModel struct {
	job        *service.Job
	snap       *service.Job
	cancel     context.CancelFunc
	wait       tea.Cmd
	progress   progress.Model
	theme      Theme
	finished   bool
	cancelling bool
	summary    *service.Summary
	err        error
}

// newProgressModel creates a new progress model.
func newProgressModel(job *service.Job, cancel context.CancelFunc, wait tea.Cmd) progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	snap := job.Snapshot()
	return progressModel{
		job:      job,
		snap:     &snap,
		cancel:   cancel,
		wait:     wait,
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init starts polling and waits for the job in the background.
func (m progressModel) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.wait,
		m.progress.Init(),
	)
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Stop submitting; the job drains in-flight requests and reports back.
			if !m.cancelling {
				m.cancelling = true
				m.cancel()
			}
			return m, nil
		}

	case tickMsg:
		snap := m.job.Snapshot()
		m.snap = &snap
		if m.finished {
			return m, nil
		}
		return m, tickCmd()

	case jobDoneMsg:
		snap := m.job.Snapshot()
		m.snap = &snap
		m.finished = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
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
	if m.finished {
		return m.finalView()
	}

	s := m.snap
	if s.Status == service.JobStatusPending || s.Status == service.JobStatusLoading {
		return m.theme.statusStyle().Render("[loading]") + " reading corpus and questions...\n"
	}

	var pct float64
	if s.Total > 0 {
		pct = float64(s.Progress) / float64(s.Total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", s.Status))
	counts := fmt.Sprintf("%d/%d questions", s.Progress, s.Total)
	if s.Failed > 0 {
		counts += m.theme.errorStyle().Render(fmt.Sprintf(" (%d failed)", s.Failed))
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop")
	if m.cancelling {
		hint = m.theme.hintStyle().Render("Stopping, waiting for in-flight requests...")
	}

	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

// finalView renders the completion message.
func (m progressModel) finalView() string {
	if m.err != nil && m.summary == nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("\n✗ Job failed: %s\n", m.err))
	}
	if m.cancelling {
		return m.theme.hintStyle().Render(fmt.Sprintf("\nJob %s stopped.\n", m.snap.ID))
	}
	return ""
}

// waitForJob delivers the job result as a message once finished is closed.
func waitForJob(finished <-chan struct{}, res *jobDoneMsg) tea.Cmd {
	return func() tea.Msg {
		<-finished
		return *res
	}
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// RunJobProgress runs job while showing an interactive progress bar.
// Ctrl+C cancels the job; the summary of the partial run is still returned.
func RunJobProgress(ctx context.Context, svc *service.CompressService, job *service.Job) (*service.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var res jobDoneMsg
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res.summary, res.err = svc.Run(ctx, job)
	}()

	model := newProgressModel(job, cancel, waitForJob(finished, &res))
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		// The UI failed; stop the job and wait so the output file is closed.
		cancel()
		<-finished
		return res.summary, fmt.Errorf("progress UI error: %w", err)
	}

	<-finished
	return res.summary, res.err
}

// printSummary renders the end-of-job report.
func printSummary(w io.Writer, theme Theme, s *service.Summary) {
	var b strings.Builder
	if s.Failed == 0 && s.NotAttempted == 0 {
		b.WriteString(theme.completedStyle().Render("✓ Completed") + "\n\n")
	} else {
		b.WriteString(theme.errorStyle().Render("✗ Completed with errors") + "\n\n")
	}

	fmt.Fprintf(&b, "  Job:            %s\n", s.JobID)
	fmt.Fprintf(&b, "  Documents:      %d\n", s.Documents)
	fmt.Fprintf(&b, "  Questions:      %d\n", s.Total)
	fmt.Fprintf(&b, "  Succeeded:      %d\n", s.Succeeded)
	fmt.Fprintf(&b, "  Failed:         %d\n", s.Failed)
	if s.NotAttempted > 0 {
		fmt.Fprintf(&b, "  Not attempted:  %d\n", s.NotAttempted)
	}
	fmt.Fprintf(&b, "  Records written: %d -> %s\n", s.Written, s.Output)
	fmt.Fprintf(&b, "  Elapsed:        %.1fs\n", s.Metrics.ElapsedSeconds)

	if len(s.Metrics.Endpoints) > 0 {
		b.WriteString("\n  Endpoints:\n")
		for _, e := range s.Metrics.Endpoints {
			fmt.Fprintf(&b, "    %s  requests=%d failed=%d avg=%.0fms max=%dms\n",
				e.Endpoint, e.Count, e.Failures, e.AvgTimeMs, e.MaxTimeMs)
		}
	}

	if len(s.Errors) > 0 {
		b.WriteString(theme.errorStyle().Render(fmt.Sprintf("\nFailures (%d, first %d shown):", s.Failed, len(s.Errors))) + "\n")
		for _, e := range s.Errors {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
	}

	fmt.Fprint(w, b.String())
}
