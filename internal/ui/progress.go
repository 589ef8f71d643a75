package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"puzzlemania/internal/update"
)

const (
	progressBarWidth = 40
	stopTimeout      = 500 * time.Millisecond
	lineStepPercent  = 25
)

// DownloadProgress shows the state of an artifact transfer.
type DownloadProgress interface {
	Start(label string)
	Report(written, total int64)
	Stop()
}

// NewDownloadProgress returns an animated display when out is a terminal and
// a line reporter otherwise.
func NewDownloadProgress(out io.Writer) DownloadProgress {
	if isTerminal(out) {
		return NewDownloadDisplay(out)
	}
	return NewLineProgress(out)
}

// ProgressHook drives p from engine state changes: it starts when the engine
// enters Downloading and stops when it leaves.
func ProgressHook(p DownloadProgress) func(from, to update.State) {
	return func(from, to update.State) {
		switch {
		case to == update.StateDownloading:
			p.Start("Downloading update")
		case from == update.StateDownloading:
			p.Stop()
		}
	}
}

type progressMsg struct {
	written int64
	total   int64
}

type progressDoneMsg struct{}

// downloadModel is the bubbletea model for the transfer line.
type downloadModel struct {
	spinner  spinner.Model
	progress progress.Model

	label   string
	written int64
	total   int64
	done    bool
}

func newDownloadModel(label string) *downloadModel {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = styleSpinner

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(progressBarWidth),
		progress.WithoutPercentage(),
	)

	return &downloadModel{spinner: s, progress: p, label: label}
}

func (m *downloadModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *downloadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.written = msg.written
		m.total = msg.total
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case progressDoneMsg:
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *downloadModel) View() string {
	if m.done {
		return ""
	}
	return m.line() + "\n"
}

func (m *downloadModel) line() string {
	if m.total > 0 {
		return m.progress.ViewAs(fraction(m.written, m.total)) + " " +
			styleProgressLabel.Render(fmt.Sprintf("%s / %s", humanize.IBytes(uint64(m.written)), humanize.IBytes(uint64(m.total))))
	}
	label := m.label
	if m.written > 0 {
		label = fmt.Sprintf("%s %s", label, humanize.IBytes(uint64(m.written)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.spinner.View(), " ", styleProgressLabel.Render(label))
}

func fraction(written, total int64) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(written) / float64(total)
	if f > 1 {
		return 1
	}
	return f
}

// DownloadDisplay runs an inline bubbletea program showing a progress bar
// when the size is known and a spinner otherwise.
type DownloadDisplay struct {
	out io.Writer

	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewDownloadDisplay creates a display writing to out.
func NewDownloadDisplay(out io.Writer) *DownloadDisplay {
	return &DownloadDisplay{out: out}
}

// Start shows the display. Calling it while running does nothing.
func (d *DownloadDisplay) Start(label string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.program != nil {
		return
	}

	program := tea.NewProgram(
		newDownloadModel(label),
		tea.WithOutput(d.out),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)
	done := make(chan struct{})
	go func() {
		_, _ = program.Run()
		close(done)
	}()
	d.program = program
	d.done = done
}

// Report forwards transfer progress to the running program.
func (d *DownloadDisplay) Report(written, total int64) {
	d.mu.Lock()
	program := d.program
	d.mu.Unlock()
	if program == nil {
		return
	}
	program.Send(progressMsg{written: written, total: total})
}

// Stop removes the display and waits briefly for the program to exit.
func (d *DownloadDisplay) Stop() {
	d.mu.Lock()
	program, done := d.program, d.done
	d.program, d.done = nil, nil
	d.mu.Unlock()
	if program == nil {
		return
	}

	program.Send(progressDoneMsg{})
	select {
	case <-done:
	case <-time.After(stopTimeout):
		program.Kill()
	}
}

// LineProgress prints a line at every quarter of a transfer with a known
// size, and a summary when it stops. It suits logs and pipes.
type LineProgress struct {
	out io.Writer

	mu      sync.Mutex
	running bool
	step    int
	written int64
	total   int64
}

// NewLineProgress creates a line reporter writing to out.
func NewLineProgress(out io.Writer) *LineProgress {
	return &LineProgress{out: out}
}

// Start implements DownloadProgress.
func (p *LineProgress) Start(label string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}
	p.running = true
	p.step, p.written, p.total = 0, 0, 0
	_, _ = fmt.Fprintf(p.out, "%s...\n", label)
}

// Report implements DownloadProgress.
func (p *LineProgress) Report(written, total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.written, p.total = written, total
	if total <= 0 {
		return
	}
	pct := int(fraction(written, total) * 100)
	step := pct / lineStepPercent
	if step <= p.step {
		return
	}
	p.step = step
	_, _ = fmt.Fprintf(p.out, "  %3d%% %s / %s\n", pct, humanize.IBytes(uint64(written)), humanize.IBytes(uint64(total)))
}

// Stop implements DownloadProgress.
func (p *LineProgress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	if p.written > 0 && (p.total <= 0 || p.written < p.total) {
		_, _ = fmt.Fprintf(p.out, "  %s received\n", humanize.IBytes(uint64(p.written)))
	}
}
