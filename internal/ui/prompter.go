package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"puzzlemania/internal/config"
	"puzzlemania/internal/update"
)

const plainWrapWidth = 76

// ConfirmerOptions selects and configures a Confirmer.
type ConfirmerOptions struct {
	// Mode is one of config.PromptModeAuto, PromptModeTUI or PromptModePlain.
	Mode string
	// Format is the release notes style for the dialog.
	Format string
	In     io.Reader
	Out    io.Writer
}

// NewConfirmer returns the confirmer for opts. Auto mode uses the dialog when
// both ends are terminals and falls back to line prompts otherwise.
func NewConfirmer(opts ConfirmerOptions) update.Confirmer {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	switch opts.Mode {
	case config.PromptModeTUI:
		return NewTUIConfirmer(opts.In, opts.Out, opts.Format)
	case config.PromptModePlain:
		return NewPlainConfirmer(opts.In, opts.Out)
	}
	if isTerminal(opts.In) && isTerminal(opts.Out) {
		return NewTUIConfirmer(opts.In, opts.Out, opts.Format)
	}
	return NewPlainConfirmer(opts.In, opts.Out)
}

func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	return ok && term.IsTerminal(int(f.Fd()))
}

// TUIConfirmer shows each prompt as a bubbletea dialog.
type TUIConfirmer struct {
	in     io.Reader
	out    io.Writer
	format string
}

// NewTUIConfirmer creates a dialog-based confirmer.
func NewTUIConfirmer(in io.Reader, out io.Writer, format string) *TUIConfirmer {
	return &TUIConfirmer{in: in, out: out, format: format}
}

// Confirm implements update.Confirmer.
func (c *TUIConfirmer) Confirm(ctx context.Context, p update.Prompt) (update.Answer, error) {
	dialog := NewConfirmDialog(p, c.format)
	program := tea.NewProgram(dialog,
		tea.WithContext(ctx),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
	)
	if _, err := program.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return update.AnswerCancel, ctxErr
		}
		return update.AnswerCancel, fmt.Errorf("confirmation dialog: %w", err)
	}
	return dialog.Answer(), nil
}

type lineResult struct {
	line string
	err  error
}

// PlainConfirmer asks on a line-oriented stream. End of input answers Cancel.
// Close it once no more prompts will be shown.
type PlainConfirmer struct {
	in  *bufio.Reader
	out io.Writer

	once      sync.Once
	closeOnce sync.Once
	lines     chan lineResult
	done      chan struct{}
	stopped   chan struct{}
}

// NewPlainConfirmer creates a line-prompt confirmer.
func NewPlainConfirmer(in io.Reader, out io.Writer) *PlainConfirmer {
	return &PlainConfirmer{
		in:      bufio.NewReader(in),
		out:     out,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Close stops the line reader. A reader blocked on input exits after its
// next line or end of input; nothing it reads afterwards is delivered.
func (c *PlainConfirmer) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// readLines runs until Close so a prompt abandoned on cancellation does not
// lose the next line.
func (c *PlainConfirmer) readLines() {
	defer close(c.stopped)
	defer close(c.lines)
	send := func(r lineResult) bool {
		select {
		case c.lines <- r:
			return true
		case <-c.done:
			return false
		}
	}
	for {
		line, err := c.in.ReadString('\n')
		if line != "" || err == nil {
			if !send(lineResult{line: line}) {
				return
			}
		}
		if err != nil {
			send(lineResult{err: err})
			return
		}
	}
}

func (c *PlainConfirmer) next(ctx context.Context) (string, error) {
	select {
	case <-c.done:
		return "", io.EOF
	default:
	}
	c.once.Do(func() {
		c.lines = make(chan lineResult)
		go c.readLines()
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.done:
		return "", io.EOF
	case r, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return r.line, r.err
	}
}

// Confirm implements update.Confirmer.
func (c *PlainConfirmer) Confirm(ctx context.Context, p update.Prompt) (update.Answer, error) {
	fmt.Fprint(c.out, formatPlainPrompt(p))
	choices := plainChoices(p)
	for {
		fmt.Fprintf(c.out, "%s> ", choices)
		line, err := c.next(ctx)
		if err != nil {
			fmt.Fprintln(c.out)
			if errors.Is(err, io.EOF) {
				return update.AnswerCancel, nil
			}
			return update.AnswerCancel, err
		}
		if answer, ok := parseAnswer(line, p.AllowNo); ok {
			return answer, nil
		}
		fmt.Fprintf(c.out, "Please answer %s.\n", answerHint(p.AllowNo))
	}
}

func formatPlainPrompt(p update.Prompt) string {
	var b strings.Builder
	title := p.Title
	if title == "" {
		title = "Update"
	}
	fmt.Fprintf(&b, "\n%s\n", title)
	if p.Message != "" {
		fmt.Fprintf(&b, "%s\n", wordwrap.String(p.Message, plainWrapWidth))
	}
	field := func(label, value string) {
		fmt.Fprintf(&b, "  %-9s %s\n", label+":", value)
	}
	if p.DownloadURL != "" {
		field("Source", p.DownloadURL)
	}
	if p.Kind != update.PromptRestore {
		if p.Digest != "" {
			field("SHA-256", p.Digest)
		} else {
			field("SHA-256", "not provided, download cannot be verified")
		}
	}
	if p.Path != "" {
		field("File", p.Path)
	}
	if notes := strings.TrimSpace(p.Notes); notes != "" {
		b.WriteString("\nRelease notes:\n")
		for _, l := range strings.Split(wordwrap.String(notes, plainWrapWidth-2), "\n") {
			fmt.Fprintf(&b, "  %s\n", l)
		}
	}
	b.WriteString("\n")
	return b.String()
}

func plainChoices(p update.Prompt) string {
	yes, no, cancel := labelsFor(p)
	parts := []string{"[y] " + yes}
	if p.AllowNo {
		parts = append(parts, "[n] "+no)
	}
	parts = append(parts, "[c] "+cancel)
	return strings.Join(parts, "  ") + " "
}

func answerHint(allowNo bool) string {
	if allowNo {
		return "y, n or c"
	}
	return "y or c"
}

func parseAnswer(line string, allowNo bool) (update.Answer, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return update.AnswerYes, true
	case "n", "no":
		if allowNo {
			return update.AnswerNo, true
		}
		return update.AnswerCancel, false
	case "c", "cancel", "q", "quit":
		return update.AnswerCancel, true
	}
	return update.AnswerCancel, false
}

// AutoConfirmer answers every prompt without asking. Apply prompts are
// answered according to Mode.
type AutoConfirmer struct {
	Mode string
	Out  io.Writer
}

// Confirm implements update.Confirmer.
func (c AutoConfirmer) Confirm(ctx context.Context, p update.Prompt) (update.Answer, error) {
	if err := ctx.Err(); err != nil {
		return update.AnswerCancel, err
	}
	answer := update.AnswerYes
	if p.Kind == update.PromptApply && c.Mode != update.ModeLaunch {
		answer = update.AnswerNo
	}
	if c.Out != nil {
		fmt.Fprintf(c.Out, "%s: %s\n", p.Title, autoLabel(p, answer))
	}
	return answer, nil
}

func autoLabel(p update.Prompt, a update.Answer) string {
	yes, no, _ := labelsFor(p)
	if a == update.AnswerNo {
		return no
	}
	return yes
}
