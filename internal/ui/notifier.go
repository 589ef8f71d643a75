package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/muesli/reflow/wordwrap"

	"puzzlemania/internal/update"
)

// ConsoleNotifier prints notices as an icon, a bold title and a wrapped
// message. Errors and warnings go to errOut.
type ConsoleNotifier struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	width  int
}

// NewConsoleNotifier creates a notifier writing to out and errOut.
func NewConsoleNotifier(out, errOut io.Writer) *ConsoleNotifier {
	if errOut == nil {
		errOut = out
	}
	return &ConsoleNotifier{out: out, errOut: errOut, width: plainWrapWidth}
}

// Notify implements update.Notifier.
func (n *ConsoleNotifier) Notify(notice update.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()

	w := n.out
	if notice.Level == update.LevelError || notice.Level == update.LevelWarning {
		w = n.errOut
	}
	_, _ = fmt.Fprint(w, formatNotice(notice, n.width))
}

func formatNotice(notice update.Notice, width int) string {
	icon, style := noticeStyle(notice.Level)
	var b strings.Builder
	head := icon
	if notice.Title != "" {
		head += " " + notice.Title
	}
	b.WriteString(style.Render(head))
	b.WriteString("\n")
	if msg := strings.TrimSpace(notice.Message); msg != "" {
		for _, line := range strings.Split(wordwrap.String(msg, width-2), "\n") {
			b.WriteString("  ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}
