package ui

import (
	"bytes"
	"strings"
	"testing"

	"puzzlemania/internal/update"
)

func TestConsoleNotifierRoutesByLevel(t *testing.T) {
	var out, errOut bytes.Buffer
	n := NewConsoleNotifier(&out, &errOut)

	n.Notify(update.Notice{Level: update.LevelSuccess, Title: "Update installed", Message: "Restart PuzzleMania to use version 1.4.0."})
	n.Notify(update.Notice{Level: update.LevelError, Title: "Download failed", Message: "connection reset"})
	n.Notify(update.Notice{Level: update.LevelWarning, Title: "Not verified"})

	stdout := stripANSI(out.String())
	if !strings.Contains(stdout, "✔ Update installed") || !strings.Contains(stdout, "  Restart PuzzleMania") {
		t.Fatalf("unexpected stdout:\n%s", stdout)
	}
	stderr := stripANSI(errOut.String())
	if !strings.Contains(stderr, "✖ Download failed") || !strings.Contains(stderr, "connection reset") {
		t.Fatalf("unexpected stderr:\n%s", stderr)
	}
	if !strings.Contains(stderr, "⚠ Not verified") {
		t.Fatalf("warnings should go to stderr:\n%s", stderr)
	}
	if strings.Contains(stdout, "Download failed") {
		t.Fatalf("errors should not reach stdout")
	}
}

func TestConsoleNotifierSingleWriter(t *testing.T) {
	var out bytes.Buffer
	n := NewConsoleNotifier(&out, nil)
	n.Notify(update.Notice{Level: update.LevelError, Title: "Boom"})
	if !strings.Contains(stripANSI(out.String()), "Boom") {
		t.Fatalf("nil errOut should fall back to out")
	}
}

func TestFormatNoticeWrapsMessage(t *testing.T) {
	msg := strings.Repeat("word ", 40)
	got := stripANSI(formatNotice(update.Notice{Level: update.LevelInfo, Title: "Info", Message: msg}, 40))

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) < 3 {
		t.Fatalf("expected wrapped lines, got %q", got)
	}
	for _, l := range lines[1:] {
		if !strings.HasPrefix(l, "  ") {
			t.Fatalf("message lines should be indented: %q", l)
		}
		if len(l) > 40 {
			t.Fatalf("line too long (%d): %q", len(l), l)
		}
	}
}
