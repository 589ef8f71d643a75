package ui

import (
	"bytes"
	"strings"
	"testing"

	"puzzlemania/internal/update"
)

type recordingProgress struct {
	events []string
}

func (r *recordingProgress) Start(label string)          { r.events = append(r.events, "start:"+label) }
func (r *recordingProgress) Report(written, total int64) { r.events = append(r.events, "report") }
func (r *recordingProgress) Stop()                       { r.events = append(r.events, "stop") }

func TestProgressHookFollowsDownloadingState(t *testing.T) {
	rec := &recordingProgress{}
	hook := ProgressHook(rec)

	hook(update.StateIdle, update.StateChecking)
	hook(update.StateDownloadConfirmPending, update.StateDownloading)
	hook(update.StateDownloading, update.StateVerifying)
	hook(update.StateVerifying, update.StateApplyConfirmPending)

	want := []string{"start:Downloading update", "stop"}
	if strings.Join(rec.events, ",") != strings.Join(want, ",") {
		t.Fatalf("expected %v, got %v", want, rec.events)
	}
}

func TestProgressHookStopsOnAbort(t *testing.T) {
	rec := &recordingProgress{}
	hook := ProgressHook(rec)

	hook(update.StateDownloadConfirmPending, update.StateDownloading)
	hook(update.StateDownloading, update.StateAborted)

	if len(rec.events) != 2 || rec.events[1] != "stop" {
		t.Fatalf("expected stop after abort, got %v", rec.events)
	}
}

func TestLineProgressKnownSize(t *testing.T) {
	var out bytes.Buffer
	p := NewLineProgress(&out)

	p.Report(10, 100) // before Start
	p.Start("Downloading update")
	p.Report(256, 1024)
	p.Report(300, 1024)
	p.Report(1024, 1024)
	p.Stop()

	want := "Downloading update...\n" +
		"   25% 256 B / 1.0 KiB\n" +
		"  100% 1.0 KiB / 1.0 KiB\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", out.String(), want)
	}
}

func TestLineProgressUnknownSize(t *testing.T) {
	var out bytes.Buffer
	p := NewLineProgress(&out)

	p.Start("Downloading update")
	p.Report(1024, -1)
	p.Report(2048, -1)
	p.Stop()
	p.Stop()

	want := "Downloading update...\n  2.0 KiB received\n"
	if out.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", out.String(), want)
	}
}

func TestLineProgressRestart(t *testing.T) {
	var out bytes.Buffer
	p := NewLineProgress(&out)

	p.Start("first")
	p.Report(100, 100)
	p.Stop()
	p.Start("second")
	p.Report(50, 100)
	p.Stop()

	if !strings.Contains(out.String(), "   50% 50 B / 100 B\n") {
		t.Fatalf("second transfer should report from zero:\n%s", out.String())
	}
}

func TestDownloadModelView(t *testing.T) {
	m := newDownloadModel("Downloading update")

	m.Update(progressMsg{written: 512, total: -1})
	if view := stripANSI(m.View()); !strings.Contains(view, "Downloading update 512 B") {
		t.Fatalf("spinner view missing byte count: %q", view)
	}

	m.Update(progressMsg{written: 1024, total: 2048})
	if view := stripANSI(m.View()); !strings.Contains(view, "1.0 KiB / 2.0 KiB") {
		t.Fatalf("bar view missing sizes: %q", view)
	}

	_, cmd := m.Update(progressDoneMsg{})
	if cmd == nil {
		t.Fatalf("done should quit the program")
	}
	if m.View() != "" {
		t.Fatalf("finished display should render nothing")
	}
}

func TestFraction(t *testing.T) {
	if fraction(5, 0) != 0 {
		t.Fatalf("unknown total should be zero")
	}
	if fraction(150, 100) != 1 {
		t.Fatalf("fraction should clamp to 1")
	}
	if fraction(25, 100) != 0.25 {
		t.Fatalf("expected 0.25")
	}
}
