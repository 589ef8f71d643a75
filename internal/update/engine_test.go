package update

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "puzzlemania/internal/errors"
)

type scriptedConfirmer struct {
	answers []Answer
	prompts []Prompt
	block   chan struct{}
}

func (c *scriptedConfirmer) Confirm(ctx context.Context, p Prompt) (Answer, error) {
	c.prompts = append(c.prompts, p)
	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			return AnswerCancel, ctx.Err()
		}
	}
	if len(c.answers) == 0 {
		return AnswerCancel, nil
	}
	a := c.answers[0]
	c.answers = c.answers[1:]
	return a, nil
}

type noticeLog struct {
	mu      sync.Mutex
	notices []Notice
}

func (l *noticeLog) Notify(n Notice) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.notices = append(l.notices, n)
}

func (l *noticeLog) levels() []Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Level, len(l.notices))
	for i, n := range l.notices {
		out[i] = n.Level
	}
	return out
}

type memoryRecorder struct {
	attempts []Attempt
}

func (m *memoryRecorder) Record(_ context.Context, a Attempt) error {
	m.attempts = append(m.attempts, a)
	return nil
}

// releaseServer serves a manifest at /version.json and the artifact at /pm.
// The manifest is built per request so it can point back at the server.
type releaseServer struct {
	*httptest.Server
	manifestHits atomic.Int32
	artifactHits atomic.Int32
}

func newReleaseServer(t *testing.T, manifest func(base string) map[string]any, artifact []byte) *releaseServer {
	t.Helper()
	rs := &releaseServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/version.json", func(w http.ResponseWriter, r *http.Request) {
		rs.manifestHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(manifest("http://" + r.Host))
	})
	mux.HandleFunc("/pm", func(w http.ResponseWriter, r *http.Request) {
		rs.artifactHits.Add(1)
		_, _ = w.Write(artifact)
	})
	rs.Server = httptest.NewServer(mux)
	t.Cleanup(rs.Close)
	return rs
}

func staticManifest(m map[string]any) func(string) map[string]any {
	return func(string) map[string]any { return m }
}

// releaseManifest advertises version with a download url on the server.
func releaseManifest(version, digest string) func(string) map[string]any {
	return func(base string) map[string]any {
		m := map[string]any{"version": version, "url": base + "/pm"}
		if digest != "" {
			m["sha256"] = digest
		}
		return m
	}
}

type engineFixture struct {
	engine    *Engine
	target    string
	dir       string
	tmpDir    string
	confirmer *scriptedConfirmer
	notices   *noticeLog
	recorder  *memoryRecorder
	launcher  *fakeLauncher
	states    []State
}

func newEngineFixture(t *testing.T, rs *releaseServer, answers ...Answer) *engineFixture {
	t.Helper()
	dir := t.TempDir()
	f := &engineFixture{
		target:    writeTestFile(t, dir, "puzzlemania", []byte("version 1.0.2")),
		dir:       dir,
		tmpDir:    t.TempDir(),
		confirmer: &scriptedConfirmer{answers: answers},
		notices:   &noticeLog{},
		recorder:  &memoryRecorder{},
		launcher:  &fakeLauncher{},
	}
	f.engine = NewEngine(
		EngineConfig{CurrentVersion: "1.0.2", ManifestURL: rs.URL + "/version.json", FetchTimeout: time.Second, DownloadTimeout: 5 * time.Second},
		NewInstaller(f.target, WithLauncher(f.launcher)),
		f.confirmer,
		f.notices,
		WithFetcher(NewFetcher("1.0.2", WithHTTPClient(rs.Client()))),
		WithDownloader(NewDownloader("1.0.2", WithDownloaderHTTPClient(rs.Client()), WithDownloadDir(f.tmpDir))),
		WithRecorder(f.recorder),
		WithTransitionHook(func(_, to State) { f.states = append(f.states, to) }),
	)
	return f
}

func (f *engineFixture) dirEntries(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func (f *engineFixture) tempFiles(t *testing.T) []string {
	t.Helper()
	return tempFiles(t, f.tmpDir)
}

func TestRunUpToDate(t *testing.T) {
	rs := newReleaseServer(t, staticManifest(map[string]any{"version": "1.0.2", "url": "/pm"}), nil)
	f := newEngineFixture(t, rs)

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateUpToDate, out.State)
	assert.Equal(t, int32(1), rs.manifestHits.Load())
	assert.Equal(t, int32(0), rs.artifactHits.Load())
	assert.Empty(t, f.confirmer.prompts)
	assert.Equal(t, []string{"puzzlemania"}, f.dirEntries(t))
	assert.Empty(t, f.tempFiles(t))
	assert.Equal(t, []Level{LevelInfo}, f.notices.levels())
	assert.Equal(t, []State{StateChecking, StateDescriptorReady, StateUpToDate}, f.states)

	require.Len(t, f.recorder.attempts, 1)
	assert.Equal(t, StateUpToDate, f.recorder.attempts[0].State)
}

func TestRunGarbledRemoteVersionIsUpToDate(t *testing.T) {
	rs := newReleaseServer(t, staticManifest(map[string]any{"version": "2.0.0-final", "url": "/pm"}), nil)
	f := newEngineFixture(t, rs)

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateUpToDate, out.State)
	assert.Equal(t, int32(0), rs.artifactHits.Load())
}

func TestRunReplaceInPlaceEndToEnd(t *testing.T) {
	payload := []byte("version 2.0.0 binary")
	rs := newReleaseServer(t, func(base string) map[string]any {
		return map[string]any{
			"version": "2.0.0",
			"url":     base + "/pm",
			"sha256":  sha256Hex(payload),
			"notes":   "Faster solver",
		}
	}, payload)
	f := newEngineFixture(t, rs, AnswerYes, AnswerNo)

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.Equal(t, ModeReplace, out.Mode)
	assert.True(t, out.Verified)
	assert.False(t, out.ExitRequested)

	got, err := os.ReadFile(f.target)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	bak, err := os.ReadFile(f.target + ".bak")
	require.NoError(t, err)
	assert.Equal(t, "version 1.0.2", string(bak))

	require.Len(t, f.confirmer.prompts, 2)
	assert.Equal(t, PromptDownload, f.confirmer.prompts[0].Kind)
	assert.Equal(t, "2.0.0", f.confirmer.prompts[0].NewVersion)
	assert.Equal(t, "Faster solver", f.confirmer.prompts[0].Notes)
	assert.Equal(t, PromptApply, f.confirmer.prompts[1].Kind)
	assert.True(t, f.confirmer.prompts[1].AllowNo)

	assert.ElementsMatch(t, []string{"puzzlemania", "puzzlemania.bak"}, f.dirEntries(t))
	assert.Empty(t, f.tempFiles(t))
	assert.Equal(t, []State{
		StateChecking, StateDescriptorReady, StateDownloadConfirmPending, StateDownloading,
		StateVerifying, StateApplyConfirmPending, StateApplying, StateDone,
	}, f.states)

	require.Len(t, f.recorder.attempts, 1)
	rec := f.recorder.attempts[0]
	assert.Equal(t, StateDone, rec.State)
	assert.Equal(t, "2.0.0", rec.RemoteVersion)
	assert.Equal(t, ModeReplace, rec.Mode)
	assert.Equal(t, f.target+".bak", rec.BackupPath)
	assert.True(t, rec.Verified)
}

func TestRunReplaceWithoutBackupWarns(t *testing.T) {
	payload := []byte("version 2.0.0 binary")
	rs := newReleaseServer(t, releaseManifest("2.0.0", sha256Hex(payload)), payload)
	f := newEngineFixture(t, rs, AnswerYes, AnswerNo)
	require.NoError(t, os.Mkdir(f.target+".bak", 0o755))

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, out.State)
	require.NotNil(t, out.Replace)
	assert.Error(t, out.Replace.BackupErr)

	got, err := os.ReadFile(f.target)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	var warned bool
	for _, n := range f.notices.notices {
		if n.Level == LevelWarning && n.Title == "No backup" {
			warned = true
		}
	}
	assert.True(t, warned, "expected a No backup warning, got %+v", f.notices.notices)
	assert.Equal(t, []Level{LevelWarning, LevelSuccess}, f.notices.levels())

	require.Len(t, f.recorder.attempts, 1)
	assert.Empty(t, f.recorder.attempts[0].BackupPath)
}

func TestRunNonAtomicReplaceWithoutBackupDoesNotNameIt(t *testing.T) {
	payload := []byte("version 2.0.0 binary")
	rs := newReleaseServer(t, releaseManifest("2.0.0", sha256Hex(payload)), payload)
	f := newEngineFixture(t, rs, AnswerYes, AnswerNo)
	require.NoError(t, os.Mkdir(f.target+".bak", 0o755))

	orig := renameFile
	renameFile = func(src, dst string) error {
		if dst == f.target {
			return &os.LinkError{Op: "rename", Old: src, New: dst, Err: os.ErrPermission}
		}
		return orig(src, dst)
	}
	defer func() { renameFile = orig }()

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	require.True(t, out.Replace.NonAtomic)

	var copied bool
	for _, n := range f.notices.notices {
		if n.Title == "Replaced by copy" {
			copied = true
			assert.NotContains(t, n.Message, ".bak", "warning points at a backup that was not written")
		}
	}
	assert.True(t, copied, "expected a Replaced by copy warning")
}

func TestRunLaunchSideBySide(t *testing.T) {
	payload := []byte("version 2.0.0 binary")
	rs := newReleaseServer(t, releaseManifest("2.0.0", ""), payload)
	f := newEngineFixture(t, rs, AnswerYes, AnswerYes)

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, out.State)
	assert.True(t, out.ExitRequested)
	assert.False(t, out.Verified)
	require.NotNil(t, out.Launch)

	versioned := filepath.Join(f.dir, "puzzlemania_v2.0.0")
	assert.Equal(t, versioned, out.Launch.Path)
	assert.Equal(t, []string{versioned}, f.launcher.launched)

	original, err := os.ReadFile(f.target)
	require.NoError(t, err)
	assert.Equal(t, "version 1.0.2", string(original))

	// Missing digest warns, success follows.
	assert.Equal(t, []Level{LevelWarning, LevelSuccess}, f.notices.levels())
}

func TestRunIntegrityMismatch(t *testing.T) {
	rs := newReleaseServer(t, releaseManifest("2.0.0", sha256Hex([]byte("genuine"))), []byte("tampered"))
	f := newEngineFixture(t, rs, AnswerYes, AnswerNo)

	out, err := f.engine.Run(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeIntegrity))
	assert.Equal(t, StateAborted, out.State)

	assert.Empty(t, f.tempFiles(t))
	got, err := os.ReadFile(f.target)
	require.NoError(t, err)
	assert.Equal(t, "version 1.0.2", string(got))
	assert.Equal(t, []string{"puzzlemania"}, f.dirEntries(t))
	// Only the download prompt was shown.
	assert.Len(t, f.confirmer.prompts, 1)
	assert.Equal(t, []Level{LevelError}, f.notices.levels())

	require.Len(t, f.recorder.attempts, 1)
	assert.Equal(t, apperrors.CodeIntegrity, f.recorder.attempts[0].ErrorCode)
}

func TestRunDeclinedDownload(t *testing.T) {
	rs := newReleaseServer(t, releaseManifest("2.0.0", ""), []byte("x"))
	f := newEngineFixture(t, rs, AnswerNo)

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Declined)
	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, int32(0), rs.artifactHits.Load())
	assert.Empty(t, f.tempFiles(t))
}

func TestRunCancelAtApply(t *testing.T) {
	rs := newReleaseServer(t, releaseManifest("2.0.0", ""), []byte("x"))
	f := newEngineFixture(t, rs, AnswerYes, AnswerCancel)

	out, err := f.engine.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, out.Declined)
	assert.Empty(t, f.tempFiles(t))
	assert.Equal(t, []string{"puzzlemania"}, f.dirEntries(t))
	assert.Empty(t, f.launcher.launched)
}

func TestRunNewerWithoutURL(t *testing.T) {
	rs := newReleaseServer(t, staticManifest(map[string]any{"version": "9.9.9"}), nil)
	f := newEngineFixture(t, rs)

	out, err := f.engine.Run(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeManifest), "got %v", err)
	assert.Equal(t, StateAborted, out.State)
	assert.Empty(t, f.confirmer.prompts)
}

func TestRunNetworkFailure(t *testing.T) {
	rs := newReleaseServer(t, staticManifest(nil), nil)
	f := newEngineFixture(t, rs)
	rs.Close()

	out, err := f.engine.Run(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNetwork), "got %v", err)
	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, []Level{LevelError}, f.notices.levels())
}

func TestRunRejectsConcurrentAttempt(t *testing.T) {
	rs := newReleaseServer(t, releaseManifest("2.0.0", ""), []byte("x"))
	f := newEngineFixture(t, rs, AnswerNo)
	f.confirmer.block = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.engine.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return rs.manifestHits.Load() == 1 && f.engine.running.Load() }, 2*time.Second, 10*time.Millisecond)

	_, err := f.engine.Run(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpdateInProgress), "got %v", err)
	_, err = f.engine.Check(context.Background())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeUpdateInProgress), "got %v", err)

	close(f.confirmer.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), rs.manifestHits.Load())
}

func TestRunCancelledWhileConfirming(t *testing.T) {
	rs := newReleaseServer(t, releaseManifest("2.0.0", ""), []byte("x"))
	f := newEngineFixture(t, rs, AnswerYes)
	f.confirmer.block = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	out, err := f.engine.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateAborted, out.State)
	assert.Empty(t, f.tempFiles(t))
}

func TestCheck(t *testing.T) {
	rs := newReleaseServer(t, staticManifest(map[string]any{"version": "1.1.0", "url": "/pm", "notes": "new"}), nil)
	f := newEngineFixture(t, rs)

	res, err := f.engine.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, res.UpdateAvailable)
	assert.Equal(t, "1.1.0", res.Descriptor.Version)
	assert.Equal(t, "1.0.2", res.CurrentVersion)
	assert.Empty(t, f.recorder.attempts)
	assert.Empty(t, f.notices.levels())
	assert.Equal(t, int32(0), rs.artifactHits.Load())
}
