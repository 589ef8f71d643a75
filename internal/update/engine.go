package update

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "puzzlemania/internal/errors"
)

// EngineConfig holds the values an Engine needs from configuration.
type EngineConfig struct {
	CurrentVersion  string
	ManifestURL     string
	FetchTimeout    time.Duration
	DownloadTimeout time.Duration
}

// Attempt is the record of one finished update run.
type Attempt struct {
	StartedAt      time.Time
	FinishedAt     time.Time
	CurrentVersion string
	RemoteVersion  string
	State          State
	Mode           string
	Declined       bool
	Verified       bool
	Digest         string
	ErrorCode      apperrors.Code
	ErrorMessage   string
	Target         string
	BackupPath     string
	InstalledPath  string
}

// Recorder persists finished attempts.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// Outcome is the result of Run.
type Outcome struct {
	State          State
	CurrentVersion string
	Descriptor     *ReleaseDescriptor
	Mode           string
	Declined       bool
	Verified       bool
	// ExitRequested is set after a side-by-side launch: the new version is
	// running and this instance should close.
	ExitRequested bool
	Launch        *LaunchResult
	Replace       *ReplaceResult
}

// CheckResult is the result of Check.
type CheckResult struct {
	CurrentVersion  string
	Descriptor      *ReleaseDescriptor
	UpdateAvailable bool
	CheckedAt       time.Time
}

// Engine drives one update attempt at a time through fetch, compare,
// confirm, download, verify, confirm and apply.
type Engine struct {
	cfg          EngineConfig
	fetcher      *Fetcher
	downloader   *Downloader
	installer    *Installer
	confirmer    Confirmer
	notifier     Notifier
	recorder     Recorder
	onTransition func(from, to State)
	logger       *zap.Logger
	now          func() time.Time
	running      atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithFetcher replaces the default manifest fetcher.
func WithFetcher(f *Fetcher) EngineOption {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithDownloader replaces the default artifact downloader.
func WithDownloader(d *Downloader) EngineOption {
	return func(e *Engine) {
		e.downloader = d
	}
}

// WithRecorder records every finished run.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithTransitionHook is called on every state change.
func WithTransitionHook(fn func(from, to State)) EngineOption {
	return func(e *Engine) {
		e.onTransition = fn
	}
}

// WithEngineLogger sets the logger.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an update engine.
func NewEngine(cfg EngineConfig, installer *Installer, confirmer Confirmer, notifier Notifier, opts ...EngineOption) *Engine {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	e := &Engine{
		cfg:       cfg,
		installer: installer,
		confirmer: confirmer,
		notifier:  notifier,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.fetcher == nil {
		e.fetcher = NewFetcher(cfg.CurrentVersion, WithFetcherLogger(e.logger))
	}
	if e.downloader == nil {
		e.downloader = NewDownloader(cfg.CurrentVersion, WithDownloaderLogger(e.logger))
	}
	return e
}

// Check fetches the manifest and compares versions. It never downloads.
func (e *Engine) Check(ctx context.Context) (*CheckResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrUpdateInProgress
	}
	defer e.running.Store(false)

	r := e.newRun()
	if err := r.to(StateChecking); err != nil {
		return nil, err
	}
	desc, err := e.fetcher.Fetch(ctx, e.cfg.ManifestURL, e.cfg.FetchTimeout)
	if err != nil {
		_ = r.to(StateAborted)
		return nil, err
	}
	if err := r.to(StateDescriptorReady); err != nil {
		return nil, err
	}
	res := &CheckResult{
		CurrentVersion:  e.cfg.CurrentVersion,
		Descriptor:      desc,
		UpdateAvailable: IsNewer(desc.Version, e.cfg.CurrentVersion),
		CheckedAt:       e.now(),
	}
	if !res.UpdateAvailable {
		_ = r.to(StateUpToDate)
	}
	return res, nil
}

// Run performs one full update attempt. Declining a prompt is not an error:
// the outcome reports Declined and err is nil. Every failure removes the
// downloaded file and leaves the running executable as it was, except for
// the non-atomic fallback described on ReplaceInPlace.
func (e *Engine) Run(ctx context.Context) (*Outcome, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrUpdateInProgress
	}
	defer e.running.Store(false)

	r := e.newRun()
	defer r.record(ctx)
	current := e.cfg.CurrentVersion

	if err := r.to(StateChecking); err != nil {
		return r.abort(err, "")
	}
	desc, err := e.fetcher.Fetch(ctx, e.cfg.ManifestURL, e.cfg.FetchTimeout)
	if err != nil {
		return r.abort(err, "Update check failed")
	}
	r.out.Descriptor = desc
	r.attempt.RemoteVersion = desc.Version
	r.attempt.Digest = desc.Digest
	if err := r.to(StateDescriptorReady); err != nil {
		return r.abort(err, "")
	}

	if !IsNewer(desc.Version, current) {
		if err := r.to(StateUpToDate); err != nil {
			return r.abort(err, "")
		}
		e.notify(LevelInfo, "No update", fmt.Sprintf("No update found (running %s, latest is %s).", current, desc.Version))
		return r.out, nil
	}
	if desc.DownloadURL == "" {
		return r.abort(manifestError(fmt.Sprintf("manifest advertises %s but has no download url", desc.Version), nil), "Update check failed")
	}

	if err := r.to(StateDownloadConfirmPending); err != nil {
		return r.abort(err, "")
	}
	answer, err := e.confirmer.Confirm(ctx, Prompt{
		Kind:           PromptDownload,
		Title:          "Update available",
		Message:        fmt.Sprintf("PuzzleMania %s is available (you have %s). Download and install it?", desc.Version, current),
		CurrentVersion: current,
		NewVersion:     desc.Version,
		Notes:          desc.Notes,
		DownloadURL:    desc.DownloadURL,
		Digest:         desc.Digest,
		YesLabel:       "Download",
		CancelLabel:    "Not now",
	})
	if err != nil {
		return r.abort(fmt.Errorf("confirm download: %w", err), "Update cancelled")
	}
	if answer != AnswerYes {
		return r.decline("Update skipped. You can update later with 'puzzlemania update'.")
	}

	if err := r.to(StateDownloading); err != nil {
		return r.abort(err, "")
	}
	artifact, err := e.downloader.Download(ctx, desc.DownloadURL, e.cfg.DownloadTimeout)
	if err != nil {
		return r.abort(err, "Download failed")
	}
	r.artifact = artifact

	if err := r.to(StateVerifying); err != nil {
		return r.abort(err, "")
	}
	if desc.HasDigest() {
		if err := CheckIntegrity(artifact.Path(), desc.Digest); err != nil {
			return r.abort(err, "Integrity check failed")
		}
		r.out.Verified = true
		r.attempt.Verified = true
	} else {
		e.notify(LevelWarning, "Not verified", "The release manifest has no SHA-256 digest, so the download could not be verified.")
	}

	if err := r.to(StateApplyConfirmPending); err != nil {
		return r.abort(err, "")
	}
	answer, err = e.confirmer.Confirm(ctx, Prompt{
		Kind:           PromptApply,
		Title:          "Install update",
		Message:        fmt.Sprintf("PuzzleMania %s downloaded. Run it now next to this version, or replace this version?", desc.Version),
		CurrentVersion: current,
		NewVersion:     desc.Version,
		DownloadURL:    desc.DownloadURL,
		Digest:         desc.Digest,
		Path:           artifact.Path(),
		YesLabel:       "Run new version",
		NoLabel:        "Replace this version",
		CancelLabel:    "Cancel",
		AllowNo:        true,
	})
	if err != nil {
		return r.abort(fmt.Errorf("confirm install: %w", err), "Update cancelled")
	}
	switch answer {
	case AnswerYes:
		r.setMode(ModeLaunch)
	case AnswerNo:
		r.setMode(ModeReplace)
	default:
		return r.decline("Update cancelled. The current version was kept.")
	}

	if err := r.to(StateApplying); err != nil {
		return r.abort(err, "")
	}
	r.attempt.Target = e.installer.Target()
	if r.out.Mode == ModeLaunch {
		res, err := e.installer.LaunchSideBySide(ctx, artifact, desc.Version)
		r.out.Launch = res
		if res != nil {
			r.attempt.InstalledPath = res.Path
		}
		if err != nil {
			msg := ""
			if res != nil {
				msg = fmt.Sprintf("The new version was saved to %s but could not be started.", res.Path)
			}
			return r.abortWith(err, "Install failed", msg)
		}
		r.out.ExitRequested = true
		if err := r.to(StateDone); err != nil {
			return r.abort(err, "")
		}
		e.notify(LevelSuccess, "Update started", fmt.Sprintf("PuzzleMania %s started (%s). This instance will close.", desc.Version, res.Path))
		return r.out, nil
	}

	res, err := e.installer.ReplaceInPlace(ctx, artifact)
	r.out.Replace = res
	if res != nil && res.BackupWritten() {
		r.attempt.BackupPath = res.BackupPath
	}
	if err != nil {
		msg := ""
		if res != nil && res.NonAtomic && res.BackupWritten() {
			msg = fmt.Sprintf("The executable may be damaged. Run 'puzzlemania restore' to put back %s.", res.BackupPath)
		}
		return r.abortWith(err, "Install failed", msg)
	}
	r.attempt.InstalledPath = res.Target
	if err := r.to(StateDone); err != nil {
		return r.abort(err, "")
	}
	if res.BackupErr != nil {
		e.notify(LevelWarning, "No backup", fmt.Sprintf("Could not save a backup of the previous version: %v", res.BackupErr))
	}
	if res.NonAtomic && res.BackupWritten() {
		e.notify(LevelWarning, "Replaced by copy", fmt.Sprintf("The executable was overwritten in place. Keep %s until %s has been confirmed to work.", res.BackupPath, desc.Version))
	} else if res.NonAtomic {
		e.notify(LevelWarning, "Replaced by copy", "The executable was overwritten in place.")
	}
	e.notify(LevelSuccess, "Update installed", fmt.Sprintf("Replacement done. Restart PuzzleMania to use version %s.", desc.Version))
	return r.out, nil
}

func (e *Engine) notify(level Level, title, msg string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(Notice{Level: level, Title: title, Message: msg})
}

// run tracks the state of a single attempt.
type run struct {
	e        *Engine
	state    State
	out      *Outcome
	attempt  Attempt
	artifact *Artifact
}

func (e *Engine) newRun() *run {
	return &run{
		e:     e,
		state: StateIdle,
		out:   &Outcome{State: StateIdle, CurrentVersion: e.cfg.CurrentVersion},
		attempt: Attempt{
			StartedAt:      e.now(),
			CurrentVersion: e.cfg.CurrentVersion,
		},
	}
}

func (r *run) to(next State) error {
	if err := r.state.CanTransitionTo(next); err != nil {
		return err
	}
	prev := r.state
	r.state = next
	r.out.State = next
	r.attempt.State = next
	r.e.logger.Debug("update state", zap.String("from", string(prev)), zap.String("state", string(next)))
	if r.e.onTransition != nil {
		r.e.onTransition(prev, next)
	}
	return nil
}

func (r *run) setMode(mode string) {
	r.out.Mode = mode
	r.attempt.Mode = mode
}

func (r *run) discard() {
	if r.artifact == nil {
		return
	}
	if err := r.artifact.Discard(); err != nil {
		r.e.logger.Warn("failed to remove downloaded file", zap.String("path", r.artifact.Path()), zap.Error(err))
	}
}

// abort discards the artifact, moves to Aborted and reports err.
func (r *run) abort(err error, title string) (*Outcome, error) {
	return r.abortWith(err, title, "")
}

func (r *run) abortWith(err error, title, extra string) (*Outcome, error) {
	r.discard()
	if r.state != StateAborted {
		if terr := r.to(StateAborted); terr != nil {
			r.state = StateAborted
			r.out.State = StateAborted
			r.attempt.State = StateAborted
		}
	}
	r.attempt.ErrorCode = apperrors.CodeOf(err)
	r.attempt.ErrorMessage = err.Error()
	r.e.logger.Warn("update aborted", zap.String("code", string(r.attempt.ErrorCode)), zap.Error(err))

	if title != "" {
		msg := noticeMessage(err)
		if extra != "" {
			msg += "\n" + extra
		}
		r.e.notify(LevelError, title, msg)
	}
	return r.out, err
}

// decline ends the attempt without an error.
func (r *run) decline(msg string) (*Outcome, error) {
	r.discard()
	if err := r.to(StateAborted); err != nil {
		return r.abort(err, "")
	}
	r.out.Declined = true
	r.attempt.Declined = true
	r.e.notify(LevelInfo, "Update", msg)
	return r.out, nil
}

func (r *run) record(ctx context.Context) {
	if r.e.recorder == nil || !r.state.IsTerminal() {
		return
	}
	r.attempt.FinishedAt = r.e.now()
	if err := r.e.recorder.Record(context.WithoutCancel(ctx), r.attempt); err != nil {
		r.e.logger.Warn("failed to record update attempt", zap.Error(err))
	}
}

// noticeMessage turns an error into a sentence for the user.
func noticeMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "The update was interrupted."
	case errors.Is(err, context.DeadlineExceeded):
		return "The update server did not answer in time."
	case apperrors.IsCode(err, apperrors.CodeIntegrity):
		return "The downloaded file does not match the published SHA-256 digest. It was deleted."
	}
	return err.Error()
}
