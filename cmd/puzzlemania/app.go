package main

import (
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"puzzlemania/internal/config"
	"puzzlemania/internal/debug"
	"puzzlemania/internal/journal"
	"puzzlemania/internal/ui"
	"puzzlemania/internal/update"
)

// app holds what the commands share. Tests replace the streams, the HTTP
// client and the launcher.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer
	debug  bool

	httpClient *http.Client
	launcher   update.Launcher
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

func (a *app) initialize() error {
	if err := config.Initialize(); err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}
	if err := debug.Init(a.debug); err != nil {
		return fmt.Errorf("initialize debug log: %w", err)
	}
	return nil
}

// settings applies a non-empty manifest URL flag and loads the validated
// update settings.
func (a *app) settings(manifestURL string) (config.UpdateSettings, error) {
	if manifestURL != "" {
		if err := config.ApplyOverrides(map[string]any{config.KeyManifestURL: manifestURL}); err != nil {
			return config.UpdateSettings{}, err
		}
	}
	return config.LoadUpdateSettings()
}

func (a *app) logger() *zap.Logger {
	return debug.Logger()
}

func (a *app) notifier() update.Notifier {
	return ui.NewConsoleNotifier(a.out, a.errOut)
}

func (a *app) newFetcher() *update.Fetcher {
	opts := []update.FetcherOption{update.WithFetcherLogger(a.logger())}
	if a.httpClient != nil {
		opts = append(opts, update.WithHTTPClient(a.httpClient))
	}
	return update.NewFetcher(Version, opts...)
}

func (a *app) newDownloader(s config.UpdateSettings, progress update.ProgressFunc) *update.Downloader {
	opts := []update.DownloaderOption{
		update.WithDownloadDir(s.DownloadDir),
		update.WithProgress(progress),
		update.WithDownloaderLogger(a.logger()),
	}
	if a.httpClient != nil {
		opts = append(opts, update.WithDownloaderHTTPClient(a.httpClient))
	}
	return update.NewDownloader(Version, opts...)
}

func (a *app) newInstaller(s config.UpdateSettings) (*update.Installer, error) {
	target, err := update.ResolveTarget(s.TargetPath)
	if err != nil {
		return nil, err
	}
	opts := []update.InstallerOption{update.WithInstallerLogger(a.logger())}
	if a.launcher != nil {
		opts = append(opts, update.WithLauncher(a.launcher))
	}
	return update.NewInstaller(target, opts...), nil
}

// openJournal returns nil when the journal is disabled or cannot be opened;
// recording is never required for an update to proceed.
func (a *app) openJournal(s config.UpdateSettings) *journal.Store {
	if !s.JournalEnabled {
		return nil
	}
	store, err := journal.Open(s.JournalPath, journal.WithLogger(a.logger()))
	if err != nil {
		a.logger().Warn("journal unavailable", zap.String("path", s.JournalPath), zap.Error(err))
		return nil
	}
	return store
}

// closeConfirmer releases a confirmer that holds an input reader.
func closeConfirmer(c update.Confirmer) {
	if closer, ok := c.(io.Closer); ok {
		_ = closer.Close()
	}
}
