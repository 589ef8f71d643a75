package main

import (
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"puzzlemania/internal/ui"
	"puzzlemania/internal/update"
)

type updateFlags struct {
	yes         bool
	mode        string
	manifestURL string
}

func newUpdateCmd(a *app) *cobra.Command {
	var flags updateFlags
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Download and install the latest release",
		Long: `Checks the release manifest and, if a newer version exists, asks to
download it. After the SHA-256 digest is verified it asks whether to run the
new version next to this one or to replace this executable.

With --yes every question is answered automatically; --mode picks how the
release is installed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runUpdate(cmd, flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "answer every prompt without asking")
	cmd.Flags().StringVar(&flags.mode, "mode", update.ModeReplace, "install mode used with --yes: launch or replace")
	cmd.Flags().StringVar(&flags.manifestURL, "manifest-url", "", "release manifest URL (overrides update.manifest-url)")
	return cmd
}

func (a *app) runUpdate(cmd *cobra.Command, flags updateFlags) error {
	if flags.mode != update.ModeLaunch && flags.mode != update.ModeReplace {
		return configError(fmt.Sprintf("--mode must be %s or %s (got %q)", update.ModeLaunch, update.ModeReplace, flags.mode))
	}
	settings, err := a.settings(flags.manifestURL)
	if err != nil {
		return err
	}
	installer, err := a.newInstaller(settings)
	if err != nil {
		return err
	}

	var confirmer update.Confirmer
	if flags.yes {
		confirmer = ui.AutoConfirmer{Mode: flags.mode, Out: a.out}
	} else {
		confirmer = ui.NewConfirmer(ui.ConfirmerOptions{
			Mode:   settings.PromptMode,
			Format: settings.OutputFormat,
			In:     a.in,
			Out:    a.out,
		})
	}
	defer closeConfirmer(confirmer)
	notifier := &trackingNotifier{next: a.notifier()}
	progress := ui.NewDownloadProgress(a.out)

	opts := []update.EngineOption{
		update.WithFetcher(a.newFetcher()),
		update.WithDownloader(a.newDownloader(settings, progress.Report)),
		update.WithTransitionHook(ui.ProgressHook(progress)),
		update.WithEngineLogger(a.logger()),
	}
	if store := a.openJournal(settings); store != nil {
		defer store.Close()
		opts = append(opts, update.WithRecorder(store))
	}

	engine := update.NewEngine(update.EngineConfig{
		CurrentVersion:  Version,
		ManifestURL:     settings.ManifestURL,
		FetchTimeout:    settings.FetchTimeout,
		DownloadTimeout: settings.DownloadTimeout,
	}, installer, confirmer, notifier, opts...)

	if _, err := engine.Run(cmd.Context()); err != nil {
		if notifier.sawError() {
			return reportedError{err: err}
		}
		return err
	}
	return nil
}

// trackingNotifier remembers whether an error notice was shown so the same
// failure is not printed twice on exit.
type trackingNotifier struct {
	next   update.Notifier
	errors atomic.Int32
}

func (n *trackingNotifier) Notify(notice update.Notice) {
	if notice.Level == update.LevelError {
		n.errors.Add(1)
	}
	n.next.Notify(notice)
}

func (n *trackingNotifier) sawError() bool {
	return n.errors.Load() > 0
}
