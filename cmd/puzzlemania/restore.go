package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	apperrors "puzzlemania/internal/errors"
	"puzzlemania/internal/ui"
	"puzzlemania/internal/update"
)

func newRestoreCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Put back the executable saved before the last replacement",
		Long: `Copies <executable>.bak over the executable. The backup is written by
'puzzlemania update' before it replaces the running version, and is kept
after a restore.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRestore(cmd, yes)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "restore without asking")
	return cmd
}

func (a *app) runRestore(cmd *cobra.Command, yes bool) error {
	settings, err := a.settings("")
	if err != nil {
		return err
	}
	installer, err := a.newInstaller(settings)
	if err != nil {
		return err
	}

	backup := installer.BackupPath()
	info, err := os.Stat(backup)
	if errors.Is(err, fs.ErrNotExist) {
		return apperrors.New(apperrors.CodeNoBackup, fmt.Sprintf("no backup found at %s", backup), err)
	}
	if err != nil {
		return fmt.Errorf("inspect backup: %w", err)
	}

	var confirmer update.Confirmer = ui.AutoConfirmer{}
	if !yes {
		confirmer = ui.NewConfirmer(ui.ConfirmerOptions{
			Mode:   settings.PromptMode,
			Format: settings.OutputFormat,
			In:     a.in,
			Out:    a.out,
		})
	}
	defer closeConfirmer(confirmer)
	answer, err := confirmer.Confirm(cmd.Context(), update.Prompt{
		Kind:        update.PromptRestore,
		Title:       "Restore backup",
		Message:     fmt.Sprintf("Replace %s with the backup saved on %s?", installer.Target(), info.ModTime().Format("2006-01-02 15:04")),
		Path:        backup,
		YesLabel:    "Restore",
		CancelLabel: "Keep current",
	})
	if err != nil {
		return fmt.Errorf("confirm restore: %w", err)
	}
	notifier := a.notifier()
	if answer != update.AnswerYes {
		notifier.Notify(update.Notice{Level: update.LevelInfo, Title: "Restore", Message: "Nothing was changed."})
		return nil
	}

	if err := installer.Restore(); err != nil {
		notifier.Notify(update.Notice{Level: update.LevelError, Title: "Restore failed", Message: err.Error()})
		return reportedError{err: err}
	}
	notifier.Notify(update.Notice{
		Level:   update.LevelSuccess,
		Title:   "Backup restored",
		Message: fmt.Sprintf("%s was put back. The backup is kept at %s.", installer.Target(), backup),
	})
	return nil
}
