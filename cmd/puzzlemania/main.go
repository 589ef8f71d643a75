package main

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"puzzlemania/internal/debug"
	apperrors "puzzlemania/internal/errors"
)

func main() {
	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	err := fang.Execute(
		context.Background(),
		newRootCmd(a),
		fang.WithVersion(versionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(handleError),
	)
	debug.Close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "puzzlemania",
		Short: "PuzzleMania updater",
		Long: `Keeps the PuzzleMania executable up to date.

The release manifest location is read from update.manifest-url in
~/.puzzlemania/config.yaml, a project .puzzlemania/config.yaml, or the
PM_UPDATE_MANIFEST_URL environment variable.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initialize()
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "write a debug log to ~/.puzzlemania/debug.log")

	root.AddCommand(
		newUpdateCmd(a),
		newCheckCmd(a),
		newRestoreCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// reportedError marks an error the user has already been shown as a notice.
type reportedError struct {
	err error
}

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func handleError(w io.Writer, styles fang.Styles, err error) {
	var reported reportedError
	if errors.As(err, &reported) {
		return
	}
	fang.DefaultErrorHandler(w, styles, err)
}

func configError(msg string) error {
	return apperrors.New(apperrors.CodeConfigurationError, msg, nil)
}
