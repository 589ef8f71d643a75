package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"puzzlemania/internal/update"
)

func newCheckCmd(a *app) *cobra.Command {
	var manifestURL string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether a newer release exists",
		Long:  "Fetches the release manifest and compares it with this version. Nothing is downloaded.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := a.settings(manifestURL)
			if err != nil {
				return err
			}
			engine := update.NewEngine(update.EngineConfig{
				CurrentVersion: Version,
				ManifestURL:    settings.ManifestURL,
				FetchTimeout:   settings.FetchTimeout,
			}, nil, nil, nil,
				update.WithFetcher(a.newFetcher()),
				update.WithEngineLogger(a.logger()),
			)
			res, err := engine.Check(cmd.Context())
			if err != nil {
				return err
			}
			printCheckResult(a.out, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestURL, "manifest-url", "", "release manifest URL (overrides update.manifest-url)")
	return cmd
}

func printCheckResult(w io.Writer, res *update.CheckResult) {
	desc := res.Descriptor
	if !res.UpdateAvailable {
		_, _ = fmt.Fprintf(w, "PuzzleMania is up to date (running %s, latest is %s).\n", res.CurrentVersion, desc.Version)
		return
	}
	_, _ = fmt.Fprintf(w, "PuzzleMania %s is available (you have %s).\n", desc.Version, res.CurrentVersion)
	if desc.DownloadURL != "" {
		_, _ = fmt.Fprintf(w, "  Source:  %s\n", desc.DownloadURL)
	}
	if desc.HasDigest() {
		_, _ = fmt.Fprintf(w, "  SHA-256: %s\n", desc.Digest)
	} else {
		_, _ = fmt.Fprintln(w, "  SHA-256: not provided")
	}
	_, _ = fmt.Fprintln(w, "Run 'puzzlemania update' to install it.")
}
