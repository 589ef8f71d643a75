package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"puzzlemania/internal/journal"
	"puzzlemania/internal/update"
)

var (
	styleHistoryHeader = lipgloss.NewStyle().Foreground(lipgloss.Color("99")).Bold(true)
	styleHistoryCell   = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	styleHistoryGood   = lipgloss.NewStyle().Foreground(lipgloss.Color("118"))
	styleHistoryBad    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent update attempts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			settings, err := a.settings("")
			if err != nil {
				return err
			}
			store, err := journal.Open(settings.JournalPath, journal.WithLogger(a.logger()))
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if !settings.JournalEnabled {
				_, _ = fmt.Fprintln(a.errOut, "Note: journal.enabled is false, new attempts are not recorded.")
			}
			printHistory(a.out, entries, time.Now())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", journal.DefaultListLimit, "number of attempts to show")
	return cmd
}

func printHistory(w io.Writer, entries []journal.Entry, now time.Time) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No update attempts recorded.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			formatAge(now.Sub(e.StartedAt)),
			e.CurrentVersion,
			dash(e.RemoteVersion),
			describeResult(e),
			dash(e.Mode),
			dash(e.InstalledPath),
		})
	}
	t := table.New().
		Border(lipgloss.HiddenBorder()).
		BorderTop(false).
		BorderBottom(false).
		BorderHeader(false).
		Headers("WHEN", "FROM", "TO", "RESULT", "MODE", "INSTALLED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHistoryHeader.PaddingRight(2)
			}
			if col == 3 {
				if entries[row].Succeeded() {
					return styleHistoryGood.PaddingRight(2)
				}
				if entries[row].ErrorCode != "" {
					return styleHistoryBad.PaddingRight(2)
				}
			}
			return styleHistoryCell.PaddingRight(2)
		}).
		Rows(rows...)
	_, _ = fmt.Fprintln(w, strings.Trim(t.String(), "\n"))
}

// describeResult turns a recorded attempt into a short status.
func describeResult(e journal.Entry) string {
	switch {
	case e.Succeeded():
		if e.Verified {
			return "installed (verified)"
		}
		return "installed"
	case e.State == update.StateUpToDate:
		return "up to date"
	case e.Declined:
		return "declined"
	case e.ErrorCode != "":
		return "failed: " + string(e.ErrorCode)
	default:
		return string(e.State)
	}
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// formatAge formats a duration into a human-readable "ago" string.
func formatAge(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
