// ABOUTME: CLI command for listing ingestion run history.
// ABOUTME: Reads the run ledger kept in the data directory.
package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/healthx/internal/ledger"
	"github.com/spf13/cobra"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List ingestion runs",
	Long: `List ingestion runs, newest first.

Each line shows: ID  STARTED  STATUS  BACKEND  ROWS  (ERROR)

EXAMPLES:

  healthx runs
  healthx runs -n 3 -f json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		led, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			return err
		}
		defer led.Close()

		runs, err := led.List(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		if flagFormat != "text" {
			return writeOutput(cmd.OutOrStdout(), flagFormat, runs)
		}

		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded.")
			return nil
		}
		faint := color.New(color.Faint)
		for _, r := range runs {
			var rows int64
			for _, n := range r.Counts {
				rows += n
			}
			status := string(r.Status)
			switch r.Status {
			case ledger.StatusSucceeded:
				status = color.GreenString(padRight(status, 9))
			case ledger.StatusFailed:
				status = color.RedString(padRight(status, 9))
			default:
				status = color.YellowString(padRight(status, 9))
			}
			errText := ""
			if r.Error != "" {
				errText = faint.Sprintf(" (%s)", truncate(r.Error, 60))
			}
			fmt.Fprintf(out, "%s %s %s %s %d%s\n",
				faint.Sprint(r.ID),
				faint.Sprint(r.StartedAt.Local().Format(time.DateTime)),
				status,
				padRight(r.Backend, 13),
				rows,
				errText)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "max number of runs")
	rootCmd.AddCommand(runsCmd)
}
