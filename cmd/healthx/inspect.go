// ABOUTME: CLI commands for exploring an export document without ingesting it.
// ABOUTME: inspect lists structure, grep finds matching elements, by-type reads one type.
package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/harperreed/healthx/internal/xmlstream"
	"github.com/spf13/cobra"
)

var (
	grepSource   string
	grepMax      int
	byTypeSource string
	byTypeLimit  int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [export.xml]",
	Short: "Show the structure of an export document",
	Long: `Stream an export document once and list its element tags, record
types, workout types, and source names.

EXAMPLES:

  healthx inspect export.xml
  healthx inspect export.xml -f yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := cfg.GetSource()
		if len(args) == 1 {
			source = args[0]
		}
		s, err := xmlstream.Analyze(source)
		if err != nil {
			return err
		}
		if flagFormat != "text" {
			return writeOutput(cmd.OutOrStdout(), flagFormat, s)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s  %.2f MB, %d elements\n", source, s.FileSizeMB, s.Elements)
		printList(out, "Tags", s.Tags)
		printList(out, "Record types", s.RecordTypes)
		printList(out, "Workout types", s.WorkoutTypes)
		printList(out, "Sources", s.Sources)
		return nil
	},
}

var grepCmd = &cobra.Command{
	Use:   "grep <text>",
	Short: "Find records and workouts mentioning text",
	Long: `Stream the export document and print Record and Workout elements with
any attribute containing <text>, ignoring case.

EXAMPLES:

  healthx grep "Polar"
  healthx grep sleep --source export.xml -n 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := cfg.GetSource()
		if grepSource != "" {
			source = grepSource
		}
		matches, err := xmlstream.Grep(source, args[0], grepMax)
		if err != nil {
			return err
		}
		if flagFormat != "text" {
			return writeOutput(cmd.OutOrStdout(), flagFormat, matches)
		}

		out := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintln(out, "No matches.")
			return nil
		}
		printElements(out, matches)
		_, _ = color.New(color.Faint).Fprintf(out, "%d matches\n", len(matches))
		return nil
	},
}

var byTypeCmd = &cobra.Command{
	Use:   "by-type <type>",
	Short: "Read records of one type straight from the export",
	Long: `Stream the export document and print Record elements of <type>, in
document order. A workout type (HKWorkoutActivityType...) reads Workout
elements instead.

EXAMPLES:

  healthx by-type HKQuantityTypeIdentifierHeartRate -n 5
  healthx by-type HKWorkoutActivityTypeRunning --source export.xml -f json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := cfg.GetSource()
		if byTypeSource != "" {
			source = byTypeSource
		}
		matches, err := xmlstream.ByType(source, args[0], byTypeLimit)
		if err != nil {
			return err
		}
		if flagFormat != "text" {
			return writeOutput(cmd.OutOrStdout(), flagFormat, matches)
		}

		out := cmd.OutOrStdout()
		if len(matches) == 0 {
			fmt.Fprintf(out, "No elements of type %s.\n", args[0])
			return nil
		}
		printElements(out, matches)
		_, _ = color.New(color.Faint).Fprintf(out, "%d elements\n", len(matches))
		return nil
	},
}

func printElements(w io.Writer, els []xmlstream.Element) {
	for _, el := range els {
		fmt.Fprintf(w, "%s %s\n", padRight(el.Tag, 8), formatAttrs(el.Attrs))
	}
}

func printList(w io.Writer, title string, items []string) {
	bold := color.New(color.Bold)
	_, _ = bold.Fprintf(w, "\n%s (%d)\n", title, len(items))
	for _, item := range items {
		fmt.Fprintf(w, "  %s\n", item)
	}
}

func formatAttrs(attrs map[string]string) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, truncate(attrs[k], 60)))
	}
	return strings.Join(parts, " ")
}

func init() {
	grepCmd.Flags().StringVar(&grepSource, "source", "", "export document (default from config)")
	grepCmd.Flags().IntVarP(&grepMax, "limit", "n", 50, "max number of matches")
	byTypeCmd.Flags().StringVar(&byTypeSource, "source", "", "export document (default from config)")
	byTypeCmd.Flags().IntVarP(&byTypeLimit, "limit", "n", 20, "max number of elements")
	rootCmd.AddCommand(inspectCmd, grepCmd, byTypeCmd)
}
