// ABOUTME: CLI commands for the query operations.
// ABOUTME: summary, search, stats, trend, values, and workout-stats share one filter flag set.
package main

import (
	"fmt"

	"github.com/harperreed/healthx/internal/query"
	"github.com/harperreed/healthx/internal/service"
	"github.com/spf13/cobra"
)

type queryFlags struct {
	typ         string
	source      string
	from        string
	to          string
	valueMin    float64
	valueMax    float64
	durationMin float64
	durationMax float64
	limit       int
}

func addFilterFlags(cmd *cobra.Command, f *queryFlags, withLimit bool) {
	fl := cmd.Flags()
	fl.StringVarP(&f.typ, "type", "t", "", "record or workout type (HKQuantityTypeIdentifier..., HKWorkoutActivityType...)")
	fl.StringVarP(&f.source, "source", "s", "", "exact source name")
	fl.StringVar(&f.from, "from", "", "inclusive start date (YYYY-MM-DD or RFC 3339)")
	fl.StringVar(&f.to, "to", "", "inclusive end date (YYYY-MM-DD or RFC 3339)")
	fl.Float64Var(&f.valueMin, "value-min", 0, "minimum record value")
	fl.Float64Var(&f.valueMax, "value-max", 0, "maximum record value")
	fl.Float64Var(&f.durationMin, "duration-min", 0, "minimum workout duration")
	fl.Float64Var(&f.durationMax, "duration-max", 0, "maximum workout duration")
	if withLimit {
		fl.IntVarP(&f.limit, "limit", "n", 10, "max number of results")
	}
}

// request builds a service request. Range flags count only when given.
func (f *queryFlags) request(cmd *cobra.Command, op query.Operation) service.Request {
	req := service.Request{
		Operation:  string(op),
		Type:       f.typ,
		SourceName: f.source,
		DateFrom:   f.from,
		DateTo:     f.to,
		Limit:      f.limit,
	}
	changed := func(name string, v float64) *float64 {
		if cmd.Flags().Changed(name) {
			return &v
		}
		return nil
	}
	req.ValueMin = changed("value-min", f.valueMin)
	req.ValueMax = changed("value-max", f.valueMax)
	req.DurationMin = changed("duration-min", f.durationMin)
	req.DurationMax = changed("duration-max", f.durationMax)
	return req
}

// runQuery validates req before opening the backend, then prints the response.
func runQuery(cmd *cobra.Command, req service.Request) error {
	if _, err := service.BuildPlan(req); err != nil {
		return err
	}

	ctx := cmd.Context()
	q, err := cfg.OpenQuerier(ctx, logger)
	if err != nil {
		return err
	}
	defer q.Close()

	resp := service.New(q, logger).Execute(ctx, req)
	if resp.Error != nil {
		if flagFormat != "text" {
			_ = writeResponse(cmd.OutOrStdout(), flagFormat, resp)
		}
		return fmt.Errorf("%s: %s", resp.Error.Kind, resp.Error.Message)
	}
	return writeResponse(cmd.OutOrStdout(), flagFormat, resp)
}

var (
	summaryFlags      queryFlags
	searchFlags       queryFlags
	statsFlags        queryFlags
	trendFlags        queryFlags
	valuesFlags       queryFlags
	workoutStatsFlags queryFlags
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count rows per type",
	Long: `Count rows per type in the records and workouts tables.

A workout type limits the summary to workouts, any other type to records.
A value range counts records only, a duration range workouts only.

EXAMPLES:

  healthx summary
  healthx summary --from 2024-01-01 --to 2024-12-31
  healthx summary -t HKWorkoutActivityTypeRunning`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, summaryFlags.request(cmd, query.OpSummary))
	},
}

var searchCmd = &cobra.Command{
	Use:     "search",
	Aliases: []string{"s"},
	Short:   "Search records or workouts, newest first",
	Long: `Search records or workouts, newest first.

Types starting with HKWorkoutActivityType search the workouts table and
accept --duration-min/--duration-max; all other types search records and
accept --value-min/--value-max. Ranges are inclusive.

EXAMPLES:

  healthx search -t HKQuantityTypeIdentifierStepCount --value-min 65 --value-max 90
  healthx search -t HKWorkoutActivityTypeRunning --duration-min 30 -n 5
  healthx search -s "Rob's Apple Watch" --from 2024-03-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, searchFlags.request(cmd, query.OpSearch))
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count, average, sum, min, and max per type and unit",
	Long: `Aggregate the value column (duration for workouts) per type and unit.

EXAMPLES:

  healthx stats -t HKQuantityTypeIdentifierHeartRate
  healthx stats -t HKWorkoutActivityTypeRunning --from 2024-01-01`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, statsFlags.request(cmd, query.OpStatistics))
	},
}

var trendCmd = &cobra.Command{
	Use:       "trend <day|week|month|year>",
	Short:     "Aggregate values per calendar bucket",
	ValidArgs: []string{"day", "week", "month", "year"},
	Long: `Aggregate values per type over calendar buckets, oldest bucket first.
Buckets are computed in UTC.

EXAMPLES:

  healthx trend month -t HKQuantityTypeIdentifierStepCount
  healthx trend week -t HKQuantityTypeIdentifierRestingHeartRate --from 2024-01-01`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := trendFlags.request(cmd, query.OpTrend)
		req.Interval = args[0]
		return runQuery(cmd, req)
	},
}

var valuesCmd = &cobra.Command{
	Use:   "values <value>",
	Short: "Find rows with an exact value",
	Long: `Find records whose raw value text equals <value>, or workouts of that
duration when a workout type is given.

EXAMPLES:

  healthx values HKCategoryValueSleepAnalysisAsleepCore
  healthx values 45.5 -t HKWorkoutActivityTypeRunning`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := valuesFlags.request(cmd, query.OpValueSearch)
		req.Value = args[0]
		return runQuery(cmd, req)
	},
}

var workoutStatsCmd = &cobra.Command{
	Use:   "workout-stats",
	Short: "Statistics recorded during matching workouts",
	Long: `List the statistics (energy, distance, heart rate) recorded during the
workouts that match the filters, newest first.

EXAMPLES:

  healthx workout-stats -t HKWorkoutActivityTypeRunning -n 20
  healthx workout-stats --from 2024-06-01 --duration-min 60`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, workoutStatsFlags.request(cmd, query.OpWorkoutStats))
	},
}

func init() {
	addFilterFlags(summaryCmd, &summaryFlags, false)
	addFilterFlags(searchCmd, &searchFlags, true)
	addFilterFlags(statsCmd, &statsFlags, false)
	addFilterFlags(trendCmd, &trendFlags, false)
	addFilterFlags(valuesCmd, &valuesFlags, true)
	addFilterFlags(workoutStatsCmd, &workoutStatsFlags, true)

	rootCmd.AddCommand(summaryCmd, searchCmd, statsCmd, trendCmd, valuesCmd, workoutStatsCmd)
}
