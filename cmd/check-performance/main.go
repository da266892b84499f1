package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/boot"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/perf"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/store"
)

// CLI flags
var (
	configFlag   string
	snapshotFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "check-performance [YYYYMMDD]",
	Short: "Attribute each day's annotation increase to the current assignees",
	Long: `Check Performance compares every job's annotated frames and shapes with
the previous day's snapshot and credits the increase to whoever holds the job
now. Without a previous snapshot every job counts in full, which is reported.

Running for today saves today's snapshot for tomorrow's comparison. Results go
to daily_performance_<date>.csv and are appended to performance_summary.csv.

--snapshot backfills a missing snapshot for a past date: jobs updated after
that day's end are recorded at zero. This is an approximation.

Examples:
  check-performance
  check-performance 20260129
  check-performance 20260128 --snapshot`,
	Args: cobra.MaximumNArgs(1),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().BoolVar(&snapshotFlag, "snapshot", false, "Backfill the snapshot of the given date instead of reporting")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()

	now := time.Now()
	today := now.Format(store.DateLayout)
	date := today
	if len(args) == 1 {
		if _, err := cli.ParseDate(args[0], time.Local); err != nil {
			log.Fatal().Err(err).Msg("Invalid date argument")
		}
		date = args[0]
	}
	if snapshotFlag && len(args) == 0 {
		log.Fatal().Msg("--snapshot requires a date, e.g. check-performance 20260128 --snapshot")
	}

	app := cli.Bootstrap(ctx, cli.Options{Command: "check-performance", ConfigPath: configFlag})
	defer app.Close()

	snapshots, err := boot.NewSnapshotStore(ctx, app.Config, app.Run.SnapshotDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot store")
	}

	members, err := app.CVAT.ListMemberships(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list members, falling back to job usernames")
	}
	tasks, err := app.Fetcher.Tasks(ctx, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list tasks")
	}
	app.Metrics.Add(metrics.Tasks, len(tasks))

	records, err := perf.Collect(ctx, app.Fetcher, tasks, perf.UserNames(members))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to collect job counts")
	}
	app.Metrics.Add(metrics.Jobs, len(records))

	if snapshotFlag {
		backfill(ctx, snapshots, date, records, now)
		return
	}

	var baseline *store.Snapshot
	if prev, err := store.PreviousDate(date); err == nil {
		baseline, err = snapshots.Get(ctx, prev)
		if err != nil {
			log.Fatal().Err(err).Str("date", prev).Msg("Failed to load baseline snapshot")
		}
	}
	daily := perf.Compute(date, records, baseline)

	if date == today {
		if err := snapshots.Put(ctx, perf.Snapshot(date, records, baseline, now)); err != nil {
			log.Fatal().Err(err).Msg("Failed to save snapshot")
		}
	} else {
		log.Info().Str("date", date).Msg("Past date queried, snapshot not saved")
	}

	rows := make([][]string, 0, len(daily.Records))
	for _, r := range daily.Records {
		rows = append(rows, r.CSV())
	}
	csvPath := app.Run.ReportPath(fmt.Sprintf("daily_performance_%s.csv", date))
	if err := report.WriteCSV(csvPath, perf.CSVHeader, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to write performance CSV")
	}
	summaryPath := app.Run.ReportPath("performance_summary.csv")
	if err := report.AppendCSV(summaryPath, perf.CSVHeader, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to update performance summary")
	}

	cli.Banner(fmt.Sprintf("Performance %s", date))
	if !daily.HasBaseline {
		fmt.Printf("No snapshot for %s: today's figures are full running totals\n", daily.BaselineDate)
	}
	fmt.Printf("Frames annotated today: %d\n", daily.TotalToday())
	for _, r := range daily.Records {
		speed := "N/A"
		if r.HasSpeed {
			speed = fmt.Sprintf("%.1f", r.AvgSpeed)
		}
		fmt.Println()
		fmt.Printf("%s:\n", r.User)
		fmt.Printf("   today:   %d frames (%d shapes)\n", r.TodayFrames, r.TodayShapes)
		fmt.Printf("   total:   %d/%d frames\n", r.TotalFrames, r.JobFrames)
		fmt.Printf("   jobs:    %d (%d completed, %d in progress, %d not started)\n", r.Jobs, r.Completed, r.InProgress, r.NotStarted)
		fmt.Printf("   speed:   %s frames/h\n", speed)
	}
	cli.Separator()
	fmt.Printf("Report: %s\n", csvPath)
	fmt.Printf("Summary: %s\n", summaryPath)
}

// backfill writes an approximate snapshot for a past date.
func backfill(ctx context.Context, snapshots store.SnapshotStore, date string, records []perf.JobRecord, now time.Time) {
	cutoff, err := perf.BackfillCutoff(date)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid backfill date")
	}

	var (
		included []perf.JobRecord
		excluded []int
	)
	for _, r := range records {
		if perf.UpdatedBy(r.Job.UpdatedDate, cutoff) {
			included = append(included, r)
		} else {
			excluded = append(excluded, r.Job.ID)
		}
	}

	snap, err := perf.Backfill(date, included, excluded, now)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build snapshot")
	}
	if err := snapshots.Put(ctx, snap); err != nil {
		log.Fatal().Err(err).Msg("Failed to save snapshot")
	}

	log.Info().
		Str("date", date).
		Time("cutoff", cutoff).
		Int("included", len(included)).
		Int("zeroed", len(excluded)).
		Msg("Snapshot backfilled")
	fmt.Printf("Backfilled snapshot %s: %d jobs at current counts, %d recorded as zero\n", date, len(included), len(excluded))
}
