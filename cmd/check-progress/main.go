package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/jsonutil"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/perf"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "check-progress [task_id...]",
	Short: "Report per-task and per-annotator annotation progress",
	Long: `Check Progress classifies every job as not started, in progress or
completed from its annotated frames, then aggregates jobs, frames, shapes and
average speed per task and per annotator.

Writes progress_report_<timestamp>.json and daily_report_<YYYYMMDD>.txt.

Examples:
  check-progress
  check-progress 1234`,
	Args: cobra.ArbitraryArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()

	ids, err := cli.ParseIDs(args)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid task id")
	}

	app := cli.Bootstrap(ctx, cli.Options{Command: "check-progress", ConfigPath: configFlag})
	defer app.Close()

	members, err := app.CVAT.ListMemberships(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list members, falling back to job usernames")
	}

	tasks, err := app.Fetcher.Tasks(ctx, ids)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list tasks")
	}
	app.Metrics.Add(metrics.Tasks, len(tasks))

	records, err := perf.Collect(ctx, app.Fetcher, tasks, perf.UserNames(members))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to collect job progress")
	}
	app.Metrics.Add(metrics.Jobs, len(records))

	now := time.Now()
	rep := perf.BuildProgress(records, now)

	jsonPath := app.Run.StampedReportPath("progress_report", ".json")
	if err := jsonutil.WriteFile(jsonPath, rep); err != nil {
		log.Fatal().Err(err).Msg("Failed to write progress report")
	}

	textPath := app.Run.ReportPath(fmt.Sprintf("daily_report_%s.txt", now.Format("20060102")))
	f, err := os.Create(textPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", textPath).Msg("Failed to create daily report")
	}
	if err := report.WriteDailyProgress(f, rep, now); err != nil {
		f.Close()
		log.Fatal().Err(err).Str("path", textPath).Msg("Failed to write daily report")
	}
	if err := f.Close(); err != nil {
		log.Fatal().Err(err).Str("path", textPath).Msg("Failed to write daily report")
	}

	cli.Banner("Annotation Progress")
	for _, tp := range rep.Tasks {
		pct := 0.0
		if tp.TotalFrames > 0 {
			pct = float64(tp.CompletedFrames) * 100 / float64(tp.TotalFrames)
		}
		fmt.Printf("%s (ID %d): %d jobs, %d/%d frames (%.1f%%)\n",
			tp.TaskName, tp.TaskID, tp.TotalJobs, tp.CompletedFrames, tp.TotalFrames, pct)
		fmt.Printf("   completed %d, in progress %d, not started %d\n",
			tp.JobStats[perf.Completed], tp.JobStats[perf.InProgress], tp.JobStats[perf.NotStarted])
	}
	cli.Separator()
	for _, u := range rep.Users {
		speed := "N/A"
		if u.AvgSpeed != nil {
			speed = fmt.Sprintf("%.1f frames/h", *u.AvgSpeed)
		}
		fmt.Printf("%-20s %3d jobs  %5d/%-5d frames  %6d shapes  %s\n",
			u.Name, u.TotalJobs, u.AnnotatedFrames, u.TotalFrames, u.TotalShapes, speed)
	}
	cli.Separator()
	fmt.Printf("Report: %s\n", jsonPath)
	fmt.Printf("Daily digest: %s\n", textPath)
}
