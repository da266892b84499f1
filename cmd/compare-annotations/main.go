package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/jsonutil"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/preannotate"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "compare-annotations [task_id...]",
	Short: "Compare human annotation progress with available pre-annotations",
	Long: `Compare Annotations classifies every job as annotated, pending with
pre-annotations, or pending without pre-annotations, using the details file
written by check-preannotations.

Examples:
  compare-annotations
  compare-annotations 1234 1240`,
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

	app := cli.Bootstrap(ctx, cli.Options{Command: "compare-annotations", ConfigPath: configFlag})
	defer app.Close()

	detailsPath := app.Run.ReportPath(preannotate.DetailsFile)
	if !jsonutil.Exists(detailsPath) {
		log.Fatal().Str("path", detailsPath).Msg("Pre-annotation details not found, run check-preannotations first")
	}
	details, err := jsonutil.ReadFile[preannotate.Details](detailsPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", detailsPath).Msg("Failed to read pre-annotation details")
	}

	tasks, err := app.Fetcher.Tasks(ctx, ids)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list tasks")
	}
	app.Metrics.Add(metrics.Tasks, len(tasks))

	comparisons, err := preannotate.CompareTasks(ctx, app.Fetcher, tasks, details)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compare annotations")
	}
	app.Metrics.Add(metrics.Jobs, len(comparisons))

	rows := make([][]string, 0, len(comparisons))
	for _, c := range comparisons {
		rows = append(rows, c.Row())
	}
	csvPath := app.Run.StampedReportPath("annotation_comparison", ".csv")
	if err := report.WriteCSV(csvPath, preannotate.ComparisonHeader, rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to write comparison CSV")
	}
	jsonPath := app.Run.ReportPath(preannotate.ComparisonFile)
	if comparisons == nil {
		comparisons = []preannotate.Comparison{}
	}
	if err := jsonutil.WriteFile(jsonPath, comparisons); err != nil {
		log.Fatal().Err(err).Msg("Failed to write comparison details")
	}

	tally := preannotate.Tally(comparisons)
	cli.Banner("Annotation Comparison")
	fmt.Printf("Jobs:                 %d\n", len(comparisons))
	fmt.Printf("Annotated:            %d\n", tally[preannotate.StatusAnnotated])
	fmt.Printf("Pending, pre-labeled: %d\n", tally[preannotate.StatusPendingWithPre])
	fmt.Printf("Pending, no pre:      %d\n", tally[preannotate.StatusPendingWithoutPre])
	cli.Separator()
	fmt.Printf("CSV:  %s\n", csvPath)
	fmt.Printf("JSON: %s\n", jsonPath)
}
