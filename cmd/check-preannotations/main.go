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
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/preannotate"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

// CLI flags
var (
	configFlag string
	prefixFlag string
)

var rootCmd = &cobra.Command{
	Use:   "check-preannotations",
	Short: "Inventory the model bounding-box exports in the bucket",
	Long: `Check Pre-annotations lists every *_bbox.json export under the configured
prefix and counts frames, annotated frames and boxes per chunk.

Writes preannotation_summary.csv and preannotation_details.json. The details
file is read by compare-annotations.

Examples:
  check-preannotations
  check-preannotations --prefix dev1/`,
	Args: cobra.NoArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().StringVar(&prefixFlag, "prefix", "", "Key prefix to scan (default: s3.prefix)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()

	app := cli.Bootstrap(ctx, cli.Options{
		Command:    "check-preannotations",
		ConfigPath: configFlag,
		NeedS3:     true,
	})
	defer app.Close()

	prefix := app.Config.S3.Prefix
	if prefixFlag != "" {
		prefix = prefixFlag
	}

	details, err := preannotate.Check(ctx, app.S3, app.Config.S3.BucketName, prefix, app.Metrics)
	if err != nil {
		log.Fatal().Err(err).Str("bucket", app.Config.S3.BucketName).Msg("Failed to list pre-annotation exports")
	}

	summaryPath := app.Run.ReportPath(preannotate.SummaryFile)
	if err := report.WriteCSV(summaryPath, preannotate.SummaryHeader, details.SummaryRows()); err != nil {
		log.Fatal().Err(err).Msg("Failed to write pre-annotation summary")
	}
	detailsPath := app.Run.ReportPath(preannotate.DetailsFile)
	if err := jsonutil.WriteFile(detailsPath, details); err != nil {
		log.Fatal().Err(err).Msg("Failed to write pre-annotation details")
	}

	frames, annotated, boxes := details.Totals()
	log.Info().
		Int("chunks", len(details)).
		Int("frames", frames).
		Int("annotatedFrames", annotated).
		Int("annotations", boxes).
		Msg("Pre-annotation check complete")

	cli.Banner("Pre-annotation Exports")
	fmt.Printf("Chunks:            %d\n", len(details))
	fmt.Printf("Frames:            %d\n", frames)
	fmt.Printf("Annotated frames:  %d\n", annotated)
	fmt.Printf("Boxes:             %d\n", boxes)
	cli.Separator()
	fmt.Printf("Summary: %s\n", summaryPath)
	fmt.Printf("Details: %s\n", detailsPath)
}
