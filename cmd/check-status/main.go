package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/inventory"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/jsonutil"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/reconcile"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

// CLI flags
var (
	configFlag      string
	propagationFlag string
)

var rootCmd = &cobra.Command{
	Use:   "check-status [task_id...]",
	Short: "Reconcile cloud storage frames against CVAT task state",
	Long: `Check Status lists every complete recording session in the bucket, reads
the frames and annotation state of the CVAT tasks, and reports which images
are annotated, loaded but not annotated, or not loaded at all.

New images are written to new_images_<timestamp>.txt for import-new-data.
Without an S3 bucket configured only the CVAT-side summary is produced.

Examples:
  check-status
  check-status 1234 1240
  check-status --propagation complete`,
	Args: cobra.ArbitraryArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().StringVar(&propagationFlag, "propagation", "", "Annotated frame propagation: any or complete (default from config)")
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

	app := cli.Bootstrap(ctx, cli.Options{Command: "check-status", ConfigPath: configFlag})
	defer app.Close()

	modeName := app.Config.Reconcile.Propagation
	if propagationFlag != "" {
		modeName = propagationFlag
	}
	mode, err := reconcile.ParsePropagation(modeName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid propagation mode")
	}

	tasks, err := app.Fetcher.Tasks(ctx, ids)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list tasks")
	}
	app.Metrics.Add(metrics.Tasks, len(tasks))

	states, err := reconcile.Collect(ctx, app.Fetcher, tasks, mode)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read task state")
	}
	loaded, annotated := reconcile.PlatformSets(states, mode)

	var (
		cloud reconcile.Set
		paths map[string]string
	)
	if app.S3 != nil {
		inv, err := inventory.Scan(ctx, app.S3, app.Config.S3.BucketName, app.Config.S3.Prefix)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to list bucket")
		}
		paths = inv.Basenames()
		cloud = reconcile.Set(inv.BasenameSet())
	} else {
		log.Info().Msg("No bucket configured, reporting CVAT state only")
	}

	result := reconcile.Reconcile(cloud, loaded, annotated)
	log.Info().Str("propagation", string(mode)).Str("result", result.String()).Msg("Reconciliation complete")

	statusPath := app.Run.StampedReportPath("annotation_status", ".json")
	if err := jsonutil.WriteFile(statusPath, result.Report()); err != nil {
		log.Fatal().Err(err).Msg("Failed to write status report")
	}

	cli.Banner("Annotation Status")
	if result.HasCloud {
		fmt.Printf("Cloud images:        %d\n", result.CloudTotal)
	}
	fmt.Printf("Loaded in CVAT:      %d\n", result.LoadedTotal)
	fmt.Printf("Annotated:           %d\n", len(result.Annotated))
	fmt.Printf("Not annotated:       %d\n", len(result.LoadedNotAnnotated))

	if result.HasCloud {
		fmt.Printf("New (not loaded):    %d\n", len(result.NewImages))
		if len(result.NewImages) > 0 {
			newPath := app.Run.StampedReportPath("new_images", ".txt")
			if err := report.WriteLines(newPath, result.NewImageKeys(paths, app.Config.S3.Prefix)); err != nil {
				log.Fatal().Err(err).Msg("Failed to write new image list")
			}
			fmt.Printf("New image list:      %s\n", newPath)
		}
	}
	cli.Separator()
	fmt.Printf("Report: %s\n", statusPath)
}
