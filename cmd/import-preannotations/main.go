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
)

// CLI flags
var (
	configFlag string
	jobFlag    int
)

var rootCmd = &cobra.Command{
	Use:   "import-preannotations <task_id>",
	Short: "Push model bounding boxes into jobs nobody has annotated yet",
	Long: `Import Pre-annotations finds, for each job of the task, the *_bbox.json
export stored next to the job's frames and creates its boxes as rectangle
shapes. Jobs that already carry annotations are skipped, as are jobs whose
annotation count cannot be read.

Imported jobs are recorded in preannotation_records.json, which accumulates
across runs.

Examples:
  import-preannotations 1234
  import-preannotations 1234 --job 56789`,
	Args: cobra.ExactArgs(1),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().IntVar(&jobFlag, "job", 0, "Import only this job of the task")
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
	if err != nil || len(ids) != 1 {
		log.Fatal().Err(err).Strs("args", args).Msg("Expected a single task id")
	}
	taskID := ids[0]

	app := cli.Bootstrap(ctx, cli.Options{
		Command:    "import-preannotations",
		ConfigPath: configFlag,
		NeedS3:     true,
	})
	defer app.Close()

	recordsPath := app.Run.ReportPath(preannotate.RecordsFile)
	records := preannotate.Records{}
	if jsonutil.Exists(recordsPath) {
		prev, err := jsonutil.ReadFile[preannotate.Records](recordsPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", recordsPath).Msg("Failed to read existing import records")
		}
		if prev != nil {
			records = prev
		}
		log.Info().Str("path", recordsPath).Int("records", len(records)).Msg("Existing import records loaded")
	}

	imp := preannotate.NewImporter(app.CVAT, app.S3, app.Config.S3.BucketName, app.Config.LabelMap, app.Metrics)
	sum, err := imp.ImportTask(ctx, taskID, jobFlag, records)
	if err != nil {
		log.Fatal().Err(err).Int("taskId", taskID).Msg("Pre-annotation import aborted")
	}

	if sum.Success > 0 {
		if err := jsonutil.WriteFile(recordsPath, records); err != nil {
			log.Fatal().Err(err).Str("path", recordsPath).Msg("Failed to write import records")
		}
	}

	cli.Banner(fmt.Sprintf("Pre-annotation import, task %d", taskID))
	fmt.Printf("Imported: %d\n", sum.Success)
	fmt.Printf("Skipped:  %d\n", sum.Skipped)
	fmt.Printf("Failed:   %d\n", sum.Failed)
	cli.Separator()
	fmt.Printf("Records: %s\n", recordsPath)
}
