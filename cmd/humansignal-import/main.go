package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/coco"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/importer"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

// CLI flags
var (
	configFlag          string
	inputFlag           string
	nameFlag            string
	colorFlag           string
	annotationsOnlyFlag bool
	taskFlag            int
	yesFlag             bool
)

var rootCmd = &cobra.Command{
	Use:   "humansignal-import",
	Short: "Import a HumanSignal COCO export into a new CVAT task",
	Long: `HumanSignal Import reads a COCO export, maps every image to its file in
cloud storage, creates a task with one job per recording session, waits for
the frames to load and uploads the annotations of the loaded images.

--annotations-only uploads the annotations into an existing task instead.

Examples:
  humansignal-import
  humansignal-import --input export.json --name "HumanSignal batch 3"
  humansignal-import --annotations-only --task 1234`,
	Args: cobra.NoArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().StringVarP(&inputFlag, "input", "i", "", "COCO export to import (default: files.humansignal_json)")
	rootCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Task name (default: task.name or a timestamped name)")
	rootCmd.Flags().StringVar(&colorFlag, "color", "#ff6037", "Color of the labels created from categories")
	rootCmd.Flags().BoolVar(&annotationsOnlyFlag, "annotations-only", false, "Upload annotations into an existing task")
	rootCmd.Flags().IntVar(&taskFlag, "task", 0, "Existing task id, required with --annotations-only")
	rootCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Proceed without asking for confirmation")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()
	ctx := context.Background()

	if annotationsOnlyFlag && taskFlag <= 0 {
		log.Fatal().Msg("--annotations-only requires --task <id>")
	}

	required := []string{"s3.prefix"}
	if !annotationsOnlyFlag {
		required = append(required, "cloud_storage.id")
	}
	if inputFlag == "" {
		required = append(required, "files.humansignal_json")
	}
	app := cli.Bootstrap(ctx, cli.Options{
		Command:    "humansignal-import",
		ConfigPath: configFlag,
		Required:   required,
	})
	defer app.Close()

	input := inputFlag
	if input == "" {
		input = app.Config.Files.HumanSignalJSON
	}
	ds, err := coco.ReadFile(cli.ValidateAndResolveFile(input))
	if err != nil {
		log.Fatal().Err(err).Str("path", input).Msg("Failed to read COCO export")
	}
	log.Info().
		Str("path", input).
		Int("images", len(ds.Images)).
		Int("annotations", len(ds.Annotations)).
		Int("categories", len(ds.Categories)).
		Int("annotatedImages", ds.AnnotatedImages()).
		Msg("COCO export loaded")

	prefix := app.Config.S3.Prefix
	rename := func(name string) string { return importer.CloudPath(prefix, name) }
	imp := importer.New(app.CVAT, app.Config, app.Metrics)

	if annotationsOnlyFlag {
		uploadOnly(ctx, imp, taskFlag, ds.ForLoadedImages(rename, nil))
		return
	}

	batch := importer.GroupDataset(ds, prefix)
	if len(batch.Files) == 0 {
		log.Fatal().Msg("No image in the export carries a session id, nothing to import")
	}
	if err := batch.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Planned job mapping is inconsistent, no task created")
	}

	name := nameFlag
	if name == "" {
		name = app.Config.Task.Name
	}
	if name == "" {
		name = fmt.Sprintf("HumanSignal Import - %s", app.Run.Timestamp())
	}
	labels := ds.Labels(colorFlag)

	cli.Banner("HumanSignal Import")
	fmt.Printf("Export:        %s\n", input)
	fmt.Printf("Task name:     %s\n", name)
	fmt.Printf("Images:        %d of %d\n", len(batch.Files), len(ds.Images))
	fmt.Printf("Sessions:      %d\n", len(batch.Groups))
	fmt.Printf("Labels:        %d\n", len(labels))
	fmt.Printf("Annotations:   %d\n", len(ds.Annotations))
	cli.Separator()
	if !yesFlag && !cli.Confirm("Create the task and upload annotations?") {
		fmt.Println("Aborted. No task was created.")
		return
	}

	start := time.Now()
	task, jobs, err := imp.Load(ctx, name, labels, batch)
	if err != nil {
		exitOnImportError(err, task)
	}
	app.Metrics.Add(metrics.Tasks, 1)

	converted := ds.ForLoadedImages(rename, batch.LoadedSet())
	if err := imp.UploadDataset(ctx, task.ID, converted); err != nil {
		exitOnImportError(err, task)
	}
	app.Metrics.Count(metrics.Success)

	mappingPath, err := report.WriteJobMapping(app.Run.ReportDir, task.ID, importer.JobMappings(jobs, batch))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write job mapping")
	}

	cli.Separator()
	fmt.Printf("Task %d created with %d jobs in %s\n", task.ID, len(jobs), cli.FormatDurationShort(time.Since(start)))
	fmt.Printf("Annotations uploaded for %d images\n", len(converted.Images))
	fmt.Printf("Job mapping: %s\n", mappingPath)
	fmt.Printf("URL: %s/tasks/%d\n", app.CVAT.BaseURL(), task.ID)
}

func uploadOnly(ctx context.Context, imp *importer.Importer, taskID int, converted *coco.Dataset) {
	if err := imp.UploadDataset(ctx, taskID, converted); err != nil {
		exitOnImportError(err, &cvat.Task{ID: taskID})
	}
	fmt.Printf("Annotations uploaded to task %d (%d images, %d annotations)\n",
		taskID, len(converted.Images), len(converted.Annotations))
}

func exitOnImportError(err error, task *cvat.Task) {
	var mapErr *importer.MappingError
	var reqErr *cvat.RequestFailedError
	switch {
	case errors.As(err, &mapErr):
		log.Fatal().Err(err).Strs("missing", mapErr.Missing).Msg("Job mapping references files outside the upload")
	case errors.As(err, &reqErr):
		log.Fatal().
			Err(err).
			Int("taskId", reqErr.TaskID).
			Str("operation", reqErr.Operation).
			Str("hint", string(reqErr.Hint)).
			Msg("CVAT rejected the import")
	case task != nil:
		log.Fatal().Err(err).Int("taskId", task.ID).Msg("Import failed, task left on CVAT for inspection")
	default:
		log.Fatal().Err(err).Msg("Import failed")
	}
}
