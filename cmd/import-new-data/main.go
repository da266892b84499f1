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
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/importer"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

// CLI flags
var (
	configFlag string
	nameFlag   string
	yesFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "import-new-data [new_images_file]",
	Short: "Create a CVAT task from the images check-status found missing",
	Long: `Import New Data reads a new_images list (the newest one in the report
directory when no file is given), groups the keys into one job per recording
chunk, creates a task, attaches the files from cloud storage and waits until
the frames are loaded. Jobs are then assigned round-robin to the configured
assignees and the job to session mapping is written.

Examples:
  import-new-data
  import-new-data reports/new_images_20260121_093000.txt
  import-new-data --name "Batch 12" --yes`,
	Args: cobra.MaximumNArgs(1),
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().StringVarP(&nameFlag, "name", "n", "", "Task name (default: New Data Import - <timestamp>)")
	rootCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Create the task without asking for confirmation")
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
		Command:    "import-new-data",
		ConfigPath: configFlag,
		Required:   []string{"cloud_storage.id"},
	})
	defer app.Close()

	listPath := ""
	if len(args) == 1 {
		listPath = cli.ValidateAndResolveFile(args[0])
	} else {
		latest, ok, err := report.Latest(app.Run.ReportDir, "new_images_*.txt")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to search for new image lists")
		}
		if !ok {
			log.Fatal().Str("dir", app.Run.ReportDir).Msg("No new_images file found, run check-status first")
		}
		listPath = latest
	}

	keys, err := report.ReadLines(listPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read new image list")
	}
	if len(keys) == 0 {
		log.Info().Str("path", listPath).Msg("New image list is empty, nothing to import")
		return
	}

	batch := importer.GroupKeys(keys)
	if err := batch.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Planned job mapping is inconsistent, no task created")
	}
	log.Info().Str("path", listPath).Int("files", len(batch.Files)).Int("jobs", len(batch.Groups)).Msg("Files grouped by chunk")

	name := nameFlag
	if name == "" {
		name = fmt.Sprintf("New Data Import - %s", app.Run.Timestamp())
	}

	cli.Banner("New Data Import")
	fmt.Printf("Source list:   %s\n", listPath)
	fmt.Printf("Task name:     %s\n", name)
	fmt.Printf("Images:        %d\n", len(batch.Files))
	fmt.Printf("Chunks (jobs): %d\n", len(batch.Groups))
	fmt.Printf("Assignees:     %d\n", len(app.Config.Assignees))
	cli.Separator()
	if !yesFlag && !cli.Confirm("Create the task?") {
		fmt.Println("Aborted. No task was created.")
		return
	}

	start := time.Now()
	imp := importer.New(app.CVAT, app.Config, app.Metrics)
	task, jobs, err := imp.Load(ctx, name, importer.Labels(app.Config.Labels), batch)
	if err != nil {
		reportLoadFailure(err, task)
	}
	app.Metrics.Add(metrics.Tasks, 1)
	log.Info().Int("taskId", task.ID).Int("jobs", len(jobs)).Str("elapsed", cli.FormatDurationShort(time.Since(start))).Msg("Frames loaded")

	assigned, failed := imp.AssignRoundRobin(ctx, jobs, app.Config.Assignees, batch.SessionIDs())

	mappingPath, err := report.WriteJobMapping(app.Run.ReportDir, task.ID, importer.JobMappings(jobs, batch))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write job mapping")
	}

	cli.Separator()
	fmt.Printf("Task %d created with %d jobs\n", task.ID, len(jobs))
	fmt.Printf("Assigned: %d  Failed: %d\n", assigned, failed)
	fmt.Printf("Job mapping: %s\n", mappingPath)
	fmt.Printf("URL: %s/tasks/%d\n", app.CVAT.BaseURL(), task.ID)
}

// reportLoadFailure logs why the import stopped and exits.
func reportLoadFailure(err error, task *cvat.Task) {
	var mapErr *importer.MappingError
	var reqErr *cvat.RequestFailedError
	switch {
	case errors.As(err, &mapErr):
		log.Fatal().Err(err).Strs("missing", mapErr.Missing).Msg("Job mapping references files outside the upload")
	case errors.As(err, &reqErr):
		log.Fatal().Err(err).Int("taskId", reqErr.TaskID).Str("hint", string(reqErr.Hint)).Msg("CVAT rejected the data")
	case task != nil:
		log.Fatal().Err(err).Int("taskId", task.ID).Msg("Import failed, task left on CVAT for inspection")
	default:
		log.Fatal().Err(err).Msg("Import failed")
	}
}
