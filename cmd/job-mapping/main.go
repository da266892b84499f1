package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/importer"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/report"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "job-mapping <task_id>",
	Short: "Rebuild the job to session mapping of an existing task",
	Long: `Job Mapping reads the frame names of every job in the task and records
the recording chunk of each job's first frame in
job_session_mapping_<task_id>.json. Jobs whose frames cannot be read keep an
empty session id.

Examples:
  job-mapping 1234`,
	Args: cobra.ExactArgs(1),
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
	if err != nil || len(ids) != 1 {
		log.Fatal().Err(err).Strs("args", args).Msg("Expected a single task id")
	}
	taskID := ids[0]

	app := cli.Bootstrap(ctx, cli.Options{Command: "job-mapping", ConfigPath: configFlag})
	defer app.Close()

	jobs, err := app.Fetcher.Jobs(ctx, taskID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list jobs")
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].StartFrame < jobs[j].StartFrame })
	app.Metrics.Add(metrics.Jobs, len(jobs))

	metas, err := app.Fetcher.FrameMeta(ctx, jobs)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read job frames")
	}
	mappings := importer.ResolveMappings(jobs, metas)

	path, err := report.WriteJobMapping(app.Run.ReportDir, taskID, mappings)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to write job mapping")
	}

	cli.Banner(fmt.Sprintf("Job mapping, task %d", taskID))
	unresolved := 0
	for _, m := range mappings {
		session := m.SessionID
		if session == "" {
			session = "(unresolved)"
			unresolved++
		}
		fmt.Printf("job %-8d frames %5d-%-5d %s\n", m.JobID, m.StartFrame, m.StopFrame, session)
	}
	if unresolved > 0 {
		log.Warn().Int("jobs", unresolved).Msg("Jobs without a resolved session")
	}
	cli.Separator()
	fmt.Printf("Mapping: %s\n", path)
}
