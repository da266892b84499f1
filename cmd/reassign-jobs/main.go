package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/metrics"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/perf"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/planner"
)

// CLI flags
var (
	configFlag string
	policyFlag string
	usersFlag  string
	yesFlag    bool
	dryRunFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "reassign-jobs [task_id...]",
	Short: "Balance not-yet-started jobs across annotators",
	Long: `Reassign Jobs collects every job's annotation count, keeps jobs with any
annotation on their current assignee, and redistributes the rest.

Policies:
  jobs    equalize the number of jobs per annotator (default)
  frames  equalize assigned frames, largest jobs first

Annotators default to the worker and supervisor members of the organization.

Examples:
  reassign-jobs --dry-run
  reassign-jobs 1234 --policy frames
  reassign-jobs --users 12,15,19 --yes
  reassign-jobs --users all`,
	Args: cobra.ArbitraryArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().StringVar(&policyFlag, "policy", "", "Balancing policy: jobs or frames (default from config)")
	rootCmd.Flags().StringVar(&usersFlag, "users", "", "Comma-separated user ids, or \"all\" for every member")
	rootCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Apply without asking for confirmation")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Print the plan without assigning")
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
	allUsers := strings.EqualFold(strings.TrimSpace(usersFlag), "all")
	var userIDs []int
	if usersFlag != "" && !allUsers {
		if userIDs, err = cli.ParseIDs([]string{usersFlag}); err != nil {
			log.Fatal().Err(err).Msg("Invalid --users value")
		}
	}

	app := cli.Bootstrap(ctx, cli.Options{Command: "reassign-jobs", ConfigPath: configFlag})
	defer app.Close()

	policy := app.Config.Reassign.Policy
	if policyFlag != "" {
		policy = policyFlag
	}
	strategy, err := planner.StrategyFor(policy)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid policy")
	}

	members, err := app.CVAT.ListMemberships(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list organization members")
	}
	users, err := planner.SelectUsers(members, userIDs, allUsers)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid user selection")
	}

	tasks, err := app.Fetcher.Tasks(ctx, ids)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list tasks")
	}
	records, err := perf.Collect(ctx, app.Fetcher, tasks, perf.UserNames(members))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to collect job counts")
	}
	app.Metrics.Add(metrics.Tasks, len(tasks)).Add(metrics.Jobs, len(records))

	plan, err := planner.NewPlan(strategy, planner.NewWorkload(records), users)
	if err != nil {
		if errors.Is(err, planner.ErrNoUnstartedJobs) {
			log.Info().Int("jobs", len(records)).Msg("Every job has annotation activity, nothing to reassign")
			return
		}
		log.Fatal().Err(err).Msg("Failed to plan reassignment")
	}
	plan.Summary()
	printPlan(plan)

	if dryRunFlag {
		fmt.Println("Dry run: no jobs were reassigned.")
		return
	}
	if !yesFlag && !cli.Confirm(fmt.Sprintf("Reassign %d job(s)?", len(plan.Assignments))) {
		fmt.Println("Aborted. No jobs were reassigned.")
		return
	}

	res := planner.Apply(ctx, app.CVAT, plan)
	app.Metrics.Add(metrics.Success, res.Success).Add(metrics.Skipped, res.Skipped).Add(metrics.Failed, res.Failed)
	cli.Separator()
	fmt.Printf("Assigned: %d  Unchanged: %d  Failed: %d\n", res.Success, res.Skipped, res.Failed)
}

func printPlan(p *planner.Plan) {
	cli.Banner(fmt.Sprintf("Reassignment plan (%s)", p.Strategy))
	fmt.Printf("Unstarted jobs: %d\n", p.Unstarted)
	cli.Separator()
	fmt.Printf("%-20s %8s %8s %8s %8s %8s\n", "user", "started", "frames", "new", "frames", "total")
	for _, l := range p.Loads {
		fmt.Printf("%-20s %8d %8d %8d %8d %8d\n",
			l.User.Name, l.StartedJobs, l.StartedFrames, l.AssignedJobs, l.AssignedFrames, l.TotalFrames())
	}
	cli.Separator()
	for _, a := range p.Assignments {
		from := a.FromUsername
		if from == "" {
			from = "unassigned"
		}
		marker := ""
		if a.Unchanged() {
			marker = " (unchanged)"
		}
		fmt.Printf("job %d (task %d, %d frames): %s -> %s%s\n", a.JobID, a.TaskID, a.Frames, from, a.To.Name, marker)
	}
}
