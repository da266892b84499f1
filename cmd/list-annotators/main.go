package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cvat"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
)

// CLI flags
var (
	configFlag string
	noSaveFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "list-annotators",
	Short: "List organization members and save the annotators as assignees",
	Long: `List Annotators fetches the members of the configured organization,
separates owners and maintainers from workers and supervisors, and writes the
latter to the assignees list of the configuration file. New data imports
distribute jobs over that list.

Examples:
  list-annotators
  list-annotators --config prod.json --no-save`,
	Args: cobra.NoArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", "config.json", "Path to the JSON configuration file")
	rootCmd.Flags().BoolVar(&noSaveFlag, "no-save", false, "Print members without updating the configuration file")
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
		Command:    "list-annotators",
		ConfigPath: configFlag,
		Required:   []string{"organization.slug"},
	})
	defer app.Close()

	members, err := app.CVAT.ListMemberships(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list organization members")
	}

	var admins, annotators []cvat.Membership
	for _, m := range members {
		if m.IsAdmin() {
			admins = append(admins, m)
		} else {
			annotators = append(annotators, m)
		}
	}
	log.Info().Int("members", len(members)).Int("admins", len(admins)).Int("annotators", len(annotators)).Msg("Members listed")

	printMembers(fmt.Sprintf("Administrators (%d)", len(admins)), admins)
	printMembers(fmt.Sprintf("Annotators (%d, workers and supervisors)", len(annotators)), annotators)

	if len(annotators) == 0 {
		fmt.Println("No annotators found, configuration left unchanged.")
		return
	}
	assignees := make([]config.Assignee, 0, len(annotators))
	for _, m := range annotators {
		assignees = append(assignees, config.Assignee{ID: m.User.ID, Name: m.User.DisplayName()})
	}
	if noSaveFlag {
		return
	}
	if err := app.Config.SaveAssignees(assignees); err != nil {
		log.Error().Err(err).Msg("Failed to update configuration, add these assignees manually")
		for _, a := range assignees {
			fmt.Printf("  {\"id\": %d, \"name\": %q}\n", a.ID, a.Name)
		}
		return
	}
	cli.Separator()
	fmt.Printf("Saved %d assignees to %s\n", len(assignees), app.Config.Path())
}

func printMembers(title string, ms []cvat.Membership) {
	if len(ms) == 0 {
		return
	}
	cli.Banner(title)
	for _, m := range ms {
		fmt.Printf("  %-24s @%-20s id=%-8d role=%-10s %s\n", m.User.DisplayName(), m.User.Username, m.User.ID, m.Role, m.User.Email)
	}
}
