package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/cli"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/config"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/jsonutil"
	"github.com/worldEngineDev/HumanSignal2CVAT-translation-tools/internal/logging"
)

// CLI flags
var (
	configFlag string
	yesFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write a starter configuration file interactively",
	Long: `Setup asks for the CVAT server, API key, cloud storage and HumanSignal
export and writes them to the configuration file. Everything else keeps the
defaults applied when the file is loaded.

Examples:
  setup
  setup --config staging.json --yes`,
	Args: cobra.NoArgs,
	Run:  runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&configFlag, "config", "c", config.DefaultPath, "Path of the configuration file to write")
	rootCmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Overwrite an existing file without asking")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	cli.Banner("CVAT Tools Setup")
	if jsonutil.Exists(configFlag) && !yesFlag {
		if !cli.Confirm(fmt.Sprintf("%s already exists. Overwrite?", configFlag)) {
			fmt.Println("Aborted. Configuration unchanged.")
			return
		}
	}

	in := config.Initial{
		URL:    cli.PromptForValue("CVAT URL", "https://app.cvat.ai"),
		APIKey: cli.PromptForValue("CVAT API key", ""),
	}
	storage := cli.PromptForValue("Cloud storage id", strconv.Itoa(config.DefaultCloudStorageID))
	id, err := strconv.Atoi(storage)
	if err != nil || id <= 0 {
		log.Fatal().Str("value", storage).Msg("Cloud storage id must be a positive integer")
	}
	in.CloudStorageID = id
	in.HumanSignalJSON = cli.PromptForValue("HumanSignal export", config.DefaultHumanSignalJSON)
	in.TaskName = cli.PromptForValue("Task name", config.DefaultTaskName)

	if err := config.WriteInitial(configFlag, in); err != nil {
		log.Fatal().Err(err).Msg("Failed to write configuration")
	}
	if in.APIKey == "" {
		log.Warn().Msg("No API key given, set cvat.api_key or CVAT_OPS_CVAT_API_KEY before running other commands")
	}

	cli.Separator()
	fmt.Printf("Config:        %s\n", configFlag)
	fmt.Printf("CVAT URL:      %s\n", in.URL)
	fmt.Printf("API key:       %s\n", cli.MaskSecret(in.APIKey))
	fmt.Printf("Cloud storage: %d (%s)\n", in.CloudStorageID, config.DefaultCloudStorageName)
	fmt.Printf("Export:        %s\n", in.HumanSignalJSON)
	fmt.Printf("Task name:     %s\n", in.TaskName)
}
