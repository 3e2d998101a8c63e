package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"llmfoundry/internal/config"
	"llmfoundry/internal/logging"
	"llmfoundry/internal/tui"
)

var (
	cfgFile   string
	debugFlag bool
	rootCmd   = &cobra.Command{
		Use:   "llmfoundry",
		Short: "Run Azure AI Foundry and Foundry Local models from the command line",
		Long: `llmfoundry discovers the chat and embedding models deployed in an Azure AI Foundry
project and the models managed by Foundry Local, and runs them through their
OpenAI-compatible endpoints. Local models are downloaded and loaded on first use.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Without a subcommand, launch the TUI
			return tui.Run(cfgFile, loadRegistry)
		},
	}
)

func Execute(version, commit, buildTime string) error {
	rootCmd.Version = version
	versionInfo = fmt.Sprintf("llmfoundry version %s (commit %s, built %s)", version, commit, buildTime)
	defer logging.Close()
	return rootCmd.Execute()
}

var versionInfo string

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/llmfoundry/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debugFlag, "debug", "d", false, "Enable debug mode (verbose output)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return logging.Setup(debugFlag, "", "")
		}
		return logging.Setup(debugFlag, cfg.Log.Level, cfg.Log.File)
	}

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(promptCmd)
	rootCmd.AddCommand(embedCmd)
	rootCmd.AddCommand(azureCmd)
	rootCmd.AddCommand(foundryCmd)
	rootCmd.AddCommand(cacheCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), versionInfo)
	},
}
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage llmfoundry configuration",
}
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create initial configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, err := config.Init(cfgFile)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration file created at: %s\n", cfgPath)
		fmt.Fprintln(cmd.OutOrStdout(), "Set azure.endpoint to your project endpoint to use Azure AI Foundry deployments.")
		return nil
	},
}
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, content, err := config.Show(cfgFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), content)
		return nil
	},
}
var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Update a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return config.Set(cfgFile, args[0], args[1])
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
