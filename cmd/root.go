package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/AlikanakelaKarwowski/emularr/utils"
)

var (
	cfgFile string
	debug   bool
)

var EmularrVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "emularr",
	Short:   "Emularr locates, downloads, and catalogs game archives",
	Version: EmularrVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file path (default $HOME/.emularr/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newServeCmd())
}
