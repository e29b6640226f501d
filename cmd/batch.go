package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/AlikanakelaKarwowski/emularr/internal/config"
	"github.com/AlikanakelaKarwowski/emularr/internal/download"
	"github.com/AlikanakelaKarwowski/emularr/utils"
)

// BatchEntry is one line of a batch download list.
type BatchEntry struct {
	URL      string `yaml:"url"`
	Name     string `yaml:"name,omitempty"`
	Platform string `yaml:"platform,omitempty"`
}

func newBatchCmd() *cobra.Command {
	var noExtract, noCatalog bool

	cmd := &cobra.Command{
		Use:   "batch [LIST_FILE]",
		Short: "Download every entry of a yaml list",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries, err := readBatchList(args[0])
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error reading list: %v", err))
				os.Exit(1)
			}
			settings, err := config.Load(cfgFile)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error loading configuration: %v", err))
				os.Exit(1)
			}
			ctrl, store, err := buildController(settings, !noExtract, !noCatalog)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error setting up: %v", err))
				os.Exit(1)
			}
			if store != nil {
				defer store.Close()
			}

			utils.PrintHeader(fmt.Sprintf("Starting %d downloads", len(entries)))
			var ids []string
			for _, entry := range entries {
				id, err := ctrl.Start(entry.URL, download.Metadata{Name: entry.Name, Platform: entry.Platform})
				if err != nil {
					utils.PrintWarning(fmt.Sprintf("Skipping %s: %v", entry.URL, err))
					continue
				}
				utils.PrintDetail(fmt.Sprintf("  %s %s", utils.StyleSymbols["bullet"], entry.URL))
				ids = append(ids, id)
			}
			if len(ids) == 0 {
				utils.PrintError("No downloads could be started")
				os.Exit(1)
			}
			if !waitForTasks(ctrl, ids) {
				utils.PrintError("Encountered failed download(s)")
				os.Exit(1)
			}
			utils.PrintSuccess("All downloads completed")
		},
	}

	cmd.Flags().BoolVar(&noExtract, "no-extract", false, "Keep archives intact after download")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Skip library registration")
	return cmd
}

func readBatchList(filePath string) ([]BatchEntry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading YAML file: %w", err)
	}
	var entries []BatchEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("error parsing YAML file: %w", err)
	}
	for i, entry := range entries {
		if entry.URL == "" {
			return nil, fmt.Errorf("missing URL for entry %d", i+1)
		}
	}
	return entries, nil
}
