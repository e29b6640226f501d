package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/AlikanakelaKarwowski/emularr/internal/catalog"
	"github.com/AlikanakelaKarwowski/emularr/internal/config"
	"github.com/AlikanakelaKarwowski/emularr/internal/download"
	"github.com/AlikanakelaKarwowski/emularr/internal/extract"
	"github.com/AlikanakelaKarwowski/emularr/utils"
)

func newGetCmd() *cobra.Command {
	var (
		name      string
		platform  string
		outputDir string
		threads   int
		noExtract bool
		noCatalog bool
	)

	cmd := &cobra.Command{
		Use:   "get [URL]",
		Short: "Download a game archive",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			settings, err := config.Load(cfgFile)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error loading configuration: %v", err))
				os.Exit(1)
			}
			if outputDir != "" {
				settings.SetDownloadDir(outputDir)
			}
			if threads > 0 {
				settings.SetChunkThreads(threads)
			}

			ctrl, store, err := buildController(settings, !noExtract, !noCatalog)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error setting up: %v", err))
				os.Exit(1)
			}
			if store != nil {
				defer store.Close()
			}

			id, err := ctrl.Start(args[0], download.Metadata{Name: name, Platform: platform})
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error starting download: %v", err))
				os.Exit(1)
			}
			if !waitForTasks(ctrl, []string{id}) {
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name for the download")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "Platform tag for the library entry")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", "", "Override the configured download directory")
	cmd.Flags().IntVarP(&threads, "threads", "t", 0, "Override the configured chunk thread count")
	cmd.Flags().BoolVar(&noExtract, "no-extract", false, "Keep archives intact after download")
	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Skip library registration")
	return cmd
}

func buildController(settings *config.Settings, withExtract, withCatalog bool) (*download.Controller, *catalog.Store, error) {
	var extractor download.Extractor
	if withExtract {
		extractor = extract.NewService()
	}
	var store *catalog.Store
	var lib download.Catalog
	if withCatalog {
		dbPath := settings.DatabasePath()
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("error creating database directory: %w", err)
		}
		var err error
		store, err = catalog.NewStore(dbPath)
		if err != nil {
			return nil, nil, err
		}
		lib = store
	}
	return download.NewController(settings, extractor, lib), store, nil
}

// waitForTasks polls the controller until every task reaches a terminal
// state, drawing a progress line per tick. Returns false if any task
// failed.
func waitForTasks(ctrl *download.Controller, ids []string) bool {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	allOK := true
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}
	for range ticker.C {
		for id := range pending {
			snap := ctrl.GetProgress(id)
			if snap == nil {
				delete(pending, id)
				continue
			}
			printProgressLine(snap)
			if snap.Status.IsTerminal() {
				fmt.Println()
				delete(pending, id)
				switch snap.Status {
				case download.StatusCompleted:
					fmt.Printf("%s %s downloaded\n", utils.FSuccess(utils.StyleSymbols["pass"]), snap.Name)
				case download.StatusError:
					fmt.Printf("%s %s failed: %s\n", utils.FError(utils.StyleSymbols["fail"]), snap.Name, snap.Error)
					allOK = false
				}
			}
		}
		if len(pending) == 0 {
			return allOK
		}
	}
	return allOK
}

func printProgressLine(snap *download.Snapshot) {
	fmt.Printf("\r\033[K")
	if snap.Progress < 0 {
		fmt.Printf("%s: %s at %s/s", utils.FInfo(snap.Name),
			utils.FormatBytes(uint64(snap.Downloaded)),
			utils.FormatBytes(uint64(snap.SpeedBPS)))
		return
	}
	fmt.Printf("%s: %.1f%% (%s/%s) %s/s ETA: %s", utils.FInfo(snap.Name),
		snap.Progress*100,
		utils.FormatBytes(uint64(snap.Downloaded)),
		utils.FormatBytes(uint64(snap.TotalBytes)),
		utils.FormatBytes(uint64(snap.SpeedBPS)),
		utils.FormatETA(snap.ETASeconds))
}
