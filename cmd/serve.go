package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/AlikanakelaKarwowski/emularr/internal/api"
	"github.com/AlikanakelaKarwowski/emularr/internal/config"
	"github.com/AlikanakelaKarwowski/emularr/utils"
)

func newServeCmd() *cobra.Command {
	var listenAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the emularr HTTP API",
		Run: func(cmd *cobra.Command, args []string) {
			log := utils.GetLogger("serve")
			settings, err := config.Load(cfgFile)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error loading configuration: %v", err))
				os.Exit(1)
			}
			ctrl, store, err := buildController(settings, true, true)
			if err != nil {
				utils.PrintError(fmt.Sprintf("Error setting up: %v", err))
				os.Exit(1)
			}
			defer store.Close()

			addr := settings.ListenAddr()
			if listenAddr != "" {
				addr = listenAddr
			}
			router := api.NewRouter(ctrl, store)
			utils.PrintInfo(fmt.Sprintf("Listening on %s", addr))
			if err := router.Run(addr); err != nil {
				log.Error().Err(err).Msg("Server stopped")
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Listen address (default from config)")
	return cmd
}
