package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/tuning"
)

var (
	// Global flags
	configDir string
	dataDir   string
	stationID string
)

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "stationctl",
		Short: "Operator tool for station simulation data",
		Long: `stationctl inspects snapshots, tick logs and the sqlite index written by
the station server, validates configs, and runs scripted headless sessions.

Examples:
  stationctl validate
  stationctl catalog
  stationctl snapshot show data/stations/station_1/snapshots/1200.snap
  stationctl history stats --from 0 --to 5000
  stationctl ticks
  stationctl demo --seconds 60`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVar(&configDir, "configs", "./configs", "config directory")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "./data", "runtime data directory")
	rootCmd.PersistentFlags().StringVar(&stationID, "station", "station_1", "station id")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newCatalogCommand())
	rootCmd.AddCommand(newSnapshotCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newTicksCommand())
	rootCmd.AddCommand(newDemoCommand())
	return rootCmd
}

func stationDir() string {
	return filepath.Join(dataDir, "stations", stationID)
}

func loadConfigs() (tuning.Tuning, *catalogs.Catalog, error) {
	tune, err := tuning.Load(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return tune, nil, err
		}
		tune = tuning.Defaults()
	}
	cat, err := catalogs.Load(configDir)
	if err != nil {
		return tune, nil, err
	}
	return tune, cat, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
