package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	persistlog "stationsim.ai/internal/persistence/log"
	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/game"
	"stationsim.ai/internal/sim/scene"
)

func newDemoCommand() *cobra.Command {
	var (
		seconds float64
		save    string
		tickDir string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted headless session",
		Long: `demo starts a game on an in-memory scene, puts the first crew member on
the starter solar panel, orders hydroponics on the starter module and runs the
simulation for the given number of simulated seconds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tune, cat, err := loadConfigs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			var logger *log.Logger
			if verbose {
				logger = log.New(cmd.ErrOrStderr(), "[station] ", log.Lmicroseconds)
			}

			mem := scene.NewMemory()
			game.RegisterTemplates(mem)
			if err := game.SetupScene(mem); err != nil {
				return err
			}
			g := game.New(game.Config{StationID: stationID, Tuning: tune, Catalog: cat, Engine: mem.Engine(), Logger: logger})
			if tickDir != "" {
				tl := persistlog.NewTickLogger(tickDir)
				defer tl.Close()
				g.SetTickLogger(tl)
			}
			g.StartGame()

			starter := g.Station().Modules()[0]
			crew := g.Crew()
			if err := g.AssignBuilder(starter.Extensions[0].ID, crew[0].ID); err != nil {
				return err
			}
			g.OnMouseButton(true, mem.Width/2, mem.Height/2)
			g.MustGUIEvent("build_" + catalogs.Hydroponics)
			if len(crew) > 1 {
				m, _ := g.Station().Module(starter.ID)
				hydro := m.Extensions[len(m.Extensions)-1]
				if err := g.AssignBuilder(hydro.ID, crew[1].ID); err != nil {
					return err
				}
			}

			dt := 1 / float64(tune.TickRateHz)
			steps := int(seconds * float64(tune.TickRateHz))
			for i := 0; i < steps; i++ {
				res := g.StepOnce(dt)
				for _, id := range res.Completed {
					fmt.Fprintf(out, "t=%.2fs completed %d\n", float64(i+1)*dt, id)
				}
			}

			st := g.StationStats()
			fmt.Fprintf(out, "tick=%d efficiency=%.3f power=%g/%g water=%.1f food=%.1f\n",
				g.CurrentTick(), st.Efficiency, st.Production.Power, st.Consumption.Power, st.Stored.Water, st.Stored.Food)
			for _, c := range g.Crew() {
				fmt.Fprintf(out, "crew %d %s: %s\n", c.ID, c.Name, c.State)
			}

			if save != "" {
				if err := snapshot.WriteSnapshot(save, g.ExportSnapshot(), snapshot.Compression(tune.SnapshotCompression)); err != nil {
					return err
				}
				fmt.Fprintf(out, "snapshot written to %s\n", save)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&seconds, "seconds", 30, "simulated seconds to run")
	cmd.Flags().StringVar(&save, "save", "", "write a snapshot file when done")
	cmd.Flags().StringVar(&tickDir, "tick-log", "", "write the tick log under <dir>/ticks")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log session events to stderr")
	return cmd
}
