package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"stationsim.ai/internal/persistence/indexdb"
	persistlog "stationsim.ai/internal/persistence/log"
	"stationsim.ai/internal/persistence/snapshot"
	"stationsim.ai/internal/sim/catalogs"
	"stationsim.ai/internal/sim/station"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate tuning.yaml and blueprints.json",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tune, cat, err := loadConfigs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tuning ok: tick_rate_hz=%d snapshot_compression=%s\n", tune.TickRateHz, tune.SnapshotCompression)
			fmt.Fprintf(out, "catalog ok: %d blueprints digest=%s\n", cat.Len(), cat.Digest)
			return nil
		},
	}
}

func newCatalogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List blueprints in handle order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := loadConfigs()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "HANDLE\tID\tPINNED\tPOWER\tVOLUME\tBUILD_S")
			for i, d := range cat.All() {
				fmt.Fprintf(tw, "%d\t%s\t%t\t%+g\t%g\t%g\n", i, d.ID, d.Pinned(), d.Power.Production-d.Power.Consumption, d.Volume, d.BuildTime)
			}
			return tw.Flush()
		},
	}
}

func newSnapshotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect snapshot files",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "header <path>",
		Short: "Print the snapshot header",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := snapshot.ReadHeader(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(h)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show <path>",
		Short: "Summarize modules, extensions and crew in a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cat, err := loadConfigs()
			if err != nil {
				return err
			}
			snap, err := snapshot.ReadSnapshot(args[0])
			if err != nil {
				return err
			}
			return printSnapshot(cmd, snap, cat)
		},
	})
	return cmd
}

func printSnapshot(cmd *cobra.Command, snap snapshot.SnapshotV1, cat *catalogs.Catalog) error {
	out := cmd.OutOrStdout()
	h := snap.Header
	fmt.Fprintf(out, "station=%s run=%s tick=%d started=%t time_scale=%g\n", h.StationID, h.RunID, h.Tick, snap.GameStarted, snap.TimeScale)
	if h.CatalogDigest != "" && h.CatalogDigest != cat.Digest {
		fmt.Fprintf(out, "warning: catalog digest %s differs from configs (%s)\n", h.CatalogDigest, cat.Digest)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tTYPE\tPROGRESS")
	for _, m := range snap.Station.Modules {
		fmt.Fprintf(tw, "%d\tmodule\t-\t%.2f\n", m.ID, m.BuildProgress)
		for _, e := range m.Extensions {
			typ := fmt.Sprintf("#%d", e.Blueprint)
			if int(e.Blueprint) < cat.Len() {
				typ = cat.Get(catalogs.Handle(e.Blueprint)).ID
			}
			fmt.Fprintf(tw, "%d\textension\t%s\t%.2f\n", e.ID, typ, e.BuildProgress)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREW\tNAME\tSTATE\tSUBJECT")
	for _, c := range snap.Station.Crew {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", c.ID, c.Name, station.CrewState(c.State), c.Subject)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	st := snap.Station.Stats
	fmt.Fprintf(out, "efficiency=%.3f volume=%g/%g stored: food=%.1f water=%.1f fuel=%.2f materials=%.1f\n",
		st.Efficiency, st.OccupiedVolume, st.Volume, st.Stored.Food, st.Stored.Water, st.Stored.Fuel, st.Stored.Materials)
	return nil
}

func newHistoryCommand() *cobra.Command {
	var dbPath string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Query the sqlite index",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "index path (default: <data>/stations/<station>/index/station.sqlite)")
	open := func() (*indexdb.SQLiteIndex, error) {
		p := dbPath
		if p == "" {
			p = filepath.Join(stationDir(), "index", "station.sqlite")
		}
		return indexdb.OpenSQLite(p)
	}

	var from, to uint64
	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print sampled station stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := open()
			if err != nil {
				return err
			}
			defer idx.Close()
			rows, err := idx.StatsHistory(context.Background(), from, to)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TICK\tEFFICIENCY\tPOWER_PROD\tPOWER_CONS\tWATER\tFOOD")
			for _, r := range rows {
				s := r.Stats
				fmt.Fprintf(tw, "%d\t%.3f\t%g\t%g\t%.1f\t%.1f\n", r.Tick, s.Efficiency, s.Production.Power, s.Consumption.Power, s.Stored.Water, s.Stored.Food)
			}
			return tw.Flush()
		},
	}
	stats.Flags().Uint64Var(&from, "from", 0, "first tick")
	stats.Flags().Uint64Var(&to, "to", ^uint64(0)>>1, "last tick")

	var crew uint32
	assignments := &cobra.Command{
		Use:   "assignments",
		Short: "Print builder assignments of one crew member",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := open()
			if err != nil {
				return err
			}
			defer idx.Close()
			rows, err := idx.Assignments(context.Background(), crew)
			if err != nil {
				return err
			}
			for _, a := range rows {
				fmt.Fprintf(cmd.OutOrStdout(), "tick=%d crew=%d subject=%d accepted=%t\n", a.Tick, a.CrewID, a.Subject, a.Accepted)
			}
			return nil
		},
	}
	assignments.Flags().Uint32Var(&crew, "crew", 0, "crew member id")
	_ = assignments.MarkFlagRequired("crew")

	cmd.AddCommand(stats, assignments)
	return cmd
}

func newTicksCommand() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "ticks",
		Short: "Print the compressed tick log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := dir
			if d == "" {
				d = filepath.Join(stationDir(), "ticks")
			}
			entries, err := persistlog.ReadTicks(d)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range entries {
				fmt.Fprintf(out, "tick=%d x%g efficiency=%.3f completed=%v", e.Tick, e.TimeScale, e.Stats.Efficiency, e.Completed)
				for _, c := range e.Commands {
					fmt.Fprintf(out, " [%s]", c)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "tick log directory (default: <data>/stations/<station>/ticks)")
	return cmd
}
