package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cywf/tle-fetcher/internal/propagation"
	"github.com/cywf/tle-fetcher/internal/store"
)

func newPropagateCommand(app *appContext) *cobra.Command {
	var (
		startFlag string
		endFlag   string
		stepFlag  time.Duration
		workers   int
		offline   bool
		record    bool
	)

	cmd := &cobra.Command{
		Use:   "propagate <norad-id>",
		Short: "Sample SGP4 positions for a satellite over a time window",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := app.setup()
			if err != nil {
				return err
			}
			id := args[0]

			start, err := time.Parse(time.RFC3339, startFlag)
			if err != nil {
				return fmt.Errorf("invalid --start, want RFC 3339: %w", err)
			}
			end := start
			if endFlag != "" {
				if end, err = time.Parse(time.RFC3339, endFlag); err != nil {
					return fmt.Errorf("invalid --end, want RFC 3339: %w", err)
				}
			}

			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			svc, err := app.newService(st)
			if err != nil {
				return err
			}
			res, err := svc.FetchOne(cmd.Context(), id, app.fetchOptions(offline))
			if err != nil {
				return err
			}

			prop, err := propagation.NewPropagator(res.Record.Line1, res.Record.Line2, res.Record.ObjectID)
			if err != nil {
				return err
			}
			sampler := propagation.NewSampler(workers, logger)
			samples, err := sampler.Range(cmd.Context(), prop, start.UTC(), end.UTC(), stepFlag)
			if err != nil {
				return err
			}

			if record {
				runID, err := st.CreateRun(cmd.Context(), res.Record.ObjectID, "TEME", "sgp4")
				if err != nil {
					return err
				}
				positions := make([]store.Position, len(samples))
				for i, s := range samples {
					positions[i] = store.Position{
						Timestamp:  s.Time,
						X:          s.Position[0],
						Y:          s.Position[1],
						Z:          s.Position[2],
						VX:         s.Velocity[0],
						VY:         s.Velocity[1],
						VZ:         s.Velocity[2],
						Latitude:   s.Latitude,
						Longitude:  s.Longitude,
						AltitudeKm: s.AltitudeKm,
					}
				}
				if err := st.RecordPositions(cmd.Context(), runID, res.Record.ObjectID, positions); err != nil {
					return err
				}
				if err := st.FinishRun(cmd.Context(), runID, len(positions)); err != nil {
					return err
				}
				logger.Info("propagation recorded", "run_id", runID, "samples", len(positions))
			}

			fmt.Printf("# %s (%s) via %s, %d samples\n", res.Record.ObjectID, res.Record.Name, res.Source, len(samples))
			fmt.Println("# time                     x_km        y_km        z_km        lat      lon      alt_km")
			for _, s := range samples {
				fmt.Printf("%s  %10.3f  %10.3f  %10.3f  %7.3f  %8.3f  %8.2f\n",
					s.Time.Format(time.RFC3339),
					s.Position[0], s.Position[1], s.Position[2],
					s.Latitude, s.Longitude, s.AltitudeKm,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&startFlag, "start", "", "Window start (RFC 3339, required)")
	cmd.Flags().StringVar(&endFlag, "end", "", "Window end (RFC 3339, default: start)")
	cmd.Flags().DurationVar(&stepFlag, "step", time.Minute, "Sample interval")
	cmd.Flags().IntVar(&workers, "workers", 0, "Sampler workers (default: NumCPU)")
	cmd.Flags().BoolVar(&offline, "offline", false, "Serve the TLE from cache only")
	cmd.Flags().BoolVar(&record, "record", false, "Store samples in the positions table")
	cmd.MarkFlagRequired("start")

	return cmd
}
