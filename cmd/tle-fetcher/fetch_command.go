package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cywf/tle-fetcher/internal/store"
)

func newFetchCommand(app *appContext) *cobra.Command {
	var (
		offline   bool
		asJSON    bool
		noPersist bool
	)

	cmd := &cobra.Command{
		Use:   "fetch <norad-id>...",
		Short: "Fetch the latest TLE for one or more catalog identifiers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := app.setup()
			if err != nil {
				return err
			}

			var st *store.Store
			if !noPersist {
				if st, err = app.openStore(); err != nil {
					return err
				}
				defer st.Close()
			}
			svc, err := app.newService(st)
			if err != nil {
				return err
			}

			results, err := svc.FetchMany(cmd.Context(), args, app.fetchOptions(offline))
			if err != nil {
				return err
			}

			for _, res := range results {
				logger.Info("fetched TLE",
					"id", res.Record.ObjectID,
					"source", res.Source,
					"stale", res.Stale,
					"fetched_at", res.FetchedAt.Format(time.RFC3339),
				)
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					if err := enc.Encode(res.Record); err != nil {
						return err
					}
					continue
				}
				fmt.Print(res.Record.Text(true))
				for _, warning := range res.Warnings {
					fmt.Fprintln(os.Stderr, "warning:", warning)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Serve from cache only, never touch the network")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	cmd.Flags().BoolVar(&noPersist, "no-db", false, "Persist to flat files under tle_dir instead of SQLite")

	return cmd
}
