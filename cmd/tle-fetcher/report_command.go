package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cywf/tle-fetcher/internal/fetch"
)

func newReportCommand(app *appContext) *cobra.Command {
	var fromFiles bool

	cmd := &cobra.Command{
		Use:   "report [dest]",
		Short: "Emit a JSON summary of stored TLEs to dest (default: stdout)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := app.setup()
			if err != nil {
				return err
			}

			var entries []fetch.ReportEntry
			if fromFiles {
				if entries, err = fetch.FileReportEntries(cfg.Paths.TLEDir); err != nil {
					return err
				}
			} else {
				st, err := app.openStore()
				if err != nil {
					return err
				}
				defer st.Close()

				latest, err := st.LatestTLEs(cmd.Context())
				if err != nil {
					return err
				}
				for _, stored := range latest {
					entries = append(entries, fetch.ReportEntry{
						ID:        stored.Record.ObjectID,
						Name:      stored.Record.Name,
						Epoch:     stored.Epoch.Format(time.RFC3339Nano),
						Source:    stored.Record.Source,
						FetchedAt: stored.FetchedAt.Format(time.RFC3339),
					})
				}
			}

			report := fetch.BuildReport(entries, time.Now())
			payload, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}

			if len(args) == 0 || args[0] == "-" {
				fmt.Println(string(payload))
				return nil
			}
			return os.WriteFile(args[0], append(payload, '\n'), 0o644)
		},
	}

	cmd.Flags().BoolVar(&fromFiles, "files", false, "Summarize the flat-file cache under tle_dir instead of SQLite")

	return cmd
}
