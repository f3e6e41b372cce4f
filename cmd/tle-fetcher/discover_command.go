package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cywf/tle-fetcher/internal/ingest"
)

func newDiscoverCommand(app *appContext) *cobra.Command {
	var (
		sinceFlag string
		offline   bool
		group     string
	)

	cmd := &cobra.Command{
		Use:   "discover <source>",
		Short: "Ingest a bulk catalog feed (celestrak or ivan) and record new TLEs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := app.setup()
			if err != nil {
				return err
			}

			var since *time.Time
			if sinceFlag != "" {
				parsed, err := time.Parse(time.RFC3339, sinceFlag)
				if err != nil {
					return fmt.Errorf("invalid --since, want RFC 3339: %w", err)
				}
				parsed = parsed.UTC()
				since = &parsed
			}

			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			src, err := ingest.SourceFor(args[0], group)
			if err != nil {
				return err
			}

			pipeline := ingest.NewPipeline(st, logger, nil)
			result, err := pipeline.Run(cmd.Context(), src, since, cfg.Fetch.Offline || offline)
			if err != nil {
				return err
			}

			fmt.Printf("run %d: %d new entries from %s", result.RunID, len(result.NewEntries), result.Source)
			if result.UsedCache {
				fmt.Print(" (cached feed)")
			}
			fmt.Println()
			if result.Cursor != nil {
				fmt.Printf("cursor: %s\n", result.Cursor.Format(time.RFC3339))
			}
			for _, entry := range result.NewEntries {
				name := entry.Name
				if name == "" {
					name = "-"
				}
				fmt.Printf("%-7s %-24s epoch %s\n", entry.NoradID, name, entry.Epoch.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sinceFlag, "since", "", "Only record entries with epochs after this RFC 3339 time")
	cmd.Flags().BoolVar(&offline, "offline", false, "Replay the cached feed instead of fetching")
	cmd.Flags().StringVar(&group, "group", "", "CelesTrak element group (default \"active\")")

	return cmd
}
