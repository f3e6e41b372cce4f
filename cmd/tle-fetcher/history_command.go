package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newHistoryCommand(app *appContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <norad-id>",
		Short: "List stored TLEs for a satellite, newest epoch first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			history, err := st.TLEHistory(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Printf("no stored TLEs for %s\n", args[0])
				return nil
			}

			for _, stored := range history {
				fmt.Printf("epoch %s  source %-10s  fetched %s\n",
					stored.Epoch.Format(time.RFC3339Nano),
					stored.Record.Source,
					stored.FetchedAt.Format(time.RFC3339),
				)
				fmt.Println(stored.Record.Line1)
				fmt.Println(stored.Record.Line2)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of TLEs to list")

	return cmd
}
