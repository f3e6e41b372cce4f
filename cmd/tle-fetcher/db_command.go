package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDBCommand(app *appContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the SQLite database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create the database and apply the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Printf("database ready at %s\n", st.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Check database integrity and report row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := app.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Ping(cmd.Context()); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
			verdict, err := st.IntegrityCheck(cmd.Context())
			if err != nil {
				return err
			}
			if verdict != "ok" {
				return fmt.Errorf("integrity check failed: %s", verdict)
			}
			satellites, tles, err := st.Counts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("integrity ok: %d satellites, %d TLEs at %s\n", satellites, tles, st.Path())
			return nil
		},
	})

	return cmd
}
