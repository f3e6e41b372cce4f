package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	app := &appContext{configPath: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "tle-fetcher",
		Short:         "Fetch, validate, store, and propagate NORAD two-line element sets",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newFetchCommand(app))
	rootCmd.AddCommand(newDiscoverCommand(app))
	rootCmd.AddCommand(newPropagateCommand(app))
	rootCmd.AddCommand(newHistoryCommand(app))
	rootCmd.AddCommand(newDBCommand(app))
	rootCmd.AddCommand(newReportCommand(app))
	rootCmd.AddCommand(newServeCommand(app))

	return rootCmd
}
