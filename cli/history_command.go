package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/image-metadata-surgery/core/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var format string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent show and clean actions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jsonMode, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			if !cfg.History.Enabled {
				return errors.New("history is disabled; set [history] enabled = true in the config file")
			}
			if lines <= 0 {
				return fmt.Errorf("--lines must be positive, got %d", lines)
			}

			log, err := history.Open(cfg.History.Path)
			if err != nil {
				return fmt.Errorf("open history: %w", err)
			}
			entries, err := log.Tail(lines)
			if err != nil {
				return err
			}

			if jsonMode {
				if entries == nil {
					entries = []history.Entry{}
				}
				return writeJSON(cmd, entries)
			}
			if len(entries) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No history recorded in %s\n", log.Path())
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{
					e.Timestamp.Local().Format(time.DateTime),
					e.Action,
					e.Result,
					e.File,
					e.Details,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Time", "Action", "Result", "File", "Details"}, rows, nil))
			return nil
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 20, "Number of entries to show")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	return cmd
}
