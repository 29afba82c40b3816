package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/image-metadata-surgery/core"
	"github.com/ankit-chaubey/image-metadata-surgery/core/image"
	"github.com/ankit-chaubey/image-metadata-surgery/core/scrub"
)

type checkRow struct {
	File     string `json:"file"`
	Format   string `json:"format,omitempty"`
	Status   string `json:"status"`
	Tags     int    `json:"tags"`
	Insecure int    `json:"insecure"`
	Error    string `json:"error,omitempty"`
	Clean    bool   `json:"clean"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "check <file>...",
		Short: "Exit non-zero if any file still carries metadata",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			jsonMode, err := parseOutputFormat(format)
			if err != nil {
				return err
			}
			engine, err := ctx.newEngine(cmd)
			if err != nil {
				return err
			}

			results := engine.Batch(cmd.Context(), args, scrub.ModeShow, scrub.Options{Workers: cfg.Clean.Workers})
			rows := make([]checkRow, 0, len(results))
			dirty := 0
			for _, r := range results {
				row := checkRow{File: r.InputPath, Format: string(r.Format), Status: r.Status.String()}
				if !r.Status.OK() {
					row.Error = failureText(r)
				} else {
					row.Tags, row.Insecure = countMetadata(r)
					row.Clean = row.Tags == 0
				}
				if !row.Clean {
					dirty++
				}
				rows = append(rows, row)
			}

			if !ctx.flags.quiet {
				if jsonMode {
					if err := writeJSON(cmd, rows); err != nil {
						return err
					}
				} else {
					printCheckTable(cmd, rows)
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			if dirty > 0 {
				return fmt.Errorf("check: %d of %d file(s) carry metadata or could not be read", dirty, len(rows))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	return cmd
}

func printCheckTable(cmd *cobra.Command, rows []checkRow) {
	body := make([][]string, 0, len(rows))
	for _, row := range rows {
		verdict := "clean"
		switch {
		case row.Error != "":
			verdict = row.Status + ": " + row.Error
		case !row.Clean:
			verdict = "metadata"
		}
		body = append(body, []string{row.File, row.Format, verdict, strconv.Itoa(row.Tags), strconv.Itoa(row.Insecure)})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"File", "Format", "Verdict", "Tags", "Insecure"},
		body,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	))
}

// countMetadata counts the entries clean would remove. Structural tags a
// cleaned file keeps are not metadata.
func countMetadata(r core.Result) (tags, insecure int) {
	for _, e := range r.Record.Entries() {
		if image.StructuralTag(r.Format, e.Key) {
			continue
		}
		tags++
		if core.Sensitivity(e.Name) == core.Insecure {
			insecure++
		}
	}
	return tags, insecure
}

func failureText(r core.Result) string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Reason != "":
		return r.Reason
	default:
		return r.Kind.String()
	}
}
