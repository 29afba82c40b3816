package main

import (
	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/image-metadata-surgery/core/scrub"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var format string
	var xmpProperties bool

	cmd := &cobra.Command{
		Use:   "show <file>...",
		Short: "Print the metadata carried by each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			printer, err := ctx.printer(cmd, format)
			if err != nil {
				return err
			}
			engine, err := ctx.newEngine(cmd)
			if err != nil {
				return err
			}

			opts := scrub.Options{
				XMPProperties: cfg.Decode.XMPProperties,
				Workers:       cfg.Clean.Workers,
			}
			if cmd.Flags().Changed("xmp-properties") {
				opts.XMPProperties = xmpProperties
			}

			results := engine.Batch(cmd.Context(), args, scrub.ModeShow, opts)
			if !ctx.flags.quiet {
				if err := printer.PrintRecords(results); err != nil {
					return err
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			return incompleteError("show", results)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json)")
	cmd.Flags().BoolVar(&xmpProperties, "xmp-properties", false, "Decode XMP packets into individual properties")
	return cmd
}
