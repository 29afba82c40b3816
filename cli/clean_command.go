package main

import (
	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/image-metadata-surgery/core/scrub"
	"github.com/ankit-chaubey/image-metadata-surgery/internal/config"
)

type cleanFlags struct {
	copy      bool
	outputDir string
	suffix    string
	overwrite bool
	dryRun    bool
	workers   int
	format    string
}

func newCleanCommand(ctx *commandContext) *cobra.Command {
	flags := &cleanFlags{}

	cmd := &cobra.Command{
		Use:   "clean <file>...",
		Short: "Strip metadata in place or into copies",
		Long: "Strip EXIF, IPTC, XMP and textual metadata without re-encoding pixels.\n\n" +
			"By default files are replaced atomically. With --copy (or --output-dir) the\n" +
			"original is left untouched and a cleaned copy is written beside it.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			printer, err := ctx.printer(cmd, flags.format)
			if err != nil {
				return err
			}
			opts, err := flags.options(cmd, cfg)
			if err != nil {
				return err
			}
			engine, err := ctx.newEngine(cmd)
			if err != nil {
				return err
			}

			results := engine.Batch(cmd.Context(), args, scrub.ModeClean, opts)
			if !ctx.flags.quiet {
				if err := printer.PrintResults(results); err != nil {
					return err
				}
			}
			if err := cmd.Context().Err(); err != nil {
				return err
			}
			return incompleteError("clean", results)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&flags.copy, "copy", false, "Write a cleaned copy instead of replacing the original")
	f.StringVarP(&flags.outputDir, "output-dir", "o", "", "Directory for cleaned copies (implies --copy)")
	f.StringVar(&flags.suffix, "suffix", "", "Suffix added to copy names (default from config, \"_clean\")")
	f.BoolVar(&flags.overwrite, "overwrite", false, "Replace existing copies")
	f.BoolVarP(&flags.dryRun, "dry-run", "n", false, "Report what would be removed without writing")
	f.IntVarP(&flags.workers, "workers", "j", 0, "Files processed concurrently (0 means one per CPU)")
	f.StringVarP(&flags.format, "format", "f", "table", "Output format (table, json)")
	return cmd
}

// options merges the [clean] config section with explicitly set flags.
func (f *cleanFlags) options(cmd *cobra.Command, cfg *config.Config) (scrub.Options, error) {
	opts := scrub.Options{
		Copy:          f.copy,
		DryRun:        f.dryRun,
		OutputDir:     cfg.Clean.OutputDir,
		Suffix:        cfg.Clean.Suffix,
		Overwrite:     cfg.Clean.Overwrite,
		XMPProperties: cfg.Decode.XMPProperties,
		Workers:       cfg.Clean.Workers,
	}

	override := *cfg
	changed := cmd.Flags().Changed
	if changed("output-dir") {
		override.Clean.OutputDir = f.outputDir
		opts.OutputDir = f.outputDir
	}
	if changed("suffix") {
		override.Clean.Suffix = f.suffix
		opts.Suffix = f.suffix
	}
	if changed("overwrite") {
		opts.Overwrite = f.overwrite
	}
	if changed("workers") {
		override.Clean.Workers = f.workers
		opts.Workers = f.workers
	}
	if err := override.Validate(); err != nil {
		return scrub.Options{}, err
	}
	if changed("output-dir") && f.outputDir != "" {
		opts.Copy = true
	}
	return opts, nil
}
