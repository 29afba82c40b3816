package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankit-chaubey/image-metadata-surgery/core/image"
)

func newFormatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "formats",
		Short:       "List supported image formats",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			handlers := image.Handlers()
			rows := make([][]string, 0, len(handlers))
			for _, h := range handlers {
				info := h.Info()
				rows = append(rows, []string{
					info.Name,
					strings.Join(info.Extensions, " "),
					strings.Join(info.MIMETypes, " "),
					info.Notes,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Format", "Extensions", "MIME", "Notes"}, rows, nil))
			return nil
		},
	}
}
