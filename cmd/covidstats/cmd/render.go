package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/covid-dashboard/internal/adapter/chart"
	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
)

func newRenderCommand(o *options) *cobra.Command {
	var output string

	c := &cobra.Command{
		Use:   "render <chart> <region>",
		Short: "Render one dashboard chart to a PNG file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, snap, metrics, err := o.refresh(cmd.Context())
			if err != nil {
				return err
			}
			ch, err := dashboard.ChartFor(snap, dashboard.ChartID(args[0]), args[1])
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			r := chart.NewRenderer(cfg.ChartWidth, cfg.ChartHeight, metrics)
			if err := r.Render(cmd.Context(), ch, &buf); err != nil {
				return err
			}

			path := output
			if path == "" {
				path = fmt.Sprintf("%s.png", ch.ID)
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", path, buf.Len())
			return nil
		},
	}
	c.Flags().StringVarP(&output, "output", "o", "", "output file (default <chart>.png)")
	return c
}
