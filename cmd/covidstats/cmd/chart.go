package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/covid-dashboard/internal/dashboard"
)

func newChartCommand(o *options) *cobra.Command {
	var format string

	c := &cobra.Command{
		Use:   "chart <chart> <region>",
		Short: "Print the points of one dashboard chart",
		Long: `Print the points of one dashboard chart for a region.

Charts: ` + chartIDs(),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unknown format %q (want table or json)", format)
			}

			_, snap, _, err := o.refresh(cmd.Context())
			if err != nil {
				return err
			}
			ch, err := dashboard.ChartFor(snap, dashboard.ChartID(args[0]), args[1])
			if err != nil {
				return err
			}

			if format == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(ch)
			}
			return writeTable(cmd.OutOrStdout(), ch)
		},
	}
	c.Flags().StringVarP(&format, "format", "f", "table", "output format (table, json)")
	return c
}

func writeTable(w io.Writer, ch *dashboard.Chart) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s - %s (snapshot %d)\n", ch.Title, ch.Region, ch.Version)

	timeAxis := ch.X.Scale == dashboard.ScaleTime
	for _, s := range ch.Series {
		fmt.Fprintf(tw, "\n%s\n", s.Name)
		if timeAxis {
			fmt.Fprintf(tw, "date\t%s\n", ch.Y.Label)
		} else {
			fmt.Fprintf(tw, "date\t%s\t%s\n", ch.X.Label, ch.Y.Label)
		}
		for _, p := range s.Points {
			date := p.Date.Format(time.DateOnly)
			if timeAxis {
				fmt.Fprintf(tw, "%s\t%s\n", date, formatValue(p.Y))
			} else {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", date, formatValue(p.X), formatValue(p.Y))
			}
		}
	}
	return tw.Flush()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func chartIDs() string {
	defs := dashboard.Catalog()
	ids := make([]string, len(defs))
	for i, d := range defs {
		ids[i] = string(d.ID)
	}
	return strings.Join(ids, ", ")
}
