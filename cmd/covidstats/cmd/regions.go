package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRegionsCommand(o *options) *cobra.Command {
	var configured bool

	c := &cobra.Command{
		Use:   "regions",
		Short: "List the regions present in the confirmed cases table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, snap, _, err := o.refresh(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range snap.Confirmed.Regions() {
				if configured && !contains(cfg.Regions, r) {
					continue
				}
				fmt.Fprintln(out, r)
			}
			return nil
		},
	}
	c.Flags().BoolVar(&configured, "configured", false, "only list regions the dashboard serves")
	return c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
