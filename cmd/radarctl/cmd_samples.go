package main

import (
	"github.com/spf13/cobra"
)

func newSamplesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "samples",
		Short: "List the sample incidents retrieval is built from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			samples, err := a.Service.Samples()
			if err != nil {
				return err
			}
			return opts.render(cmd.OutOrStdout(), samples)
		},
	}
}
