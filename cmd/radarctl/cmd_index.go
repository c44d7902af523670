package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

func newIndexCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build and inspect the retrieval index",
	}
	cmd.AddCommand(newIndexBuildCmd(opts), newIndexStatusCmd(opts))
	return cmd
}

func newIndexBuildCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Embed both corpora and persist a new index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			build, err := a.Service.BuildIndex(cmd.Context())
			if build != nil {
				if rerr := opts.render(cmd.OutOrStdout(), build); rerr != nil {
					return rerr
				}
			}
			if err != nil {
				return fmt.Errorf("build index: %w", err)
			}
			return nil
		},
	}
}

func newIndexStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status [build-id]",
		Short: "Show one index build, or the latest",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			var build *models.IndexBuild
			if len(args) == 1 {
				id, perr := uuid.Parse(args[0])
				if perr != nil {
					return fmt.Errorf("build id: %w", perr)
				}
				build, err = a.Service.GetIndexBuild(cmd.Context(), id)
			} else {
				build, err = a.Service.LatestIndexBuild(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("index status: %w", err)
			}
			return opts.render(cmd.OutOrStdout(), struct {
				*models.IndexBuild
				Backend string `json:"active_backend"`
			}{build, a.Index.Backend()})
		},
	}
}
