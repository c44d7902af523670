package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/incidentradar/internal/apikey"
	"github.com/kiranshivaraju/incidentradar/pkg/models"
)

func newKeysCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
		Long:  "Manage API keys. Keys live in the configured database; without\nDATABASE_URL they vanish when the command exits.",
	}
	cmd.AddCommand(newKeysCreateCmd(opts), newKeysListCmd(opts))
	return cmd
}

func newKeysCreateCmd(opts *rootOptions) *cobra.Command {
	var flags struct {
		name   string
		scopes []string
	}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a key and print it once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, key, err := apikey.Generate(flags.name, flags.scopes)
			if err != nil {
				return err
			}

			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Store.CreateAPIKey(cmd.Context(), key); err != nil {
				return fmt.Errorf("store key: %w", err)
			}
			return opts.render(cmd.OutOrStdout(), struct {
				*models.APIKey
				Key string `json:"key"`
			}{key, raw})
		},
	}
	f := cmd.Flags()
	f.StringVar(&flags.name, "name", "", "Key name (required)")
	f.StringSliceVar(&flags.scopes, "scope", []string{models.ScopeRead}, "Scopes: read, process, admin")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newKeysListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List active keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			keys, err := a.Store.ListAPIKeys(cmd.Context())
			if err != nil {
				return err
			}
			if keys == nil {
				keys = []*models.APIKey{}
			}
			return opts.render(cmd.OutOrStdout(), keys)
		},
	}
}
