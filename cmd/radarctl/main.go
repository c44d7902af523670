// radarctl is the admin CLI. It builds the same service the server runs,
// in-process, from the server's environment configuration.
//
// Usage:
//
//	radarctl index build
//	radarctl index status [build-id]
//	radarctl process <incidents.jsonl|incident.json>
//	radarctl samples
//	radarctl keys create --name=<name> [--scope=read,process,admin]
//	radarctl keys list
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kiranshivaraju/incidentradar/internal/app"
	"github.com/kiranshivaraju/incidentradar/internal/config"
)

// version is set at build time via -ldflags.
var version = "dev"

type rootOptions struct {
	output  string
	verbose bool

	loadConfig func() (*config.Config, error)
}

// open builds the app for one command run. Logs go to stderr so they never
// mix with rendered output.
func (o *rootOptions) open(cmd *cobra.Command) (*app.App, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(cmd.Context(), cfg)
}

func (o *rootOptions) render(w io.Writer, v any) error {
	return render(w, o.output, v)
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "radarctl",
		Short:         "Administer the incident triage service",
		Long:          "radarctl builds the retrieval index, runs incidents through the\ntriage pipeline and manages API keys, using the server's configuration.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return checkFormat(opts.output)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&opts.output, "output", "o", formatYAML, "Output format: yaml or json")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Log progress to stderr")

	root.AddCommand(newIndexCmd(opts))
	root.AddCommand(newProcessCmd(opts))
	root.AddCommand(newSamplesCmd(opts))
	root.AddCommand(newKeysCmd(opts))
	return root
}

func main() {
	root := newRootCmd(&rootOptions{loadConfig: config.Load})
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
