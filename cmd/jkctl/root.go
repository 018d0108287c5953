package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/app"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/logger"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "jkctl",
		Short:         "Administer the job keywords skill search service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "configs/development.yaml", "path to config file")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newCacheCmd(opts))
	cmd.AddCommand(newRequestsCmd(opts))
	cmd.AddCommand(newFeedbackCmd(opts))
	cmd.AddCommand(newEventsCmd(opts))
	cmd.AddCommand(newLoadTestCmd())
	return cmd
}

// withApp loads config, builds the service components and runs fn. Logs go
// to stderr so stdout stays machine-readable.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	logger.SetupWriter(os.Stderr, cfg.Logging.Level, "text")

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg, app.WithRegisterer(prometheus.NewRegistry()))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
