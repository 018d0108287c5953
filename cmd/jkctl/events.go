package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/pkg/logger"
)

func newEventsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow the skill search event stream",
	}
	var fromStart bool
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Print skill search events as they are published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger.SetupWriter(cmd.ErrOrStderr(), cfg.Logging.Level, "text")
			consumer := kafka.NewConsumer(cfg.Kafka, fromStart, printEvent(cmd.OutOrStdout()))
			return consumer.Start(cmd.Context())
		},
	}
	tail.Flags().BoolVar(&fromStart, "from-start", false, "read retained events from the beginning of the topic")
	cmd.AddCommand(tail)
	return cmd
}

// printEvent writes one line per event.
func printEvent(w io.Writer) kafka.MessageHandler {
	return func(_ context.Context, _ []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[analytics.SkillSearchEvent](value)
		if err != nil {
			return err
		}
		status := "miss"
		if ev.CacheHit {
			status = "hit"
		}
		if ev.Shared {
			status += ",shared"
		}
		_, err = fmt.Fprintf(w, "%s  %-6s %5dms  %q  [%s]\n",
			ev.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			status, ev.LatencyMs, ev.Query, strings.Join(ev.TopSkills, ", "))
		return err
	}
}
