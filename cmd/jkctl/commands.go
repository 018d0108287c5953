package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/app"
	"github.com/Adithya-Monish-Kumar-K/job-keywords/internal/pipeline"
)

func newSearchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Run one skill search and print the result",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Pipeline.Run(ctx, pipeline.Request{
					Query:    strings.Join(args, " "),
					ClientIP: "jkctl",
				})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"uuid":     res.RequestID,
					"imageUrl": res.ImageURL,
					"skills":   res.Skills,
					"cacheHit": res.CacheHit,
				})
			})
		},
	}
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or purge cached results",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List cached results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Cache.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Cache.PurgeAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d cached results\n", n)
				return nil
			})
		},
	})
	return cmd
}

func newRequestsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "Inspect the request audit log",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List request records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				recs, err := a.Audit.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	})
	return cmd
}

func newFeedbackCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Inspect user feedback",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List feedback records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				recs, err := a.Feedback.List(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), recs)
			})
		},
	})
	return cmd
}
