/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/HamedShams/board-nudge/internal/config"
	"github.com/HamedShams/board-nudge/internal/logger"
	"github.com/HamedShams/board-nudge/internal/store"
)

var (
	configPath string
	purgeAfter bool

	cfg config.Config
	log zerolog.Logger

	rootCmd = &cobra.Command{
		Use:   "board-nudge",
		Short: "Watches Jira and GitHub and nudges the team in Slack",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			log = logger.New(cfg)
			return nil
		},
		SilenceUsage: true,
		RunE:         runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the scheduler (default)",
		RunE:  runServe,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one trigger cycle and exit",
		RunE: withApp(func(ctx context.Context, a *app) error {
			if err := a.svc.RunCycle(ctx); err != nil {
				return err
			}
			if purgeAfter {
				_, err := a.svc.Purge(ctx)
				return err
			}
			return nil
		}),
	}

	boardCmd = &cobra.Command{
		Use:   "board",
		Short: "Run one board check and exit",
		RunE: withApp(func(ctx context.Context, a *app) error {
			return a.svc.RunBoardCheck(ctx)
		}),
	}

	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Delete every trigger record",
		RunE: withApp(func(ctx context.Context, a *app) error {
			n, err := a.svc.Purge(ctx)
			if err == nil {
				fmt.Fprintf(os.Stdout, "deleted %d trigger records\n", n)
			}
			return err
		}),
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply Postgres migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return store.Migrate(cfg.DBDSN, log)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.Path(), "YAML config file; environment variables override it")
	runCmd.Flags().BoolVar(&purgeAfter, "purge", false, "purge trigger records after the cycle")
	rootCmd.AddCommand(serveCmd, runCmd, boardCmd, purgeCmd, migrateCmd)
}

func withApp(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(serve)(cmd, args)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
