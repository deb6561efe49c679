package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-steen/task-tracker/pkg/controller"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "task-tracker",
		Short:         "Multi-account task tracker",
		Long:          "Track tasks with deadlines, priorities, progress and reminders, in a terminal UI or over HTTP.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), configFile)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (yaml, json or toml)")

	rootCmd.AddCommand(newServeCommand(&configFile))
	rootCmd.AddCommand(newRegisterCommand(&configFile))
	rootCmd.AddCommand(newReportCommand(&configFile))

	return rootCmd
}

func runTUI(ctx context.Context, configFile string) error {
	app, err := setup(ctx, configFile, true)
	if err != nil {
		return err
	}

	defer app.Close()

	log.Info().Msg("starting application...")

	c, err := controller.NewController(ctx, controller.Deps{
		Repo:             app.repo,
		Tasks:            app.tasks,
		Accounts:         app.accounts,
		Reports:          app.reports,
		ReminderInterval: app.cfg.Reminder.Interval,
	})
	if err != nil {
		return err
	}

	return c.Go()
}
