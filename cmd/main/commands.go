package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/matt-steen/task-tracker/pkg/api"
	"github.com/matt-steen/task-tracker/pkg/auth"
	"github.com/matt-steen/task-tracker/pkg/db"
	"github.com/matt-steen/task-tracker/pkg/reminder"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var errCredentials = errors.New("either --password or --guest is required")

// newServeCommand creates the serve command.
func newServeCommand(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Start the HTTP API and a reminder poller that logs due reminders for every account.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := setup(ctx, *configFile, false)
			if err != nil {
				return err
			}

			defer app.Close()

			poller := reminder.NewPoller(app.repo, reminder.NotifierFunc(func(task *db.Task) {
				log.Info().Str("task_id", task.ID).Str("user", task.CreatedBy).
					Str("deadline", task.Deadline).Msgf("reminder: %s", task.Title)
			}), reminder.WithInterval(app.cfg.Reminder.Interval))

			server, err := api.New(app.cfg.Server, app.tasks, app.accounts, app.reports, poller.Collector())
			if err != nil {
				return err
			}

			go poller.Run(ctx)

			return server.Start(ctx)
		},
	}
}

// newRegisterCommand creates the register command.
func newRegisterCommand(configFile *string) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd.Context(), *configFile, false)
			if err != nil {
				return err
			}

			defer app.Close()

			p, err := app.accounts.Register(cmd.Context(), args[0], password)
			if err != nil {
				return fmt.Errorf("error registering %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "registered %s\n", p.Name)

			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "account password (required)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// newReportCommand creates the report command.
func newReportCommand(configFile *string) *cobra.Command {
	var (
		user     string
		password string
		guest    bool
		year     int
		month    int
	)

	now := time.Now()

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a monthly CSV report",
		Long:  "Write the monthly CSV report for an account, or for all tasks with --guest, and print its path.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := setup(ctx, *configFile, false)
			if err != nil {
				return err
			}

			defer app.Close()

			var p auth.Principal

			switch {
			case guest:
				p = auth.Guest()
			case password != "":
				if p, err = app.accounts.Login(ctx, user, password); err != nil {
					return err
				}
			default:
				return errCredentials
			}

			path, r, err := app.reports.Generate(ctx, p, year, month)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), path)

			log.Info().Str("user", r.User).Int("total", r.Total).Int("completed", r.Completed).
				Msg("report written")

			return nil
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "account name")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().BoolVar(&guest, "guest", false, "report on all tasks as the guest")
	cmd.Flags().IntVar(&year, "year", now.Year(), "report year")
	cmd.Flags().IntVar(&month, "month", int(now.Month()), "report month (1-12)")

	cmd.MarkFlagsMutuallyExclusive("password", "guest")

	return cmd
}
