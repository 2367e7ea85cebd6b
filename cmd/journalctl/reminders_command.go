package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"journal-backend/internal/email"
	"journal-backend/internal/jobs"
	"journal-backend/internal/metrics"
	"journal-backend/internal/notify"
	"journal-backend/internal/store"
)

func newRemindersCommand(ctx *commandContext) *cobra.Command {
	remindersCmd := &cobra.Command{
		Use:   "reminders",
		Short: "Overdue review and copy-edit reminders",
	}
	remindersCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Send reminders once, outside the schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withStore(cmd.Context(), func(st store.Store) error {
				m := metrics.New()
				dispatcher := notify.NewDispatcher(st, email.NewEmailSender(cfg, ctx.logger), ctx.logger, m)
				scheduler := jobs.NewScheduler(cfg.Jobs, st, dispatcher, ctx.logger, m)
				sent, err := scheduler.RunReminders(cmd.Context())
				dispatcher.Wait()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %d reminder(s)\n", sent)
				return nil
			})
		},
	})
	return remindersCmd
}
