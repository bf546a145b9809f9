package main

import (
	"os"
	"os/signal"
	"syscall"

	"flulance/internal/logger"
	"flulance/internal/poller"
	"flulance/internal/services/dto"

	"github.com/spf13/cobra"
)

func newNotificationsCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "n"},
		Short:   "Inspect your notification ledger",
	}
	cmd.AddCommand(
		newNotificationsListCmd(opts),
		newNotificationsCountCmd(opts),
		newNotificationsReadCmd(opts),
		newNotificationsReadAllCmd(opts),
		newNotificationsWatchCmd(opts),
	)
	return cmd
}

func newNotificationsListCmd(opts *cliOptions) *cobra.Command {
	var criteria dto.NotificationCriteria

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			list, err := c.ListNotifications(cmd.Context(), criteria)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			p := newPrinter(cmd.OutOrStdout(), "")
			for _, n := range list.Notifications {
				if err := p.notification(n); err != nil {
					return err
				}
			}
			return writePlain(cmd.OutOrStdout(), "page %d, %d total\n", list.Page, list.Total)
		},
	}
	cmd.Flags().BoolVar(&criteria.UnreadOnly, "unread", false, "only unread notifications")
	cmd.Flags().IntVar(&criteria.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&criteria.PageSize, "page-size", 0, "page size")
	return cmd
}

func newNotificationsCountCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the unread notification count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			n, err := c.UnreadCount(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), dto.UnreadCountResponse{UnreadCount: n})
			}
			return writePlain(cmd.OutOrStdout(), "%d\n", n)
		},
	}
}

func newNotificationsReadCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read <notification-id>",
		Short: "Mark one notification read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			n, err := c.MarkNotificationRead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), n)
			}
			return writePlain(cmd.OutOrStdout(), "read %s\n", n.ID)
		},
	}
}

func newNotificationsReadAllCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			updated, err := c.MarkAllNotificationsRead(cmd.Context())
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), dto.UpdatedResponse{Updated: updated})
			}
			return writePlain(cmd.OutOrStdout(), "marked %d notification(s) read\n", updated)
		},
	}
}

func newNotificationsWatchCmd(opts *cliOptions) *cobra.Command {
	var showNew bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the unread count and report changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sub := poller.NewUnreadCounter(c, opts.cfg.UnreadInterval).Watch(ctx)
			defer sub.Close()

			logger.Debug("watching unread count", "interval", opts.cfg.UnreadInterval)
			p := newPrinter(cmd.OutOrStdout(), "")
			var previous int64
			for count := range sub.Updates() {
				if opts.jsonOutput {
					if err := writeJSON(cmd.OutOrStdout(), dto.UnreadCountResponse{UnreadCount: count}); err != nil {
						return err
					}
				} else if err := writePlain(cmd.OutOrStdout(), "unread: %d\n", count); err != nil {
					return err
				}

				if showNew && !opts.jsonOutput && count > previous {
					list, err := c.ListNotifications(ctx, dto.NotificationCriteria{UnreadOnly: true, PageSize: int(count - previous)})
					if err != nil {
						logger.Warn("fetch new notifications failed", "error", err)
					} else {
						for _, n := range list.Notifications {
							_ = p.notification(n)
						}
					}
				}
				previous = count
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showNew, "show", false, "print the newest unread notifications when the count grows")
	return cmd
}
