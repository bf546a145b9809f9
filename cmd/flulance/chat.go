package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"flulance/internal/auth"
	"flulance/internal/logger"
	"flulance/internal/poller"

	"github.com/spf13/cobra"
)

func newChatCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Read and write match conversations",
	}
	cmd.AddCommand(
		newChatMatchesCmd(opts),
		newChatListCmd(opts),
		newChatSendCmd(opts),
		newChatReadCmd(opts),
		newChatWatchCmd(opts),
	)
	return cmd
}

func newChatMatchesCmd(opts *cliOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "matches",
		Short: "List your matches with unread message counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			list, err := c.ListMatches(cmd.Context(), status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if opts.jsonOutput {
				return writeJSON(out, list)
			}
			for _, m := range list.Matches {
				title := ""
				if m.Job != nil {
					title = m.Job.Title
				}
				if err := writePlain(out, "%s  %-9s  unread:%d  %s\n", m.ID, m.Status, m.UnreadCount, title); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status (active, completed)")
	return cmd
}

func newChatListCmd(opts *cliOptions) *cobra.Command {
	var (
		after string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list <match-id>",
		Short: "Print the conversation of a match, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			list, err := c.ListMessages(cmd.Context(), args[0], after, limit)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			p := newPrinter(cmd.OutOrStdout(), currentUserID(opts))
			for _, m := range list.Messages {
				if err := p.message(m); err != nil {
					return err
				}
			}
			if list.HasMore {
				last := list.Messages[len(list.Messages)-1].ID
				return writePlain(cmd.OutOrStdout(), "... more messages, continue with --after %s\n", last)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "only messages newer than this message id")
	cmd.Flags().IntVar(&limit, "limit", 0, "page size (server default when 0)")
	return cmd
}

func newChatSendCmd(opts *cliOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "send <match-id> [text...]",
		Short: "Send a message, optionally with one attachment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args[1:], " "))
			if text == "" && file == "" {
				return errors.New("nothing to send: give text or --file")
			}

			c, err := opts.client()
			if err != nil {
				return err
			}

			matchID := args[0]
			if file == "" {
				msg, err := c.SendMessage(cmd.Context(), matchID, text)
				if err != nil {
					return err
				}
				return printSent(cmd, opts, msg.ID)
			}

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			msg, err := c.SendAttachment(cmd.Context(), matchID, text, filepath.Base(file), f)
			if err != nil {
				return err
			}
			return printSent(cmd, opts, msg.ID)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "attach a file (at most one)")
	return cmd
}

func printSent(cmd *cobra.Command, opts *cliOptions, id string) error {
	if opts.jsonOutput {
		return writeJSON(cmd.OutOrStdout(), map[string]string{"id": id})
	}
	return writePlain(cmd.OutOrStdout(), "sent %s\n", id)
}

func newChatReadCmd(opts *cliOptions) *cobra.Command {
	var single bool

	cmd := &cobra.Command{
		Use:   "read <match-id | message-id>",
		Short: "Mark a whole conversation, or one message with --message, as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if single {
				msg, err := c.MarkMessageRead(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return writeJSON(cmd.OutOrStdout(), msg)
				}
				return writePlain(cmd.OutOrStdout(), "read %s\n", msg.ID)
			}

			n, err := c.MarkMatchRead(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]int64{"updated": n})
			}
			return writePlain(cmd.OutOrStdout(), "marked %d message(s) read\n", n)
		},
	}
	cmd.Flags().BoolVar(&single, "message", false, "the argument is a message id")
	return cmd
}

func newChatWatchCmd(opts *cliOptions) *cobra.Command {
	var markRead bool

	cmd := &cobra.Command{
		Use:   "watch <match-id>",
		Short: "Follow a conversation, polling for new messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			matchID := args[0]
			feed := poller.NewChatFeed(c, matchID, opts.cfg.MessageInterval)
			sub := feed.Watch(ctx)
			defer sub.Close()

			logger.Debug("watching chat", "match_id", matchID, "interval", opts.cfg.MessageInterval)
			me := currentUserID(opts)
			p := newPrinter(cmd.OutOrStdout(), me)
			for batch := range sub.Updates() {
				for _, m := range batch {
					var err error
					if opts.jsonOutput {
						err = writeJSON(cmd.OutOrStdout(), m)
					} else {
						err = p.message(m)
					}
					if err != nil {
						return err
					}
					// Only what was just printed counts as seen.
					if markRead && !m.IsRead && m.SenderID != me {
						if _, err := c.MarkMessageRead(ctx, m.ID); err != nil && !errors.Is(err, context.Canceled) {
							logger.Warn("mark read failed", "message_id", m.ID, "error", err)
						}
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&markRead, "mark-read", false, "mark each incoming message read once it is printed")
	return cmd
}

// currentUserID reads the subject of the configured token so own messages can
// be labelled. The token is not verified here.
func currentUserID(opts *cliOptions) string {
	claims, err := auth.InspectToken(opts.cfg.Token)
	if err != nil {
		return ""
	}
	return claims.UserID
}
