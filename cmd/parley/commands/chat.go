package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"parley/internal/domain"
	"parley/internal/services/message"
)

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat <peer-id>",
		Short: "Interactive conversation with a peer",
		Long: `Interactive conversation with a peer.

Type a line to send it. /typing shows your typing indicator to the peer,
/stop clears it, /online lists who is connected and /quit leaves.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			peer := domain.UserID(args[0])
			out := cmd.OutOrStdout()

			hist, err := sess.Messages.History(ctx, peer)
			if err != nil {
				return err
			}
			for _, m := range hist {
				printMessage(out, sess.Self, m)
			}

			tr, err := client.API.Dial(ctx)
			if err != nil {
				return err
			}
			defer tr.Close()

			runErr := make(chan error, 1)
			go func() {
				runErr <- sess.Messages.Run(ctx, tr, func(u message.Update) {
					switch u.Event {
					case domain.EventNewMessage, domain.EventMessageUpdated:
						if u.Message != nil && u.Message.Counterparty(sess.Self) == peer {
							printMessage(out, sess.Self, *u.Message)
						}
					case domain.EventMessageDeleted:
						fmt.Fprintf(out, "* message %s deleted\n", u.Deleted)
					case domain.EventUserTyping:
						if u.Typing == peer {
							fmt.Fprintf(out, "* %s is typing...\n", peer)
						}
					}
				})
			}()

			lines := make(chan string)
			go func() {
				defer close(lines)
				sc := bufio.NewScanner(cmd.InOrStdin())
				for sc.Scan() {
					select {
					case lines <- sc.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case err := <-runErr:
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				case line, ok := <-lines:
					if !ok {
						return nil
					}
					if done := handleLine(ctx, cmd, sess.Messages, tr, sess.Self, peer, line); done {
						return nil
					}
				}
			}
		},
	}
}

func handleLine(ctx context.Context, cmd *cobra.Command, svc *message.Service, tr domain.Transport, self, peer domain.UserID, line string) bool {
	out := cmd.OutOrStdout()
	line = strings.TrimSpace(line)
	switch line {
	case "":
		return false
	case "/quit":
		svc.StopTyping(ctx, tr, peer)
		return true
	case "/typing":
		svc.StartTyping(ctx, tr, peer)
		return false
	case "/stop":
		svc.StopTyping(ctx, tr, peer)
		return false
	case "/online":
		for _, id := range svc.OnlineUsers() {
			fmt.Fprintln(out, "*", id)
		}
		return false
	}
	svc.StopTyping(ctx, tr, peer)
	m, err := svc.Send(ctx, peer, line)
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "send failed:", err)
		return false
	}
	printMessage(out, self, m)
	return false
}
