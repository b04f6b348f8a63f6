package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"parley/internal/domain"
)

func printMessage(w io.Writer, self domain.UserID, m domain.DisplayMessage) {
	who := m.SenderID.String()
	if m.SenderID == self {
		who = "me"
	}
	var flags []string
	if m.Edited {
		flags = append(flags, "edited")
	}
	if m.IsEncrypted && m.Decrypted {
		flags = append(flags, "e2e")
	}
	body := m.Body
	if m.Deleted {
		body = "(deleted)"
	}
	suffix := ""
	if len(flags) > 0 {
		suffix = " [" + strings.Join(flags, ",") + "]"
	}
	fmt.Fprintf(w, "%s %s %s: %s%s\n", m.CreatedAt.Local().Format(time.Kitchen), m.ID, who, body, suffix)
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <peer-id>",
		Short: "Show the decrypted conversation with a peer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()
			ctx, cancel := timeout(cmd)
			defer cancel()
			msgs, err := sess.Messages.History(ctx, domain.UserID(args[0]))
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), sess.Self, m)
			}
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <peer-id> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()
			ctx, cancel := timeout(cmd)
			defer cancel()
			peer := domain.UserID(args[0])
			// Replaying history picks up a key the peer already sent us.
			if _, err := sess.Messages.History(ctx, peer); err != nil {
				return err
			}
			m, err := sess.Messages.Send(ctx, peer, strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			printMessage(cmd.OutOrStdout(), sess.Self, m)
			return nil
		},
	}
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <message-id> <new text>",
		Short: "Replace the text of a message you sent (stored unencrypted)",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			m, err := client.API.EditMessage(ctx, domain.MessageID(args[0]), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "edited %s\n", m.ID)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <message-id>",
		Short: "Delete a message you sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			if err := client.API.DeleteMessage(ctx, domain.MessageID(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "deleted")
			return nil
		},
	}
}
