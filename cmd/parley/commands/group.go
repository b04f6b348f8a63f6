package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"parley/internal/domain"
)

func groupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Group conversations (not end-to-end encrypted)",
	}
	cmd.AddCommand(groupCreateCmd(), groupAddCmd(), groupLeaveCmd(), groupListCmd(), groupSendCmd(), groupHistoryCmd())
	return cmd
}

func toUserIDs(ss []string) []domain.UserID {
	out := make([]domain.UserID, 0, len(ss))
	for _, s := range ss {
		out = append(out, domain.UserID(s))
	}
	return out
}

func groupCreateCmd() *cobra.Command {
	var desc string
	cmd := &cobra.Command{
		Use:   "create <name> <member-id>...",
		Short: "Create a group you administer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			g, err := client.API.CreateGroup(ctx, domain.NewGroup{
				Name:        args[0],
				Description: desc,
				Members:     toUserIDs(args[1:]),
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) with %d members\n", g.Name, g.ID, len(g.Members))
			return nil
		},
	}
	cmd.Flags().StringVar(&desc, "description", "", "group description")
	return cmd
}

func groupAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <group-id> <member-id>...",
		Short: "Add members to a group you administer",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			g, err := client.API.AddMembers(ctx, domain.GroupID(args[0]), toUserIDs(args[1:]))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d members\n", g.Name, len(g.Members))
			return nil
		},
	}
}

func groupLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <group-id>",
		Short: "Leave a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			return client.API.LeaveGroup(ctx, domain.GroupID(args[0]))
		},
	}
}

func groupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List your groups",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			gs, err := client.API.MyGroups(ctx)
			if err != nil {
				return err
			}
			for _, g := range gs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %d members\n", g.ID, g.Name, len(g.Members))
			}
			return nil
		},
	}
}

func groupSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <group-id> <message>",
		Short: "Send a message to a group",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			m, err := client.API.SendGroupMessage(ctx, domain.GroupID(args[0]), strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", m.ID)
			return nil
		},
	}
}

func groupHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <group-id>",
		Short: "Show a group conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			msgs, err := client.API.GroupConversation(ctx, domain.GroupID(args[0]))
			if err != nil {
				return err
			}
			self, _ := client.Profile()
			for _, m := range msgs {
				printMessage(cmd.OutOrStdout(), self.UserID, domain.DisplayMessage{Message: m, Body: m.Text})
			}
			return nil
		},
	}
}
