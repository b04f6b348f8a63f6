package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"parley/internal/domain"
)

func prompt(in io.Reader, out io.Writer, label string) string {
	fmt.Fprint(out, label)
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line)
}

func signupCmd() *cobra.Command {
	var req domain.Signup
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account; the server generates your key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: ")
			}
			ctx, cancel := timeout(cmd)
			defer cancel()
			u, err := client.Signup(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s (%s)\n", u.FullName, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func loginCmd() *cobra.Command {
	var req domain.Login
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and save the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.Password == "" {
				req.Password = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "Password: ")
			}
			ctx, cancel := timeout(cmd)
			defer cancel()
			u, err := client.Login(ctx, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", u.FullName, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "email address")
	cmd.Flags().StringVar(&req.Password, "password", "", "password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved login and cached keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			u, err := client.API.Me(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nid: %s\n", u.FullName, u.Email, u.ID)
			return nil
		},
	}
}

func fingerprintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint",
		Short: "Print your identity key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer sess.Close()
			ctx, cancel := timeout(cmd)
			defer cancel()
			fp, err := sess.Keys.Fingerprint(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Fingerprint: %s\n", fp)
			return nil
		},
	}
}

func usersCmd() *cobra.Command {
	var pinned, archived bool
	cmd := &cobra.Command{
		Use:   "users",
		Short: "List other accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			var (
				list []domain.PublicUser
				err  error
			)
			switch {
			case pinned:
				list, err = client.API.Pinned(ctx)
			case archived:
				list, err = client.API.Archived(ctx)
			default:
				list, err = client.API.Users(ctx)
			}
			if err != nil {
				return err
			}
			for _, u := range list {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-20s %s\n", u.ID, u.FullName, u.Email)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pinned, "pinned", false, "only pinned chats")
	cmd.Flags().BoolVar(&archived, "archived", false, "only archived chats")
	return cmd
}

func chatFlagCmd(use, short string, fn func(ctx context.Context, id domain.UserID) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <peer-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()
			if err := fn(ctx, domain.UserID(args[0])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
