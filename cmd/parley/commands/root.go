package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"parley/internal/app"
	"parley/internal/domain"
)

const requestTimeout = 20 * time.Second

var (
	settings *viper.Viper
	client   *app.Client
)

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRoot().ExecuteContext(ctx)
}

func newRoot() *cobra.Command {
	settings = app.NewViper()
	root := &cobra.Command{
		Use:           "parley",
		Short:         "End-to-end encrypted chat client",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if settings.GetString("home") == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				settings.Set("home", filepath.Join(dir, ".parley"))
			}
			cfg, err := app.LoadClientConfig(settings)
			if err != nil {
				return err
			}
			level := zerolog.WarnLevel
			if cfg.Verbose {
				level = zerolog.DebugLevel
			}
			log := app.NewLogger(os.Stderr, level.String(), "console")
			client, err = app.NewClient(cfg, log)
			return err
		},
	}

	pf := root.PersistentFlags()
	pf.String("home", "", "config dir (default ~/.parley)")
	pf.String("server", "http://localhost:5001", "relay base URL")
	pf.StringP("passphrase", "p", "", "passphrase sealing the cached private key (optional)")
	pf.BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"home", "server", "passphrase", "verbose"} {
		_ = settings.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		signupCmd(), loginCmd(), logoutCmd(), whoamiCmd(), fingerprintCmd(),
		usersCmd(), historyCmd(), sendCmd(), chatCmd(), editCmd(), deleteCmd(),
		chatFlagCmd("pin", "Pin a chat", func(ctx context.Context, id domain.UserID) error { return client.API.Pin(ctx, id) }),
		chatFlagCmd("unpin", "Unpin a chat", func(ctx context.Context, id domain.UserID) error { return client.API.Unpin(ctx, id) }),
		chatFlagCmd("archive", "Archive a chat", func(ctx context.Context, id domain.UserID) error { return client.API.Archive(ctx, id) }),
		chatFlagCmd("unarchive", "Unarchive a chat", func(ctx context.Context, id domain.UserID) error { return client.API.Unarchive(ctx, id) }),
		groupCmd(),
	)
	return root
}

func timeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), requestTimeout)
}

// openSession returns the crypto session, printing encryption warnings to stderr.
func openSession(cmd *cobra.Command) (*app.Session, error) {
	return client.Session(func(peer domain.UserID, err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: message to %s sent unencrypted: %v\n", peer, err)
	})
}
