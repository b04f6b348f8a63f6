package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"parley/internal/app"
)

func main() {
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        "Run the parley chat server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			v := app.NewViper()
			if f := cmd.Flags().Lookup("addr"); f.Changed {
				v.Set("addr", f.Value.String())
			}
			cfg, err := app.LoadServerConfig(v, cfgFile)
			if err != nil {
				return err
			}
			log := app.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
			srv, err := app.NewServer(cfg, log)
			if err != nil {
				log.Error().Err(err).Msg("startup failed")
				return err
			}
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./relay.yaml or ./config/relay.yaml)")
	cmd.Flags().String("addr", "", "listen address, overrides config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
