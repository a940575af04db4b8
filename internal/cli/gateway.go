package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tillberg/autorestart"

	"github.com/soyeahso/agentstudio/internal/gateway"
)

func newGatewayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gateway",
		Short: "Serve the studio to a browser UI",
	}

	cmd.AddCommand(newGatewayRunCmd())
	return cmd
}

func newGatewayRunCmd() *cobra.Command {
	var (
		port    int
		bind    string
		restart bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the gateway server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if restart {
				go autorestart.RestartOnChange()
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.cfg.Gateway
			if port != 0 {
				cfg.Port = port
			}
			if bind != "" {
				cfg.Bind = bind
			}
			// Token mode without a token gets a one-off token printed to stderr.
			if creds := gateway.ResolveCredentials(cfg.Auth); creds.Mode == "token" && creds.Secret == "" {
				cfg.Auth.Mode = "token"
				cfg.Auth.Token = uuid.NewString()
				fmt.Fprintf(cmd.ErrOrStderr(), "gateway token: %s\n", cfg.Auth.Token)
			}

			srv := gateway.New(cfg, gateway.Deps{
				Agents:    a.agents,
				Chat:      a.chat,
				Suggester: a.suggest,
			}, a.log, gateway.WithHooks(a.hooks))

			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "override gateway port")
	cmd.Flags().StringVar(&bind, "bind", "", "override bind mode (loopback, lan, custom)")
	cmd.Flags().BoolVar(&restart, "restart-on-change", false, "re-exec when the binary is rebuilt")

	return cmd
}
