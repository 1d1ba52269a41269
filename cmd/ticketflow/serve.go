package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/ticketflow/auth"
	"github.com/randalmurphal/ticketflow/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the decision API",
	Long: `Serve the decision API on listen_addr. SIGHUP reloads the tenants
file; SIGINT and SIGTERM shut down gracefully.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var shutdownTimeout time.Duration

func init() {
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", 15*time.Second, "how long to wait for in-flight requests")
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	secret, err := a.settings.TokenSecretBytes()
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	srv := server.New(a.wf, a.db.Checkpoints(), auth.Config{Secret: secret, TTL: a.settings.TokenTTL},
		server.WithPinger(a.db),
		server.WithLogger(a.logger),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go a.reloadTenantsOnHangup(ctx)

	a.logger.Info("serving decision api", "addr", a.settings.ListenAddr)
	return srv.ListenAndServe(ctx, a.settings.ListenAddr, shutdownTimeout)
}

func (a *app) reloadTenantsOnHangup(ctx context.Context) {
	if a.tenants == nil {
		return
	}
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.tenants.Reload(); err != nil {
				a.logger.Error("tenant reload failed", "error", err)
				continue
			}
			a.logger.Info("tenants reloaded", "path", a.settings.TenantsFile)
		}
	}
}
