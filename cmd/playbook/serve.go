package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/livingplaybook/playbook/internal/engine"
	"github.com/livingplaybook/playbook/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			store, err := openLists(cfg, log)
			if err != nil {
				return err
			}
			defer store.Close()

			eds, err := engine.OpenEditions(cfg.Catalog.Path, cfg.Catalog.Editions, store, log)
			if err != nil {
				return err
			}

			srv := server.NewPlaybookServer(eds, store, server.Options{
				WebDir:          cfg.Server.WebDir,
				EditorTokenHash: cfg.Auth.EditorTokenHash,
			}, log)
			if cfg.Auth.EditorTokenHash == "" {
				log.Warn("no editor token hash configured, list editing is open")
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.Server.Addr).Info("listening")
				errCh <- srv.Start(cfg.Server.Addr)
			}()

			// SIGHUP reloads catalogs, SIGINT/SIGTERM shut down.
			sigs := make(chan os.Signal, 1)
			signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			defer signal.Stop(sigs)

			for {
				select {
				case err := <-errCh:
					return err
				case sig := <-sigs:
					if sig == syscall.SIGHUP {
						if err := eds.ReloadAll(); err != nil {
							log.WithError(err).Error("reload failed")
						}
						continue
					}

					log.WithField("signal", sig.String()).Info("shutting down")
					ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
					err := srv.Shutdown(ctx)
					cancel()
					if err != nil {
						log.WithError(err).Error("server shutdown error")
					}
					log.Info("playbook exited gracefully")
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}
