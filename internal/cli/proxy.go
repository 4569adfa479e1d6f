package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/sadopc/worklog/internal/offline"
)

var defaultAssets = []string{"/", "/index.html", "/manifest.json", "/favicon.ico"}

func (a *app) newProxyCmd() *cobra.Command {
	var addr, upstream string
	var assets []string
	cmd := &cobra.Command{
		Use:   "proxy",
		Short: "Serve the web frontend with an offline cache in front of it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.ProxyAddr
			}
			if upstream == "" {
				upstream = a.cfg.Upstream
			}
			base, err := url.Parse(upstream)
			if err != nil || base.Scheme == "" || base.Host == "" {
				return fmt.Errorf("invalid upstream %q", upstream)
			}

			ctrl := offline.NewController(offline.Config{
				Version: a.cfg.CacheVersion,
				Base:    base,
				Assets:  assets,
			}, offline.NewStoreStorage(a.store))
			defer ctrl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := ctrl.Install(ctx); err != nil {
				return fmt.Errorf("install offline cache: %w", err)
			}
			if _, err := ctrl.Activate(); err != nil {
				return fmt.Errorf("activate offline cache: %w", err)
			}
			if err := ctrl.HandleMessage(ctx, offline.Message{Type: offline.MsgScheduleSync}); err != nil {
				return err
			}

			srv := offline.NewServer(addr, ctrl, base)
			errCh := make(chan error, 1)
			go func() {
				log.Info("offline proxy listening", "addr", addr, "upstream", base.String(), "cache", ctrl.StaticCache())
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			log.Info("shutting down offline proxy")
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides WORKLOG_PROXY_ADDR)")
	cmd.Flags().StringVar(&upstream, "upstream", "", "frontend URL (overrides WORKLOG_UPSTREAM)")
	cmd.Flags().StringSliceVar(&assets, "asset", defaultAssets, "path pre-cached on install (repeatable)")
	return cmd
}
