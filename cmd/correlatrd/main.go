package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/correlatr/internal/config"
	"github.com/danmuck/correlatr/internal/dispatch"
	"github.com/danmuck/correlatr/internal/logging"
	"github.com/danmuck/correlatr/internal/server"
	"github.com/danmuck/correlatr/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to server config TOML (built-in defaults when empty)")
	flag.Parse()

	logging.ConfigureRuntime()
	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "correlatrd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg := config.DefaultServerConfig()
	if configPath != "" {
		loaded, err := config.LoadServerConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srvCfg, err := serverConfig(cfg)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.URL, storeOptions(cfg))
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info().
		Str("driver", cfg.Store.Driver).
		Str("table", st.Table()).
		Msg("store ready")

	srv := server.New(srvCfg, dispatch.New(st, renderer(cfg)))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	if cfg.AdminAddr != "" {
		gin.SetMode(gin.ReleaseMode)
		admin := server.NewAdmin(st, cfg.CorsOrigins)
		g.Go(func() error {
			return server.ServeAdmin(gctx, cfg.AdminAddr, admin.Handler())
		})
	}

	err = g.Wait()
	log.Info().Msg("correlatrd stopped")
	return err
}
