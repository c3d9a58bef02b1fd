package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/yuca-profiler/yuca/internal/adapters/http"
	"github.com/yuca-profiler/yuca/internal/client"
	"github.com/yuca-profiler/yuca/internal/config"
	"github.com/yuca-profiler/yuca/internal/core/auth"
	"github.com/yuca-profiler/yuca/internal/core/emissions"
	"github.com/yuca-profiler/yuca/internal/core/registry"
	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/logger"
	"github.com/yuca-profiler/yuca/internal/metrics"
	"github.com/yuca-profiler/yuca/internal/transport/websocket"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the profiler service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			// CLI flags override the environment.
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Address = addr
			}
			if cmd.Flags().Changed("accelerator") {
				cfg.UseAccelerator, _ = cmd.Flags().GetBool("accelerator")
			}
			if addr, _ := cmd.Flags().GetString("accelerator-addr"); addr != "" {
				cfg.AcceleratorAddr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}
	cmd.Flags().String("addr", "", "Listen address (overrides YUCA_HTTP_ADDR)")
	cmd.Flags().Bool("accelerator", false, "Merge reports of an accelerator collaborator (overrides YUCA_ACCELERATOR)")
	cmd.Flags().String("accelerator-addr", "", "Collaborator address (overrides YUCA_ACCELERATOR_ADDR)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New(cfg)

	table, err := emissions.LoadTable(cfg.IntensitiesPath)
	if err != nil {
		return fmt.Errorf("loading intensities: %w", err)
	}
	converter := table.Converter(cfg.Locale)

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var accelerator domain.Accelerator
	if cfg.UseAccelerator {
		accelerator = client.NewAccelerator(client.New(cfg.AcceleratorAddr))
		log.Info("accelerator enabled", "address", cfg.AcceleratorAddr)
	}

	tokens := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if !tokens.Enabled() {
		log.Warn("YUCA_JWT_SECRET is empty, rpc surface is unauthenticated")
	}

	reg := registry.New(ctx, registry.Options{
		PeriodMillis: cfg.PeriodMillis,
		OutputDir:    cfg.OutputDir,
		Emissions:    converter,
		Accelerator:  accelerator,
		Metrics:      metrics.New(promReg),
	}, log)

	hub := websocket.NewHub(ctx, log)
	websocket.Register(reg.Bus(), hub)

	router := httpadapter.NewRouter(cfg, &httpadapter.RouterDeps{
		Profiler: httpadapter.NewProfilerHandler(reg, log),
		Ws:       http.HandlerFunc(websocket.NewHandler(hub, cfg.AllowedOrigins, tokens, log).Serve),
		Tokens:   tokens,
		Gatherer: promReg,
		Log:      log,
	})
	srv := httpadapter.NewServer(router, cfg.Address)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run()
		return nil
	})

	g.Go(func() error {
		log.Info("http: starting server", "address", cfg.Address, "locale", converter.Source())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		hub.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http: server shutdown error", "error", err)
		}
		if err := reg.Close(shutdownCtx); err != nil {
			log.Error("registry: close error", "error", err)
		}
		return nil
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}
