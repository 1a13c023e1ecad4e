package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/therealityreport/trr-surveys/internal/api"
	"github.com/therealityreport/trr-surveys/internal/cache"
	"github.com/therealityreport/trr-surveys/internal/config"
	"github.com/therealityreport/trr-surveys/internal/middleware"
	"github.com/therealityreport/trr-surveys/internal/services"
	"github.com/therealityreport/trr-surveys/internal/utils"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the weekly run scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(runCtx, ctx)
		},
	}
}

func serve(ctx context.Context, cc *commandContext) error {
	cfg, err := cc.ensureConfig()
	if err != nil {
		return err
	}
	log := cc.log()
	if err := services.ValidateCatalog(); err != nil {
		return err
	}

	store, err := cc.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	surveys := services.NewSurveyService(store, nil)
	responses := services.NewResponseService(store)
	if client := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB); client != nil {
		defer client.Close()
		cached := cache.NewResponseStore(store, client, cfg.Redis.TTL.Duration, log)
		surveys = services.NewSurveyService(store, cached)
		responses = services.NewResponseService(cached)
		log.Info("survey cache enabled", zap.String("redis", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL.Duration))
	}
	if cfg.Auth.JWTSecret == "" {
		log.Warn("auth.jwt_secret is empty; every caller is anonymous and cannot submit")
	}
	if cfg.Auth.AdminTokenHash == "" {
		log.Warn("auth.admin_token_hash is empty; admin routes are disabled")
	}

	router := api.NewRouter(api.Deps{
		Surveys:   surveys,
		Responses: responses,
		Exports:   services.NewExportService(store),
		Auth:      middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.AdminTokenHash),
		Log:       log,
		Build: api.BuildInfo{
			Name:      "trr-surveys",
			Commit:    utils.SafeEnv("TRR_COMMIT", commit),
			BuildTime: utils.SafeEnv("TRR_BUILD_TIME", buildTime),
		},
		Ping: store.Ping,
	})
	handler := router.Handler(cfg.Server.AllowedOrigins)
	if cfg.Server.StaticDir != "" {
		handler = withStatic(handler, cfg.Server.StaticDir)
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("trrsurvey listening", zap.String("addr", cfg.Server.Addr), zap.String("db", string(store.Dialect())))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Scheduler.Enabled {
		scheduler := services.NewRunScheduler(store)
		g.Go(func() error {
			runScheduler(gctx, scheduler, cfg.Scheduler, log)
			return nil
		})
	}
	return g.Wait()
}

// withStatic serves the built frontend for every path the API does not own.
func withStatic(apiHandler http.Handler, dir string) http.Handler {
	files := middleware.FrontendPolicy.Wrap(http.FileServer(http.Dir(dir)))
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/health", apiHandler)
	mux.Handle("/version", apiHandler)
	mux.Handle("/", files)
	return mux
}

// runScheduler creates the current week's runs at startup and then on every
// tick until ctx is done. A zero interval runs once.
func runScheduler(ctx context.Context, s *services.RunScheduler, cfg config.Scheduler, log *zap.Logger) {
	tick := func() {
		results, err := s.EnsureWeeklyRuns(ctx)
		if err != nil {
			log.Error("weekly run scheduling failed", zap.Error(err))
			return
		}
		for _, r := range results {
			switch {
			case r.Error != "":
				log.Warn("weekly run not created", zap.String("survey", r.SurveySlug), zap.String("run", r.RunKey), zap.String("error", r.Error))
			case r.Created:
				log.Info("weekly run created", zap.String("survey", r.SurveySlug), zap.String("run", r.RunKey))
			}
		}
	}
	tick()
	if cfg.Interval.Duration <= 0 {
		return
	}
	t := time.NewTicker(cfg.Interval.Duration)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			tick()
		}
	}
}
