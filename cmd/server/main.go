package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"adbreak-coordinator/internal/ads"
	"adbreak-coordinator/internal/platform/config"
	"adbreak-coordinator/internal/platform/logger"
	"adbreak-coordinator/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	cfg := ads.Config{
		PreloadWindow:             config.GetEnvDuration("AD_PRELOAD_WINDOW", ads.DefaultPreloadWindow),
		PreloadTimeout:            config.GetEnvDuration("AD_PRELOAD_TIMEOUT", ads.DefaultPreloadTimeout),
		EndOfContentThreshold:     config.GetEnvDuration("END_OF_CONTENT_THRESHOLD", ads.DefaultEndOfContentThreshold),
		RequestTimeout:            config.GetEnvDuration("AD_REQUEST_TIMEOUT", ads.DefaultRequestTimeout),
		MediaLoadTimeout:          config.GetEnvDuration("AD_MEDIA_LOAD_TIMEOUT", ads.DefaultMediaLoadTimeout),
		AdPreloadBias:             config.GetEnvDuration("AD_PRELOAD_BIAS", 0),
		AdBufferingBudget:         config.GetEnvDuration("AD_BUFFERING_BUDGET", 0),
		TotalAdBufferingBudget:    config.GetEnvDuration("TOTAL_AD_BUFFERING_BUDGET", 0),
		PlayAdBeforeStartPosition: config.GetEnvBool("PLAY_AD_BEFORE_START_POSITION", true),
		CuePointCadence:           config.GetEnvDuration("CUE_POINT_CADENCE", ads.DefaultCuePointCadence),
		CadenceSkipThreshold:      config.GetEnvDuration("CADENCE_SKIP_THRESHOLD", ads.DefaultCadenceSkipThreshold),
	}

	log := logger.New(logLevel, logFormat)

	met := metrics.New()
	svc := ads.NewService(cfg, log, met)
	h := ads.NewHandler(svc, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		met.Handler(func() { met.SetActiveSessions(svc.Count()) }).ServeHTTP(w, r)
	})
	r.Route("/sessions/{session_id}", func(r chi.Router) {
		r.Post("/", h.CreateSession)
		r.Get("/state", h.GetState)
		r.Post("/release", h.ReleaseSession)
	})

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"preload_window", cfg.PreloadWindow.String(),
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	svc.ReleaseAll()
	log.Info("server stopped")
}
