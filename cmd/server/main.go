package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"quotefeed/internal/cache"
	"quotefeed/internal/config"
	"quotefeed/internal/feed"
	"quotefeed/internal/httpx"
	"quotefeed/internal/metrics"
	"quotefeed/internal/source"
	"quotefeed/internal/source/stooq"
	"quotefeed/internal/source/yahoo"
	"quotefeed/internal/synth"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		boot := zerolog.New(os.Stderr)
		boot.Fatal().Err(err).Msg("config")
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	relays := httpx.NewRelays(cfg.Sources.Relays)

	var sources []source.Source
	if cfg.Sources.Yahoo.Enabled {
		sources = append(sources, yahoo.New(yahoo.Config{BaseURL: cfg.Sources.Yahoo.BaseURL}, httpClient, relays))
	}
	if cfg.Sources.Stooq.Enabled {
		sources = append(sources, stooq.New(stooq.Config{BaseURL: cfg.Sources.Stooq.BaseURL}, httpClient, relays))
	}
	if len(sources) == 0 {
		log.Warn().Msg("no sources enabled; every request will be synthesized")
	}

	met := metrics.New(prometheus.DefaultRegisterer)
	chain := source.NewChain(source.ChainConfig{
		AttemptsPerSource: cfg.Sources.AttemptsPerSource,
		AttemptTimeout:    cfg.Sources.AttemptTimeout(),
		Backoff:           cfg.Sources.Backoff(),
	}, log.With().Str("component", "chain").Logger(), sources...).Apply(source.WithMetrics(met))

	store := cache.New(cache.Config{
		QuoteTTL: time.Duration(cfg.Cache.QuoteTTLSec) * time.Second,
		BarTTL:   time.Duration(cfg.Cache.BarTTLSec) * time.Second,
	})
	synthesizer := synth.New(synth.DefaultProfiles(), synth.Config{
		IntradayVolScale: cfg.Synth.IntradayVolScale,
		WickFactor:       cfg.Synth.WickFactor,
		OpenCloseBoost:   cfg.Synth.OpenCloseBoost,
		TrendBiasMax:     cfg.Synth.TrendBiasMax,
		BaseVolume:       cfg.Synth.BaseVolume,
	})
	f := feed.New(feed.Config{
		PollInterval: time.Duration(cfg.Feed.PollIntervalSec) * time.Second,
	}, store, chain, synthesizer,
		feed.WithLogger(log.With().Str("component", "feed").Logger()),
		feed.WithMetrics(met),
	)

	a := &api{feed: f, log: log.With().Str("component", "api").Logger()}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/quote", a.handleQuote)
	mux.HandleFunc("/api/bars", a.handleBars)
	mux.HandleFunc("/api/stream", a.handleStream)
	mux.HandleFunc("/api/cache/clear", a.handleClearCache)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           withJSONHeaders(withGzip(recoverPanic(mux))),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
