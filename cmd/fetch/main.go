// Command fetch resolves one quote or bar series and prints JSON,
// for debugging the acquisition pipeline without the server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quotefeed/internal/cache"
	"quotefeed/internal/config"
	"quotefeed/internal/feed"
	"quotefeed/internal/httpx"
	"quotefeed/internal/market"
	"quotefeed/internal/source"
	"quotefeed/internal/source/stooq"
	"quotefeed/internal/source/yahoo"
	"quotefeed/internal/synth"
)

func main() {
	var (
		symbol     string
		marketName string
		rangeName  string
		bars       bool
		configPath string
		verbose    bool
	)
	flag.StringVar(&symbol, "symbol", "BBCA", "instrument symbol")
	flag.StringVar(&marketName, "market", "IDX", "market: IDX, US or CRYPTO")
	flag.StringVar(&rangeName, "range", "1M", "logical range for -bars")
	flag.BoolVar(&bars, "bars", false, "fetch a bar series instead of a quote")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.BoolVar(&verbose, "v", false, "log source attempts")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	if verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	mkt, err := market.ParseMarket(marketName)
	if err != nil {
		log.Fatal().Err(err).Msg("market")
	}

	httpClient := httpx.New(time.Duration(cfg.Server.RequestTimeoutSec) * time.Second)
	relays := httpx.NewRelays(cfg.Sources.Relays)

	var sources []source.Source
	if cfg.Sources.Yahoo.Enabled {
		sources = append(sources, yahoo.New(yahoo.Config{BaseURL: cfg.Sources.Yahoo.BaseURL}, httpClient, relays))
	}
	if cfg.Sources.Stooq.Enabled {
		sources = append(sources, stooq.New(stooq.Config{BaseURL: cfg.Sources.Stooq.BaseURL}, httpClient, relays))
	}

	chain := source.NewChain(source.ChainConfig{
		AttemptsPerSource: cfg.Sources.AttemptsPerSource,
		AttemptTimeout:    cfg.Sources.AttemptTimeout(),
		Backoff:           cfg.Sources.Backoff(),
	}, log, sources...)

	f := feed.New(feed.Config{}, cache.New(cache.Config{}), chain, synth.New(synth.DefaultProfiles(), synth.Config{}), feed.WithLogger(log))

	ctx := context.Background()
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if bars {
		rng, err := market.ParseRange(strings.ToUpper(rangeName))
		if err != nil {
			log.Fatal().Err(err).Msg("range")
		}
		_ = enc.Encode(f.GetBars(ctx, symbol, mkt, rng))
		return
	}
	_ = enc.Encode(f.GetQuote(ctx, symbol, mkt))
}
