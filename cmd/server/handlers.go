package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"quotefeed/internal/feed"
	"quotefeed/internal/market"
)

var errMissingSymbol = errors.New("missing symbol query param")

type api struct {
	feed *feed.Feed
	log  zerolog.Logger
}

type barsResponse struct {
	Symbol string           `json:"symbol"`
	Market market.Market    `json:"market"`
	Range  market.Range     `json:"range"`
	Bars   market.BarSeries `json:"bars"`
}

// symbolMarket validates the common query params.
func symbolMarket(r *http.Request) (string, market.Market, error) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		return "", "", errMissingSymbol
	}
	mkt, err := market.ParseMarket(r.URL.Query().Get("market"))
	if err != nil {
		return "", "", err
	}
	return symbol, mkt, nil
}

func (a *api) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	symbol, mkt, err := symbolMarket(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, a.feed.GetQuote(r.Context(), symbol, mkt))
}

func (a *api) handleBars(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	symbol, mkt, err := symbolMarket(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	rng, err := market.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, barsResponse{
		Symbol: symbol,
		Market: mkt,
		Range:  rng,
		Bars:   a.feed.GetBars(r.Context(), symbol, mkt, rng),
	})
}

func (a *api) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.feed.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

var upgrader = websocket.Upgrader{
	// The dashboard frontend is served from a different origin.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleStream pushes one quote per poll cycle over a websocket until
// the client goes away.
func (a *api) handleStream(w http.ResponseWriter, r *http.Request) {
	symbol, mkt, err := symbolMarket(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	cancel := a.feed.Subscribe(symbol, mkt, func(q market.Quote) {
		if err := conn.WriteJSON(q); err != nil {
			a.log.Debug().Str("symbol", symbol).Err(err).Msg("stream write failed")
		}
	})

	// Reader loop only detects disconnect; clients send nothing.
	go func() {
		defer cancel()
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
