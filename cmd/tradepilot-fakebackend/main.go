// Command tradepilot-fakebackend serves the in-memory backend for local runs of
// the TUI without a brokerage connection.
package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"tradepilot/internal/fakebackend"
	"tradepilot/logging"
)

func main() {
	var (
		addr    = flag.String("addr", ":8000", "listen address")
		running = flag.String("autotrade", "", "symbol to report as auto-traded at startup")
		debug   = flag.Bool("debug", false, "gin debug mode")
	)
	flag.Parse()

	logger := logging.New(os.Stderr, logging.Options{Level: "info", Pretty: true})
	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}

	backend := fakebackend.New()
	if *running != "" {
		backend.SetAutoTrade(true, []string{*running})
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           backend.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info().Str("addr", *addr).Msg("fake backend listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
