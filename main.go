package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tradepilot/api"
	"tradepilot/auth"
	"tradepilot/config"
	"tradepilot/logging"
	"tradepilot/models"
)

func main() {
	if err := run(); err != nil {
		fmt.Printf("Error running program: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	// The TUI owns the terminal, so logs go to a file.
	logger, closer, err := logging.Open(dir, logging.Options{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		Path:   cfg.Log.File,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	client := api.NewClient(api.Options{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		RatePerSec: cfg.API.RatePerSec,
		Burst:      cfg.API.Burst,
		Logger:     logger,
	})

	store := auth.NewStore(dir)
	token, err := store.Load(time.Now())
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		logger.Info().Msg("stored token expired, login required")
	case err != nil:
		logger.Warn().Err(err).Msg("failed to load stored token")
	}

	logger.Info().Str("base_url", cfg.API.BaseURL).Msg("starting tradepilot")

	model := models.NewAppModel(models.Options{
		Backend: client,
		Tokens:  store,
		Config:  cfg,
		Logger:  logger,
		Token:   token,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
