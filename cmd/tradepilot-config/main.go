package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"tradepilot/api"
	"tradepilot/config"
	"tradepilot/logging"
)

var (
	cfgFile string
	force   bool
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tradepilot-config",
		Short: "Manage the tradepilot client configuration",
		Long: `tradepilot-config writes, shows and checks the client settings.

Settings are read from defaults, then the YAML file, then .env, then
TRADEPILOT_* environment variables (TRADEPILOT_API_BASE_URL, ...).

Examples:
  tradepilot-config init
  tradepilot-config show
  TRADEPILOT_API_BASE_URL=http://10.0.0.5:8000 tradepilot-config check`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default ~/.config/tradepilot/config.yaml)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective settings to the config file",
		RunE:  runInit,
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective settings",
		RunE:  runShow,
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the settings and ping the backend",
		RunE:  runCheck,
	}
	checkCmd.Flags().BoolVar(&verbose, "verbose", false, "log requests to stderr")

	rootCmd.AddCommand(initCmd, showCmd, checkCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

func runInit(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", path)
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	fmt.Printf("Config file: %s\n\n", path)
	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Key", "Value"}),
	)
	for _, kv := range cfg.Values() {
		table.Append([]string{kv[0], kv[1]})
	}
	table.Render()
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	fmt.Println("✓ settings are valid")

	opts := logging.Options{Level: "warn", Pretty: true}
	if verbose {
		opts.Level = "debug"
	}
	client := api.NewClient(api.Options{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
		Logger:  logging.New(os.Stderr, opts),
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	start := time.Now()
	status, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("backend %s unreachable: %w", cfg.API.BaseURL, err)
	}
	fmt.Printf("✓ backend %s is %s (%s)\n", cfg.API.BaseURL, status, time.Since(start).Round(time.Millisecond))
	return nil
}
