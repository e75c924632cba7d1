package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ogatech4real/smart-energy-optimiser/app"
	"github.com/ogatech4real/smart-energy-optimiser/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "solar-advisor",
	Short: "Household solar forecast and advisory service",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()
	if err := svc.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
