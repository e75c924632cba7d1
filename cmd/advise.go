package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ogatech4real/smart-energy-optimiser/app"
	"github.com/ogatech4real/smart-energy-optimiser/config"
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Run one evaluation and print the result as JSON",
	RunE:  runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)
}

func runAdvise(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Evaluate(context.Background())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
