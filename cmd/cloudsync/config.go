package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/cloudsync/internal/config"
)

var (
	flagCheck   string
	flagDefault bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print or check the configuration",
	Long: `Print the effective configuration after search and overrides, print the
built-in defaults, or validate a file.

Examples:
  cloudsync config
  cloudsync config --default > ~/.cloudsync/cloudsync.yaml
  cloudsync config --check ./my.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

func init() {
	configCmd.Flags().StringVar(&flagCheck, "check", "", "Validate this file and exit")
	configCmd.Flags().BoolVar(&flagDefault, "default", false, "Print the built-in default document")
}

func runConfig(_ *cobra.Command, _ []string) error {
	if flagCheck != "" {
		data, err := os.ReadFile(flagCheck)
		if err != nil {
			return err
		}
		if _, err := config.Parse(data, flagCheck); err != nil {
			return err
		}
		fmt.Printf("%s: ok\n", flagCheck)
		return nil
	}

	if flagDefault {
		_, err := os.Stdout.Write(config.DefaultYAML())
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
