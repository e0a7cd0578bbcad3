package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"custodia-hq/custodia/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "custodia",
	Short: "Custodia - audit evidence and attestation toolkit",
	Long: `Custodia accumulates tamper-evident evidence packs for RPA bot
executions and turns them into compliance artifacts.

It provides:
  - PII redaction for logs and screenshots
  - Cryptographic signing with optional trusted timestamps
  - Retention policies, legal holds, and auditable deletion
  - SIEM forwarding (CEF, LEEF, HEC, bulk indexing)
  - Compliance attestation reports (HIPAA, SOC2, PCI-DSS, GDPR)`,
	Version: Version,

	// Commands log through slog.Default; install the redacting logger
	// before any of them run.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfigOrDefaults()
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err := logging.New(cfg.Logging, os.Stderr)
		if err != nil {
			return err
		}
		logger.InstallDefault()
		return nil
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
