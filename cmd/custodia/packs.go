package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"custodia-hq/custodia/pkg/cli"
	"custodia-hq/custodia/pkg/evidence/storage"
)

var packsFlags struct {
	indexPath string
	timeRange string
	limit     int
	format    string
	output    string
}

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Query the pack index",
	Long: `Query the evidence pack index.

The index catalogs every persisted pack with its path, manifest
checksum, and signing status.

Subcommands:
  list - List indexed packs
  show - Show one pack's index entry

Examples:
  # List the most recent packs
  custodia packs list

  # List packs from a specific window
  custodia packs list --time-range "2026-08-01T00:00:00Z/2026-08-25T00:00:00Z"

  # Look up one execution
  custodia packs show exec-42`,
}

var packsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed packs",
	Long: `List indexed packs, newest first.

Time Range Format:
  RFC3339 interval format: "start/end"
  Example: "2026-08-01T00:00:00Z/2026-08-25T00:00:00Z"`,
	RunE: listPacks,
}

var packsShowCmd = &cobra.Command{
	Use:   "show <execution-id>",
	Short: "Show one pack's index entry",
	Args:  cobra.ExactArgs(1),
	RunE:  showPack,
}

func init() {
	rootCmd.AddCommand(packsCmd)
	packsCmd.AddCommand(packsListCmd, packsShowCmd)

	packsCmd.PersistentFlags().StringVar(&packsFlags.indexPath, "index", "", "index database path (uses config if not specified)")
	packsListCmd.Flags().StringVar(&packsFlags.timeRange, "time-range", "", "time range (RFC3339 interval: start/end)")
	packsListCmd.Flags().IntVar(&packsFlags.limit, "limit", 100, "max results")
	packsListCmd.Flags().StringVar(&packsFlags.format, "format", "text", "output format: text, json")
	packsListCmd.Flags().StringVarP(&packsFlags.output, "output", "o", "", "output file (default: stdout)")
}

func openIndex() (*storage.Index, error) {
	path := packsFlags.indexPath
	if path == "" {
		cfg, err := loadConfigOrDefaults()
		if err != nil {
			return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
		}
		path = cfg.Retention.IndexPath
	}
	indexCfg := storage.DefaultIndexConfig()
	indexCfg.Path = path
	return storage.NewIndex(indexCfg)
}

func listPacks(cmd *cobra.Command, args []string) error {
	index, err := openIndex()
	if err != nil {
		return cli.NewCommandError("packs", err)
	}
	defer index.Close()

	// Default window: everything up to now.
	from := time.Time{}
	to := time.Now().UTC().Add(time.Hour)
	if packsFlags.timeRange != "" {
		from, to, err = parseTimeRange(packsFlags.timeRange)
		if err != nil {
			return err
		}
	}

	entries, err := index.List(context.Background(), from, to, packsFlags.limit)
	if err != nil {
		return cli.NewCommandError("packs", err)
	}

	out := os.Stdout
	if packsFlags.output != "" {
		out, err = os.Create(packsFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()
	}

	if packsFlags.format == "json" {
		return (&cli.JSONFormatter{Indent: true}).FormatTo(out, map[string]any{
			"total": len(entries),
			"packs": entries,
		})
	}

	fmt.Fprintf(out, "Total packs: %d\n", len(entries))
	fmt.Fprintln(out)
	for _, e := range entries {
		signed := "unsigned"
		if e.Signed {
			signed = "signed"
		}
		fmt.Fprintf(out, "%s  %s  %s  %s\n",
			e.CreatedAt.Format(time.RFC3339), e.ExecutionID, signed, e.Path)
	}
	return nil
}

func showPack(cmd *cobra.Command, args []string) error {
	index, err := openIndex()
	if err != nil {
		return cli.NewCommandError("packs", err)
	}
	defer index.Close()

	entry, err := index.Get(context.Background(), args[0])
	if err != nil {
		return cli.NewPackError("packs", args[0], err)
	}

	fmt.Printf("Execution: %s\n", entry.ExecutionID)
	fmt.Printf("Pack:      %s\n", entry.PackID)
	fmt.Printf("Path:      %s\n", entry.Path)
	fmt.Printf("Checksum:  %s\n", entry.ManifestChecksum)
	fmt.Printf("Signed:    %t\n", entry.Signed)
	fmt.Printf("Created:   %s\n", entry.CreatedAt.Format(time.RFC3339))
	return nil
}

// parseTimeRange parses an RFC3339 "start/end" interval.
func parseTimeRange(value string) (time.Time, time.Time, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid time range format (expected: start/end)")
	}
	from, err := time.Parse(time.RFC3339, parts[0])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time: %w", err)
	}
	to, err := time.Parse(time.RFC3339, parts[1])
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time: %w", err)
	}
	return from, to, nil
}
