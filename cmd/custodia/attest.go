package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"custodia-hq/custodia/pkg/attestation"
	"custodia-hq/custodia/pkg/cli"
	"custodia-hq/custodia/pkg/config"
	"custodia-hq/custodia/pkg/evidence/accumulator"
	"custodia-hq/custodia/pkg/signing"
)

var attestFlags struct {
	framework  string
	catalogDir string
	format     string
	output     string
	noSign     bool
}

var attestCmd = &cobra.Command{
	Use:   "attest <pack-dir>",
	Short: "Generate a compliance attestation",
	Long: `Generate a compliance attestation report from a persisted evidence
pack.

The pack's contents are evaluated against the control catalog of the
selected framework. Built-in catalogs cover HIPAA, SOC2, PCI-DSS, and
GDPR; custom catalogs are loaded from --catalog-dir (or the configured
attestation.catalog_dir).

The report embeds the pack's manifest checksum and is signed with the
configured signing key unless --no-sign is set. A signing failure is
recorded as a warning; the report is still produced.

Examples:
  # HIPAA attestation as a text report
  custodia attest ./data/packs/exec-42.evp --framework HIPAA

  # SOC2 attestation as JSON, written to a file
  custodia attest ./data/packs/exec-42.evp --framework SOC2 --format json -o report.json

  # Evaluate against a custom catalog
  custodia attest ./data/packs/exec-42.evp --framework INTERNAL --catalog-dir ./catalogs`,
	Args: cobra.ExactArgs(1),
	RunE: runAttest,
}

func init() {
	rootCmd.AddCommand(attestCmd)

	attestCmd.Flags().StringVar(&attestFlags.framework, "framework", "", "compliance framework (default: first configured framework)")
	attestCmd.Flags().StringVar(&attestFlags.catalogDir, "catalog-dir", "", "directory of custom YAML control catalogs")
	attestCmd.Flags().StringVar(&attestFlags.format, "format", "text", "output format: text, json")
	attestCmd.Flags().StringVarP(&attestFlags.output, "output", "o", "", "output file (default: stdout)")
	attestCmd.Flags().BoolVar(&attestFlags.noSign, "no-sign", false, "skip signing the attestation")
}

func runAttest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigOrDefaults()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}

	framework := attestFlags.framework
	if framework == "" && len(cfg.Attestation.Frameworks) > 0 {
		framework = cfg.Attestation.Frameworks[0]
	}
	if framework == "" {
		return cli.NewConfigError("attestation.frameworks", "no framework selected")
	}

	registry := attestation.NewRegistry()
	catalogDir := attestFlags.catalogDir
	if catalogDir == "" {
		catalogDir = cfg.Attestation.CatalogDir
	}
	if catalogDir != "" {
		if err := registerCatalogs(registry, catalogDir); err != nil {
			return cli.NewCommandError("attest", err)
		}
	}
	if cfg.Attestation.PartialWeight > 0 {
		attestation.PartialWeight = cfg.Attestation.PartialWeight
	}

	var signer attestation.Signer
	if cfg.Signing.Enabled && !attestFlags.noSign {
		s, err := buildSigner(cfg)
		if err != nil {
			return cli.NewCommandError("attest", fmt.Errorf("failed to build signer: %w", err))
		}
		if s != nil {
			signer = s
		}
	}

	pack, err := accumulator.LoadPack(args[0])
	if err != nil {
		return cli.NewPackError("attest", args[0], err)
	}

	generator := attestation.NewGenerator(attestation.GeneratorConfig{
		Registry: registry,
		Signer:   signer,
	})
	// Signing may call out to a TSA; make it interruptible.
	ctx := cli.SetupSignalHandler()
	att, err := generator.GenerateAttestation(ctx, pack, attestation.Framework(framework))
	if err != nil {
		return cli.NewPackError("attest", args[0], err)
	}

	out := io.Writer(os.Stdout)
	if attestFlags.output != "" {
		f, err := os.Create(attestFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch attestFlags.format {
	case "json":
		data, err := att.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	default:
		_, err = io.WriteString(out, att.RenderText())
		return err
	}
}

// loadConfigOrDefaults loads the configured file, or falls back to the
// built-in defaults when no config file exists.
func loadConfigOrDefaults() (*config.Config, error) {
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		cfg := config.New()
		config.ApplyDefaults(cfg)
		return cfg, nil
	}
	return config.LoadConfigWithEnvOverrides(cfgFile)
}

// registerCatalogs loads every YAML catalog in dir into the registry.
func registerCatalogs(registry *attestation.Registry, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read catalog dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		catalog, err := attestation.LoadCatalogFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("catalog %s: %w", entry.Name(), err)
		}
		if err := registry.Register(catalog); err != nil {
			return fmt.Errorf("catalog %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// buildSigner constructs a signer from the signing configuration. It
// returns nil without error when no key material is configured; the
// attestation is then produced unsigned with a warning.
func buildSigner(cfg *config.Config) (*signing.Signer, error) {
	algorithm := signing.Algorithm(cfg.Signing.Algorithm)

	var signerCfg signing.SignerConfig
	signerCfg.Algorithm = algorithm
	if cfg.Signing.TSA.URL != "" {
		tsa, err := signing.NewTSAClient(signing.TSAClientConfig{
			Endpoint: cfg.Signing.TSA.URL,
			Timeout:  cfg.Signing.TSA.Timeout,
		})
		if err != nil {
			return nil, err
		}
		signerCfg.TSA = tsa
	}

	if cfg.Signing.KeyPath != "" && cfg.Signing.CertPath != "" {
		key, cert, err := signing.LoadKeyPair(cfg.Signing.CertPath, cfg.Signing.KeyPath)
		if err != nil {
			return nil, err
		}
		return signing.NewSigner(key, cert, signerCfg)
	}
	if cfg.Signing.GenerateSelfSigned {
		key, cert, err := signing.GenerateSelfSigned(signing.SelfSignedConfig{
			Algorithm:  algorithm,
			CommonName: "custodia-dev",
		})
		if err != nil {
			return nil, err
		}
		return signing.NewSigner(key, cert, signerCfg)
	}
	return nil, nil
}
