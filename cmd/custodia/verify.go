package main

import (
	"crypto/x509"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"custodia-hq/custodia/pkg/cli"
	"custodia-hq/custodia/pkg/evidence"
	"custodia-hq/custodia/pkg/evidence/accumulator"
	"custodia-hq/custodia/pkg/signing"
)

var verifyFlags struct {
	format string
	output string
	caFile string
}

var verifyCmd = &cobra.Command{
	Use:   "verify <pack-dir>...",
	Short: "Verify evidence pack integrity",
	Long: `Verify one or more persisted evidence packs.

Every file checksum in each pack is recomputed and checked against the
checksum index, the manifest checksum is checked against the index
bytes, the chain of custody is checked for hash continuity, and the
manifest signature is verified when present.

The command exits non-zero when any check fails.

Examples:
  # Verify a pack
  custodia verify ./data/packs/exec-42.evp

  # Verify a whole pack store
  custodia verify ./data/packs/*.evp

  # Verify with a trusted CA for chain validation
  custodia verify ./data/packs/exec-42.evp --ca ./ca.pem

  # Machine-readable result
  custodia verify ./data/packs/exec-42.evp --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&verifyFlags.format, "format", "text", "output format: text, json")
	verifyCmd.Flags().StringVarP(&verifyFlags.output, "output", "o", "", "output file (default: stdout)")
	verifyCmd.Flags().StringVar(&verifyFlags.caFile, "ca", "", "PEM file with trusted CA certificates")
}

// verifyReport is the result of all pack verification checks.
type verifyReport struct {
	PackID           string                      `json:"packId"`
	ExecutionID      string                      `json:"executionId"`
	Path             string                      `json:"path"`
	ManifestChecksum string                      `json:"manifestChecksum"`
	FilesChecked     int                         `json:"filesChecked"`
	Mismatched       []string                    `json:"mismatched,omitempty"`
	CustodyIntact    bool                        `json:"custodyIntact"`
	Signed           bool                        `json:"signed"`
	Signature        *signing.VerificationResult `json:"signature,omitempty"`
	Valid            bool                        `json:"valid"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	var roots *x509.CertPool
	if verifyFlags.caFile != "" {
		pemData, err := os.ReadFile(verifyFlags.caFile)
		if err != nil {
			return fmt.Errorf("failed to read CA file: %w", err)
		}
		roots = x509.NewCertPool()
		if !roots.AppendCertsFromPEM(pemData) {
			return fmt.Errorf("no certificates found in %s", verifyFlags.caFile)
		}
	}

	// A progress bar across packs is only useful for multi-pack text
	// runs on a terminal.
	var progress cli.ProgressReporter
	if len(args) > 1 && verifyFlags.format != "json" && verifyFlags.output == "" {
		progress = cli.NewProgressReporter(os.Stderr)
		progress.Start(int64(len(args)))
	}

	reports := make([]*verifyReport, 0, len(args))
	for i, packDir := range args {
		report, err := verifyPackDir(packDir, roots)
		if err != nil {
			if progress != nil {
				progress.Error(err)
			}
			return cli.NewPackError("verify", packDir, err)
		}
		reports = append(reports, report)
		if progress != nil {
			progress.Update(int64(i + 1))
		}
	}
	if progress != nil {
		progress.Finish()
	}

	out := io.Writer(os.Stdout)
	if verifyFlags.output != "" {
		f, err := os.Create(verifyFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	switch verifyFlags.format {
	case "json":
		var data any = reports
		if len(reports) == 1 {
			data = reports[0]
		}
		if err := (&cli.JSONFormatter{Indent: true}).FormatTo(out, data); err != nil {
			return err
		}
	default:
		for i, report := range reports {
			if i > 0 {
				fmt.Fprintln(out)
			}
			writeVerifyText(out, report)
		}
	}

	var failed []string
	for _, report := range reports {
		if !report.Valid {
			failed = append(failed, report.PackID)
		}
	}
	if len(failed) > 0 {
		return cli.NewCommandError("verify", fmt.Errorf("%d pack(s) failed verification: %s", len(failed), strings.Join(failed, ", ")))
	}
	return nil
}

// verifyPackDir runs the integrity and signature checks for one pack.
func verifyPackDir(packDir string, roots *x509.CertPool) (*verifyReport, error) {
	manifest, mismatched, err := accumulator.VerifyPack(packDir)
	if err != nil {
		return nil, err
	}

	report := &verifyReport{
		PackID:           manifest.PackID,
		ExecutionID:      manifest.ExecutionID,
		Path:             packDir,
		ManifestChecksum: manifest.Integrity.ManifestChecksum,
		Mismatched:       mismatched,
		CustodyIntact:    evidence.VerifyCustodyChain(manifest.ChainOfCustody) == nil,
		Valid:            len(mismatched) == 0,
	}
	if !report.CustodyIntact {
		report.Valid = false
	}
	if pack, err := accumulator.LoadPack(packDir); err == nil {
		report.FilesChecked = len(pack.Checksums)
	}

	meta, err := accumulator.LoadSignature(packDir)
	if err != nil {
		return nil, err
	}
	if meta != nil {
		report.Signed = true
		verifier := signing.NewVerifier(signing.VerifierConfig{Roots: roots})
		res := verifier.Verify([]byte(manifest.Integrity.ManifestChecksum), meta)
		report.Signature = &res
		if !res.Valid {
			report.Valid = false
		}
	}
	return report, nil
}

func writeVerifyText(out io.Writer, report *verifyReport) {
	fmt.Fprintf(out, "Pack:        %s\n", report.PackID)
	fmt.Fprintf(out, "Execution:   %s\n", report.ExecutionID)
	fmt.Fprintf(out, "Path:        %s\n", report.Path)
	fmt.Fprintf(out, "Files:       %d\n", report.FilesChecked)
	fmt.Fprintf(out, "Checked:     %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintln(out)

	if len(report.Mismatched) == 0 {
		fmt.Fprintln(out, "Checksums:   ok")
	} else {
		fmt.Fprintf(out, "Checksums:   %d file(s) FAILED\n", len(report.Mismatched))
		for _, path := range report.Mismatched {
			fmt.Fprintf(out, "  - %s\n", path)
		}
	}

	if report.CustodyIntact {
		fmt.Fprintln(out, "Custody:     intact")
	} else {
		fmt.Fprintln(out, "Custody:     BROKEN chain")
	}

	if !report.Signed {
		fmt.Fprintln(out, "Signature:   none (pack is unsigned)")
	} else if report.Signature.Valid {
		fmt.Fprintln(out, "Signature:   valid")
	} else {
		fmt.Fprintln(out, "Signature:   INVALID")
		for _, e := range report.Signature.Errors {
			fmt.Fprintf(out, "  - %s\n", e)
		}
	}
	if report.Signed {
		for _, w := range report.Signature.Warnings {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
	}

	fmt.Fprintln(out)
	if report.Valid {
		fmt.Fprintln(out, "Result:      PASS")
	} else {
		fmt.Fprintln(out, "Result:      FAIL")
	}
}
