package main

import (
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"custodia-hq/custodia/pkg/signing"
)

var keysFlags struct {
	output    string
	keyID     string
	algorithm string
	validity  time.Duration
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage signing keys",
	Long: `Generate and manage key pairs for evidence pack signing.

Development deployments can generate a self-signed certificate here;
production deployments should load CA-issued material through
signing.key_path and signing.cert_path.

Subcommands:
  generate - Generate a new self-signed key pair

Examples:
  # Generate a key pair with the default algorithm
  custodia keys generate

  # Generate with a custom key ID and algorithm
  custodia keys generate --key-id "prod-2026" --algorithm RSA-4096-SHA256`,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new key pair",
	Long: `Generate a new key pair and self-signed certificate for evidence
signing.

The generated files are saved as PEM with restrictive permissions:
  - Certificate: 0644 (readable by all)
  - Private key: 0600 (readable only by owner)

Examples:
  # Generate a key pair with an auto-generated ID
  custodia keys generate

  # Save to a custom directory
  custodia keys generate --output /etc/custodia/keys`,
	RunE: generateKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysGenerateCmd)

	keysGenerateCmd.Flags().StringVarP(&keysFlags.output, "output", "o", "./keys", "output directory")
	keysGenerateCmd.Flags().StringVar(&keysFlags.keyID, "key-id", "", "key ID (auto-generated if empty)")
	keysGenerateCmd.Flags().StringVar(&keysFlags.algorithm, "algorithm", "ECDSA-P384-SHA384", "signature algorithm: RSA-4096-SHA256, ECDSA-P384-SHA384, ECDSA-P521-SHA512")
	keysGenerateCmd.Flags().DurationVar(&keysFlags.validity, "validity", 365*24*time.Hour, "certificate validity period")
}

func generateKeys(cmd *cobra.Command, args []string) error {
	if keysFlags.keyID == "" {
		keysFlags.keyID = fmt.Sprintf("key-%d", time.Now().Unix())
	}

	fmt.Printf("Generating %s key pair...\n", keysFlags.algorithm)
	fmt.Println()

	key, cert, err := signing.GenerateSelfSigned(signing.SelfSignedConfig{
		Algorithm:  signing.Algorithm(keysFlags.algorithm),
		CommonName: keysFlags.keyID,
		Validity:   keysFlags.validity,
	})
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}

	if err := os.MkdirAll(keysFlags.output, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	certPath := filepath.Join(keysFlags.output, keysFlags.keyID+"_cert.pem")
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw})
	if err := os.WriteFile(certPath, certPEM, 0644); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}

	keyPath := filepath.Join(keysFlags.output, keysFlags.keyID+"_key.pem")
	keyPEM, err := signing.EncodeKeyPEM(key)
	if err != nil {
		return fmt.Errorf("failed to encode private key: %w", err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return fmt.Errorf("failed to save private key: %w", err)
	}

	fmt.Printf("Key ID:      %s\n", keysFlags.keyID)
	fmt.Printf("Thumbprint:  %s\n", signing.CertThumbprint(cert))
	fmt.Printf("Certificate: %s\n", certPath)
	fmt.Printf("Private Key: %s\n", keyPath)
	fmt.Println()
	fmt.Println("⚠️  Warning: Store the private key securely and never commit it to version control")
	fmt.Println("✓  Keys generated successfully")
	fmt.Println()
	fmt.Println("Configuration snippet:")
	fmt.Println("signing:")
	fmt.Println("  enabled: true")
	fmt.Printf("  algorithm: \"%s\"\n", keysFlags.algorithm)
	fmt.Printf("  key_path: \"%s\"\n", keyPath)
	fmt.Printf("  cert_path: \"%s\"\n", certPath)

	return nil
}
