package accumulator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"custodia-hq/custodia/pkg/evidence"
	"custodia-hq/custodia/pkg/signing"
)

// Pack layout file names. The manifest is written absolutely last.
const (
	manifestFile   = "manifest.json"
	checksumsFile  = "checksums.json"
	lineageFile    = "lineage/lineage.json"
	decisionsFile  = "decisions/decisions.json"
	complianceFile = "compliance/results.json"
	logsFile       = "logs/execution.json"
	screenshotsDir = "screenshots"
	signaturesDir  = "signatures"
	signatureFile  = "signatures/manifest.sig.json"
)

// Persist writes the finalized pack to dir/<executionID>.evp. It
// returns the pack path; a signing failure still persists the pack
// unsigned and is returned as a SigningError alongside the path.
func (a *Accumulator) Persist(ctx context.Context, dir string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pack == nil {
		return "", evidence.NewValidationError("state", "pack must be finalized before persist")
	}
	if a.state == StatePersisted {
		return a.pack.Path, nil
	}

	packDir := filepath.Join(dir, a.executionID+".evp")
	if err := os.MkdirAll(packDir, 0o755); err != nil {
		return "", evidence.NewStorageError("local", "mkdir", err)
	}
	for _, sub := range []string{"lineage", "decisions", "compliance", "logs", screenshotsDir, signaturesDir} {
		if err := os.MkdirAll(filepath.Join(packDir, sub), 0o755); err != nil {
			return "", evidence.NewStorageError("local", "mkdir", err)
		}
	}

	checksums := make(map[string]string)

	writeJSON := func(rel string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return evidence.NewStorageError("local", "marshal", err)
		}
		if err := os.WriteFile(filepath.Join(packDir, rel), data, 0o644); err != nil {
			return evidence.NewStorageError("local", "write", err)
		}
		checksums[rel] = evidence.HashBytes(data)
		return nil
	}

	if err := writeJSON(lineageFile, a.pack.Lineage); err != nil {
		return "", err
	}
	if err := writeJSON(decisionsFile, a.pack.Decisions); err != nil {
		return "", err
	}
	if err := writeJSON(complianceFile, a.pack.Compliance); err != nil {
		return "", err
	}
	if err := writeJSON(logsFile, a.pack.Logs); err != nil {
		return "", err
	}
	for _, shot := range a.pack.Screenshots {
		rel := filepath.Join(screenshotsDir, shot.Entry.Filename)
		if err := os.WriteFile(filepath.Join(packDir, rel), shot.Data, 0o644); err != nil {
			return "", evidence.NewStorageError("local", "write", err)
		}
		checksums[rel] = evidence.HashBytes(shot.Data)
	}

	entries := make([]evidence.ScreenshotEntry, len(a.pack.Screenshots))
	for i, shot := range a.pack.Screenshots {
		entries[i] = shot.Entry
	}
	if err := writeJSON(filepath.Join(screenshotsDir, "index.json"), entries); err != nil {
		return "", err
	}

	// The checksum index covers every file written so far; the
	// manifest checksum covers the index, closing the chain.
	checksumData, err := json.MarshalIndent(checksums, "", "  ")
	if err != nil {
		return "", evidence.NewStorageError("local", "marshal", err)
	}
	if err := os.WriteFile(filepath.Join(packDir, checksumsFile), checksumData, 0o644); err != nil {
		return "", evidence.NewStorageError("local", "write", err)
	}

	manifestChecksum := evidence.HashBytes(checksumData)
	a.pack.Manifest.Integrity.ManifestChecksum = manifestChecksum
	a.pack.Checksums = checksums

	var signErr error
	if a.signer != nil {
		meta, err := a.signer.Sign(ctx, []byte(manifestChecksum))
		if err != nil {
			signErr = err
			a.pack.Manifest.ChainOfCustody = evidence.AppendCustody(a.pack.Manifest.ChainOfCustody, evidence.CustodyEvent{
				Timestamp: a.now().UTC(),
				Event:     "signing_failed",
				Actor:     a.actor,
				Details:   err.Error(),
			})
			a.logger.Error("pack signing failed, persisting unsigned", "error", err)
		} else {
			if err := writeSignature(packDir, meta); err != nil {
				return "", err
			}
			a.pack.Manifest.Integrity.Signature = &evidence.SignatureInfo{
				Algorithm:       string(meta.Algorithm),
				SignedAt:        meta.SignedAt,
				CertThumbprint:  meta.CertThumbprint,
				TimestampSource: meta.TimestampSource,
			}
			a.pack.Manifest.ChainOfCustody = evidence.AppendCustody(a.pack.Manifest.ChainOfCustody, evidence.CustodyEvent{
				Timestamp: a.now().UTC(),
				Event:     "signed",
				Actor:     a.actor,
				Details:   fmt.Sprintf("algorithm=%s timestamp=%s", meta.Algorithm, meta.TimestampSource),
			})
		}
	}

	a.pack.Manifest.ChainOfCustody = evidence.AppendCustody(a.pack.Manifest.ChainOfCustody, evidence.CustodyEvent{
		Timestamp: a.now().UTC(),
		Event:     "persisted",
		Actor:     a.actor,
		Details:   packDir,
	})

	// Manifest last: everything it attests to is already on disk.
	manifestData, err := json.MarshalIndent(a.pack.Manifest, "", "  ")
	if err != nil {
		return "", evidence.NewStorageError("local", "marshal", err)
	}
	if err := os.WriteFile(filepath.Join(packDir, manifestFile), manifestData, 0o644); err != nil {
		return "", evidence.NewStorageError("local", "write", err)
	}

	a.pack.Path = packDir
	a.state = StatePersisted
	packsPersisted.Inc()

	registry.mu.Lock()
	if registry.active[a.executionID] == a {
		delete(registry.active, a.executionID)
	}
	registry.mu.Unlock()

	a.logger.Info("evidence pack persisted",
		"path", packDir,
		"files", len(checksums),
		"signed", a.pack.Manifest.Integrity.Signature != nil)

	if signErr != nil {
		return packDir, evidence.NewSigningError("sign", signErr)
	}
	return packDir, nil
}

func writeSignature(packDir string, meta *signing.SignatureMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return evidence.NewStorageError("local", "marshal", err)
	}
	if err := os.WriteFile(filepath.Join(packDir, signatureFile), data, 0o644); err != nil {
		return evidence.NewStorageError("local", "write", err)
	}
	return nil
}

// LoadManifest reads and parses a persisted pack's manifest.
func LoadManifest(packDir string) (*evidence.Manifest, error) {
	data, err := os.ReadFile(filepath.Join(packDir, manifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, evidence.NewNotFoundError("manifest", packDir)
		}
		return nil, evidence.NewStorageError("local", "read", err)
	}
	var m evidence.Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, evidence.NewStorageError("local", "parse", err)
	}
	return &m, nil
}

// LoadSignature reads a persisted pack's signature metadata, or nil
// when the pack is unsigned.
func LoadSignature(packDir string) (*signing.SignatureMetadata, error) {
	data, err := os.ReadFile(filepath.Join(packDir, signatureFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, evidence.NewStorageError("local", "read", err)
	}
	var meta signing.SignatureMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, evidence.NewStorageError("local", "parse", err)
	}
	return &meta, nil
}

// LoadPack reconstructs a persisted pack from disk. Screenshot image
// bytes are not loaded, only the index entries.
func LoadPack(packDir string) (*evidence.Pack, error) {
	manifest, err := LoadManifest(packDir)
	if err != nil {
		return nil, err
	}
	pack := &evidence.Pack{Manifest: *manifest, Path: packDir}

	readJSON := func(rel string, v any) error {
		data, err := os.ReadFile(filepath.Join(packDir, rel))
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return evidence.NewStorageError("local", "read", err)
		}
		if err := json.Unmarshal(data, v); err != nil {
			return evidence.NewStorageError("local", "parse", err)
		}
		return nil
	}

	if err := readJSON(lineageFile, &pack.Lineage); err != nil {
		return nil, err
	}
	if err := readJSON(decisionsFile, &pack.Decisions); err != nil {
		return nil, err
	}
	if err := readJSON(complianceFile, &pack.Compliance); err != nil {
		return nil, err
	}
	if err := readJSON(logsFile, &pack.Logs); err != nil {
		return nil, err
	}
	if err := readJSON(checksumsFile, &pack.Checksums); err != nil {
		return nil, err
	}

	var entries []evidence.ScreenshotEntry
	if err := readJSON(filepath.Join(screenshotsDir, "index.json"), &entries); err != nil {
		return nil, err
	}
	for _, e := range entries {
		pack.Screenshots = append(pack.Screenshots, evidence.Screenshot{Entry: e})
	}
	return pack, nil
}

// VerifyPack recomputes every checksum in a persisted pack and checks
// the manifest checksum chain. It returns the mismatched paths.
func VerifyPack(packDir string) (*evidence.Manifest, []string, error) {
	manifest, err := LoadManifest(packDir)
	if err != nil {
		return nil, nil, err
	}

	checksumData, err := os.ReadFile(filepath.Join(packDir, checksumsFile))
	if err != nil {
		return manifest, []string{checksumsFile}, nil
	}

	var mismatched []string
	if evidence.HashBytes(checksumData) != manifest.Integrity.ManifestChecksum {
		mismatched = append(mismatched, checksumsFile)
	}

	var checksums map[string]string
	if err := json.Unmarshal(checksumData, &checksums); err != nil {
		return manifest, append(mismatched, checksumsFile), nil
	}
	for rel, want := range checksums {
		got, err := evidence.HashFile(filepath.Join(packDir, rel))
		if err != nil || got != want {
			mismatched = append(mismatched, rel)
		}
	}
	return manifest, mismatched, nil
}
