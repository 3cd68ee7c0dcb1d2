package localstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gristlabs/grist-core-sub007/internal/checksum"
)

// DeriveToken computes the token PushScheduler and Reconcile compare
// against ChecksumRegistry: the hex-encoded sha256 of a file's bytes.
// Reconcile itself never calls this — it trusts the cached hash-marker —
// but callers writing a fresh marker after a push or download need it.
func DeriveToken(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("localstore: open %s to derive token: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("localstore: hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// QuarantinedDoc records one document Reconcile found untrustworthy and
// moved aside during crash recovery.
type QuarantinedDoc struct {
	DocID  string
	Reason string
}

// Reconcile implements the crash-recovery scan of spec.md §7: for every
// `.grist` file in the store it discards that document's stray `-backup`
// file, then compares its cached hash-marker against registry. A
// `-backup` file with no matching `.grist` file is left in place. A document whose
// marker is absent or disagrees with the registry is considered
// untrusted: its file is renamed aside (suffixed ".untrusted") so a
// subsequent fetchDoc is forced to re-download rather than silently
// reopen possibly-stale content.
//
// Reconcile never re-uploads over a newer registry value — it only ever
// moves local files aside, leaving ChecksumRegistry untouched.
func (s *Store) Reconcile(ctx context.Context, registry checksum.Registry) ([]QuarantinedDoc, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("localstore: list root %s: %w", s.root, err)
	}

	var quarantined []QuarantinedDoc
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".grist") {
			continue
		}
		docID := strings.TrimSuffix(entry.Name(), ".grist")

		if err := s.CleanStrayBackups(docID); err != nil {
			return quarantined, err
		}

		marker, hasMarker, err := s.ReadHashMarker(docID)
		if err != nil {
			return quarantined, err
		}
		registryValue, hasRegistry, err := registry.Get(ctx, docID)
		if err != nil {
			return quarantined, fmt.Errorf("localstore: read registry for %s: %w", docID, err)
		}

		trusted := hasMarker && hasRegistry && marker == registryValue
		if trusted {
			continue
		}

		reason := "no hash marker"
		switch {
		case hasMarker && !hasRegistry:
			reason = "registry has no entry for a locally-held document"
		case hasMarker && hasRegistry:
			reason = "hash marker disagrees with registry"
		}

		dst := s.PathFor(docID) + ".untrusted"
		if err := os.Rename(s.PathFor(docID), dst); err != nil {
			return quarantined, fmt.Errorf("localstore: quarantine %s: %w", docID, err)
		}
		os.Remove(s.HashMarkerFor(docID))

		quarantined = append(quarantined, QuarantinedDoc{
			DocID:  docID,
			Reason: reason,
		})
	}
	return quarantined, nil
}
