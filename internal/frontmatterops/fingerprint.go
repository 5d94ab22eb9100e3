// Package frontmatterops derives content digests from parsed documents.
package frontmatterops

import (
	"errors"
	"strings"

	"github.com/inful/mdfp"

	"git.home.luguber.info/inful/contentbuilder/internal/frontmatter"
)

// ComputeFingerprint returns the canonical digest of a document: its
// frontmatter serialized with sorted keys (minus any stored fingerprint) and
// its body. Unchanged documents always produce the same digest, which keys the
// render cache.
func ComputeFingerprint(fields map[string]any, body []byte) (string, error) {
	if fields == nil {
		return "", errors.New("fields map is nil")
	}

	fieldsForHash := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == mdfp.FingerprintField {
			continue
		}
		fieldsForHash[k] = v
	}

	frontmatterForHash := ""
	if len(fieldsForHash) > 0 {
		serialized, err := frontmatter.SerializeYAML(fieldsForHash)
		if err != nil {
			return "", err
		}
		frontmatterForHash = strings.TrimSuffix(string(serialized), "\n")
	}

	return mdfp.CalculateFingerprintFromParts(frontmatterForHash, string(body)), nil
}

// CombineFingerprints folds additional inputs (the transform chain signature)
// into a document fingerprint.
func CombineFingerprints(fingerprint string, parts ...string) string {
	return mdfp.CalculateFingerprintFromParts(fingerprint, strings.Join(parts, "\n"))
}
