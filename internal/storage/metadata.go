package storage

import "strings"

// Object-store user metadata travels as HTTP headers, so values must be
// printable US-ASCII. The pass below is best effort by contract: it strips
// or substitutes rather than erroring, because an encoding problem alone
// must never fail a write.

// SanitizeMetadata returns a copy of metadata safe for header transport.
// Empty keys are dropped; values are cleaned with SanitizeMetadataValue.
func SanitizeMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}

	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		out[k] = SanitizeMetadataValue(v)
	}
	return out
}

// SanitizeMetadataValue collapses whitespace, replaces characters outside
// printable ASCII with underscores, and substitutes header-hostile
// punctuation. An emptied value becomes a single underscore so the key
// survives the round trip.
func SanitizeMetadataValue(value string) string {
	value = strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(value)
	value = strings.Join(strings.Fields(value), " ")

	var b strings.Builder
	for _, r := range value {
		switch {
		case r < 32 || r > 126:
			b.WriteByte('_')
		case strings.ContainsRune("<>{}[]?#%", r):
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "_"
	}
	return out
}
