// Package naming derives stable asset identifiers and collision-safe storage
// keys for ingested binaries.
package naming

import (
	"context"
	"strings"

	"medialab/api/internal/ids"
)

const (
	maxBaseLength    = 100
	fallbackBaseName = "asset"
)

// NormalizeFolderPath canonicalizes a virtual folder: trimmed, no leading
// separator, exactly one trailing separator unless root (empty string).
// Idempotent: NormalizeFolderPath(NormalizeFolderPath(x)) == NormalizeFolderPath(x).
func NormalizeFolderPath(folder string) string {
	folder = strings.TrimSpace(folder)
	if folder == "" {
		return ""
	}
	folder = strings.TrimPrefix(folder, "/")
	if folder == "" {
		return ""
	}
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	return folder
}

// SanitizeBaseName reduces a human-supplied filename base to the storage
// allow-list: alphanumerics, hyphen, underscore, dot. Runs of separators
// collapse to one, length is capped, and an emptied string falls back to a
// generic name.
func SanitizeBaseName(base string) string {
	var b strings.Builder
	prevSep := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
			prevSep = false
		case r == '-', r == '_', r == ' ':
			if prevSep {
				continue
			}
			if r == ' ' {
				r = '_'
			}
			b.WriteRune(r)
			prevSep = true
		}
	}

	out := strings.Trim(b.String(), "-_.")
	if len(out) > maxBaseLength {
		out = strings.Trim(out[:maxBaseLength], "-_.")
	}
	if out == "" {
		return fallbackBaseName
	}
	return out
}

// SplitExt splits a filename into base and extension (extension keeps the
// leading dot, lowercased). Unlike path.Ext this treats a lone leading dot as
// part of the base.
func SplitExt(filename string) (string, string) {
	idx := strings.LastIndex(filename, ".")
	if idx <= 0 {
		return filename, ""
	}
	return filename[:idx], strings.ToLower(filename[idx:])
}

// AssetIDFromKey derives the index identifier from a storage key: the final
// path segment with its extension stripped. The inverse of ResolveKey, which
// names assets by the SplitExt base, so both must cut at the last dot or a
// dotted base like "my.cat.png" would index and delete under different ids.
func AssetIDFromKey(key string) string {
	segment := key
	if idx := strings.LastIndex(key, "/"); idx >= 0 {
		segment = key[idx+1:]
	}
	base, _ := SplitExt(segment)
	return base
}

// ExistsFunc probes the object store for a candidate key.
type ExistsFunc func(ctx context.Context, key string) (bool, error)

// Resolved is the outcome of key resolution for one inbound asset.
type Resolved struct {
	AssetID    string
	Key        string
	FolderPath string
}

// ResolveKey computes the storage key for an inbound file. A usable filename
// keeps its sanitized base; a collision gets a short opaque suffix and is
// resolved exactly once (a suffixed collision is astronomically rare, so no
// retry loop). An empty or fully-stripped filename yields a generated id.
func ResolveKey(ctx context.Context, folder, filename string, exists ExistsFunc) (Resolved, error) {
	folder = NormalizeFolderPath(folder)

	base, ext := SplitExt(strings.TrimSpace(filename))
	if base == "" {
		id := ids.New()
		return Resolved{AssetID: id, Key: folder + id + ext, FolderPath: folder}, nil
	}

	base = SanitizeBaseName(base)
	key := folder + base + ext

	collides, err := exists(ctx, key)
	if err != nil {
		return Resolved{}, err
	}
	if collides {
		base = base + "_" + ids.Suffix()
		key = folder + base + ext
	}

	return Resolved{AssetID: base, Key: key, FolderPath: folder}, nil
}
