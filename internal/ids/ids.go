package ids

import (
	"strings"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

// New returns a sortable opaque identifier for assets that arrive without a
// usable filename.
func New() string {
	return ksuid.New().String()
}

// Suffix returns a short disambiguator appended to a storage key on
// collision. Eight hex chars is enough: a second collision after suffixing is
// astronomically unlikely, so callers resolve once and do not loop.
func Suffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
