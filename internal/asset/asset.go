// Package asset resolves stable asset identifiers from preview filenames.
//
// Immich names generated previews after the asset's UUID, e.g.
// "a1b2c3d4-e5f6-47a8-89ab-0123456789ab-preview.jpg". The identifier is
// always derived from the filename, never synthesized.
package asset

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// PreviewMarker is the substring that makes a filename eligible for
// processing. Only generated previews carry it.
const PreviewMarker = "-preview."

// ErrInvalidUUID means the filename does not encode a recognizable asset ID.
var ErrInvalidUUID = errors.New("no valid uuid in filename")

var (
	previewPattern = regexp.MustCompile(`([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})-preview`)
	uuidPattern    = regexp.MustCompile(`([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`)
)

// FromFilename extracts the asset UUID from a preview filename.
//
// The preview-suffixed form is preferred; a bare dashed-hex UUID anywhere in
// the name is accepted as a fallback. Anything else is ErrInvalidUUID.
func FromFilename(filename string) (uuid.UUID, error) {
	if m := previewPattern.FindStringSubmatch(filename); m != nil {
		id, err := uuid.Parse(m[1])
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidUUID, filename)
		}
		return id, nil
	}
	if m := uuidPattern.FindStringSubmatch(filename); m != nil {
		id, err := uuid.Parse(m[1])
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidUUID, filename)
		}
		return id, nil
	}
	return uuid.Nil, fmt.Errorf("%w: %s", ErrInvalidUUID, filename)
}
