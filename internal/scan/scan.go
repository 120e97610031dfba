// Package scan discovers existing preview files for batch mode.
package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pixelframe/imgwatch/internal/asset"
)

// ThumbsDir returns the directory previews live in under an Immich root and
// verifies it exists. Uploads and originals live elsewhere; only generated
// previews are eligible.
func ThumbsDir(root string) (string, error) {
	thumbs := filepath.Join(root, "thumbs")
	info, err := os.Stat(thumbs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("thumbs directory not found: %s", thumbs)
		}
		return "", fmt.Errorf("stat %s: %w", thumbs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", thumbs)
	}
	return thumbs, nil
}

// PreviewFiles walks the thumbs tree and collects every regular file whose
// name carries the preview marker. Unreadable subdirectories are logged and
// skipped rather than failing the scan.
func PreviewFiles(root string, logger *log.Logger) ([]string, error) {
	if logger == nil {
		logger = log.Default()
	}
	thumbs, err := ThumbsDir(root)
	if err != nil {
		return nil, err
	}

	var files []string
	walkErr := filepath.WalkDir(thumbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.Contains(d.Name(), asset.PreviewMarker) {
			files = append(files, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return files, nil
}
