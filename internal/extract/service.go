// Package extract classifies finished downloads by extension and unpacks
// the ones that are plain archives. Disc-image formats are deliberately
// left intact: emulators consume them as-is and unpacking would break them.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archiver/v3"

	"github.com/AlikanakelaKarwowski/emularr/utils"
)

// archiveExts is the allow-list of formats handed to the unarchiver.
var archiveExts = map[string]bool{
	".zip":     true,
	".7z":      true,
	".rar":     true,
	".tar":     true,
	".tar.gz":  true,
	".tgz":     true,
	".tar.bz2": true,
	".tbz2":    true,
	".tar.xz":  true,
	".txz":     true,
}

// imageExts is the deny-list: optical-media and cartridge images that must
// stay intact even when an archive tool could open them.
var imageExts = map[string]bool{
	".iso": true,
	".bin": true,
	".cue": true,
	".img": true,
	".chd": true,
	".pbp": true,
	".nrg": true,
	".mdf": true,
	".cso": true,
}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// ShouldExtract reports whether the file is an archive we unpack. The
// deny-list wins over the allow-list.
func (s *Service) ShouldExtract(path string) bool {
	ext := normalizedExt(path)
	if imageExts[ext] {
		return false
	}
	return archiveExts[ext]
}

// Extract unpacks the archive into destDir and returns the directory path.
// The source archive is removed only after a successful extraction.
func (s *Service) Extract(path, destDir string) (string, error) {
	log := utils.GetLogger("extract")
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("error creating extraction directory: %w", err)
	}
	log.Debug().Str("archive", filepath.Base(path)).Str("dest", destDir).Msg("Extracting archive")
	if err := archiver.Unarchive(path, destDir); err != nil {
		return "", fmt.Errorf("error extracting %s: %w", filepath.Base(path), err)
	}
	if err := os.Remove(path); err != nil {
		log.Warn().Err(err).Str("archive", path).Msg("Could not remove archive after extraction")
	}
	return destDir, nil
}

// normalizedExt lowercases the extension and folds the two-part tar forms
// (.tar.gz and friends) into a single key.
func normalizedExt(path string) string {
	lower := strings.ToLower(filepath.Base(path))
	for _, double := range []string{".tar.gz", ".tar.bz2", ".tar.xz"} {
		if strings.HasSuffix(lower, double) {
			return double
		}
	}
	return filepath.Ext(lower)
}
