// Package cases pairs the MR and CT inputs of a subject and loads them with
// an integrity check against the hashes recorded while pairing.
package cases

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/imageio"
)

// Locator finds the single CT/MR pair below a pair of sibling input folders
type Locator struct {
	// Filter, when set, must match both file paths from their start
	Filter *regexp.Regexp

	logger *zap.Logger
	load   func(string) (*models.Volume, error)
}

// NewLocator returns a locator that decodes candidates with imageio.Load
func NewLocator(filter *regexp.Regexp, logger *zap.Logger) *Locator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{Filter: filter, logger: logger, load: imageio.Load}
}

// SiblingFolders derives the MR and CT folders from either one of them by
// swapping "mr" and "ct" in the folder's own name.
func SiblingFolders(folder string) (mr, ct string, err error) {
	folder = filepath.Clean(folder)
	parent, name := filepath.Split(folder)
	switch {
	case strings.Contains(name, string(models.TrackMR)):
		return folder, filepath.Join(parent, strings.ReplaceAll(name, "mr", "ct")), nil
	case strings.Contains(name, string(models.TrackCT)):
		return filepath.Join(parent, strings.ReplaceAll(name, "ct", "mr")), folder, nil
	}
	return "", "", fmt.Errorf("%w: incorrect input folder name %q, name must either contain 'mr' or 'ct'",
		models.ErrInvalidConfig, name)
}

// ListVolumeFiles returns the volume files directly inside dir, sorted by name.
// A missing directory yields no files.
func ListVolumeFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !imageio.IsVolumeFile(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files, nil
}

// Locate pairs the only volume of the MR folder with the only volume of the
// CT folder. A pair rejected by the filter is skipped and yields no case.
func (l *Locator) Locate(folder string) ([]models.Case, error) {
	folderMR, folderCT, err := SiblingFolders(folder)
	if err != nil {
		return nil, err
	}
	l.logger.Debug("Locating case", zap.String("folder_mr", folderMR), zap.String("folder_ct", folderCT))

	pathsMR, err := ListVolumeFiles(folderMR)
	if err != nil {
		return nil, err
	}
	pathsCT, err := ListVolumeFiles(folderCT)
	if err != nil {
		return nil, err
	}
	if len(pathsMR) != 1 || len(pathsCT) != 1 {
		return nil, fmt.Errorf("%w: only 1 image can be contained in the ct and mr input folders, found %d mr and %d ct",
			models.ErrInputCount, len(pathsMR), len(pathsCT))
	}
	pathMR, pathCT := pathsMR[0], pathsCT[0]

	if l.Filter != nil && !(matchesFromStart(l.Filter, pathCT) && matchesFromStart(l.Filter, pathMR)) {
		l.logger.Warn("Skip loading case because it doesn't match the file filter",
			zap.String("ct", filepath.Base(pathCT)),
			zap.String("mr", filepath.Base(pathMR)),
			zap.String("filter", l.Filter.String()))
		return nil, nil
	}

	ct, err := l.load(pathCT)
	if err == nil {
		var mr *models.Volume
		if mr, err = l.load(pathMR); err == nil {
			return []models.Case{{
				PathCT: pathCT,
				HashCT: imageio.Hash(ct),
				PathMR: pathMR,
				HashMR: imageio.Hash(mr),
			}}, nil
		}
	}

	l.logger.Warn("Could not load case",
		zap.String("ct", filepath.Base(pathCT)),
		zap.String("mr", filepath.Base(pathMR)),
		zap.Error(err))
	return nil, fmt.Errorf("%w in %s: %w", models.ErrNoCases, folder, err)
}

func matchesFromStart(re *regexp.Regexp, s string) bool {
	loc := re.FindStringIndex(s)
	return loc != nil && loc[0] == 0
}
