package cases

import (
	"fmt"

	"go.uber.org/zap"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/imageio"
)

// Loaded holds both decoded modalities of a case
type Loaded struct {
	Case models.Case
	CT   *models.Volume
	MR   *models.Volume
}

// Volume returns the volume of the given modality
func (l *Loaded) Volume(t models.Track) *models.Volume {
	if t == models.TrackCT {
		return l.CT
	}
	return l.MR
}

// Loader decodes a located case and verifies it against the recorded hashes
type Loader struct {
	logger *zap.Logger
	load   func(string) (*models.Volume, error)
}

// NewLoader returns a loader backed by imageio.Load
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{logger: logger, load: imageio.Load}
}

// Load decodes both modalities of c, whichever track is active, and fails
// if either content hash differs from the one recorded while pairing.
func (l *Loader) Load(c models.Case) (*Loaded, error) {
	ct, err := l.loadChecked("CT", c.PathCT, c.HashCT)
	if err != nil {
		return nil, err
	}
	mr, err := l.loadChecked("MR", c.PathMR, c.HashMR)
	if err != nil {
		return nil, err
	}
	return &Loaded{Case: c, CT: ct, MR: mr}, nil
}

func (l *Loader) loadChecked(modality, path, recorded string) (*models.Volume, error) {
	vol, err := l.load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s image: %w", modality, err)
	}
	if got := imageio.Hash(vol); got != recorded {
		return nil, fmt.Errorf("%w: %s image %s hashed to %s, expected %s",
			models.ErrHashMismatch, modality, path, got, recorded)
	}
	l.logger.Debug("Loaded input image",
		zap.String("modality", modality),
		zap.String("path", path),
		zap.Object("attributes", imageio.Describe(vol)))
	return vol, nil
}
