package predict

import (
	"fmt"
	"os"
	"path/filepath"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/imageio"
)

// Staged file names follow the nnU-Net inference layout: the main modality
// is channel 0000 and the other modality channel 0001.
const (
	StagedMain      = "inference_case1_0000.nii.gz"
	StagedSecondary = "inference_case1_0001.nii.gz"
)

// Stage writes both modalities into dir as compressed NIfTI files for
// external tools that read a folder of images. It returns the paths written.
func Stage(dir string, in Inputs) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	main, sec := in.MainVolume(), in.CTVolume
	if in.Track == models.TrackCT {
		sec = in.MRVolume
	}

	paths := []string{filepath.Join(dir, StagedMain), filepath.Join(dir, StagedSecondary)}
	if err := imageio.Save(paths[0], main, true); err != nil {
		return nil, fmt.Errorf("failed to stage main input: %w", err)
	}
	if err := imageio.Save(paths[1], sec, true); err != nil {
		return nil, fmt.Errorf("failed to stage secondary input: %w", err)
	}
	return paths, nil
}
