// Package predict defines the prediction capability a participant plugs into
// the pipeline, plus example algorithms for every task family.
//
// An Algorithm is a set of plain functions; the pipeline calls the one that
// matches the output contract of the run. All arrays crossing this boundary
// are in (x, y, z) order.
package predict

import (
	"fmt"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/axes"
	"cowsubmit/pkg/dispatch"
)

// Inputs holds both modalities of a case
type Inputs struct {
	// Track is the modality whose extent a segmentation must match
	Track models.Track

	// MR and CT are the rasters in (x, y, z[, c]) order
	MR models.Array
	CT models.Array

	// MRVolume and CTVolume carry the geometry of the decoded images
	MRVolume *models.Volume
	CTVolume *models.Volume
}

// NewInputs moves both decoded volumes into the (x, y, z) order.
// The volumes themselves are not modified.
func NewInputs(track models.Track, mr, ct *models.Volume) Inputs {
	return Inputs{
		Track:    track,
		MR:       axes.ToChallenge(mr.Pixels),
		CT:       axes.ToChallenge(ct.Pixels),
		MRVolume: mr,
		CTVolume: ct,
	}
}

// Main returns the raster of the active track
func (in Inputs) Main() models.Array {
	if in.Track == models.TrackCT {
		return in.CT
	}
	return in.MR
}

// MainVolume returns the decoded volume of the active track
func (in Inputs) MainVolume() *models.Volume {
	if in.Track == models.TrackCT {
		return in.CTVolume
	}
	return in.MRVolume
}

// Extent returns the (x, y, z) size a segmentation must have
func (in Inputs) Extent() []int {
	v := in.MainVolume()
	return []int{v.Size[0], v.Size[1], v.Size[2]}
}

// SegmentFunc returns a label array with the main input's (x, y, z) extent
type SegmentFunc func(in Inputs) (models.Array, error)

// DetectFunc returns {"size": [x, y, z], "location": [x, y, z]}
type DetectFunc func(in Inputs) (map[string]any, error)

// ClassifyFunc returns {"anterior": {...}, "posterior": {...}} with 0/1 flags
type ClassifyFunc func(in Inputs) (map[string]any, error)

// Algorithm bundles the prediction functions of a participant.
// Only the function matching the run's contract needs to be set.
type Algorithm struct {
	Name     string
	Segment  SegmentFunc
	Detect   DetectFunc
	Classify ClassifyFunc
}

// Supports fails when the algorithm has no function for the contract
func (a Algorithm) Supports(c dispatch.Contract) error {
	var ok bool
	switch c {
	case dispatch.ContractSegmentation:
		ok = a.Segment != nil
	case dispatch.ContractBoundingBox:
		ok = a.Detect != nil
	case dispatch.ContractEdgeClassification:
		ok = a.Classify != nil
	}
	if !ok {
		return fmt.Errorf("%w: algorithm %q cannot produce a %s prediction", models.ErrInvalidConfig, a.Name, c)
	}
	return nil
}
