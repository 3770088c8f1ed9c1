// Package dispatch maps a (track, task) choice onto the folders, file names
// and output contract of a run.
//
// A Run is one of four variants; each carries the track whose volume is the
// main input. Invalid combinations cannot be constructed outside NewRun,
// which validates both values before any I/O happens.
package dispatch

import (
	"fmt"
	"path/filepath"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/imageio"
)

// Contract names the shape a prediction must have
type Contract int

const (
	ContractSegmentation Contract = iota
	ContractBoundingBox
	ContractEdgeClassification
)

func (c Contract) String() string {
	switch c {
	case ContractSegmentation:
		return "segmentation"
	case ContractBoundingBox:
		return "bounding-box"
	case ContractEdgeClassification:
		return "edge-classification"
	}
	return fmt.Sprintf("Contract(%d)", int(c))
}

const (
	// BoundingBoxFile is the detection output written at the output root
	BoundingBoxFile = "cow-roi.json"

	// EdgeClassificationFile is the edge classification output written at the output root
	EdgeClassificationFile = "cow-ant-post-classification.json"

	// SegmentationExt is the extension of every segmentation output
	SegmentationExt = ".mha"
)

// Run is the closed set of run configurations
type Run interface {
	// Track is the modality whose volume sizes the output
	Track() models.Track
	// Task is the enumerated task value
	Task() models.Task
	// Contract selects the output validator and writer
	Contract() Contract
	// OutputDir is the output folder relative to the output root
	OutputDir() string
	// OutputName is the output file name given the main input's file name
	OutputName(mainInput string) string

	sealed()
}

// BinarySegmentation writes a CoW vs background label volume
type BinarySegmentation struct{ Modality models.Track }

// MulticlassSegmentation writes a per-vessel label volume
type MulticlassSegmentation struct{ Modality models.Track }

// Detection writes the CoW region of interest as a bounding box
type Detection struct{ Modality models.Track }

// EdgeClassification writes presence flags of the anterior and posterior CoW edges
type EdgeClassification struct{ Modality models.Track }

func (r BinarySegmentation) Track() models.Track     { return r.Modality }
func (r MulticlassSegmentation) Track() models.Track { return r.Modality }
func (r Detection) Track() models.Track              { return r.Modality }
func (r EdgeClassification) Track() models.Track     { return r.Modality }

func (BinarySegmentation) Task() models.Task     { return models.TaskBinarySegmentation }
func (MulticlassSegmentation) Task() models.Task { return models.TaskMulticlassSegmentation }
func (Detection) Task() models.Task              { return models.TaskDetection }
func (EdgeClassification) Task() models.Task     { return models.TaskEdgeClassification }

func (BinarySegmentation) Contract() Contract     { return ContractSegmentation }
func (MulticlassSegmentation) Contract() Contract { return ContractSegmentation }
func (Detection) Contract() Contract              { return ContractBoundingBox }
func (EdgeClassification) Contract() Contract     { return ContractEdgeClassification }

func (BinarySegmentation) OutputDir() string {
	return filepath.Join("images", "cow-binary-segmentation")
}

func (MulticlassSegmentation) OutputDir() string {
	return filepath.Join("images", "cow-multiclass-segmentation")
}

func (Detection) OutputDir() string          { return "" }
func (EdgeClassification) OutputDir() string { return "" }

func (BinarySegmentation) OutputName(mainInput string) string     { return segmentationName(mainInput) }
func (MulticlassSegmentation) OutputName(mainInput string) string { return segmentationName(mainInput) }
func (Detection) OutputName(string) string                        { return BoundingBoxFile }
func (EdgeClassification) OutputName(string) string               { return EdgeClassificationFile }

func (BinarySegmentation) sealed()     {}
func (MulticlassSegmentation) sealed() {}
func (Detection) sealed()              {}
func (EdgeClassification) sealed()     {}

func segmentationName(mainInput string) string {
	base := filepath.Base(mainInput)
	return imageio.TrimExtension(base) + SegmentationExt
}

// NewRun validates track and task and returns the matching variant
func NewRun(track, task string) (Run, error) {
	tr, err := models.ParseTrack(track)
	if err != nil {
		return nil, err
	}
	tk, err := models.ParseTask(task)
	if err != nil {
		return nil, err
	}
	switch tk {
	case models.TaskBinarySegmentation:
		return BinarySegmentation{Modality: tr}, nil
	case models.TaskMulticlassSegmentation:
		return MulticlassSegmentation{Modality: tr}, nil
	case models.TaskDetection:
		return Detection{Modality: tr}, nil
	default:
		return EdgeClassification{Modality: tr}, nil
	}
}

// Validate reports whether track and task name a run without building one
func Validate(track, task string) error {
	_, err := NewRun(track, task)
	return err
}

// InputFolder is the input folder of a modality relative to the input root
func InputFolder(t models.Track) string {
	return filepath.Join("images", fmt.Sprintf("head-%s-angio", t))
}

// InputDir is the primary input folder of a run
func InputDir(r Run, inputRoot string) string {
	return filepath.Join(inputRoot, InputFolder(r.Track()))
}

// OutputPath is the full path of the single artifact a run produces
func OutputPath(r Run, outputRoot, mainInput string) string {
	return filepath.Join(outputRoot, r.OutputDir(), r.OutputName(mainInput))
}
