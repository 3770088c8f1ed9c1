// Package pipeline runs one case end to end: locate the paired inputs, load
// and verify them, predict, then validate and write the single output.
package pipeline

import (
	"fmt"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/cases"
	"cowsubmit/pkg/dispatch"
	"cowsubmit/pkg/imageio"
	"cowsubmit/pkg/output"
	"cowsubmit/pkg/predict"
	"cowsubmit/pkg/visualization"
)

// Params holds the run configuration
type Params struct {
	// Run selects the main modality and the output contract
	Run dispatch.Run

	// InputRoot contains images/head-mr-angio and images/head-ct-angio
	InputRoot string

	// OutputRoot receives the single output artifact
	OutputRoot string

	// Filter, when set, must match both input paths from their start
	Filter *regexp.Regexp

	// Compress enables lossless compression of segmentation volumes
	Compress bool

	// PreviewDir receives JPEG mid-slices of the main input and the prediction, when set
	PreviewDir string

	// StagingDir receives both inputs as NIfTI files before predicting, when set
	StagingDir string
}

// Result describes a completed run
type Result struct {
	// Case is the pair that was processed
	Case models.Case

	// OutputPath is the artifact written
	OutputPath string

	// Previews lists the JPEG files written
	Previews []string

	// Duration is the wall time of Process
	Duration time.Duration
}

// Processor handles a single run.
//
// The run consists of the following steps:
// 1. Checking that the algorithm can serve the run's output contract
// 2. Locating the paired MR and CT inputs
// 3. Loading both inputs and re-checking their hashes
// 4. Moving both rasters into (x, y, z) order and predicting
// 5. Validating and writing the prediction
// 6. Saving previews
type Processor struct {
	// params stores the run configuration
	params *Params

	// algo is the injected prediction capability
	algo predict.Algorithm

	logger  *zap.Logger
	locator *cases.Locator
	loader  *cases.Loader
	writer  *output.Writer

	// loaded holds both decoded modalities once step 3 completes
	loaded *cases.Loaded

	// inputs holds the rasters handed to the algorithm
	inputs predict.Inputs

	result Result
}

// NewProcessor creates a processor for params that predicts with algo
func NewProcessor(params *Params, algo predict.Algorithm, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		params:  params,
		algo:    algo,
		logger:  logger,
		locator: cases.NewLocator(params.Filter, logger),
		loader:  cases.NewLoader(logger),
		writer:  output.NewWriter(params.Compress, logger),
	}
}

// Process runs the complete pipeline
func (p *Processor) Process() error {
	start := time.Now()
	run := p.params.Run

	// Step 1: configuration checks, before any I/O
	if run == nil {
		return fmt.Errorf("%w: no run configured", models.ErrInvalidConfig)
	}
	if err := p.algo.Supports(run.Contract()); err != nil {
		return err
	}
	p.logger.Info("Starting run",
		zap.String("track", string(run.Track())),
		zap.String("task", string(run.Task())),
		zap.Stringer("contract", run.Contract()),
		zap.String("algorithm", p.algo.Name))

	// Step 2: locate the paired inputs
	inputDir := dispatch.InputDir(run, p.params.InputRoot)
	p.logger.Info("Locating inputs", zap.String("folder", inputDir))
	found, err := p.locator.Locate(inputDir)
	if err != nil {
		return fmt.Errorf("failed to locate inputs: %w", err)
	}
	if len(found) == 0 {
		return fmt.Errorf("%w in %s", models.ErrNoCases, inputDir)
	}
	p.result.Case = found[0]

	// Step 3: load and verify
	p.logger.Info("Loading inputs",
		zap.String("mr", filepath.Base(p.result.Case.PathMR)),
		zap.String("ct", filepath.Base(p.result.Case.PathCT)))
	if p.loaded, err = p.loader.Load(p.result.Case); err != nil {
		return fmt.Errorf("failed to load case: %w", err)
	}

	// Step 4: predict on (x, y, z) rasters
	p.inputs = predict.NewInputs(run.Track(), p.loaded.MR, p.loaded.CT)
	if p.params.StagingDir != "" {
		staged, err := predict.Stage(p.params.StagingDir, p.inputs)
		if err != nil {
			return err
		}
		p.logger.Info("Staged inputs", zap.Strings("files", staged))
	}

	mainPath := p.result.Case.Path(run.Track())
	p.result.OutputPath = dispatch.OutputPath(run, p.params.OutputRoot, mainPath)

	// Step 5: validate and write
	p.logger.Info("Running prediction algorithm")
	if err := p.predictAndWrite(run); err != nil {
		return err
	}

	p.result.Duration = time.Since(start)
	p.logger.Info("Run completed",
		zap.String("output", p.result.OutputPath),
		zap.Duration("duration", p.result.Duration))
	return nil
}

func (p *Processor) predictAndWrite(run dispatch.Run) error {
	main := p.inputs.MainVolume()

	switch run.Contract() {
	case dispatch.ContractSegmentation:
		labels, err := p.algo.Segment(p.inputs)
		if err != nil {
			return fmt.Errorf("segmentation failed: %w", err)
		}
		if err := p.writer.Segmentation(p.result.OutputPath, labels, main); err != nil {
			return err
		}
		if p.params.PreviewDir != "" {
			p.previewInput(main)
			if seg, err := output.SegmentationVolume(labels, main); err == nil {
				p.preview(seg, "prediction")
			}
		}

	case dispatch.ContractBoundingBox:
		box, err := p.algo.Detect(p.inputs)
		if err != nil {
			return fmt.Errorf("detection failed: %w", err)
		}
		if err := p.writer.BoundingBox(p.result.OutputPath, box); err != nil {
			return err
		}
		if p.params.PreviewDir != "" {
			p.previewInput(main)
			p.previewBox(main, box)
		}

	case dispatch.ContractEdgeClassification:
		edges, err := p.algo.Classify(p.inputs)
		if err != nil {
			return fmt.Errorf("classification failed: %w", err)
		}
		if err := p.writer.EdgeClassification(p.result.OutputPath, edges); err != nil {
			return err
		}
		if p.params.PreviewDir != "" {
			p.previewInput(main)
		}
	}
	return nil
}

func (p *Processor) previewInput(main *models.Volume) {
	p.logger.Debug("Main input attributes", zap.Object("attributes", imageio.Describe(main)))
	p.preview(main, "input")
}

func (p *Processor) previewBox(main *models.Volume, prediction map[string]any) {
	box, err := output.ValidateBoundingBox(prediction)
	if err != nil {
		return
	}
	region, err := visualization.NewViewer(main).ExtractRegion(box.Location, box.Size)
	if err != nil {
		p.logger.Warn("Failed to crop bounding box preview", zap.Error(err))
		return
	}
	p.preview(region, "roi")
}

// preview saves mid-slices of vol. Failures are logged and do not fail the run
// since the output artifact is already in place.
func (p *Processor) preview(vol *models.Volume, prefix string) {
	files, err := visualization.NewViewer(vol).SaveMidSlices(p.params.PreviewDir, prefix)
	if err != nil {
		p.logger.Warn("Failed to save preview", zap.String("prefix", prefix), zap.Error(err))
		return
	}
	p.result.Previews = append(p.result.Previews, files...)
	p.logger.Debug("Saved preview", zap.Strings("files", files))
}

// GetResult returns the outcome of the last successful Process call
func (p *Processor) GetResult() Result {
	return p.result
}
