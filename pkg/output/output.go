// Package output validates predictions against their output contract and
// serialises them. Nothing is written unless validation succeeds, and every
// file is written to a temporary name first and renamed into place.
package output

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/axes"
	"cowsubmit/pkg/metaio"
	"cowsubmit/pkg/pixels"
)

// Writer serialises validated predictions
type Writer struct {
	// Compress enables zlib compression of segmentation volumes
	Compress bool

	logger *zap.Logger
}

// NewWriter returns a writer that compresses segmentations when compress is set
func NewWriter(compress bool, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{Compress: compress, logger: logger}
}

// SegmentationVolume turns a label array in (x, y, z) order into a uint8
// volume in native order carrying the geometry of main.
func SegmentationVolume(prediction models.Array, main *models.Volume) (*models.Volume, error) {
	extent := []int{main.Size[0], main.Size[1], main.Size[2]}
	if !models.EqualShape(prediction.Shape, extent) || len(prediction.Data) != prediction.Len() {
		return nil, fmt.Errorf("%w: got %v, expected %v", models.ErrShapeMismatch, prediction.Shape, extent)
	}

	labels := models.Array{
		Shape: prediction.Shape,
		Data:  pixels.Cast(prediction.Data, models.Uint8),
	}
	seg := &models.Volume{
		Pixels:     axes.ToNative(labels),
		Size:       main.Size,
		Components: 1,
		PixelType:  models.Uint8,
	}
	seg.CopyInformation(main)
	return seg, nil
}

// Segmentation writes prediction as a MetaImage at path
func (w *Writer) Segmentation(path string, prediction models.Array, main *models.Volume) error {
	seg, err := SegmentationVolume(prediction, main)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := metaio.Encode(&buf, seg, w.Compress); err != nil {
		return fmt.Errorf("failed to encode segmentation: %w", err)
	}
	if err := writeAtomic(path, buf.Bytes()); err != nil {
		return err
	}
	w.logger.Info("Wrote segmentation",
		zap.String("path", path),
		zap.Ints("size", seg.Size[:]),
		zap.Bool("compressed", w.Compress))
	return nil
}

// BoundingBox validates prediction and writes it as indented JSON at path
func (w *Writer) BoundingBox(path string, prediction map[string]any) error {
	box, err := ValidateBoundingBox(prediction)
	if err != nil {
		return err
	}
	if err := writeJSON(path, box); err != nil {
		return err
	}
	w.logger.Info("Wrote bounding box",
		zap.String("path", path),
		zap.Ints("size", box.Size[:]),
		zap.Ints("location", box.Location[:]))
	return nil
}

// EdgeClassification validates prediction and writes it as indented JSON at path
func (w *Writer) EdgeClassification(path string, prediction map[string]any) error {
	edges, err := ValidateEdgeClassification(prediction)
	if err != nil {
		return err
	}
	if err := writeJSON(path, edges); err != nil {
		return err
	}
	w.logger.Info("Wrote edge classification",
		zap.String("path", path),
		zap.Int("anterior_present", edges.Anterior.count()),
		zap.Int("posterior_present", edges.Posterior.count()))
	return nil
}

// writeAtomic creates the parent folders of path and moves a fully written
// temporary file onto it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}
