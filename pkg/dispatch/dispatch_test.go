package dispatch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cowsubmit/internal/models"
)

func TestNewRunVariants(t *testing.T) {
	tests := []struct {
		track, task string
		want        Run
		contract    Contract
	}{
		{"mr", "bin_seg", BinarySegmentation{Modality: models.TrackMR}, ContractSegmentation},
		{"CT", "mul_seg", MulticlassSegmentation{Modality: models.TrackCT}, ContractSegmentation},
		{"ct", "box", Detection{Modality: models.TrackCT}, ContractBoundingBox},
		{" mr ", "edg", EdgeClassification{Modality: models.TrackMR}, ContractEdgeClassification},
	}
	for _, tt := range tests {
		run, err := NewRun(tt.track, tt.task)
		require.NoError(t, err)
		assert.Equal(t, tt.want, run)
		assert.Equal(t, tt.contract, run.Contract())
	}
}

func TestNewRunRejectsUnknownValues(t *testing.T) {
	_, err := NewRun("pet", "bin_seg")
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	_, err = NewRun("mr", "registration")
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	_, err = NewRun("", "")
	assert.ErrorIs(t, err, models.ErrInvalidConfig)
}

func TestPaths(t *testing.T) {
	root := filepath.Join("test", "output")
	mr := filepath.Join("test", "input", "images", "head-mr-angio", "topcow_mr_001.nii.gz")

	bin, _ := NewRun("mr", "bin_seg")
	assert.Equal(t,
		filepath.Join(root, "images", "cow-binary-segmentation", "topcow_mr_001.mha"),
		OutputPath(bin, root, mr))

	mul, _ := NewRun("ct", "mul_seg")
	assert.Equal(t,
		filepath.Join(root, "images", "cow-multiclass-segmentation", "uuid-1.mha"),
		OutputPath(mul, root, "uuid-1.mha"))

	box, _ := NewRun("mr", "box")
	assert.Equal(t, filepath.Join(root, "cow-roi.json"), OutputPath(box, root, mr))

	edg, _ := NewRun("ct", "edg")
	assert.Equal(t, filepath.Join(root, "cow-ant-post-classification.json"), OutputPath(edg, root, mr))

	assert.Equal(t, filepath.Join("/input", "images", "head-ct-angio"), InputDir(edg, "/input"))
	assert.Equal(t, filepath.Join("images", "head-mr-angio"), InputFolder(models.TrackMR))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("ct", "box"))
	assert.ErrorIs(t, Validate("ct", "segment"), models.ErrInvalidConfig)
}
