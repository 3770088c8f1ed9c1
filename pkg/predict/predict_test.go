package predict

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/dispatch"
	"cowsubmit/pkg/imageio"
	"cowsubmit/pkg/output"
)

func inputs(track models.Track) Inputs {
	mr := models.NewVolume(8, 6, 4, models.Uint16)
	for i := range mr.Pixels.Data {
		mr.Pixels.Data[i] = float64(i)
	}
	ct := models.NewVolume(10, 6, 4, models.Int16)
	ct.Pixels.Data[0] = -1000
	return NewInputs(track, mr, ct)
}

func TestNewInputsUsesChallengeOrder(t *testing.T) {
	in := inputs(models.TrackMR)
	assert.Equal(t, []int{8, 6, 4}, in.MR.Shape)
	assert.Equal(t, []int{10, 6, 4}, in.CT.Shape)
	// native (z=1, y=2, x=3) moves to (3, 2, 1)
	assert.Equal(t, in.MRVolume.Pixels.At(1, 2, 3), in.MR.At(3, 2, 1))
	assert.Equal(t, []int{4, 6, 8}, in.MRVolume.Pixels.Shape, "decoded volume is untouched")

	assert.Equal(t, []int{8, 6, 4}, in.Extent())
	assert.Equal(t, []int{10, 6, 4}, inputs(models.TrackCT).Extent())
	assert.Equal(t, in.CT.Shape, inputs(models.TrackCT).Main().Shape)
}

func TestThreshold(t *testing.T) {
	in := inputs(models.TrackMR)
	seg, err := Threshold(DefaultThresholdFraction)(in)
	require.NoError(t, err)
	assert.Equal(t, in.Extent(), seg.Shape)

	// max is 191, so everything from 63 up is labelled
	for i, v := range in.MR.Data {
		want := 0.0
		if v >= 63 {
			want = 1
		}
		require.Equal(t, want, seg.Data[i], "voxel %d with intensity %v", i, v)
	}
}

func TestExamplesSatisfyOutputContracts(t *testing.T) {
	for _, track := range []models.Track{models.TrackMR, models.TrackCT} {
		in := inputs(track)
		for _, name := range []string{SegmenterThreshold, SegmenterZeros} {
			algo, err := Example(name, DefaultThresholdFraction)
			require.NoError(t, err)

			seg, err := algo.Segment(in)
			require.NoError(t, err)
			_, err = output.SegmentationVolume(seg, in.MainVolume())
			assert.NoError(t, err, "%s on %s", name, track)
		}

		algo, err := Example("", DefaultThresholdFraction)
		require.NoError(t, err)
		box, err := algo.Detect(in)
		require.NoError(t, err)
		got, err := output.ValidateBoundingBox(box)
		require.NoError(t, err)
		assert.Equal(t, [3]int{4, 3, 2}, got.Size)
		assert.Equal(t, [3]int{2, 1, 1}, got.Location)

		edges, err := algo.Classify(in)
		require.NoError(t, err)
		_, err = output.ValidateEdgeClassification(edges)
		assert.NoError(t, err)
	}
}

func TestExampleRejectsBadSettings(t *testing.T) {
	_, err := Example("unet", DefaultThresholdFraction)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	_, err = Example(SegmenterThreshold, 0)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	_, err = Example(SegmenterZeros, 0)
	assert.NoError(t, err, "fraction only matters for thresholding")
}

func TestSupports(t *testing.T) {
	algo := Algorithm{Name: "boxes-only", Detect: CenterBox}
	assert.NoError(t, algo.Supports(dispatch.ContractBoundingBox))
	assert.ErrorIs(t, algo.Supports(dispatch.ContractSegmentation), models.ErrInvalidConfig)
	assert.ErrorIs(t, algo.Supports(dispatch.ContractEdgeClassification), models.ErrInvalidConfig)
}

func TestStage(t *testing.T) {
	in := inputs(models.TrackCT)
	paths, err := Stage(filepath.Join(t.TempDir(), "imagesTs"), in)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	main, err := imageio.Load(paths[0])
	require.NoError(t, err)
	assert.Equal(t, in.CTVolume.Size, main.Size)

	sec, err := imageio.Load(paths[1])
	require.NoError(t, err)
	assert.Equal(t, in.MRVolume.Size, sec.Size)
}
