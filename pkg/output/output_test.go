package output

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/axes"
	"cowsubmit/pkg/metaio"
)

func mainVolume() *models.Volume {
	vol := models.NewVolume(5, 4, 3, models.Int16)
	vol.Origin = [3]float64{-10.5, 20, 3.25}
	vol.Spacing = [3]float64{0.5, 0.5, 0.8}
	vol.Direction = [9]float64{0, 1, 0, -1, 0, 0, 0, 0, 1}
	for i := range vol.Pixels.Data {
		vol.Pixels.Data[i] = float64(i * 7)
	}
	return vol
}

func TestSegmentationShapeMismatchWritesNothing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images", "cow-binary-segmentation")
	path := filepath.Join(dir, "case.mha")

	// native order instead of (x, y, z)
	wrong := models.NewArray(3, 4, 5)
	err := NewWriter(true, nil).Segmentation(path, wrong, mainVolume())
	assert.ErrorIs(t, err, models.ErrShapeMismatch)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "output folder must not be created")
}

func TestSegmentationInheritsGeometry(t *testing.T) {
	main := mainVolume()
	path := filepath.Join(t.TempDir(), "images", "cow-multiclass-segmentation", "case.mha")

	pred := models.NewArray(5, 4, 3)
	pred.Set(3, 4, 0, 0)
	pred.Set(1, 0, 3, 2)
	pred.Set(257, 1, 1, 1)

	require.NoError(t, NewWriter(true, nil).Segmentation(path, pred, main))

	got, err := metaio.Read(path)
	require.NoError(t, err)
	assert.Equal(t, main.Size, got.Size)
	assert.Equal(t, main.Origin, got.Origin)
	assert.Equal(t, main.Spacing, got.Spacing)
	assert.Equal(t, main.Direction, got.Direction)
	assert.Equal(t, models.Uint8, got.PixelType)

	back := axes.ToChallenge(got.Pixels)
	assert.Equal(t, 3.0, back.At(4, 0, 0))
	assert.Equal(t, 1.0, back.At(0, 3, 2))
	assert.Equal(t, 1.0, back.At(1, 1, 1), "labels wrap to uint8")
	assert.Equal(t, 0.0, back.At(2, 2, 2))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestSegmentationVolumeDoesNotMutateInputs(t *testing.T) {
	main := mainVolume()
	before := main.Pixels.Clone()
	pred := models.NewArray(5, 4, 3)
	pred.Data[0] = 2

	seg, err := SegmentationVolume(pred, main)
	require.NoError(t, err)
	assert.True(t, before.Equal(main.Pixels))
	assert.Equal(t, 2.0, pred.Data[0])
	assert.Equal(t, []int{3, 4, 5}, seg.Pixels.Shape)
	assert.NoError(t, seg.Check())
}

func TestBoundingBox(t *testing.T) {
	tests := []struct {
		name    string
		pred    map[string]any
		wantErr bool
	}{
		{"ints", map[string]any{"size": []any{10, 20, 30}, "location": []any{1, 2, 3}}, false},
		{"typed slices", map[string]any{"size": []int{10, 20, 30}, "location": [3]int64{1, 2, 3}}, false},
		{"json numbers", map[string]any{"size": []any{json.Number("10"), json.Number("20"), json.Number("30")}, "location": []any{1, 2, 3}}, false},
		{"unsigned", map[string]any{"size": []uint64{10, 20, 30}, "location": []uint8{1, 2, 3}}, false},
		{"unsigned beyond int", map[string]any{"size": []uint64{math.MaxUint64, 20, 30}, "location": []any{1, 2, 3}}, true},
		{"unsigned sign bit", map[string]any{"size": []any{10, 20, 30}, "location": []uint64{1 << 63, 2, 3}}, true},
		{"json number beyond int", map[string]any{"size": []any{json.Number("18446744073709551615"), 20, 30}, "location": []any{1, 2, 3}}, true},
		{"short size", map[string]any{"size": []any{10, 20}, "location": []any{1, 2, 3}}, true},
		{"float in size", map[string]any{"size": []any{10, 20.0, 30}, "location": []any{1, 2, 3}}, true},
		{"float json number", map[string]any{"size": []any{json.Number("1.5"), 2, 3}, "location": []any{1, 2, 3}}, true},
		{"bool in location", map[string]any{"size": []any{10, 20, 30}, "location": []any{true, 2, 3}}, true},
		{"extra key", map[string]any{"size": []any{10, 20, 30}, "location": []any{1, 2, 3}, "score": 1}, true},
		{"missing key", map[string]any{"size": []any{10, 20, 30}}, true},
		{"not a list", map[string]any{"size": "10,20,30", "location": []any{1, 2, 3}}, true},
		{"nil", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cow-roi.json")
			err := NewWriter(false, nil).BoundingBox(path, tt.pred)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrSchemaViolation)
				assert.NoFileExists(t, path)
				return
			}
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			var got map[string][]int
			require.NoError(t, json.Unmarshal(data, &got))
			if diff := cmp.Diff(map[string][]int{"size": {10, 20, 30}, "location": {1, 2, 3}}, got); diff != "" {
				t.Errorf("bounding box mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBoundingBoxFormatting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cow-roi.json")
	pred := map[string]any{"location": []any{1, 2, 3}, "size": []any{10, 20, 30}}
	require.NoError(t, NewWriter(false, nil).BoundingBox(path, pred))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "{\n    \"size\": [\n        10,\n        20,\n        30\n    ],\n" +
		"    \"location\": [\n        1,\n        2,\n        3\n    ]\n}"
	assert.Equal(t, want, string(data))
}

func edgePrediction() map[string]any {
	return map[string]any{
		"anterior":  map[string]any{"L-A1": 1, "Acom": 1, "3rd-A2": 0, "R-A1": 1},
		"posterior": map[string]any{"L-Pcom": 0, "L-P1": 1, "R-P1": 1, "R-Pcom": 0},
	}
}

func TestEdgeClassification(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "cow-ant-post-classification.json")
		require.NoError(t, NewWriter(false, nil).EdgeClassification(path, edgePrediction()))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.JSONEq(t, `{
			"anterior": {"L-A1": 1, "Acom": 1, "3rd-A2": 0, "R-A1": 1},
			"posterior": {"L-Pcom": 0, "L-P1": 1, "R-P1": 1, "R-Pcom": 0}
		}`, string(data))
	})

	t.Run("typed inner maps", func(t *testing.T) {
		pred := map[string]any{
			"anterior":  map[string]int{"L-A1": 0, "Acom": 0, "3rd-A2": 0, "R-A1": 0},
			"posterior": map[string]uint8{"L-Pcom": 1, "L-P1": 1, "R-P1": 1, "R-Pcom": 1},
		}
		edges, err := ValidateEdgeClassification(pred)
		require.NoError(t, err)
		assert.Equal(t, 4, edges.Posterior.count())
	})

	invalid := map[string]func(map[string]any){
		"leaf value 2":    func(p map[string]any) { p["anterior"].(map[string]any)["R-A1"] = 2 },
		"leaf value -1":   func(p map[string]any) { p["posterior"].(map[string]any)["L-P1"] = -1 },
		"bool leaf":       func(p map[string]any) { p["anterior"].(map[string]any)["L-A1"] = true },
		"float leaf":      func(p map[string]any) { p["posterior"].(map[string]any)["R-P1"] = 1.0 },
		"missing Acom":    func(p map[string]any) { delete(p["anterior"].(map[string]any), "Acom") },
		"extra edge":      func(p map[string]any) { p["posterior"].(map[string]any)["BA"] = 1 },
		"missing group":   func(p map[string]any) { delete(p, "posterior") },
		"extra group":     func(p map[string]any) { p["lateral"] = map[string]any{} },
		"group not a map": func(p map[string]any) { p["anterior"] = []int{1, 1, 1, 1} },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			pred := edgePrediction()
			mutate(pred)
			path := filepath.Join(t.TempDir(), "cow-ant-post-classification.json")
			err := NewWriter(false, nil).EdgeClassification(path, pred)
			assert.ErrorIs(t, err, models.ErrSchemaViolation)
			assert.NoFileExists(t, path)
		})
	}
}
