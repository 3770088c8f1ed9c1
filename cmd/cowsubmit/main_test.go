package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cowsubmit/internal/models"
	"cowsubmit/pkg/config"
	"cowsubmit/pkg/imageio"
)

func testCommand() (*cobra.Command, *bytes.Buffer) {
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	return cmd, &buf
}

func writeInputs(t *testing.T, root string) string {
	t.Helper()
	vol := models.NewVolume(6, 5, 4, models.Uint8)
	for i := range vol.Pixels.Data {
		vol.Pixels.Data[i] = float64(i % 9)
	}
	var mrPath string
	for _, name := range []string{"head-mr-angio/mr_007.mha", "head-ct-angio/ct_007.nii.gz"} {
		path := filepath.Join(root, "images", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, imageio.Save(path, vol, true))
		if mrPath == "" {
			mrPath = path
		}
	}
	return mrPath
}

func TestRunPipeline(t *testing.T) {
	logger = zap.NewNop()
	in, out := t.TempDir(), t.TempDir()
	writeInputs(t, in)

	cfg = config.DefaultConfig()
	cfg.Paths.InputRoot = in
	cfg.Paths.OutputRoot = out

	cmd, buf := testCommand()
	require.NoError(t, runPipeline(cmd, nil))

	want := filepath.Join(out, "images", "cow-binary-segmentation", "mr_007.mha")
	assert.FileExists(t, want)
	assert.Contains(t, buf.String(), want)
}

func TestRunPipelineRejectsInvalidConfigBeforeIO(t *testing.T) {
	logger = zap.NewNop()
	out := t.TempDir()

	cfg = config.DefaultConfig()
	cfg.Task = "segment"
	cfg.Paths.InputRoot = filepath.Join(t.TempDir(), "missing")
	cfg.Paths.OutputRoot = out

	cmd, _ := testCommand()
	err := runPipeline(cmd, nil)
	assert.ErrorIs(t, err, models.ErrInvalidConfig)

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestApplyFlags(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&track, "track", "", "")
	cmd.Flags().StringVar(&task, "task", "", "")
	cmd.Flags().StringVar(&inputRoot, "input", "", "")
	cmd.Flags().StringVar(&outputRoot, "output", "", "")
	cmd.Flags().StringVar(&fileFilter, "filter", "", "")
	cmd.Flags().StringVar(&logFormat, "log-format", "", "")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--track", "ct", "--verbose"}))

	c := config.DefaultConfig()
	c.Task = "box"
	applyFlags(cmd, c)
	assert.Equal(t, "ct", c.Track)
	assert.Equal(t, "box", c.Task, "unset flags keep the configured value")
	assert.True(t, c.Logging.Verbose)
}

func TestInspect(t *testing.T) {
	logger = zap.NewNop()
	mrPath := writeInputs(t, t.TempDir())
	slices := t.TempDir()
	inspectSlicesDir, inspectAxis = slices, "y"
	defer func() { inspectSlicesDir, inspectAxis = "", "z" }()

	cmd, buf := testCommand()
	require.NoError(t, runInspect(cmd, []string{mrPath}))
	assert.Contains(t, buf.String(), "Size:       [6 5 4]")
	assert.Contains(t, buf.String(), "Pixel type: uint8")

	vol, err := imageio.Load(mrPath)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), imageio.Hash(vol))
	assert.FileExists(t, filepath.Join(slices, "y", "slice_y_004.jpg"))
}

func TestConvert(t *testing.T) {
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	mrPath := writeInputs(t, t.TempDir())
	dir := t.TempDir()
	convertTo, convertDir = ".nii.gz", dir
	defer func() { convertTo, convertDir = ".nii.gz", "" }()

	cmd, _ := testCommand()
	require.NoError(t, runConvert(cmd, []string{mrPath}))

	src, err := imageio.Load(mrPath)
	require.NoError(t, err)
	dst, err := imageio.Load(filepath.Join(dir, "mr_007.nii.gz"))
	require.NoError(t, err)
	assert.True(t, src.Pixels.Equal(dst.Pixels))
	assert.Equal(t, src.Size, dst.Size)
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cow.toml")
	cmd, _ := testCommand()
	require.NoError(t, runInitConfig(cmd, []string{path}))

	loaded, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), loaded)

	assert.Error(t, runInitConfig(cmd, []string{path}), "existing file is kept")

	initForce = true
	defer func() { initForce = false }()
	assert.NoError(t, runInitConfig(cmd, []string{path}))
}
