package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cowsubmit/pkg/imageio"
)

var (
	convertTo  string
	convertDir string
)

// convertCmd re-encodes a volume into another format
var convertCmd = &cobra.Command{
	Use:   "convert [file]",
	Short: "Convert a volume between .mha, .mhd, .nii and .nii.gz",
	Long: `Re-encodes a volume, keeping its geometry and pixel type.

Example:
  cowsubmit convert topcow_mr_001.mha --to .nii.gz --dir converted`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVar(&convertTo, "to", ".nii.gz", "Target extension")
	convertCmd.Flags().StringVar(&convertDir, "dir", "", "Output directory (default: next to the source)")
}

func runConvert(cmd *cobra.Command, args []string) error {
	dir := convertDir
	if dir == "" {
		dir = filepath.Dir(args[0])
	}
	if imageio.Extension(args[0]) == convertTo && dir == filepath.Dir(args[0]) {
		return fmt.Errorf("%s already has extension %s", args[0], convertTo)
	}

	dst, err := imageio.Convert(args[0], convertTo, dir, cfg.Output.Compress)
	if err != nil {
		return err
	}
	logger.Info("Converted volume", zap.String("source", args[0]), zap.String("destination", dst))
	fmt.Fprintf(cmd.OutOrStdout(), "Converted %s to %s\n", args[0], dst)
	return nil
}
