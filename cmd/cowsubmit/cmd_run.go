package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cowsubmit/pkg/environment"
	"cowsubmit/pkg/pipeline"
)

// runCmd processes the case, like the root command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the case in the input root",
	Args:  cobra.NoArgs,
	RunE:  runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	run, err := cfg.Run()
	if err != nil {
		return err
	}
	filter, err := cfg.Filter()
	if err != nil {
		return err
	}
	algo, err := cfg.Algorithm()
	if err != nil {
		return err
	}

	detector := environment.NewDetector()
	roots := detector.Roots()
	if cfg.Paths.InputRoot != "" {
		roots.Input = cfg.Paths.InputRoot
	}
	if cfg.Paths.OutputRoot != "" {
		roots.Output = cfg.Paths.OutputRoot
	}
	logger.Info("Resolved roots",
		zap.Bool("docker", detector.IsDocker()),
		zap.String("input", roots.Input),
		zap.String("output", roots.Output))

	params := &pipeline.Params{
		Run:        run,
		InputRoot:  roots.Input,
		OutputRoot: roots.Output,
		Filter:     filter,
		Compress:   cfg.Output.Compress,
		PreviewDir: cfg.Output.PreviewDir,
		StagingDir: cfg.Predictor.StagingDir,
	}
	processor := pipeline.NewProcessor(params, algo, logger)
	if err := processor.Process(); err != nil {
		logger.Error("Run failed", zap.Error(err))
		return err
	}

	result := processor.GetResult()
	fmt.Fprintf(cmd.OutOrStdout(), "Output saved to: %s\n", result.OutputPath)
	for _, p := range result.Previews {
		fmt.Fprintf(cmd.OutOrStdout(), "Preview saved to: %s\n", p)
	}
	return nil
}
