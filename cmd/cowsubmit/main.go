package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cowsubmit/internal/logging"
	"cowsubmit/pkg/config"
)

var (
	// Global flags
	cfgFile    string
	track      string
	task       string
	inputRoot  string
	outputRoot string
	fileFilter string
	verbose    bool
	logFormat  string

	// Resolved configuration
	cfg *config.Config

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cowsubmit",
	Short: "Circle of Willis challenge submission runner",
	Long: `cowsubmit pairs the MR and CT angiography volumes of one subject, hands
them to the prediction algorithm in (x, y, z) order and writes the result in
the output format of the selected task:

  bin_seg  images/cow-binary-segmentation/<main input>.mha
  mul_seg  images/cow-multiclass-segmentation/<main input>.mha
  box      cow-roi.json
  edg      cow-ant-post-classification.json

Inputs are read from /input and outputs written to /output inside a
container, and from test/input and test/output otherwise.

Run without a subcommand to process the case.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runPipeline,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&cfgFile, "config", "c", "", "Configuration file (.yaml or .toml)")
	flags.StringVar(&track, "track", "", "Main modality: mr or ct")
	flags.StringVar(&task, "task", "", "Task: bin_seg, mul_seg, box or edg")
	flags.StringVar(&inputRoot, "input", "", "Input root (default: detected)")
	flags.StringVar(&outputRoot, "output", "", "Output root (default: detected)")
	flags.StringVar(&fileFilter, "filter", "", "Regular expression both input paths must match")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	flags.StringVar(&logFormat, "log-format", "", "Log format: json or console")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(initConfigCmd)
}

// setup resolves the configuration from file, environment and flags, in
// increasing precedence, and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.LoadConfig(cfgFile); err != nil {
		return err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return err
	}
	applyFlags(cmd, cfg)

	if logger, err = logging.New(cfg.Logging.Verbose, cfg.Logging.Format); err != nil {
		return err
	}
	logger = logger.With(zap.String("run_id", uuid.NewString()))
	return nil
}

func applyFlags(cmd *cobra.Command, c *config.Config) {
	overrides := []struct {
		name string
		src  string
		dst  *string
	}{
		{"track", track, &c.Track},
		{"task", task, &c.Task},
		{"input", inputRoot, &c.Paths.InputRoot},
		{"output", outputRoot, &c.Paths.OutputRoot},
		{"filter", fileFilter, &c.Paths.FileFilter},
		{"log-format", logFormat, &c.Logging.Format},
	}
	for _, o := range overrides {
		if cmd.Flags().Changed(o.name) {
			*o.dst = o.src
		}
	}
	if cmd.Flags().Changed("verbose") {
		c.Logging.Verbose = verbose
	}
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: failed to read .env: %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
