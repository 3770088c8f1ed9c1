package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cowsubmit/pkg/config"
)

// DefaultConfigFile is written by init-config when no path is given
const DefaultConfigFile = "cowsubmit.yaml"

var initForce bool

// initConfigCmd writes the default configuration
var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write the default configuration file",
	Long: `Writes the default configuration as YAML, or TOML when the path ends in .toml.
An existing file is kept unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInitConfig,
}

func init() {
	initConfigCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := DefaultConfigFile
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists, use --force to overwrite it", path)
	}
	if err := config.CreateDefaultConfigFile(path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Default configuration written to: %s\n", path)
	return nil
}
