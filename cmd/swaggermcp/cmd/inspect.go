package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/signature"
)

var inspectFormat string

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.go>",
	Short: "Print the function descriptors found in a Go file",
	Long: `Inspect lists the functions that would become endpoints, with their
parameters, defaults, types and documentation.

Example:
  swaggermcp inspect calc.go
  swaggermcp inspect calc.go --format json
`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFormat, "format", "f", "yaml", "Output format (yaml or json)")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	fns, err := signature.Extract(string(source))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch inspectFormat {
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(fns); err != nil {
			return fmt.Errorf("failed to encode descriptors: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(fns)
	default:
		return fmt.Errorf("unknown format %q (use yaml or json)", inspectFormat)
	}
}
