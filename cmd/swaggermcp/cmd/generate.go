package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibrahimsaleem/Swaggermcp/pkg/apperr"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/signature"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/synth"
	"github.com/ibrahimsaleem/Swaggermcp/pkg/workspace"
)

var (
	generateOutput string
	generateTitle  string
)

var generateCmd = &cobra.Command{
	Use:   "generate <file.go>",
	Short: "Print the service generated from a Go file",
	Long: `Generate the single-file HTTP service for the top-level functions of a
Go source file without running it. The document is written to stdout, or
atomically to the file named by --output.

Example:
  swaggermcp generate calc.go
  swaggermcp generate calc.go -o generated/main.go --title Calculator
`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "Write the document to this file")
	generateCmd.Flags().StringVar(&generateTitle, "title", synth.DefaultTitle, "Title of the generated API")

	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	source, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read source: %w", err)
	}

	fns, err := signature.Extract(string(source))
	if err != nil {
		return err
	}
	if len(fns) == 0 {
		return apperr.New(apperr.CodeEmptyInput, "No top-level functions found").
			WithContext("file", args[0])
	}

	mod, err := synth.Synthesize(string(source), fns, generateTitle)
	if err != nil {
		return err
	}

	if generateOutput == "" {
		_, err = fmt.Fprint(cmd.OutOrStdout(), mod.Document)
		return err
	}

	if err := workspace.WriteFileAtomic(generateOutput, []byte(mod.Document), 0o644); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	for _, path := range mod.Paths {
		fmt.Fprintf(cmd.ErrOrStderr(), "GET %s\n", path)
	}
	return nil
}
