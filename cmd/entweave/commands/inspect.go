package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/entweave/entweave/pkg/codegen"
)

func newInspectCommand() *cobra.Command {
	var typeName string

	cmd := &cobra.Command{
		Use:   "inspect [path...]",
		Short: "Print the serialized form of a definition",
		Long: `Print the JSON serialized form of a compiled definition.

The serialized form carries field descriptors, function names and migration
versions. Native function bodies are not representable and appear by name
only; embedded code text is preserved verbatim.`,
		Example: `  # Inspect the only definition in a file
  entweave inspect ./defs/customer.cue

  # Select one definition from a directory
  entweave inspect --type Customer ./defs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, defs, compileErrs, err := loadDefinitions(cmd.Context(), args)
			if err != nil {
				return err
			}
			if failures := len(result.Errors) + len(compileErrs); failures > 0 {
				return fmt.Errorf("%d definition(s) failed to load, run validate for details", failures)
			}

			d, err := findDefinition(defs, typeName)
			if err != nil {
				return err
			}

			out, err := codegen.Serialize(d)
			if err != nil {
				return fmt.Errorf("failed to serialize %s: %w", d.Type, err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "definition type name to inspect")

	return cmd
}
