package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/entweave/entweave/pkg/codegen"
	"github.com/entweave/entweave/pkg/definition"
)

func newGenerateCommand() *cobra.Command {
	var (
		typeName string
		outDir   string
	)

	cmd := &cobra.Command{
		Use:   "generate [path...]",
		Short: "Generate Starlark modules from definitions",
		Long: `Generate a standalone Starlark module per definition.

Each module embeds the definition's compute sources and link filters and
exposes compute_field and filter_links entry points. Modules are written to
the output directory as <type>.star.`,
		Example: `  # Generate modules for every definition in ./defs
  entweave generate -o ./gen ./defs

  # Generate one module to stdout
  entweave generate --type Customer ./defs/customer.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, defs, compileErrs, err := loadDefinitions(cmd.Context(), args)
			if err != nil {
				return err
			}
			if failures := len(result.Errors) + len(compileErrs); failures > 0 {
				return fmt.Errorf("%d definition(s) failed to load, run validate for details", failures)
			}

			if typeName != "" {
				d, err := findDefinition(defs, typeName)
				if err != nil {
					return err
				}
				defs = []*definition.Definition{d}
			}

			for _, d := range defs {
				module, err := codegen.GenerateModule(d)
				if err != nil {
					return fmt.Errorf("failed to generate module for %s: %w", d.Type, err)
				}

				if outDir == "" {
					fmt.Print(module)
					continue
				}
				if err := os.MkdirAll(outDir, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				path := filepath.Join(outDir, strings.ToLower(d.Type)+".star")
				if err := os.WriteFile(path, []byte(module), 0o644); err != nil {
					return fmt.Errorf("failed to write module: %w", err)
				}
				log.Info().Str("type", d.Type).Str("path", path).Msg("Module generated")
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&typeName, "type", "", "definition type name to generate")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (stdout when empty)")

	return cmd
}
