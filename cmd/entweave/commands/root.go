package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/entweave/entweave/pkg/config"
	"github.com/entweave/entweave/pkg/definition"
)

var (
	// Global flags
	configPath string
	verbose    bool
	jsonOutput bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "entweave",
		Short: "Entweave - declarative entity definitions",
		Long: `Entweave compiles declarative entity definitions into typed field
descriptors and runs them against pluggable storage.

Features:
  - Definitions authored in CUE
  - Seven field source kinds classified by value shape
  - Cascade expressions for typed relationships
  - Versioned migrations on bind
  - Starlark module generation for compute fields`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newInspectCommand())
	rootCmd.AddCommand(newGenerateCommand())
	rootCmd.AddCommand(newDevCommand())

	return rootCmd
}

// resolveSources picks the definition sources: command arguments win over the
// settings file, which falls back to the current directory.
func resolveSources(args []string, settings *config.Settings) []string {
	if len(args) > 0 {
		return args
	}
	if len(settings.Definitions) > 0 {
		return settings.Definitions
	}
	return []string{"."}
}

// loadDefinitions loads and compiles definitions from the resolved sources,
// returning the load result alongside whatever compiled cleanly.
func loadDefinitions(ctx context.Context, args []string) (*config.LoadResult, []*definition.Definition, []config.ValidationError, error) {
	settings, err := config.LoadSettings(configPath)
	if err != nil {
		return nil, nil, nil, err
	}

	loader := config.NewLoader(log.Logger)
	result, err := loader.Load(ctx, resolveSources(args, settings))
	if err != nil {
		return nil, nil, nil, err
	}

	defs, compileErrs := result.Compile()

	// Resolve inheritance across the batch; resolution failures read like
	// compile failures to the caller.
	registry := definition.NewRegistry()
	for _, d := range defs {
		if err := registry.Register(d); err != nil {
			compileErrs = append(compileErrs, config.ValidationError{
				Path: "definitions." + d.Type, Message: err.Error(), Severity: "error",
			})
		}
	}
	if err := registry.Resolve(); err != nil {
		compileErrs = append(compileErrs, config.ValidationError{
			Path: "definitions", Message: err.Error(), Severity: "error",
		})
	} else {
		for i, d := range defs {
			if resolved, ok := registry.Get(d.Type); ok {
				defs[i] = resolved
			}
		}
	}

	return result, defs, compileErrs, nil
}

// findDefinition selects one definition by type name, or the only one when no
// name is given.
func findDefinition(defs []*definition.Definition, typeName string) (*definition.Definition, error) {
	if typeName == "" {
		if len(defs) == 1 {
			return defs[0], nil
		}
		return nil, fmt.Errorf("%d definitions loaded, select one with --type", len(defs))
	}
	for _, d := range defs {
		if d.Type == typeName {
			return d, nil
		}
	}
	return nil, fmt.Errorf("definition %q not found", typeName)
}
