package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/entweave/entweave/pkg/config"
)

func newDevCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dev [path...]",
		Short: "Watch definitions and revalidate on change",
		Long: `Watch definition files and revalidate whenever they change.

Validation results are logged after every reload. The command runs until
interrupted.`,
		Example: `  # Watch the default definition paths
  entweave dev

  # Watch a specific directory
  entweave dev ./defs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			settings, err := config.LoadSettings(configPath)
			if err != nil {
				return err
			}
			sources := resolveSources(args, settings)

			loader := config.NewLoader(log.Logger)
			revalidate := func(result *config.LoadResult) error {
				defs, compileErrs := result.Compile()
				for _, e := range append(result.Errors, compileErrs...) {
					log.Error().Str("path", e.Path).Str("file", e.File).Msg(e.Message)
				}
				if failures := len(result.Errors) + len(compileErrs); failures > 0 {
					log.Warn().Int("failures", failures).Msg("Definitions invalid")
					return nil
				}
				log.Info().Int("definitions", len(defs)).Msg("Definitions valid")
				return nil
			}

			// Initial pass so errors surface before the first change.
			result, err := loader.Load(ctx, sources)
			if err != nil {
				return err
			}
			if err := revalidate(result); err != nil {
				return err
			}

			watcher := config.NewWatcher(loader, log.Logger)
			if err := watcher.Watch(ctx, sources, revalidate); err != nil {
				return fmt.Errorf("failed to start watching: %w", err)
			}
			defer func() { _ = watcher.Stop() }()

			log.Info().Strs("paths", sources).Msg("Watching definitions, Ctrl+C to stop")
			<-ctx.Done()
			return nil
		},
	}

	return cmd
}
