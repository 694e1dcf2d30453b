package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/entweave/entweave/pkg/definition"
	"github.com/entweave/entweave/pkg/descriptor"
)

// fieldReport is one field's classification in the validate output.
type fieldReport struct {
	Name           string                   `json:"name"`
	Source         descriptor.SourceKind    `json:"source"`
	Type           descriptor.PrimitiveType `json:"type,omitempty"`
	Repeated       bool                     `json:"repeated,omitempty"`
	Target         string                   `json:"target,omitempty"`
	DroppedFilters int                      `json:"dropped_filters,omitempty"`
}

// definitionReport is one definition's validate output.
type definitionReport struct {
	Type       string        `json:"type"`
	Version    int           `json:"version"`
	Extends    string        `json:"extends,omitempty"`
	Fields     []fieldReport `json:"fields"`
	Functions  []string      `json:"functions,omitempty"`
	Events     []string      `json:"events,omitempty"`
	Migrations []int         `json:"migrations,omitempty"`
}

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path...]",
		Short: "Validate entity definition files",
		Long: `Validate CUE entity definition files.

This command checks:
  - CUE syntax validity
  - Definition compilation (reserved keys, handler shapes)
  - Per-field source classification
  - Cascade filters silently dropped during parsing`,
		Example: `  # Validate definitions in the current directory
  entweave validate

  # Validate a specific file
  entweave validate ./defs/customer.cue`,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, defs, compileErrs, err := loadDefinitions(cmd.Context(), args)
			if err != nil {
				return err
			}

			for _, e := range append(result.Errors, compileErrs...) {
				log.Error().Str("path", e.Path).Str("file", e.File).Msg(e.Message)
			}

			reports := make([]definitionReport, 0, len(defs))
			for _, d := range defs {
				reports = append(reports, reportDefinition(d))
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				printReports(reports)
			}

			if failures := len(result.Errors) + len(compileErrs); failures > 0 {
				return fmt.Errorf("%d definition(s) failed validation", failures)
			}

			log.Info().Int("definitions", len(defs)).Msg("Definitions valid")
			return nil
		},
	}

	return cmd
}

func reportDefinition(d *definition.Definition) definitionReport {
	report := definitionReport{
		Type:    d.Type,
		Version: d.Version,
		Extends: d.Extends,
	}

	fieldNames := make([]string, 0, len(d.Fields))
	for name := range d.Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)
	for _, name := range fieldNames {
		fd := d.Fields[name]
		fr := fieldReport{
			Name:     name,
			Source:   fd.Source,
			Type:     fd.Type,
			Repeated: fd.Repeated,
		}
		if fd.Cascade != nil {
			fr.Target = fd.Cascade.TargetType
			fr.DroppedFilters = fd.Cascade.DroppedFilters
		}
		report.Fields = append(report.Fields, fr)
	}

	for name := range d.Functions {
		report.Functions = append(report.Functions, name)
	}
	sort.Strings(report.Functions)
	for name := range d.Events {
		report.Events = append(report.Events, name)
	}
	sort.Strings(report.Events)
	for version := range d.Migrations {
		report.Migrations = append(report.Migrations, version)
	}
	sort.Ints(report.Migrations)

	return report
}

func printReports(reports []definitionReport) {
	for _, r := range reports {
		fmt.Printf("%s (version %d)\n", r.Type, r.Version)
		if r.Extends != "" {
			fmt.Printf("  extends %s\n", r.Extends)
		}
		for _, f := range r.Fields {
			line := fmt.Sprintf("  %-20s %s", f.Name, f.Source)
			if f.Type != "" {
				line += fmt.Sprintf(" (%s)", f.Type)
			}
			if f.Repeated {
				line += " repeated"
			}
			if f.Target != "" {
				line += " -> " + f.Target
			}
			fmt.Println(line)
			if f.DroppedFilters > 0 {
				fmt.Printf("    warning: %d filter(s) dropped as unparseable\n", f.DroppedFilters)
			}
		}
		if len(r.Functions) > 0 {
			fmt.Printf("  functions: %v\n", r.Functions)
		}
		if len(r.Events) > 0 {
			fmt.Printf("  events: %v\n", r.Events)
		}
		if len(r.Migrations) > 0 {
			fmt.Printf("  migrations: %v\n", r.Migrations)
		}
	}
}
