package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/load"
	"github.com/rs/zerolog"

	"github.com/entweave/entweave/pkg/definition"
)

// ValidationError is a load or compile error with source location.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the CUE path to the error (e.g., "definitions.Customer").
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`

	// Severity is the error severity (error, warning).
	Severity string `json:"severity"`
}

func (e ValidationError) Error() string {
	switch {
	case e.File != "" && e.Line > 0:
		return fmt.Sprintf("%s:%d:%d: %s", e.File, e.Line, e.Column, e.Message)
	case e.Path != "":
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	default:
		return e.Message
	}
}

// LoadResult is the outcome of evaluating a set of CUE sources. Raw holds
// one declarative map per definition, keyed by entity type name. A result
// with Errors still carries whatever definitions evaluated cleanly.
type LoadResult struct {
	// Raw maps entity type name to its raw declarative map.
	Raw map[string]map[string]any `json:"raw"`

	// SourceFiles are the CUE files that were evaluated.
	SourceFiles []string `json:"source_files"`

	// LoadedAt is when the sources were evaluated.
	LoadedAt time.Time `json:"loaded_at"`

	// Errors lists load and evaluation errors.
	Errors []ValidationError `json:"errors,omitempty"`
}

// Names returns the loaded definition names in sorted order.
func (r *LoadResult) Names() []string {
	names := make([]string, 0, len(r.Raw))
	for name := range r.Raw {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compile runs every raw map through the definition compiler. Compile
// failures are collected per definition rather than aborting the batch.
func (r *LoadResult) Compile() ([]*definition.Definition, []ValidationError) {
	var (
		defs []*definition.Definition
		errs []ValidationError
	)
	for _, name := range r.Names() {
		d, err := definition.Define(r.Raw[name])
		if err != nil {
			errs = append(errs, ValidationError{
				Path:     "definitions." + name,
				Message:  err.Error(),
				Severity: "error",
			})
			continue
		}
		defs = append(defs, d)
	}
	return defs, errs
}

// Loader evaluates CUE definition sources.
type Loader struct {
	ctx    *cue.Context
	logger zerolog.Logger
}

// NewLoader creates a definition loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		ctx:    cuecontext.New(),
		logger: logger.With().Str("component", "definition-loader").Logger(),
	}
}

// Load evaluates the given files and directories and extracts the raw
// definition maps from their unified value.
func (l *Loader) Load(ctx context.Context, sources []string) (*LoadResult, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("no sources provided")
	}

	result := &LoadResult{
		Raw:      map[string]map[string]any{},
		LoadedAt: time.Now(),
	}

	var unified cue.Value
	for _, source := range sources {
		info, err := os.Stat(source)
		if err != nil {
			return nil, fmt.Errorf("failed to stat source %s: %w", source, err)
		}

		var (
			val   cue.Value
			files []string
			errs  []ValidationError
		)
		if info.IsDir() {
			val, files, errs = l.loadDirectory(source)
		} else {
			val, errs = l.loadFile(source)
			files = []string{source}
		}
		result.Errors = append(result.Errors, errs...)
		result.SourceFiles = append(result.SourceFiles, files...)
		if val.Exists() {
			if unified.Exists() {
				unified = unified.Unify(val)
			} else {
				unified = val
			}
		}
	}

	if len(result.Errors) > 0 {
		return result, nil
	}
	if err := unified.Err(); err != nil {
		result.Errors = append(result.Errors, convertCUEErrors(err)...)
		return result, nil
	}

	l.extractDefinitions(unified, result)

	l.logger.Info().
		Int("definitions", len(result.Raw)).
		Int("files", len(result.SourceFiles)).
		Msg("Definitions loaded")

	return result, nil
}

// LoadInline evaluates inline CUE content.
func (l *Loader) LoadInline(ctx context.Context, content string) (*LoadResult, error) {
	result := &LoadResult{
		Raw:         map[string]map[string]any{},
		SourceFiles: []string{"inline"},
		LoadedAt:    time.Now(),
	}

	val := l.ctx.CompileString(content, cue.Filename("inline"))
	if err := val.Err(); err != nil {
		result.Errors = convertCUEErrors(err)
		return result, nil
	}

	l.extractDefinitions(val, result)
	return result, nil
}

// loadDirectory loads a directory as a CUE package.
func (l *Loader) loadDirectory(dir string) (cue.Value, []string, []ValidationError) {
	buildInstances := load.Instances([]string{dir}, nil)
	if len(buildInstances) == 0 {
		return cue.Value{}, nil, []ValidationError{{
			File:     dir,
			Message:  "no CUE files found",
			Severity: "error",
		}}
	}

	inst := buildInstances[0]
	if inst.Err != nil {
		return cue.Value{}, nil, convertCUEErrors(inst.Err)
	}

	val := l.ctx.BuildInstance(inst)
	if err := val.Err(); err != nil {
		return cue.Value{}, nil, convertCUEErrors(err)
	}

	var files []string
	for _, file := range inst.Files {
		if file.Filename != "" {
			files = append(files, file.Filename)
		}
	}
	return val, files, nil
}

// loadFile loads a single CUE file.
func (l *Loader) loadFile(path string) (cue.Value, []ValidationError) {
	content, err := os.ReadFile(path)
	if err != nil {
		return cue.Value{}, []ValidationError{{
			File:     path,
			Message:  fmt.Sprintf("failed to read file: %v", err),
			Severity: "error",
		}}
	}

	val := l.ctx.CompileString(string(content), cue.Filename(path))
	if err := val.Err(); err != nil {
		return cue.Value{}, convertCUEErrors(err)
	}
	return val, nil
}

// extractDefinitions pulls every entry of the top-level definitions struct
// out as a raw map. A missing or empty struct is not an error; a directory
// of shared constraints may legitimately define nothing itself.
func (l *Loader) extractDefinitions(val cue.Value, result *LoadResult) {
	defsVal := val.LookupPath(cue.ParsePath("definitions"))
	if !defsVal.Exists() {
		return
	}

	iter, err := defsVal.Fields(cue.All())
	if err != nil {
		result.Errors = append(result.Errors, ValidationError{
			Path:     "definitions",
			Message:  fmt.Sprintf("failed to iterate definitions: %v", err),
			Severity: "error",
		})
		return
	}

	for iter.Next() {
		name := iter.Selector().String()
		var raw map[string]any
		if err := iter.Value().Decode(&raw); err != nil {
			result.Errors = append(result.Errors, ValidationError{
				Path:     "definitions." + name,
				Message:  fmt.Sprintf("failed to decode definition: %v", err),
				Severity: "error",
			})
			continue
		}
		// The struct key doubles as the type name unless the body sets one.
		if _, ok := raw["type"]; !ok {
			raw["type"] = name
		}
		result.Raw[name] = raw
	}
}

// convertCUEErrors converts CUE errors to a ValidationError slice.
func convertCUEErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	errs := cueerrors.Errors(err)
	for _, e := range errs {
		pos := cueerrors.Positions(e)
		var file string
		var line, column int
		if len(pos) > 0 {
			file = pos[0].Filename()
			line = pos[0].Line()
			column = pos[0].Column()
		}

		validationErrors = append(validationErrors, ValidationError{
			File:     file,
			Line:     line,
			Column:   column,
			Message:  cueerrors.Details(e, nil),
			Severity: "error",
		})
	}
	return validationErrors
}
