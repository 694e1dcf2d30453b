package definition

import (
	"context"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/entweave/entweave/pkg/descriptor"
)

var (
	eventNameRe    = regexp.MustCompile(`^on[A-Z][A-Za-z0-9]*(Created|Updated|Deleted)$`)
	scheduleNameRe = regexp.MustCompile(`^every[A-Z0-9][A-Za-z0-9]*$`)
	migrateNameRe  = regexp.MustCompile(`^migrate\.([0-9]+)$`)
	cronTokenRe    = regexp.MustCompile(`^[0-9*,/-]+$`)
)

// isCronExpression reports whether key reads as a five-token cron expression.
func isCronExpression(key string) bool {
	tokens := strings.Fields(key)
	if len(tokens) != 5 {
		return false
	}
	for _, tok := range tokens {
		if !cronTokenRe.MatchString(tok) {
			return false
		}
	}
	return true
}

// Define compiles a raw declarative map into a Definition. Reserved keys
// route to identity and behavior; every other key is classified into a field
// descriptor. Field classification is fail-soft, so a malformed value
// degrades a single field without failing the definition; mis-typed handler
// values, by contrast, are programming errors and fail Define outright.
func Define(raw map[string]any) (*Definition, error) {
	d := &Definition{
		Version:    1,
		Fields:     map[string]*descriptor.FieldDescriptor{},
		Cascades:   map[string]*descriptor.CascadeDescriptor{},
		Functions:  map[string]*FunctionDescriptor{},
		Events:     map[string]EventHandler{},
		Schedules:  map[string]ScheduleHandler{},
		Crons:      map[string]ScheduleHandler{},
		Migrations: map[int]MigrationFunc{},
		raw:        make(map[string]any, len(raw)),
	}
	for k, v := range raw {
		d.raw[k] = v
	}

	for key, value := range raw {
		switch key {
		case "type":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("definition type must be a string, got %T", value)
			}
			d.Type = s
			continue
		case "id":
			s, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("definition id must be a string, got %T", value)
			}
			d.ID = s
			continue
		case "version":
			v, err := coerceVersion(value)
			if err != nil {
				return nil, err
			}
			d.Version = v
			continue
		case "context":
			s, _ := value.(string)
			d.Context = s
			continue
		case "extends":
			s, _ := value.(string)
			d.Extends = s
			continue
		}

		if m := migrateNameRe.FindStringSubmatch(key); m != nil {
			fn, ok := asMigration(value)
			if !ok {
				return nil, fmt.Errorf("%s: migration value must be a MigrationFunc", key)
			}
			version, _ := strconv.Atoi(m[1])
			d.Migrations[version] = fn
			continue
		}

		if eventNameRe.MatchString(key) && callable(value) {
			fn, ok := asEventHandler(value)
			if !ok {
				return nil, fmt.Errorf("%s: event handler must be an EventHandler", key)
			}
			d.Events[key] = fn
			continue
		}

		if scheduleNameRe.MatchString(key) && callable(value) {
			fn, ok := asScheduleHandler(value)
			if !ok {
				return nil, fmt.Errorf("%s: schedule handler must be a ScheduleHandler", key)
			}
			d.Schedules[key] = fn
			continue
		}

		if isCronExpression(key) {
			fn, ok := asScheduleHandler(value)
			if !ok {
				return nil, fmt.Errorf("%q: cron handler must be a ScheduleHandler", key)
			}
			d.Crons[key] = fn
			continue
		}

		if gf, ok := asGenerativeFunction(value); ok {
			d.Functions[key] = &FunctionDescriptor{
				Name:      key,
				Kind:      FunctionGenerative,
				Prompt:    gf.Prompt,
				Schema:    gf.Schema,
				Model:     gf.Model,
				Variables: descriptor.ExtractVariables(gf.Prompt),
			}
			continue
		}

		fd := descriptor.Parse(key, value)
		d.Fields[key] = fd
		if fd.Source == descriptor.SourceLink {
			d.Cascades[key] = fd.Cascade
		}
		if fd.Source == descriptor.SourceCompute {
			// Compute fields are callable by name as well.
			d.Functions[key] = &FunctionDescriptor{Name: key, Kind: FunctionCompute, Func: fd.Compute}
		}
	}

	if err := validate.Struct(d); err != nil {
		return nil, fmt.Errorf("invalid definition: %w", err)
	}
	return d, nil
}

// MustDefine is Define for static declarations; it panics on error.
func MustDefine(raw map[string]any) *Definition {
	d, err := Define(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func coerceVersion(value any) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("definition version %q is not an integer", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("definition version must be an integer, got %T", value)
	}
}

func callable(value any) bool {
	return value != nil && reflect.TypeOf(value).Kind() == reflect.Func
}

func asEventHandler(value any) (EventHandler, bool) {
	switch v := value.(type) {
	case EventHandler:
		return v, true
	case func(context.Context, HandlerContext, Event) error:
		return v, true
	}
	return nil, false
}

func asScheduleHandler(value any) (ScheduleHandler, bool) {
	switch v := value.(type) {
	case ScheduleHandler:
		return v, true
	case MigrationFunc:
		return ScheduleHandler(v), true
	case func(context.Context, HandlerContext) error:
		return v, true
	}
	return nil, false
}

func asMigration(value any) (MigrationFunc, bool) {
	switch v := value.(type) {
	case MigrationFunc:
		return v, true
	case ScheduleHandler:
		return MigrationFunc(v), true
	case func(context.Context, HandlerContext) error:
		return v, true
	}
	return nil, false
}

func asGenerativeFunction(value any) (*GenerativeFunction, bool) {
	switch v := value.(type) {
	case GenerativeFunction:
		return &v, true
	case *GenerativeFunction:
		return v, true
	}
	return nil, false
}
