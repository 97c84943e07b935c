package dashboard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Load error codes (D001-D099)
const (
	ErrCodeGeneric     = "D001" // Generic/unknown error
	ErrCodeScanError   = "D002" // Directory scan error
	ErrCodeNoFiles     = "D003" // No CUE files found
	ErrCodeLoadFailed  = "D004" // CUE load failed
	ErrCodeNotFound    = "D005" // Path not found
	ErrCodeBuildFailed = "D006" // CUE build failed
	ErrCodeCompile     = "D007" // Dashboard does not compile
)

// LoadResult contains the dashboards loaded from a directory.
type LoadResult struct {
	Dashboards []Dashboard
	FileCount  int
}

// LoadError represents an error that occurred during loading.
type LoadError struct {
	Code      string
	Dashboard string
	Message   string
	Pos       token.Pos
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Dashboard != "" {
		msg = "dashboard " + e.Dashboard + ": " + msg
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, msg)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// LoadDir loads, compiles and validates every dashboard in a directory.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors. Dashboards with errors
// are left out of the result.
func LoadDir(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("dashboards directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing dashboards directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	errs := collect(value, mode, result)
	if len(result.Dashboards) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no dashboards found"})
	}
	return result, errs
}

// LoadString compiles dashboards from CUE source text. Used by tests and
// tools that embed definitions.
func LoadString(src string, mode LoadMode) (*LoadResult, []error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, []error{convertCompileError(formatCUEError(err), "")}
	}
	result := &LoadResult{}
	return result, collect(value, mode, result)
}

func collect(value cue.Value, mode LoadMode, result *LoadResult) []error {
	var errs []error

	dashVal := value.LookupPath(cue.ParsePath("dashboard"))
	if !dashVal.Exists() {
		return nil
	}

	iter, err := dashVal.Fields()
	if err != nil {
		return []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating dashboards: %v", err)}}
	}

	for iter.Next() {
		name := iter.Label()
		d, err := Compile(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, name))
			if mode == LoadModeFailFast {
				return errs
			}
			continue
		}

		verrs := Validate(d)
		for _, ve := range verrs {
			errs = append(errs, &LoadError{
				Code:      ve.Code,
				Dashboard: name,
				Message:   ve.Field + ": " + ve.Message,
				Pos:       fieldPos(iter.Value(), ve.Field),
			})
			if mode == LoadModeFailFast {
				return errs
			}
		}
		if len(verrs) == 0 {
			result.Dashboards = append(result.Dashboards, *d)
		}
	}
	return errs
}

// fieldPos finds the source position of a validated field, falling back to
// the closest existing parent.
func fieldPos(v cue.Value, field string) token.Pos {
	path := cue.ParsePath(field)
	if path.Err() != nil {
		return v.Pos()
	}
	sels := path.Selectors()
	for i := len(sels); i > 0; i-- {
		if f := v.LookupPath(cue.MakePath(sels[:i]...)); f.Exists() {
			return f.Pos()
		}
	}
	return v.Pos()
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, dashboard string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:      ErrCodeCompile,
			Dashboard: dashboard,
			Message:   compileErr.Field + ": " + compileErr.Message,
			Pos:       compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Dashboard: dashboard, Message: err.Error()}
}
