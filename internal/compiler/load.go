package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/genesis/internal/entity"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading entity specs from a directory.
type LoadResult struct {
	Entities  []entity.Definition
	FileCount int // Number of CUE files found
}

// Error code constants, shared with the CLI output.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed

	ErrCodeEntityTable   = "E101" // Missing table
	ErrCodeEntityPath    = "E102" // Missing path
	ErrCodeEntityKey     = "E103" // Missing or invalid key
	ErrCodeEntityColumns = "E104" // Invalid columns
	ErrCodeEntityInvalid = "E105" // Definition fails validation
	ErrCodeNoEntities    = "E106" // No entity declared
)

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadEntities loads every .cue file of dir as one CUE instance and
// compiles each field of its top-level "entity" struct.
func LoadEntities(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
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
		return nil, []error{convertCompileError(formatCUEError(err), "build", ErrCodeBuildFailed)}
	}

	result := &LoadResult{FileCount: len(cueFiles)}
	errs := CompileEntities(value, mode, &result.Entities)
	if len(result.Entities) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeNoEntities, Message: "no entities found in specs"})
	}
	return result, errs
}

// CompileEntities compiles every field of value's "entity" struct,
// appending the definitions to out in declaration order.
func CompileEntities(value cue.Value, mode LoadMode, out *[]entity.Definition) []error {
	entitiesVal := value.LookupPath(cue.ParsePath("entity"))
	if !entitiesVal.Exists() {
		return nil
	}

	iter, err := entitiesVal.Fields()
	if err != nil {
		return []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating entities: %v", err)}}
	}

	var errs []error
	for iter.Next() {
		def, err := CompileEntity(iter.Value())
		if err != nil {
			errs = append(errs, convertCompileError(err, "entity."+iter.Label(), ErrCodeGeneric))
			if mode == LoadModeFailFast {
				return errs
			}
			continue
		}
		*out = append(*out, *def)
	}
	return errs
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

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context, fallback string) *LoadError {
	var compileErr *CompileError
	if errors.As(err, &compileErr) {
		code := MapFieldToErrorCode(compileErr.Field)
		if code == ErrCodeGeneric {
			code = fallback
		}
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    fallback,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch {
	case field == "table" || field == "schema":
		return ErrCodeEntityTable
	case field == "path":
		return ErrCodeEntityPath
	case field == "key":
		return ErrCodeEntityKey
	case field == "columns" || strings.HasPrefix(field, "columns."):
		return ErrCodeEntityColumns
	case field == "entity":
		return ErrCodeEntityInvalid
	default:
		return ErrCodeGeneric
	}
}
