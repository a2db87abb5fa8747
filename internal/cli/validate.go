package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/genesis/internal/compiler"
	"github.com/roach88/genesis/internal/entity"
)

// ValidationError is one problem found in the entity specs.
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool              `json:"valid"`
	Entities []string          `json:"entities,omitempty"`
	Errors   []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate CUE entity declarations",
		Long: `Validate the CUE entity declarations of a directory without touching a
database. Every declaration is compiled, then the declarations are combined
with the built-in entities to check names and dependencies.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(cmd, opts)

	result, loadErrors := compiler.LoadEntities(specsDir, compiler.LoadModeCollectAll)

	// Directory not found, no files, CUE that does not build.
	if result == nil {
		var loadErr *compiler.LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message)
		}
		return outputValidateError(formatter, compiler.ErrCodeGeneric, loadErrors[0].Error())
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", result.FileCount, specsDir)

	var validationErrors []ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, toValidationError(err))
	}

	names := make([]string, 0, len(result.Entities))
	for _, def := range result.Entities {
		formatter.VerboseLog("Compiled entity: %s -> %s", def.Name, def.Table.Name)
		names = append(names, def.Name)
	}

	// Cross-entity checks only make sense once every declaration compiled.
	if len(validationErrors) == 0 {
		if _, err := entity.DefaultRegistry().With(result.Entities...); err != nil {
			validationErrors = append(validationErrors, ValidationError{
				Code:    compiler.ErrCodeEntityInvalid,
				Message: err.Error(),
			})
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, names)
}

func toValidationError(err error) ValidationError {
	var loadErr *compiler.LoadError
	if !errors.As(err, &loadErr) {
		return ValidationError{Code: compiler.ErrCodeGeneric, Message: err.Error()}
	}
	ve := ValidationError{Code: loadErr.Code, Message: loadErr.Message}
	ve.File, ve.Line = position(loadErr.Pos)
	return ve
}

// position extracts file and line from a CUE position.
func position(pos token.Pos) (string, int) {
	if !pos.IsValid() {
		return "", 0
	}
	return pos.Filename(), pos.Line()
}

func outputValidateSuccess(formatter *OutputFormatter, names []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Entities: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d entities)\n", len(names))
	return nil
}

func outputValidateError(formatter *OutputFormatter, code, message string) error {
	_ = formatter.Error(code, message, nil)
	// Unreadable specs are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, errs []ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d\n", err.File, err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
