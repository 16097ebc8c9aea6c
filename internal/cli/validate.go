package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/patchwork/internal/catalog"
	"github.com/roach88/patchwork/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Components int                        `json:"components"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
	Warnings   []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scene-dir>",
		Short: "Validate a scene against the registered component kinds",
		Long: `Validate the CUE scene in a directory.

Checks that every component has a registered type, that references name
existing components and only appear in resource slots, and that names are
unique. With --strict, attributes a kind does not declare are errors.

Reference cycles are reported as warnings: lazy resolution breaks them at
runtime, but the object on the cycle sees its own placeholder.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "reject attributes a kind does not declare")

	return cmd
}

func runValidate(opts *ValidateOptions, sceneDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadScene(sceneDir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			// Positioned errors are problems in the scene, not the command.
			return outputValidationErrors(formatter, ValidationResult{
				Errors: []compiler.ValidationError{{
					Field:   fmt.Sprintf("%s:%d", loadErr.Pos.Filename(), loadErr.Line()),
					Message: loadErr.Message,
					Code:    loadErr.Code,
				}},
			})
		}
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, sceneDir)

	result := ValidationResult{
		Components: len(loaded.Scene.Components),
		Errors:     compiler.Validate(loaded.Scene, catalog.NewRegistry(), opts.Strict),
		Warnings:   compiler.AnalyzeCycles(loaded.Scene),
	}
	for _, def := range loaded.Scene.Components {
		formatter.VerboseLog("Validated component: %s (%s)", def.Name, def.Type)
	}

	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}
	result.Valid = true
	return outputValidateSuccess(formatter, result)
}

func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	printCycleWarnings(formatter, result.Warnings)
	formatter.Printf("✓ Scene valid (%d component(s))\n", result.Components)
	return nil
}

// outputValidationErrors reports a scene that failed validation.
// Validation failures exit with ExitFailure.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: errs[0].Code, Message: errs[0].Message},
		}); err != nil {
			return err
		}
		return exitErr
	}

	formatter.Printf("✗ Validation failed\n\n")
	for _, err := range errs {
		formatter.Printf("%s\n  %s: %s\n\n", err.Field, err.Code, err.Message)
	}
	printCycleWarnings(formatter, result.Warnings)
	return exitErr
}

func printCycleWarnings(formatter *OutputFormatter, warnings []compiler.CycleWarning) {
	for _, w := range warnings {
		formatter.Printf("⚠ %s\n", w.Message)
	}
}
