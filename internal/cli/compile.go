package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/patchwork/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult is a compiled scene.
type CompilationResult struct {
	SchemaVersion string            `json:"schema_version"`
	Fingerprint   string            `json:"fingerprint"`
	Components    []ir.ComponentDef `json:"components"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <scene-dir>",
		Short: "Compile a CUE scene to canonical JSON",
		Long: `Compile the CUE scene in a directory to canonical JSON.

Components keep their declaration order. The scene fingerprint identifies
the definitions independently of formatting and field order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, sceneDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadScene(sceneDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, sceneDir)
	for _, def := range loaded.Scene.Components {
		formatter.VerboseLog("Compiled component: %s (%s)", def.Name, def.Type)
	}

	result := &CompilationResult{
		SchemaVersion: ir.SchemaVersion,
		Fingerprint:   loaded.Hash,
		Components:    loaded.Scene.Components,
	}

	if opts.Output != "" {
		if err := writeSceneFile(result, opts.Output); err != nil {
			_ = formatter.Error(ErrCodeWriteFailed, err.Error(), nil)
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	formatter.Printf("✓ Compiled %d component(s)\n\n", len(result.Components))
	for _, def := range result.Components {
		formatter.Printf("  %s: %s, %d attribute(s)\n", def.Name, def.Type, len(def.Attributes))
		for _, ref := range def.References() {
			formatter.Printf("    %s → %s\n", ref.Attribute, ref.Target)
		}
	}
	formatter.Printf("\nFingerprint: %s\n", result.Fingerprint)
	if opts.Output != "" {
		formatter.Printf("Wrote canonical scene to %s\n", opts.Output)
	}
	return nil
}

// outputLoadError reports a LoadScene failure as a command error.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}
	var details any
	if loadErr.Pos.IsValid() {
		details = map[string]any{"file": loadErr.Pos.Filename(), "line": loadErr.Pos.Line()}
	}
	_ = formatter.Error(loadErr.Code, loadErr.Message, details)
	return WrapExitError(ExitCommandError, loadErr.Code, loadErr)
}

// writeSceneFile writes the result as canonical JSON, so identical scenes
// produce identical files.
func writeSceneFile(result *CompilationResult, filename string) error {
	components := make([]any, len(result.Components))
	for i, def := range result.Components {
		components[i] = map[string]any{
			"name":       def.Name,
			"type":       def.Type,
			"attributes": def.Attributes,
		}
	}
	data, err := ir.MarshalCanonical(map[string]any{
		"schema_version": result.SchemaVersion,
		"fingerprint":    result.Fingerprint,
		"components":     components,
	})
	if err != nil {
		return fmt.Errorf("marshaling scene: %w", err)
	}
	if err := os.WriteFile(filename, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
