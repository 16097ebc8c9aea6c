package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/patchwork/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario loads a scene, drives the engine through a list of host steps
// and asserts on the components' final state and the journal.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Scene lists CUE files to compile into the initial scene.
	// Paths are relative to the scenario file location.
	Scene []string `yaml:"scene,omitempty"`

	// Components are inline definitions loaded after Scene, in order.
	Components []ComponentSpec `yaml:"components,omitempty"`

	// Assets are the bytes the fetcher serves, keyed by URL.
	Assets map[string]AssetSpec `yaml:"assets,omitempty"`

	// Gated holds every fetch until a load step releases it. Without it
	// loads complete as soon as the scene settles.
	Gated bool `yaml:"gated,omitempty"`

	// Strict rejects attributes a kind does not declare.
	Strict bool `yaml:"strict,omitempty"`

	// Steps are the host inputs, applied in order. The queue is drained
	// after each one.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`

	// RunID fixes the journal run ID. Defaults to "scenario-<name>".
	RunID string `yaml:"run_id,omitempty"`
}

// ComponentSpec is an inline component definition.
type ComponentSpec struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// Def converts the component spec to an ir.ComponentDef.
func (c ComponentSpec) Def() (ir.ComponentDef, error) {
	attrs, err := ir.AttributesFromNative(c.Attributes)
	if err != nil {
		return ir.ComponentDef{}, fmt.Errorf("component %s: %w", c.Name, err)
	}
	return ir.ComponentDef{Name: c.Name, Type: c.Type, Attributes: attrs}, nil
}

// AssetSpec describes one fetchable asset. Image assets are encoded on the
// fly; Text is served verbatim.
type AssetSpec struct {
	Format string `yaml:"format,omitempty"` // "png" or "bmp"
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
	Text   string `yaml:"text,omitempty"`
}

// Step is one host input. Exactly one field is set.
type Step struct {
	// Set assigns attribute values; null unsets.
	Set *SetStep `yaml:"set,omitempty"`

	// Changed notifies a component of changed attribute names.
	Changed *ChangedStep `yaml:"changed,omitempty"`

	// Get resolves a component and remembers its object under a label.
	Get *GetStep `yaml:"get,omitempty"`

	// Add loads one more component.
	Add *ComponentSpec `yaml:"add,omitempty"`

	// Teardown removes the named component.
	Teardown string `yaml:"teardown,omitempty"`

	// Load releases a gated fetch and applies its completion.
	Load string `yaml:"load,omitempty"`
}

// SetStep assigns attributes.
type SetStep struct {
	Component  string         `yaml:"component"`
	Attributes map[string]any `yaml:"attributes"`
}

// ChangedStep notifies changed names.
type ChangedStep struct {
	Component string   `yaml:"component"`
	Names     []string `yaml:"names"`
}

// GetStep resolves a component.
type GetStep struct {
	Component string `yaml:"component"`

	// As labels the object for same_object assertions.
	As string `yaml:"as,omitempty"`

	// Error expects resolution to fail with a message containing it.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Component is the subject (rebuild_count, patch_count, ready_count,
	// live_subscriptions, attribute).
	Component string `yaml:"component,omitempty"`

	// Count is the expected counter value.
	Count int `yaml:"count"`

	// Objects are the labels compared by same_object and different_object.
	Objects []string `yaml:"objects,omitempty"`

	// Attribute and Value are used by attribute.
	Attribute string `yaml:"attribute,omitempty"`
	Value     any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertSameObject        = "same_object"
	AssertDifferentObject   = "different_object"
	AssertRebuildCount      = "rebuild_count"
	AssertPatchCount        = "patch_count"
	AssertReadyCount        = "ready_count"
	AssertLiveSubscriptions = "live_subscriptions"
	AssertAttribute         = "attribute"
	AssertReplayIdentical   = "replay_identical"
)

// LoadScenario reads and parses a scenario YAML file. Scene paths are
// resolved relative to the file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. Relative scene paths are resolved
// against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	// Reject unknown fields so "assertion:" is not silently ignored.
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, p := range scenario.Scene {
		if !filepath.IsAbs(p) && baseDir != "" {
			scenario.Scene[i] = filepath.Join(baseDir, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Scene) == 0 && len(s.Components) == 0 {
		return fmt.Errorf("scene or components is required")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, p := range s.Scene {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("scene file not found: %s", p)
		}
	}
	for i, c := range s.Components {
		if c.Name == "" || c.Type == "" {
			return fmt.Errorf("components[%d]: name and type are required", i)
		}
	}
	for url, a := range s.Assets {
		if a.Text == "" && (a.Format != "png" && a.Format != "bmp") {
			return fmt.Errorf("assets[%s]: format must be png or bmp, or text must be set", url)
		}
	}

	labels := map[string]bool{}
	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
		if step.Get != nil && step.Get.As != "" {
			labels[step.Get.As] = true
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], labels); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	set := 0
	if step.Set != nil {
		set++
		if step.Set.Component == "" {
			return fmt.Errorf("steps[%d].set: component is required", index)
		}
	}
	if step.Changed != nil {
		set++
		if step.Changed.Component == "" || len(step.Changed.Names) == 0 {
			return fmt.Errorf("steps[%d].changed: component and names are required", index)
		}
	}
	if step.Get != nil {
		set++
		if step.Get.Component == "" {
			return fmt.Errorf("steps[%d].get: component is required", index)
		}
	}
	if step.Add != nil {
		set++
		if step.Add.Name == "" || step.Add.Type == "" {
			return fmt.Errorf("steps[%d].add: name and type are required", index)
		}
	}
	if step.Teardown != "" {
		set++
	}
	if step.Load != "" {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of set, changed, get, add, teardown, load is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, labels map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSameObject, AssertDifferentObject:
		if len(a.Objects) < 2 {
			return fmt.Errorf("assertions[%d]: %s needs at least two objects", index, a.Type)
		}
		for _, label := range a.Objects {
			if !labels[label] {
				return fmt.Errorf("assertions[%d]: object %q is not labelled by any get step", index, label)
			}
		}
	case AssertRebuildCount, AssertPatchCount, AssertReadyCount, AssertLiveSubscriptions:
		if a.Component == "" {
			return fmt.Errorf("assertions[%d]: component is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertAttribute:
		if a.Component == "" || a.Attribute == "" {
			return fmt.Errorf("assertions[%d]: component and attribute are required for attribute", index)
		}
	case AssertReplayIdentical:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
