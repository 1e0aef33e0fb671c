package harness

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/roach88/labelcheck/internal/backend"
	"github.com/roach88/labelcheck/internal/labels"
)

// DefaultPrompt is sent when neither the scenario nor the suite names one.
const DefaultPrompt = "Say hello in one short sentence."

//go:embed suites/default.yaml
var defaultSuiteYAML []byte

// Suite is a set of scenarios sharing a default prompt.
type Suite struct {
	// Prompt is the default prompt for scenarios without their own.
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// Scenarios run in list order within each backend.
	Scenarios []Scenario `yaml:"scenarios" json:"scenarios"`
}

// Scenario is one named layering case.
type Scenario struct {
	// Name uniquely identifies this scenario within a suite.
	Name string `yaml:"name" json:"name"`

	// Description explains what this scenario exercises.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Prompt overrides the suite prompt.
	Prompt string `yaml:"prompt,omitempty" json:"prompt,omitempty"`

	// Backends restricts the scenario to the named backends.
	// Empty means every registered backend.
	Backends []string `yaml:"backends,omitempty" json:"backends,omitempty"`

	// Layers are merged defaults first, overrides last.
	Layers []LayerSpec `yaml:"layers" json:"layers"`

	// Expect is optional.
	Expect *Expect `yaml:"expect,omitempty" json:"expect,omitempty"`
}

// LayerSpec is the file form of a labels.Layer.
type LayerSpec struct {
	Origin string `yaml:"origin" json:"origin"`

	// Labels must be present; an empty map is an empty layer.
	Labels map[string]string `yaml:"labels" json:"labels"`
}

// Expect constrains a scenario's outcome beyond the non-empty reply check.
type Expect struct {
	// Labels, when set, must equal the effective label set. A mismatch
	// fails the pair without dispatching.
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`

	// Forwarded requires the adapter to report exactly the effective
	// labels as sent on the wire.
	Forwarded bool `yaml:"forwarded,omitempty" json:"forwarded,omitempty"`
}

// ValidationError lists every problem found in a suite.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	src := e.Source
	if src == "" {
		src = "suite"
	}
	return fmt.Sprintf("invalid %s: %s", src, strings.Join(e.Problems, "; "))
}

// LabelLayers converts the scenario's layers in file order.
func (s Scenario) LabelLayers() ([]labels.Layer, error) {
	out := make([]labels.Layer, 0, len(s.Layers))
	for i, l := range s.Layers {
		origin, err := labels.ParseOrigin(l.Origin)
		if err != nil {
			return nil, fmt.Errorf("layers[%d]: %w", i, err)
		}
		set, err := labels.New(l.Labels)
		if err != nil {
			return nil, fmt.Errorf("layers[%d]: %w", i, err)
		}
		out = append(out, labels.Layer{Origin: origin, Labels: set})
	}
	return out, nil
}

// Effective merges the scenario's layers, defaults before overrides.
func (s Scenario) Effective() (*labels.Set, error) {
	layers, err := s.LabelLayers()
	if err != nil {
		return nil, err
	}
	return labels.Merge(labels.Stack(layers)...), nil
}

// Expected returns the expect.labels set, or nil when none was given.
func (s Scenario) Expected() (*labels.Set, error) {
	if s.Expect == nil || s.Expect.Labels == nil {
		return nil, nil
	}
	return labels.New(s.Expect.Labels)
}

// Targets reports whether the scenario runs on id.
func (s Scenario) Targets(id backend.Identity) bool {
	if len(s.Backends) == 0 {
		return true
	}
	for _, b := range s.Backends {
		if strings.TrimSpace(b) == string(id) {
			return true
		}
	}
	return false
}

// PromptFor resolves the prompt sent for sc.
func (s *Suite) PromptFor(sc Scenario) string {
	switch {
	case sc.Prompt != "":
		return sc.Prompt
	case s.Prompt != "":
		return s.Prompt
	default:
		return DefaultPrompt
	}
}

// LoadSuite reads a suite file. YAML files (.yaml, .yml) are decoded with
// strict field checking; .cue files are checked against the suite schema.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite *Suite
	switch filepath.Ext(path) {
	case ".cue":
		suite, err = parseCUE(path, data)
	default:
		suite, err = ParseSuite(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := validateSuite(path, suite); err != nil {
		return nil, err
	}
	return suite, nil
}

// ParseSuite decodes YAML suite data without validating it.
func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		if errors.Is(err, io.EOF) {
			return &suite, nil
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &suite, nil
}

// LoadSuites loads every suite under paths and concatenates their
// scenarios. Directories are walked for .yaml, .yml and .cue files in
// lexical order. A file's prompt is copied into its scenarios that have
// none, so it is not lost in the merged suite.
func LoadSuites(paths []string) (*Suite, error) {
	files, err := suiteFiles(paths)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no suite files found in %s", strings.Join(paths, ", "))
	}

	merged := &Suite{}
	for _, f := range files {
		s, err := LoadSuite(f)
		if err != nil {
			return nil, err
		}
		for _, sc := range s.Scenarios {
			if sc.Prompt == "" {
				sc.Prompt = s.Prompt
			}
			merged.Scenarios = append(merged.Scenarios, sc)
		}
	}

	if err := validateSuite(strings.Join(files, ", "), merged); err != nil {
		return nil, err
	}
	return merged, nil
}

func suiteFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to access suite path: %w", err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		var found []string
		err = filepath.Walk(p, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			switch filepath.Ext(path) {
			case ".yaml", ".yml", ".cue":
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// DefaultSuite returns the built-in suite covering basic labels, call-time
// override, empty labels, special characters, versioned values and
// multi-layer stacking.
func DefaultSuite() *Suite {
	suite, err := ParseSuite(defaultSuiteYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded suite: %v", err))
	}
	if err := validateSuite("embedded suite", suite); err != nil {
		panic(err)
	}
	return suite
}

// Validate checks a suite built in code.
func (s *Suite) Validate() error {
	return validateSuite("", s)
}

func validateSuite(source string, s *Suite) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(s.Scenarios) == 0 {
		add("scenarios list is required and must be non-empty")
	}

	seen := make(map[string]int)
	for i, sc := range s.Scenarios {
		where := fmt.Sprintf("scenarios[%d]", i)
		if sc.Name == "" {
			add("%s: name is required", where)
		} else if !utf8.ValidString(sc.Name) {
			add("%s: name is not valid UTF-8", where)
		} else {
			where = fmt.Sprintf("scenarios[%d] (%s)", i, sc.Name)
			if prev, dup := seen[sc.Name]; dup {
				add("%s: duplicate name, first used by scenarios[%d]", where, prev)
			} else {
				seen[sc.Name] = i
			}
		}

		for _, b := range sc.Backends {
			if _, err := backend.ParseIdentity(strings.TrimSpace(b)); err != nil {
				add("%s: %v", where, err)
			}
		}

		if len(sc.Layers) == 0 {
			add("%s: layers list is required and must be non-empty", where)
		}
		for j, l := range sc.Layers {
			if _, err := labels.ParseOrigin(l.Origin); err != nil {
				add("%s.layers[%d]: %v", where, j, err)
			}
			if l.Labels == nil {
				add("%s.layers[%d]: labels is required (use {} for empty labels)", where, j)
			}
			if _, ok := l.Labels[""]; ok {
				add("%s.layers[%d]: %v", where, j, labels.ErrEmptyKey)
			}
			if !validUTF8Labels(l.Labels) {
				add("%s.layers[%d]: labels are not valid UTF-8", where, j)
			}
		}

		if sc.Expect != nil {
			if _, ok := sc.Expect.Labels[""]; ok {
				add("%s.expect.labels: %v", where, labels.ErrEmptyKey)
			}
			if !validUTF8Labels(sc.Expect.Labels) {
				add("%s.expect.labels: labels are not valid UTF-8", where)
			}
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Source: source, Problems: problems}
	}
	return nil
}

func validUTF8Labels(m map[string]string) bool {
	for k, v := range m {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return false
		}
	}
	return true
}
