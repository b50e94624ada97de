package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"dev/bravebird/login-scenarios/pkg/models"
)

// File is the on-disk layout of a scenario file
type File struct {
	Scenarios []models.Scenario `yaml:"scenarios"`
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFile reads scenarios from a YAML file. See Load.
func LoadFile(path string, vars map[string]string) ([]models.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	scenarios, err := Load(bytes.NewReader(data), vars)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}

// Load decodes scenarios from r, substitutes ${VAR} references in
// selectors and values from vars, and validates the result. Referencing a
// variable missing from vars is an error.
func Load(r io.Reader, vars map[string]string) ([]models.Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no scenarios defined")
		}
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}

	for i := range f.Scenarios {
		sc := &f.Scenarios[i]
		for j := range sc.Steps {
			step := &sc.Steps[j]
			var err error
			if step.Selector, err = expand(step.Selector, vars); err != nil {
				return nil, fmt.Errorf("scenario %q step %d: %w", sc.Name, j, err)
			}
			if step.Value, err = expand(step.Value, vars); err != nil {
				return nil, fmt.Errorf("scenario %q step %d: %w", sc.Name, j, err)
			}
		}
	}

	if err := Validate(f.Scenarios); err != nil {
		return nil, err
	}
	return f.Scenarios, nil
}

func expand(s string, vars map[string]string) (string, error) {
	var missing []string
	out := varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		v, ok := vars[name]
		if !ok {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("undefined variable %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Validate checks that there is at least one scenario, names are unique and
// non-empty, and every step is well formed.
func Validate(scenarios []models.Scenario) error {
	if len(scenarios) == 0 {
		return errors.New("no scenarios defined")
	}
	seen := make(map[string]bool, len(scenarios))
	for i, sc := range scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenario %d: name is required", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true

		if len(sc.Steps) == 0 {
			return fmt.Errorf("scenario %q: no steps", sc.Name)
		}
		for j, step := range sc.Steps {
			if err := step.Validate(); err != nil {
				return fmt.Errorf("scenario %q step %d: %w", sc.Name, j, err)
			}
		}
	}
	return nil
}

// Select returns the scenarios whose names are listed, in the order given.
// No names selects everything. A name may be listed only once.
func Select(scenarios []models.Scenario, names []string) ([]models.Scenario, error) {
	if len(names) == 0 {
		return scenarios, nil
	}
	byName := make(map[string]models.Scenario, len(scenarios))
	for _, sc := range scenarios {
		byName[sc.Name] = sc
	}

	out := make([]models.Scenario, 0, len(names))
	seen := make(map[string]bool, len(names))
	var unknown []string
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("scenario %q selected more than once", name)
		}
		seen[name] = true
		sc, ok := byName[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		out = append(out, sc)
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown scenario(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}

// Find returns the scenario called name.
func Find(scenarios []models.Scenario, name string) (models.Scenario, bool) {
	for _, sc := range scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return models.Scenario{}, false
}
