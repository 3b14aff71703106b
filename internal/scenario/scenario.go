// Package scenario replays scripted frontend interactions against a session:
// a YAML file lists reruns, each preceded by the widget interactions a user
// would perform in the browser.
package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario is a sequence of reruns.
type Scenario struct {
	Name string `yaml:"name"`
	// Script is the script path, relative to the scenario file.
	Script string `yaml:"script"`
	Steps  []Step `yaml:"steps"`
}

// Step is one rerun. Its interactions reach the session as separate
// frontend updates, coalesced before the rerun starts.
type Step struct {
	Name         string        `yaml:"name"`
	Interactions []Interaction `yaml:"interactions"`
}

// Interaction sets one widget's value as a user would.
type Interaction struct {
	// Widget is a widget id, user key or label.
	Widget string `yaml:"widget"`
	// Value is the new value: a bool for checkboxes and buttons, an option
	// or index for radios, a string or number for inputs.
	Value any `yaml:"value"`
}

// Load reads a scenario file. A relative Script is resolved against the
// file's directory.
func Load(path string) (*Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario")
	}
	sc, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", path)
	}
	if sc.Script != "" && !filepath.IsAbs(sc.Script) {
		sc.Script = filepath.Join(filepath.Dir(path), sc.Script)
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(b []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(b, &sc); err != nil {
		return nil, errors.Wrap(err, "failed to parse scenario")
	}
	if len(sc.Steps) == 0 {
		return nil, errors.New("scenario has no steps")
	}
	for i := range sc.Steps {
		step := &sc.Steps[i]
		if step.Name == "" {
			step.Name = fmt.Sprintf("step %d", i+1)
		}
		for j, in := range step.Interactions {
			if in.Widget == "" {
				return nil, errors.Errorf("%s: interaction %d has no widget", step.Name, j+1)
			}
		}
	}
	return &sc, nil
}
