// Package testutil provides shared test helpers for mocha Go tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thomasrohde/mocha/go/pkg/evaluator"
)

// ScenariosDir is the relative path from the module root to the shared scenarios.
const ScenariosDir = "testdata/scenarios"

// Scenario is one end-to-end case: a program, its input, and what running
// (or checking, or formatting) it must produce.
type Scenario struct {
	Name string `yaml:"name"`
	// Cmd is "run" (the default), "check" or "fmt".
	Cmd    string           `yaml:"cmd,omitempty"`
	Source string           `yaml:"source"`
	Stdin  string           `yaml:"stdin,omitempty"`
	Limits evaluator.Limits `yaml:"limits,omitempty"`
	Tags   []string         `yaml:"tags,omitempty"`
	Expect ExpectedResult   `yaml:"expect"`

	// File is the scenario file the case was loaded from.
	File string `yaml:"-"`
}

// ExpectedResult describes the expected outcome of a scenario. Nil pointer
// fields are not checked.
type ExpectedResult struct {
	ExitCode       int     `yaml:"exitCode"`
	Stdout         *string `yaml:"stdout,omitempty"`
	StdoutContains string  `yaml:"stdoutContains,omitempty"`
	// Value is the debug form (strings quoted) of the final value.
	Value *string `yaml:"value,omitempty"`
	// JSON is the JSON encoding of the final value.
	JSON          string   `yaml:"json,omitempty"`
	ErrorCodes    []string `yaml:"errorCodes,omitempty"`
	ErrorContains string   `yaml:"errorContains,omitempty"`
	Formatted     *string  `yaml:"formatted,omitempty"`
}

type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios loads every *.yaml file under root, in file name order.
func LoadScenarios(root string) ([]Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(root, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var all []Scenario
	seen := make(map[string]string)
	for _, path := range paths {
		scenarios, err := LoadScenarioFile(path)
		if err != nil {
			return nil, err
		}
		for _, s := range scenarios {
			if prev, dup := seen[s.Name]; dup {
				return nil, fmt.Errorf("%s: scenario %q already defined in %s", path, s.Name, prev)
			}
			seen[s.Name] = path
			all = append(all, s)
		}
	}
	return all, nil
}

// LoadScenarioFile loads the scenarios listed in one YAML file.
func LoadScenarioFile(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for i := range f.Scenarios {
		s := &f.Scenarios[i]
		if s.Name == "" {
			return nil, fmt.Errorf("%s: scenario %d has no name", path, i)
		}
		if s.Cmd == "" {
			s.Cmd = "run"
		}
		s.File = path
	}
	return f.Scenarios, nil
}

// HasTag reports whether the scenario carries tag.
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
