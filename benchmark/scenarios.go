package benchmark

import (
	"fmt"
	"os"

	"github.com/nvr-ai/go-detect/images"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Scenario defines a specific test configuration
type Scenario struct {
	Name string `json:"name" yaml:"name"`
	// Resolution scales every frame before the run. Empty keeps the corpus size.
	Resolution images.Resolution `json:"resolution" yaml:"resolution"`
	Iterations int               `json:"iterations" yaml:"iterations"`
	WarmupRuns int               `json:"warmup_runs" yaml:"warmup_runs"`
}

// ScenarioBuilder helps build test scenarios with fluent API
type ScenarioBuilder struct {
	scenario Scenario
}

// NewScenarioBuilder creates a new scenario builder
func NewScenarioBuilder(name string) *ScenarioBuilder {
	return &ScenarioBuilder{
		scenario: Scenario{
			Name:       name,
			Iterations: 100,
			WarmupRuns: 10,
		},
	}
}

// WithResolution sets the source frame resolution
func (sb *ScenarioBuilder) WithResolution(res images.Resolution) *ScenarioBuilder {
	sb.scenario.Resolution = res
	return sb
}

// WithIterations sets the number of test iterations
func (sb *ScenarioBuilder) WithIterations(iterations int) *ScenarioBuilder {
	sb.scenario.Iterations = iterations
	return sb
}

// WithWarmupRuns sets the number of warmup runs
func (sb *ScenarioBuilder) WithWarmupRuns(warmups int) *ScenarioBuilder {
	sb.scenario.WarmupRuns = warmups
	return sb
}

// Build returns the configured test scenario
func (sb *ScenarioBuilder) Build() Scenario {
	return sb.scenario
}

// ScenarioSet represents a collection of related test scenarios
type ScenarioSet struct {
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	Scenarios   []Scenario `json:"scenarios" yaml:"scenarios"`
}

// QuickScenarios runs the corpus at its own size plus 720p and 1080p.
func QuickScenarios() *ScenarioSet {
	return &ScenarioSet{
		Name:        "Quick Performance Test",
		Description: "Corpus size, 720p and 1080p with few iterations",
		Scenarios: []Scenario{
			NewScenarioBuilder("quick_native").WithIterations(20).WithWarmupRuns(2).Build(),
			NewScenarioBuilder("quick_720p").
				WithResolution(images.Resolutions[images.ResolutionAlias720p]).
				WithIterations(20).
				WithWarmupRuns(2).
				Build(),
			NewScenarioBuilder("quick_1080p").
				WithResolution(images.Resolutions[images.ResolutionAlias1080p]).
				WithIterations(20).
				WithWarmupRuns(2).
				Build(),
		},
	}
}

// ResolutionScenarios compares source resolutions with the same settings.
func ResolutionScenarios(resolutions []images.Resolution, iterations, warmups int) *ScenarioSet {
	scenarios := make([]Scenario, 0, len(resolutions))
	for _, res := range resolutions {
		scenarios = append(scenarios, NewScenarioBuilder(fmt.Sprintf("resolution_%s", res.Alias)).
			WithResolution(res).
			WithIterations(iterations).
			WithWarmupRuns(warmups).
			Build())
	}
	return &ScenarioSet{
		Name:        "Resolution Comparison",
		Description: "Compares source frame resolutions",
		Scenarios:   scenarios,
	}
}

// LoadScenarioSet loads a scenario set from a YAML or JSON file
func LoadScenarioSet(filename string) (*ScenarioSet, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}

	var set ScenarioSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal scenario set")
	}
	for i, sc := range set.Scenarios {
		if sc.Iterations <= 0 {
			return nil, errors.Errorf("scenario %d (%q) needs at least one iteration", i, sc.Name)
		}
	}
	return &set, nil
}

// SaveScenarioSet saves a scenario set as YAML
func SaveScenarioSet(set *ScenarioSet, filename string) error {
	data, err := yaml.Marshal(set)
	if err != nil {
		return errors.Wrap(err, "failed to marshal scenario set")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write scenario file")
	}
	return nil
}
