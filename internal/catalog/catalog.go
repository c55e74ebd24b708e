// Package catalog holds the static conversation starters and scenario
// library shown to visitors.
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultCategory is used for unknown question categories.
const DefaultCategory = "general"

//go:embed catalog.yaml
var raw []byte

// Scenario is one ready-made question.
type Scenario struct {
	Title  string `yaml:"title" json:"title"`
	Prompt string `yaml:"prompt" json:"prompt"`
}

// ScenarioCategory groups scenarios under a heading.
type ScenarioCategory struct {
	Category string     `yaml:"category" json:"category"`
	Icon     string     `yaml:"icon" json:"icon"`
	Items    []Scenario `yaml:"items" json:"items"`
}

// Catalog is the parsed content.
type Catalog struct {
	Questions map[string][]string `yaml:"questions"`
	Scenarios []ScenarioCategory  `yaml:"scenarios"`
}

var builtin = mustParse(raw)

func mustParse(data []byte) *Catalog {
	c, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes catalog YAML and checks that the default category exists.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(c.Questions[DefaultCategory]) == 0 {
		return nil, fmt.Errorf("parse catalog: no %q questions", DefaultCategory)
	}
	return &c, nil
}

// Suggested returns the starters for category, or the general ones when the
// category is unknown.
func (c *Catalog) Suggested(category string) []string {
	qs, ok := c.Questions[category]
	if !ok {
		qs = c.Questions[DefaultCategory]
	}
	return append([]string(nil), qs...)
}

// Categories lists the question categories in sorted order.
func (c *Catalog) Categories() []string {
	out := make([]string, 0, len(c.Questions))
	for k := range c.Questions {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Suggested reads the built-in catalog.
func Suggested(category string) []string { return builtin.Suggested(category) }

// Categories reads the built-in catalog.
func Categories() []string { return builtin.Categories() }

// Scenarios returns the built-in scenario library.
func Scenarios() []ScenarioCategory {
	out := make([]ScenarioCategory, len(builtin.Scenarios))
	copy(out, builtin.Scenarios)
	return out
}
